package nvstore

import (
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltBucket holds one key per written word.
const BoltBucket = "nvram"

// BoltStore is a ByteStore kept in a bbolt database. Keys are big-endian
// offsets, values are words in ByteOrder. Missing keys read as zero.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt nvram: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BoltBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket %s: %w", BoltBucket, err)
	}
	return &BoltStore{db: db}, nil
}

// ReadUint32 reads the word at offset.
func (s *BoltStore) ReadUint32(offset int) (uint32, error) {
	if offset < 0 {
		return 0, fmt.Errorf("negative offset %d", offset)
	}
	var v uint32
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(BoltBucket)).Get(boltKey(offset))
		if len(data) == WordSize {
			v = ByteOrder.Uint32(data)
		}
		return nil
	})
	return v, err
}

// WriteUint32 writes value at offset in its own transaction.
func (s *BoltStore) WriteUint32(offset int, value uint32) error {
	if offset < 0 {
		return fmt.Errorf("negative offset %d", offset)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		buf := make([]byte, WordSize)
		ByteOrder.PutUint32(buf, value)
		return tx.Bucket([]byte(BoltBucket)).Put(boltKey(offset), buf)
	})
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func boltKey(offset int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(offset))
	return key
}
