package nvstore

import (
	"fmt"
	"os"
)

// FileStore is a ByteStore backed by a fixed-size image file, the way an
// EEPROM is emulated on flash-backed hosts. Every write is synced.
type FileStore struct {
	f    *os.File
	size int
}

// OpenFile opens or creates the image at path and grows it to at least size bytes.
// New bytes read as zero.
func OpenFile(path string, size int) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open nvram image: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat nvram image: %w", err)
	}
	if info.Size() < int64(size) {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, fmt.Errorf("grow nvram image: %w", err)
		}
	} else {
		size = int(info.Size())
	}
	return &FileStore{f: f, size: size}, nil
}

// ReadUint32 reads the word at offset.
func (s *FileStore) ReadUint32(offset int) (uint32, error) {
	if err := s.check(offset); err != nil {
		return 0, err
	}
	var buf [WordSize]byte
	if _, err := s.f.ReadAt(buf[:], int64(offset)); err != nil {
		return 0, fmt.Errorf("read nvram image: %w", err)
	}
	return ByteOrder.Uint32(buf[:]), nil
}

// WriteUint32 writes value at offset and syncs the file.
func (s *FileStore) WriteUint32(offset int, value uint32) error {
	if err := s.check(offset); err != nil {
		return err
	}
	var buf [WordSize]byte
	ByteOrder.PutUint32(buf[:], value)
	if _, err := s.f.WriteAt(buf[:], int64(offset)); err != nil {
		return fmt.Errorf("write nvram image: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("sync nvram image: %w", err)
	}
	return nil
}

// Close closes the image file.
func (s *FileStore) Close() error {
	return s.f.Close()
}

func (s *FileStore) check(offset int) error {
	if offset < 0 || offset+WordSize > s.size {
		return fmt.Errorf("offset %d outside %d byte image", offset, s.size)
	}
	return nil
}
