package nvstore

import "fmt"

// MemStore is a ByteStore held in memory. It counts reads and writes so tests
// can assert on wear.
type MemStore struct {
	data   []byte
	Reads  int
	Writes int
}

// NewMemStore creates a zeroed MemStore of size bytes.
func NewMemStore(size int) *MemStore {
	return &MemStore{data: make([]byte, size)}
}

// ReadUint32 reads the word at offset.
func (m *MemStore) ReadUint32(offset int) (uint32, error) {
	if err := m.check(offset); err != nil {
		return 0, err
	}
	m.Reads++
	return ByteOrder.Uint32(m.data[offset:]), nil
}

// WriteUint32 writes value at offset.
func (m *MemStore) WriteUint32(offset int, value uint32) error {
	if err := m.check(offset); err != nil {
		return err
	}
	m.Writes++
	ByteOrder.PutUint32(m.data[offset:], value)
	return nil
}

// Bytes returns the underlying image.
func (m *MemStore) Bytes() []byte { return m.data }

func (m *MemStore) check(offset int) error {
	if offset < 0 || offset+WordSize > len(m.data) {
		return fmt.Errorf("offset %d outside %d byte store", offset, len(m.data))
	}
	return nil
}
