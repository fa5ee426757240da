// Package nvstore partitions a byte-addressable non-volatile store into
// fixed slots of twelve monthly uint32 accumulators.
//
// Physical write endurance of the medium is limited, so Put compares the
// stored value first and skips the write when it is unchanged.
package nvstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// MonthsPerSlot is the number of accumulators per slot, one per calendar month.
const MonthsPerSlot = 12

// WordSize is the size in bytes of one accumulator.
const WordSize = 4

// ByteOrder is the byte order of accumulators on the medium.
var ByteOrder = binary.LittleEndian

var (
	ErrInvalidSlot  = errors.New("nvstore: slot out of range")
	ErrInvalidMonth = errors.New("nvstore: month out of range")
)

// ByteStore is addressable persistent storage.
type ByteStore interface {
	ReadUint32(offset int) (uint32, error)
	WriteUint32(offset int, value uint32) error
}

// Store maps (slot, month) pairs onto a ByteStore.
// It is safe for concurrent use; calls are serialized.
type Store struct {
	mu     sync.Mutex
	bs     ByteStore
	base   int
	slots  int
	writes uint64
}

// New creates a Store with slots slots starting at byte offset base.
func New(bs ByteStore, base, slots int) *Store {
	return &Store{bs: bs, base: base, slots: slots}
}

// Size returns the number of bytes the store occupies after base.
func Size(slots int) int {
	return slots * MonthsPerSlot * WordSize
}

// Slots returns the number of slots.
func (s *Store) Slots() int { return s.slots }

// Offset returns the byte offset of the accumulator for slot and month (1-12).
func (s *Store) Offset(slot, month int) (int, error) {
	if slot < 0 || slot >= s.slots {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	if month < 1 || month > MonthsPerSlot {
		return 0, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	return s.base + (slot*MonthsPerSlot+(month-1))*WordSize, nil
}

// Get reads the accumulator for slot and month. A never-written medium reads as zero.
func (s *Store) Get(slot, month int) (uint32, error) {
	off, err := s.Offset(slot, month)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bs.ReadUint32(off)
}

// Put stores value for slot and month unless it is already stored.
// It reports whether a physical write occurred.
func (s *Store) Put(slot, month int, value uint32) (bool, error) {
	off, err := s.Offset(slot, month)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.bs.ReadUint32(off)
	if err != nil {
		return false, fmt.Errorf("read offset %d: %w", off, err)
	}
	if current == value {
		return false, nil
	}
	if err := s.bs.WriteUint32(off, value); err != nil {
		return false, fmt.Errorf("write offset %d: %w", off, err)
	}
	s.writes++
	return true, nil
}

// Months returns all twelve accumulators of slot, indexed by month-1.
func (s *Store) Months(slot int) ([MonthsPerSlot]uint32, error) {
	var out [MonthsPerSlot]uint32
	for m := 1; m <= MonthsPerSlot; m++ {
		v, err := s.Get(slot, m)
		if err != nil {
			return out, err
		}
		out[m-1] = v
	}
	return out, nil
}

// ClearSlot zeroes every month of slot and returns the number of physical writes.
func (s *Store) ClearSlot(slot int) (int, error) {
	n := 0
	for m := 1; m <= MonthsPerSlot; m++ {
		written, err := s.Put(slot, m, 0)
		if err != nil {
			return n, err
		}
		if written {
			n++
		}
	}
	return n, nil
}

// Writes returns the number of physical writes issued since creation.
func (s *Store) Writes() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
