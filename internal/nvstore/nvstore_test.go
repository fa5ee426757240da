package nvstore

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *MemStore) {
	t.Helper()
	mem := NewMemStore(Size(4))
	return New(mem, 0, 4), mem
}

func TestOffsetMapping(t *testing.T) {
	s := New(NewMemStore(16+Size(4)), 16, 4)

	tests := []struct {
		slot, month, want int
	}{
		{0, 1, 16},
		{0, 12, 16 + 11*4},
		{1, 1, 16 + 48},
		{3, 12, 16 + (3*12+11)*4},
	}
	for _, tt := range tests {
		got, err := s.Offset(tt.slot, tt.month)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "slot %d month %d", tt.slot, tt.month)
	}
}

func TestOffsetRejectsOutOfRange(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Offset(-1, 1)
	assert.ErrorIs(t, err, ErrInvalidSlot)
	_, err = s.Offset(4, 1)
	assert.ErrorIs(t, err, ErrInvalidSlot)
	_, err = s.Offset(0, 0)
	assert.ErrorIs(t, err, ErrInvalidMonth)
	_, err = s.Offset(0, 13)
	assert.ErrorIs(t, err, ErrInvalidMonth)

	_, err = s.Put(0, 13, 1)
	assert.ErrorIs(t, err, ErrInvalidMonth)
	_, err = s.Get(9, 1)
	assert.ErrorIs(t, err, ErrInvalidSlot)
}

func TestGetFreshStoreIsZero(t *testing.T) {
	s, _ := newTestStore(t)
	for slot := 0; slot < 4; slot++ {
		months, err := s.Months(slot)
		require.NoError(t, err)
		assert.Equal(t, [MonthsPerSlot]uint32{}, months)
	}
}

func TestPutSuppressesEqualWrites(t *testing.T) {
	s, mem := newTestStore(t)

	written, err := s.Put(2, 5, 100)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = s.Put(2, 5, 100)
	require.NoError(t, err)
	assert.False(t, written, "second identical put must be suppressed")
	assert.Equal(t, 1, mem.Writes)

	written, err = s.Put(2, 5, 200)
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, 2, mem.Writes)
	assert.Equal(t, uint64(2), s.Writes())

	v, err := s.Get(2, 5)
	require.NoError(t, err)
	assert.Equal(t, uint32(200), v)
}

func TestPutZeroOnFreshStoreIsSuppressed(t *testing.T) {
	s, mem := newTestStore(t)

	written, err := s.Put(0, 1, 0)
	require.NoError(t, err)
	assert.False(t, written)
	assert.Zero(t, mem.Writes)
}

func TestSlotsDoNotOverlap(t *testing.T) {
	s, _ := newTestStore(t)

	for slot := 0; slot < 4; slot++ {
		for m := 1; m <= MonthsPerSlot; m++ {
			_, err := s.Put(slot, m, uint32(slot*100+m))
			require.NoError(t, err)
		}
	}
	for slot := 0; slot < 4; slot++ {
		months, err := s.Months(slot)
		require.NoError(t, err)
		for m := 1; m <= MonthsPerSlot; m++ {
			assert.Equal(t, uint32(slot*100+m), months[m-1])
		}
	}
}

func TestLittleEndianLayout(t *testing.T) {
	s, mem := newTestStore(t)

	_, err := s.Put(0, 2, 0x01020304)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, mem.Bytes()[4:8])
}

func TestClearSlot(t *testing.T) {
	s, _ := newTestStore(t)
	_, _ = s.Put(1, 3, 10)
	_, _ = s.Put(1, 7, 20)
	_, _ = s.Put(2, 3, 30)

	n, err := s.ClearSlot(1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	months, err := s.Months(1)
	require.NoError(t, err)
	assert.Equal(t, [MonthsPerSlot]uint32{}, months)

	v, err := s.Get(2, 3)
	require.NoError(t, err)
	assert.Equal(t, uint32(30), v, "other slots are untouched")
}

type failingStore struct{ readErr, writeErr error }

func (f failingStore) ReadUint32(int) (uint32, error) { return 1, f.readErr }
func (f failingStore) WriteUint32(int, uint32) error  { return f.writeErr }

func TestPutPropagatesMediumErrors(t *testing.T) {
	boom := errors.New("boom")

	_, err := New(failingStore{readErr: boom}, 0, 1).Put(0, 1, 5)
	assert.ErrorIs(t, err, boom)

	_, err = New(failingStore{writeErr: boom}, 0, 1).Put(0, 1, 5)
	assert.ErrorIs(t, err, boom)
}

func TestMemStoreBounds(t *testing.T) {
	mem := NewMemStore(8)
	_, err := mem.ReadUint32(5)
	assert.Error(t, err)
	assert.Error(t, mem.WriteUint32(-1, 1))
	assert.NoError(t, mem.WriteUint32(4, 1))
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvram.bin")

	fs, err := OpenFile(path, Size(4))
	require.NoError(t, err)
	s := New(fs, 0, 4)
	_, err = s.Put(3, 12, 7000)
	require.NoError(t, err)
	require.NoError(t, fs.Close())

	fs, err = OpenFile(path, Size(4))
	require.NoError(t, err)
	defer fs.Close()
	v, err := New(fs, 0, 4).Get(3, 12)
	require.NoError(t, err)
	assert.Equal(t, uint32(7000), v)

	v, err = New(fs, 0, 4).Get(0, 1)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestFileStoreBounds(t *testing.T) {
	fs, err := OpenFile(filepath.Join(t.TempDir(), "nvram.bin"), 8)
	require.NoError(t, err)
	defer fs.Close()

	assert.Error(t, fs.WriteUint32(8, 1))
	_, err = fs.ReadUint32(-4)
	assert.Error(t, err)
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvram.db")

	bs, err := OpenBolt(path)
	require.NoError(t, err)
	s := New(bs, 0, 4)
	written, err := s.Put(1, 6, 123456)
	require.NoError(t, err)
	assert.True(t, written)
	written, err = s.Put(1, 6, 123456)
	require.NoError(t, err)
	assert.False(t, written)
	require.NoError(t, bs.Close())

	bs, err = OpenBolt(path)
	require.NoError(t, err)
	defer bs.Close()
	s = New(bs, 0, 4)
	v, err := s.Get(1, 6)
	require.NoError(t, err)
	assert.Equal(t, uint32(123456), v)

	v, err = s.Get(0, 1)
	require.NoError(t, err)
	assert.Zero(t, v)
}
