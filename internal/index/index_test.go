package index

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emberkv/emberkv/internal/telemetry"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	d, err := New(&Config{DataDir: t.TempDir(), Logger: zap.NewNop().Sugar()})
	require.NoError(t, err)
	return d
}

func TestPutGetDelete(t *testing.T) {
	d := newTestDirectory(t)

	require.NoError(t, d.Put([]byte("a"), 0, 5))
	entry, ok, err := d.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(0), entry.Offset)
	require.Equal(t, uint32(5), entry.Len)

	existed, err := d.Delete([]byte("a"))
	require.NoError(t, err)
	require.True(t, existed)

	_, ok, err = d.Get([]byte("a"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPutReplacesExistingOffset(t *testing.T) {
	d := newTestDirectory(t)

	require.NoError(t, d.Put([]byte("a"), 0, 5))
	require.NoError(t, d.Put([]byte("a"), 100, 9))

	entry, ok, err := d.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(100), entry.Offset)
	require.Equal(t, uint32(9), entry.Len)
	require.Equal(t, 1, d.Len())
}

func TestSnapshotOrdering(t *testing.T) {
	d := newTestDirectory(t)

	keys := []string{"banana", "apple", "cherry", "date"}
	for i, k := range keys {
		require.NoError(t, d.Put([]byte(k), int64(i), 1))
	}

	entries, err := d.Snapshot(nil, nil)
	require.NoError(t, err)

	got := make([]string, len(entries))
	for i, e := range entries {
		got[i] = string(e.Key)
	}
	require.Equal(t, []string{"apple", "banana", "cherry", "date"}, got)
}

func TestSnapshotRangeIsHalfOpen(t *testing.T) {
	d := newTestDirectory(t)
	for i, k := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, d.Put([]byte(k), int64(i), 1))
	}

	entries, err := d.Snapshot([]byte("b"), []byte("d"))
	require.NoError(t, err)

	got := make([]string, len(entries))
	for i, e := range entries {
		got[i] = string(e.Key)
	}
	require.Equal(t, []string{"b", "c"}, got)
}

func TestSnapshotIncludesEmptyKey(t *testing.T) {
	d := newTestDirectory(t)
	require.NoError(t, d.Put([]byte(""), 0, 1))
	require.NoError(t, d.Put([]byte("a"), 1, 1))

	entries, err := d.Snapshot(nil, nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "", string(entries[0].Key))
}

func TestPrefixUpperBound(t *testing.T) {
	hi, unbounded := PrefixUpperBound([]byte("ab"))
	require.False(t, unbounded)
	require.Equal(t, []byte("ac"), hi)

	hi, unbounded = PrefixUpperBound([]byte{0xAB, 0xFF})
	require.False(t, unbounded)
	require.Equal(t, []byte{0xAC}, hi)

	_, unbounded = PrefixUpperBound([]byte{0xFF, 0xFF})
	require.True(t, unbounded)

	_, unbounded = PrefixUpperBound(nil)
	require.True(t, unbounded)
}

func TestCloseIsIdempotentlyRejected(t *testing.T) {
	d := newTestDirectory(t)
	require.NoError(t, d.Close())
	require.ErrorIs(t, d.Close(), ErrIndexClosed)

	_, _, err := d.Get([]byte("a"))
	require.ErrorIs(t, err, ErrIndexClosed)
}

func TestNewRejectsMissingConfig(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	_, err = New(&Config{DataDir: "", Logger: telemetry.New("index")})
	require.Error(t, err)
}
