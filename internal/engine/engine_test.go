package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emberkv/emberkv/pkg/options"
)

func newTestEngine(t *testing.T, path string) *Engine {
	t.Helper()
	opts := options.NewDefaultOptions()
	e, err := New(&Config{Path: path, Options: &opts, Logger: zap.NewNop().Sugar()})
	require.NoError(t, err)
	return e
}

func drain(t *testing.T, it *Iterator) ([]string, []string) {
	t.Helper()
	defer it.Close()

	var keys, values []string
	for {
		k, v, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		keys = append(keys, string(k))
		values = append(values, string(v))
	}
	return keys, values
}

func TestSetGetDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emberkv.data")
	e := newTestEngine(t, path)
	defer e.Close()

	require.NoError(t, e.Set([]byte("a"), []byte("1")))
	value, err := e.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)

	require.NoError(t, e.Delete([]byte("a")))
	_, err = e.Get([]byte("a"))
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestReopenRebuildsIndexAfterDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emberkv.data")
	e := newTestEngine(t, path)

	require.NoError(t, e.Set([]byte("a"), []byte("1")))
	require.NoError(t, e.Set([]byte("b"), []byte("2")))
	require.NoError(t, e.Set([]byte("c"), []byte("3")))
	require.NoError(t, e.Delete([]byte("b")))
	require.NoError(t, e.Close())

	reopened := newTestEngine(t, path)
	defer reopened.Close()

	_, err := reopened.Get([]byte("b"))
	require.ErrorIs(t, err, ErrKeyNotFound)

	v, err := reopened.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	v, err = reopened.Get([]byte("c"))
	require.NoError(t, err)
	require.Equal(t, []byte("3"), v)
}

func TestForwardAndReverseScan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emberkv.data")
	e := newTestEngine(t, path)
	defer e.Close()

	for _, k := range []string{"c", "a", "d", "b"} {
		require.NoError(t, e.Set([]byte(k), []byte(k+"-value")))
	}

	it, err := e.Scan(nil, nil, false)
	require.NoError(t, err)
	keys, _ := drain(t, it)
	require.Equal(t, []string{"a", "b", "c", "d"}, keys)

	it, err = e.Scan(nil, nil, true)
	require.NoError(t, err)
	keys, _ = drain(t, it)
	require.Equal(t, []string{"d", "c", "b", "a"}, keys)
}

func TestScanPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emberkv.data")
	e := newTestEngine(t, path)
	defer e.Close()

	for _, k := range []string{"user:1", "user:2", "order:1", "user:3"} {
		require.NoError(t, e.Set([]byte(k), []byte("v")))
	}

	it, err := e.ScanPrefix([]byte("user:"), false)
	require.NoError(t, err)
	keys, _ := drain(t, it)
	require.Equal(t, []string{"user:1", "user:2", "user:3"}, keys)
}

func TestMergeDropsTombstonesAndSupersededValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emberkv.data")
	e := newTestEngine(t, path)
	defer e.Close()

	require.NoError(t, e.Set([]byte("a"), []byte("1")))
	require.NoError(t, e.Set([]byte("a"), []byte("2")))
	require.NoError(t, e.Set([]byte("b"), []byte("1")))
	require.NoError(t, e.Delete([]byte("b")))
	require.NoError(t, e.Set([]byte("c"), []byte("3")))

	sizeBeforeMerge := e.file.Size()

	require.NoError(t, e.Merge())

	require.Less(t, e.file.Size(), sizeBeforeMerge)

	v, err := e.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), v)

	_, err = e.Get([]byte("b"))
	require.ErrorIs(t, err, ErrKeyNotFound)

	v, err = e.Get([]byte("c"))
	require.NoError(t, err)
	require.Equal(t, []byte("3"), v)
}

func TestMergeThenReuseKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emberkv.data")
	e := newTestEngine(t, path)
	defer e.Close()

	require.NoError(t, e.Set([]byte("a"), []byte("1")))
	require.NoError(t, e.Merge())
	require.NoError(t, e.Set([]byte("a"), []byte("2")))

	v, err := e.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), v)
}
