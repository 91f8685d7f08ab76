// Package emberkv is an embedded, single-file, log-structured key-value
// store following the Bitcask design: an append-only data file on disk
// paired with an in-memory index mapping each live key to the byte offset
// and length of its latest value.
//
// A DB is single-writer, single-reader within one process: every exported
// method requires exclusive access to the instance, and a Scan or
// ScanPrefix iterator holds that access until its Close is called. An
// exclusive advisory lock on the data file enforces single-instance-per-file
// across processes.
package emberkv

import (
	"github.com/emberkv/emberkv/internal/engine"
	"github.com/emberkv/emberkv/internal/telemetry"
	"github.com/emberkv/emberkv/pkg/options"
)

// DB is the primary entry point for interacting with an emberkv store.
type DB struct {
	engine *engine.Engine
}

// Open opens (creating if absent) the data file at path, acquires an
// exclusive advisory lock on it, and rebuilds the in-memory index by
// replaying its contents. Missing parent directories are created.
func Open(path string, opts ...OptionFunc) (*DB, error) {
	resolved := options.NewDefaultOptions()
	for _, opt := range opts {
		opt(&resolved)
	}

	log := telemetry.New("emberkv")

	eng, err := engine.New(&engine.Config{Path: path, Options: &resolved, Logger: log})
	if err != nil {
		return nil, err
	}

	return &DB{engine: eng}, nil
}

// Get returns the current value for key, or a "key not found" error if it
// has no live entry.
func (db *DB) Get(key []byte) ([]byte, error) {
	return db.engine.Get(key)
}

// Set stores key=value, overwriting any existing value for key.
func (db *DB) Set(key, value []byte) error {
	return db.engine.Set(key, value)
}

// Delete removes key from the store. Deleting a key with no live entry is
// not an error.
func (db *DB) Delete(key []byte) error {
	return db.engine.Delete(key)
}

// Scan returns an iterator over the half-open key range [lo, hi), ordered
// by unsigned lexicographic comparison. A nil lo or hi is unbounded on that
// side. When reverse is true the iterator yields the same keys in
// descending order. The returned iterator holds the store's exclusive
// access until its Close method is called.
func (db *DB) Scan(lo, hi []byte, reverse bool) (*Iterator, error) {
	it, err := db.engine.Scan(lo, hi, reverse)
	if err != nil {
		return nil, err
	}
	return &Iterator{inner: it}, nil
}

// ScanPrefix returns an iterator over every live key starting with prefix.
func (db *DB) ScanPrefix(prefix []byte, reverse bool) (*Iterator, error) {
	it, err := db.engine.ScanPrefix(prefix, reverse)
	if err != nil {
		return nil, err
	}
	return &Iterator{inner: it}, nil
}

// Merge rewrites the data file to contain only the current value of every
// live key, discarding tombstones and superseded values. It runs
// synchronously and blocks all other operations on the store for its
// duration.
func (db *DB) Merge() error {
	return db.engine.Merge()
}

// Close flushes and releases the data file and its lock. Errors during the
// best-effort final fsync are logged, not returned.
func (db *DB) Close() error {
	return db.engine.Close()
}

// Iterator is a handle to an in-progress Scan or ScanPrefix. Values are
// fetched from disk lazily as Next is called; the iterator never
// materializes its whole result set in memory.
type Iterator struct {
	inner *engine.Iterator
}

// Next advances the iterator and reports its next key/value pair. ok is
// false once the scan is exhausted; iteration does not stop on a read
// error, so callers should inspect err on every call.
func (it *Iterator) Next() (key, value []byte, ok bool, err error) {
	return it.inner.Next()
}

// Close releases the store's exclusive access the scan was holding. It must
// be called before issuing any further operation on the DB that produced
// this iterator, and is safe to call more than once.
func (it *Iterator) Close() error {
	return it.inner.Close()
}
