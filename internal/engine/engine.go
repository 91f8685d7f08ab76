// Package engine coordinates the store's two subsystems: internal/index,
// the in-memory ordered key directory, and internal/storage, the append-only
// log file on disk. The engine is what Get, Set, Delete, range scans, and
// merge are actually implemented against; the top-level package is a thin
// wrapper around it.
//
// There is no background compaction process here. Merge runs synchronously
// when a caller asks for it, the same way internal/storage never rotates
// segments on its own; both choices follow from running a single log file
// with no subsystem watching it in the background.
package engine

import (
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/emberkv/emberkv/internal/index"
	"github.com/emberkv/emberkv/internal/record"
	"github.com/emberkv/emberkv/internal/storage"
	pkgerrors "github.com/emberkv/emberkv/pkg/errors"
	"github.com/emberkv/emberkv/pkg/filesys"
	"github.com/emberkv/emberkv/pkg/options"
)

// ErrEngineClosed is returned when attempting to perform operations on a closed engine.
var ErrEngineClosed = errors.New("operation failed: cannot access closed engine")

// ErrKeyNotFound is returned by Get when the key has no live entry.
var ErrKeyNotFound = errors.New("key not found")

// Engine is the main database engine that coordinates the index and the log.
// It is the sole owner of both subsystems.
//
// The store is single-writer, single-reader: every public operation
// requires exclusive access to the instance, enforced here by mu. A scan
// is the one operation that spans multiple calls (Scan returns, then the
// caller drives Next() repeatedly), so it holds mu for its entire lifetime
// rather than per-call; every other operation blocks until the scan's
// Iterator is closed.
type Engine struct {
	path    string
	options *options.Options
	log     *zap.SugaredLogger
	closed  atomic.Bool
	mu      sync.Mutex
	dir     *index.Directory
	file    *storage.Log
}

// Config holds all the parameters needed to initialize a new Engine instance.
type Config struct {
	Path    string
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// New opens the log file at config.Path, replays it to rebuild the index,
// and returns an Engine ready for use.
func New(config *Config) (*Engine, error) {
	if config == nil || config.Path == "" || config.Options == nil || config.Logger == nil {
		return nil, pkgerrors.NewValidationError(
			nil, pkgerrors.ErrorCodeInvalidInput, "engine configuration is required",
		).WithField("config").WithRule("required").WithProvided(config)
	}

	file, dir, err := openAndRebuild(config.Path, config.Options, config.Logger)
	if err != nil {
		return nil, err
	}

	return &Engine{
		path:    config.Path,
		options: config.Options,
		log:     config.Logger,
		dir:     dir,
		file:    file,
	}, nil
}

// openAndRebuild opens the log file at path and replays it into a fresh
// index. It is shared by New and Merge, which both need "open a log file,
// trust nothing about the index yet, and rebuild from what's on disk".
func openAndRebuild(path string, opts *options.Options, logger *zap.SugaredLogger) (*storage.Log, *index.Directory, error) {
	file, err := storage.New(&storage.Config{Path: path, Options: opts, Logger: logger})
	if err != nil {
		return nil, nil, err
	}

	dir, err := index.New(&index.Config{DataDir: filepath.Dir(path), Logger: logger})
	if err != nil {
		file.Close()
		return nil, nil, err
	}

	err = file.Load(func(key []byte, valueOffset int64, valueLen uint32, tombstone bool) error {
		if tombstone {
			_, derr := dir.Delete(key)
			return derr
		}
		return dir.Put(key, valueOffset, valueLen)
	})
	if err != nil {
		file.Close()
		dir.Close()
		return nil, nil, err
	}

	logger.Infow("rebuilt index from log", "path", path, "keys", dir.Len())
	return file, dir, nil
}

// Get returns the current value for key, or ErrKeyNotFound if it has no
// live entry.
func (e *Engine) Get(key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok, err := e.dir.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrKeyNotFound
	}

	return e.file.ReadValue(entry.Offset, entry.Len)
}

// Set writes key=value, appending a record to the log and updating the
// index to point at it.
func (e *Engine) Set(key, value []byte) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	buf, err := record.Encode(key, value)
	if err != nil {
		return err
	}

	offset, err := e.file.Append(buf)
	if err != nil {
		return err
	}

	valueOffset := offset + int64(record.HeaderSize) + int64(len(key))
	return e.dir.Put(key, valueOffset, uint32(len(value)))
}

// Delete appends a tombstone record for key and removes it from the index.
// Deleting a key that is not present is not an error.
func (e *Engine) Delete(key []byte) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	buf, err := record.EncodeTombstone(key)
	if err != nil {
		return err
	}

	if _, err := e.file.Append(buf); err != nil {
		return err
	}

	_, err = e.dir.Delete(key)
	return err
}

// Iterator walks a range or prefix scan's key snapshot, fetching each
// value from the log lazily so a scan never holds more than one value in
// memory at a time. A scan holds the store's exclusive access for its
// entire lifetime; callers must call Close to release it before issuing
// any further store operation.
type Iterator struct {
	engine  *Engine
	file    *storage.Log
	entries []index.Entry
	pos     int
	reverse bool
	closed  bool
}

// Next advances the iterator and reports its next key/value pair. ok is
// false once the scan is exhausted.
func (it *Iterator) Next() (key, value []byte, ok bool, err error) {
	if it.reverse {
		if it.pos < 0 {
			return nil, nil, false, nil
		}
		entry := it.entries[it.pos]
		it.pos--
		value, err = it.file.ReadValue(entry.Offset, entry.Len)
		return entry.Key, value, true, err
	}

	if it.pos >= len(it.entries) {
		return nil, nil, false, nil
	}
	entry := it.entries[it.pos]
	it.pos++
	value, err = it.file.ReadValue(entry.Offset, entry.Len)
	return entry.Key, value, true, err
}

// Close releases the store's exclusive access the scan was holding. It is
// safe to call more than once.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.engine.mu.Unlock()
	return nil
}

// Scan returns an iterator over the half-open key range [lo, hi). A nil lo
// or hi is unbounded on that side. When reverse is true the iterator walks
// the range from hi back to lo. The returned iterator holds the store's
// exclusive access until Close is called on it.
func (e *Engine) Scan(lo, hi []byte, reverse bool) (*Iterator, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	e.mu.Lock()

	entries, err := e.dir.Snapshot(lo, hi)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}

	start := 0
	if reverse {
		start = len(entries) - 1
	}
	return &Iterator{engine: e, file: e.file, entries: entries, pos: start, reverse: reverse}, nil
}

// ScanPrefix returns an iterator over every live key starting with prefix,
// computing the prefix's exclusive upper bound so the scan can reuse the
// same ascending range machinery as Scan.
func (e *Engine) ScanPrefix(prefix []byte, reverse bool) (*Iterator, error) {
	hi, unbounded := index.PrefixUpperBound(prefix)
	if unbounded {
		return e.Scan(prefix, nil, reverse)
	}
	return e.Scan(prefix, hi, reverse)
}

// Merge rewrites the log file to contain only the current value of every
// live key, in key order, discarding tombstones and superseded values. The
// rewrite happens in a sibling file; the swap onto the original path is a
// single atomic rename, so a crash at any point before the rename leaves
// the original log untouched and a crash after leaves the merged log in
// its place.
func (e *Engine) Merge() error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	mergePath := e.path[:len(e.path)-len(filepath.Ext(e.path))] + "." + e.options.MergeFileTag

	entries, err := e.dir.Snapshot(nil, nil)
	if err != nil {
		return err
	}

	// Remove any sibling left behind by an earlier failed merge so the
	// rewrite starts from an empty file rather than appending after it.
	if err := filesys.DeleteFile(mergePath); err != nil {
		return err
	}

	mergeFile, err := storage.New(&storage.Config{Path: mergePath, Options: e.options, Logger: e.log})
	if err != nil {
		return err
	}

	for _, entry := range entries {
		value, err := e.file.ReadValue(entry.Offset, entry.Len)
		if err != nil {
			mergeFile.Close()
			filesys.DeleteFile(mergePath)
			return err
		}

		buf, err := record.Encode(entry.Key, value)
		if err != nil {
			mergeFile.Close()
			filesys.DeleteFile(mergePath)
			return err
		}

		if _, err := mergeFile.Append(buf); err != nil {
			mergeFile.Close()
			filesys.DeleteFile(mergePath)
			return err
		}
	}

	if err := mergeFile.Sync(); err != nil {
		mergeFile.Close()
		filesys.DeleteFile(mergePath)
		return err
	}
	if err := mergeFile.Close(); err != nil {
		filesys.DeleteFile(mergePath)
		return err
	}

	oldFile, oldDir := e.file, e.dir
	if err := oldFile.Close(); err != nil {
		filesys.DeleteFile(mergePath)
		return pkgerrors.NewStorageError(
			err, pkgerrors.ErrorCodeMergeFailed, "failed to close original log file before merge swap",
		).WithPath(e.path)
	}
	oldDir.Close()

	if err := filesys.Rename(mergePath, e.path); err != nil {
		return pkgerrors.NewStorageError(
			err, pkgerrors.ErrorCodeMergeFailed, "failed to swap merged log file into place",
		).WithPath(e.path)
	}

	file, dir, err := openAndRebuild(e.path, e.options, e.log)
	if err != nil {
		return pkgerrors.NewStorageError(
			err, pkgerrors.ErrorCodeMergeFailed, "failed to reopen log file after merge",
		).WithPath(e.path)
	}

	e.file = file
	e.dir = dir
	e.log.Infow("merge completed", "path", e.path, "liveKeys", len(entries))
	return nil
}

// Close shuts down the engine, flushing and releasing the log file and
// releasing the index's memory.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	fileErr := e.file.Close()
	dirErr := e.dir.Close()
	if fileErr != nil {
		return fileErr
	}
	return dirErr
}
