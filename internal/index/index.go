// Package index implements the in-memory ordered key directory for the
// store: a map from every live key to the offset and length of its most
// recent value in the log file. Values never live in the directory, only
// the coordinates needed to fetch them, so memory use scales with key count
// and key size rather than with the size of the data set on disk.
//
// Keys are kept in sorted order via github.com/google/btree so that range
// and prefix scans can be served by walking the tree directly instead of
// collecting and sorting every key on each call.
package index

import (
	stdErrors "errors"

	"github.com/google/btree"

	"github.com/emberkv/emberkv/pkg/errors"
)

var ErrIndexClosed = stdErrors.New("operation failed: cannot access closed index")

// closedErr wraps ErrIndexClosed in an IndexError carrying which operation
// was attempted, so callers that care can still unwrap to the sentinel
// with errors.Is while logs get the richer context.
func closedErr(operation string) error {
	return errors.NewIndexError(ErrIndexClosed, errors.ErrorCodeClosed, "cannot access closed index").
		WithOperation(operation)
}

// New creates and initializes a new Directory instance, ready for immediate
// concurrent use.
func New(config *Config) (*Directory, error) {
	if config == nil || config.DataDir == "" || config.Logger == nil {
		return nil, errors.NewValidationError(
			nil, errors.ErrorCodeInvalidInput, "index configuration is required",
		).WithField("config").WithRule("required").WithProvided(config)
	}

	return &Directory{
		log:     config.Logger,
		dataDir: config.DataDir,
		tree:    btree.NewG(btreeDegree, byKey),
	}, nil
}

// Put records key as live at the given offset and length, replacing
// whatever the key previously pointed at.
func (d *Directory) Put(key []byte, offset int64, length uint32) error {
	if d.closed.Load() {
		return closedErr("Put")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.tree.ReplaceOrInsert(Entry{Key: append([]byte(nil), key...), Offset: offset, Len: length})
	return nil
}

// Delete removes key from the directory, reporting whether it was present.
func (d *Directory) Delete(key []byte) (bool, error) {
	if d.closed.Load() {
		return false, closedErr("Delete")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, existed := d.tree.Delete(Entry{Key: key})
	return existed, nil
}

// Get looks up the current location of key, if it is live.
func (d *Directory) Get(key []byte) (Entry, bool, error) {
	if d.closed.Load() {
		return Entry{}, false, closedErr("Get")
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	entry, ok := d.tree.Get(Entry{Key: key})
	return entry, ok, nil
}

// Len returns the number of live keys currently tracked.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tree.Len()
}

// Snapshot collects, in ascending key order, the entries whose keys fall in
// the half-open range [lo, hi). A nil lo means "from the first key"; a nil
// hi means "through the last key". The returned slice holds only directory
// metadata, never value bytes, so callers that need a descending traversal
// (reverse scans) can walk this slice backward instead of asking the tree
// for a descending iteration order that does not map cleanly onto a
// half-open range.
func (d *Directory) Snapshot(lo, hi []byte) ([]Entry, error) {
	if d.closed.Load() {
		return nil, closedErr("Snapshot")
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	entries := make([]Entry, 0, d.tree.Len())
	collect := func(e Entry) bool {
		entries = append(entries, e)
		return true
	}

	switch {
	case lo == nil && hi == nil:
		d.tree.Ascend(collect)
	case lo == nil:
		d.tree.AscendLessThan(Entry{Key: hi}, collect)
	case hi == nil:
		d.tree.AscendGreaterOrEqual(Entry{Key: lo}, collect)
	default:
		d.tree.AscendRange(Entry{Key: lo}, Entry{Key: hi}, collect)
	}

	return entries, nil
}

// PrefixUpperBound computes the exclusive upper bound for a prefix scan: the
// smallest key that is lexicographically greater than every key starting
// with prefix. It strips trailing 0xFF bytes and increments the last
// non-0xFF byte found. If prefix is empty or consists entirely of 0xFF
// bytes, there is no finite upper bound and the scan must run unbounded.
func PrefixUpperBound(prefix []byte) (hi []byte, unbounded bool) {
	end := make([]byte, len(prefix))
	copy(end, prefix)

	for i := len(end) - 1; i >= 0; i-- {
		if end[i] != 0xFF {
			end[i]++
			return end[:i+1], false
		}
	}
	return nil, true
}

// Close gracefully shuts down the Directory, releasing the memory held by
// its tree and preventing further use.
func (d *Directory) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return ErrIndexClosed
	}

	d.log.Infow("closing index")

	d.mu.Lock()
	defer d.mu.Unlock()

	d.tree.Clear(false)
	d.tree = nil

	d.log.Infow("index closed")
	return nil
}
