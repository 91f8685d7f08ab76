// Package options provides data structures and functions for configuring
// an emberkv store. It defines the knobs that sit around the on-disk format
// and the merge operation without being part of either: lock acquisition
// patience, the sibling-file tag used during merge, and whether writes are
// synced immediately or only on close.
package options

import (
	"strings"
	"time"
)

// Options defines the configuration parameters for an emberkv store.
type Options struct {
	// LockTimeout bounds how long Open retries acquiring the exclusive
	// advisory lock on the log file before giving up.
	//
	// Default: 2s
	LockTimeout time.Duration `json:"lockTimeout"`

	// MergeFileTag is the extension given to the sibling file written
	// during merge, replacing the data file's own extension.
	//
	// Default: "merge"
	MergeFileTag string `json:"mergeFileTag"`

	// SyncWrites, when true, fsyncs the log file after every Set and
	// Delete instead of only on Close. Off by default — the core contract
	// only guarantees a flush to the OS on every write and an fsync on
	// close.
	//
	// Default: false
	SyncWrites bool `json:"syncWrites"`
}

// OptionFunc is a function that modifies an emberkv store's configuration.
type OptionFunc func(*Options)

// WithDefaultOptions applies a predefined set of default configuration
// values to the Options struct.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		opts := NewDefaultOptions()
		o.LockTimeout = opts.LockTimeout
		o.MergeFileTag = opts.MergeFileTag
		o.SyncWrites = opts.SyncWrites
	}
}

// WithLockTimeout sets how long Open retries acquiring the exclusive lock
// before giving up.
func WithLockTimeout(timeout time.Duration) OptionFunc {
	return func(o *Options) {
		if timeout > 0 {
			o.LockTimeout = timeout
		}
	}
}

// WithMergeFileTag sets the extension used for the sibling file written
// during merge.
func WithMergeFileTag(tag string) OptionFunc {
	return func(o *Options) {
		tag = strings.TrimSpace(strings.TrimPrefix(tag, "."))
		if tag != "" {
			o.MergeFileTag = tag
		}
	}
}

// WithSyncWrites enables or disables fsync-after-every-write.
func WithSyncWrites(sync bool) OptionFunc {
	return func(o *Options) {
		o.SyncWrites = sync
	}
}
