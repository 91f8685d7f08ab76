package options

import "time"

const (
	// DefaultLockTimeout is how long Open retries acquiring the exclusive
	// lock on the log file before surfacing a lock error.
	DefaultLockTimeout = 2 * time.Second

	// DefaultMergeFileTag is the extension given to the sibling file
	// written during merge.
	DefaultMergeFileTag = "merge"

	// DefaultSyncWrites controls whether Set/Delete fsync immediately.
	DefaultSyncWrites = false
)

// defaultOptions holds the default configuration settings for an emberkv
// store.
var defaultOptions = Options{
	LockTimeout:  DefaultLockTimeout,
	MergeFileTag: DefaultMergeFileTag,
	SyncWrites:   DefaultSyncWrites,
}

// NewDefaultOptions returns a copy of the package's default options.
func NewDefaultOptions() Options {
	return defaultOptions
}
