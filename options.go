package emberkv

import (
	"time"

	"github.com/emberkv/emberkv/pkg/options"
)

// OptionFunc configures an emberkv store at Open time.
type OptionFunc = options.OptionFunc

// WithLockTimeout sets how long Open retries acquiring the exclusive lock
// on the data file before giving up. Default: 2s.
func WithLockTimeout(timeout time.Duration) OptionFunc {
	return options.WithLockTimeout(timeout)
}

// WithMergeFileTag sets the extension used for the sibling file written
// during Merge. Default: "merge".
func WithMergeFileTag(tag string) OptionFunc {
	return options.WithMergeFileTag(tag)
}

// WithSyncWrites enables or disables fsync-after-every-write. Off by
// default: the core contract only guarantees a flush to the OS on every
// write and an fsync on Close.
func WithSyncWrites(sync bool) OptionFunc {
	return options.WithSyncWrites(sync)
}
