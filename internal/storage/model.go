package storage

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/emberkv/emberkv/pkg/options"
	"go.uber.org/zap"
)

// Log represents the single append-only file backing the store: every Set
// and Delete becomes one record appended to its tail, and the file's
// contents from offset 0 to EOF are the entire durable state of the store.
//
// Unlike the multi-segment storage this package was built around, a Log
// never rotates: there is exactly one file for the life of the store, and
// its only structural operation besides append is the atomic swap performed
// by merge.
type Log struct {
	file    *os.File           // The open log file, locked for exclusive access.
	path    string             // Path to the log file, as given in Config.Path.
	size    int64              // Current length of the file, tracked to avoid a stat on every append.
	closed  atomic.Bool        // Whether Close has run.
	mu      sync.Mutex         // Serializes appends so size and file position stay consistent.
	options *options.Options   // Configuration parameters controlling storage behavior.
	log     *zap.SugaredLogger // Structured logger for operational visibility and debugging.
}

// Config encapsulates all the configuration parameters required to initialize a Log instance.
type Config struct {
	Path    string
	Options *options.Options
	Logger  *zap.SugaredLogger
}
