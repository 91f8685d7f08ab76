package index

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/google/btree"
	"go.uber.org/zap"
)

// Entry is the in-memory directory's record for one live key: enough to
// locate the value on disk without holding the value itself in memory.
// Keeping Key (rather than relying solely on tree position) lets callers
// read a snapshot entry's key without a second lookup.
type Entry struct {
	Key    []byte
	Offset int64
	Len    uint32
}

// byKey orders entries by unsigned lexicographic comparison of their keys,
// the ordering google/btree needs as a strict Less.
func byKey(a, b Entry) bool {
	return bytes.Compare(a.Key, b.Key) < 0
}

// btreeDegree controls the branching factor of the underlying B-tree. 32 is
// a reasonable default for an in-memory index: wide enough to keep tree
// height low for large key counts, narrow enough that node rebalancing
// stays cheap.
const btreeDegree = 32

// Directory is the in-memory ordered key directory: a map from every live
// key to its most recent location in the log file. It never holds value
// bytes, only the offset and length needed to fetch them on demand.
type Directory struct {
	dataDir string
	log     *zap.SugaredLogger
	tree    *btree.BTreeG[Entry]
	mu      sync.RWMutex
	closed  atomic.Bool
}

// Config encapsulates the parameters required to initialize a Directory.
type Config struct {
	DataDir string
	Logger  *zap.SugaredLogger
}
