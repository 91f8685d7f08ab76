// Package filesys provides the small set of filesystem operations the store
// needs beyond what a bare *os.File gives it: directory creation, existence
// checks, an exclusive advisory lock on the log file, and an atomic rename
// for swapping a merged file over the original.
package filesys

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

var (
	ErrIsNotDir = errors.New("path isn't a directory")
)

// CreateDir creates a directory at the specified path with the given permissions.
//
// If the directory already exists:
//   - If 'force' is true, it proceeds without error.
//   - If 'force' is false, it returns an error.
//
// It also returns an error if the existing path is a file (not a directory).
func CreateDir(dirPath string, permission os.FileMode, force bool) error {
	stat, err := os.Stat(dirPath)
	if stat != nil && !stat.IsDir() {
		return ErrIsNotDir
	}

	if !force {
		if err == nil {
			return os.ErrExist
		}
		if !os.IsNotExist(err) {
			return err
		}
	}

	if err := os.MkdirAll(dirPath, permission); err != nil {
		return err
	}

	return os.Chmod(dirPath, permission)
}

// Exists checks if a file or directory at the given path exists.
// It returns true if the file/directory exists, false if it does not,
// and an error if there's any other issue checking its status.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// DeleteFile removes the file at the specified path. It does not consider
// a missing file an error, since callers use it to clean up orphaned merge
// siblings that may never have existed.
func DeleteFile(path string) error {
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Rename atomically replaces newpath with oldpath. On POSIX filesystems
// rename is atomic with respect to concurrent opens of newpath, which is
// what makes merge crash-safe: a crash before this call leaves the original
// log intact, a crash after leaves the new log in place, and there is no
// observable state in between.
func Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

// Lock makes one non-blocking attempt to acquire an exclusive advisory lock
// on the open file. Contention is reported as unix.EWOULDBLOCK, which callers
// distinguish from other locking failures and retry on their own interval.
func Lock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

// Unlock releases a lock previously acquired with Lock.
func Unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
