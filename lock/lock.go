// Package lock implements the sender's Singleton Guard: a non-blocking
// exclusive flock(2) over a single lock file whose lifetime is tied to
// the process, grounded on DataTransferManager.verifySingleton /
// lockInstance in the original Java sender.
package lock

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/tsreplica/sender/logging"
)

var log = logging.NewLogger("lock")

// Guard holds the open file descriptor backing the flock for as long
// as the process runs. Release is idempotent.
type Guard struct {
	f        *os.File
	released bool
}

// ErrAlreadyRunning is returned by Acquire when another process already
// holds the lock.
var ErrAlreadyRunning = errAlreadyRunning{}

type errAlreadyRunning struct{}

func (errAlreadyRunning) Error() string { return "sender is already running" }

// Acquire creates path (and its parent directory) if necessary and
// takes a non-blocking exclusive lock over the whole file. It returns
// ErrAlreadyRunning, never blocking, if the lock is already held.
func Acquire(path string) (*Guard, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, ErrAlreadyRunning
		}
		return nil, err
	}

	return &Guard{f: f}, nil
}

// Release drops the lock and closes the file. Safe to call more than
// once and safe to defer from main() alongside a signal-driven
// shutdown hook.
func (g *Guard) Release() error {
	if g == nil || g.released {
		return nil
	}
	g.released = true
	if err := unix.Flock(int(g.f.Fd()), unix.LOCK_UN); err != nil {
		log.Warn("unable to release lock: ", err)
	}
	return g.f.Close()
}

// MustAcquire logs and exits the process with status 1 if the lock is
// already held by another sender process.
func MustAcquire(path string) *Guard {
	guard, err := Acquire(path)
	if err == ErrAlreadyRunning {
		log.Fatal("sender is already running (lock held at ", path, ")")
		logging.Shutdown()
		os.Exit(1)
	} else if err != nil {
		log.Fatal("unable to create and/or lock file ", path, ": ", err)
		logging.Shutdown()
		os.Exit(1)
	}
	return guard
}
