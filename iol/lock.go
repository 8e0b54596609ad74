package iol

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
)

// ErrLocked is wrapped with the holding PID when a backplane socket's
// advisory lock is already held by another process.
var ErrLocked = errors.New("iol: application_id already locked by another process")

// netioDir returns /tmp/netio<uid>, creating it mode 0700 if absent.
func netioDir() (string, error) {
	dir := filepath.Join(os.TempDir(), fmt.Sprintf("netio%d", os.Getuid()))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("iol: create %s: %w", dir, err)
	}
	return dir, nil
}

// socketPath returns /tmp/netio<uid>/<applicationID>.
func socketPath(dir string, applicationID int) string {
	return filepath.Join(dir, strconv.Itoa(applicationID))
}

// lockPath returns /tmp/netio<uid>/<applicationID>.lck.
func lockPath(dir string, applicationID int) string {
	return socketPath(dir, applicationID) + ".lck"
}

// acquireLock takes an advisory write lock on path, creating it 0600 if
// absent, and writes this process's PID into it. If another process holds
// the lock, it returns ErrLocked wrapping a message naming the holder's PID
// (see holderPID).
func acquireLock(path string) (*flock.Flock, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("iol: lock %s: %w", path, err)
	}
	if !ok {
		holder := holderPID(path)
		return nil, fmt.Errorf("%w (pid %d)", ErrLocked, holder)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		fl.Unlock()
		return nil, fmt.Errorf("iol: write pid to %s: %w", path, err)
	}
	_, writeErr := fmt.Fprintf(f, "%d", os.Getpid())
	f.Close()
	if writeErr != nil {
		fl.Unlock()
		return nil, fmt.Errorf("iol: write pid to %s: %w", path, writeErr)
	}
	return fl, nil
}

// holderPID returns the PID of whichever process holds path's write lock:
// the owner F_GETLK reports for a POSIX record lock, otherwise (flock(2)
// locks, which F_GETLK does not see) the PID the holder wrote into the
// file. It returns 0 if neither yields a PID.
func holderPID(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	lk := unix.Flock_t{Type: unix.F_WRLCK, Whence: int16(unix.SEEK_SET)}
	if err := unix.FcntlFlock(f.Fd(), unix.F_GETLK, &lk); err == nil && lk.Type != unix.F_UNLCK {
		return int(lk.Pid)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// unlinkStaleSocket removes any leftover socket file at path from a prior
// crashed instance, matching spec.md §4.6 step 3 ("unlink any stale socket
// ... and bind a new datagram socket there").
func unlinkStaleSocket(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("iol: unlink stale socket %s: %w", path, err)
	}
	return nil
}
