package vcs

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// ErrLocked is returned when another tagging run holds the repository lock.
var ErrLocked = errors.New("another tagging run holds the repository lock")

// Lock is an advisory, exclusive-create lock file.
//
// The tag-exists check and the tag write are not atomic as a pair, so at most
// one tagging run may operate on a repository at a time.
//
// The file records the owner as "<pid> <hostname>". A run killed before it
// could release the lock leaves the file behind; the next AcquireLock on the
// same host removes it once the recorded pid is gone. A lock from another
// host, or one whose owner cannot be read, is never taken over: remove the
// file by hand after checking that no tagging run is active.
type Lock struct {
	path string
}

// LockOwner identifies the process that created a lock file.
type LockOwner struct {
	PID  int
	Host string
}

func (o LockOwner) String() string {
	if o.PID == 0 {
		return "unknown owner"
	}
	if o.Host == "" {
		return fmt.Sprintf("pid %d", o.PID)
	}
	return fmt.Sprintf("pid %d on %s", o.PID, o.Host)
}

// LockedError reports a lock held by another run. It matches ErrLocked.
type LockedError struct {
	Path  string
	Owner LockOwner
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%v (%s, held by %s); if no tagging run is active, remove the file",
		ErrLocked, e.Path, e.Owner)
}

func (e *LockedError) Unwrap() error { return ErrLocked }

// AcquireLock creates path exclusively. If the file exists and names a
// process on this host that no longer runs, the stale file is removed and
// creation is retried once. Otherwise it fails with a *LockedError.
func AcquireLock(path string) (*Lock, error) {
	self := currentOwner()
	for attempt := 0; ; attempt++ {
		err := createLock(path, self)
		if err == nil {
			return &Lock{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}

		owner, readErr := readLockOwner(path)
		if attempt > 0 {
			return nil, &LockedError{Path: path, Owner: owner}
		}
		switch {
		case errors.Is(readErr, os.ErrNotExist):
			// Released between our create and read.
			continue
		case readErr == nil && owner.stale(self.Host):
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("remove stale lock: %w", err)
			}
			continue
		}
		return nil, &LockedError{Path: path, Owner: owner}
	}
}

// Release removes the lock file. Safe to call on a nil Lock.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

func createLock(path string, owner LockOwner) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line := strconv.Itoa(owner.PID)
	if owner.Host != "" {
		line += " " + owner.Host
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		os.Remove(path)
		return fmt.Errorf("write lock: %w", err)
	}
	return nil
}

// readLockOwner parses a lock file. An unparsable file yields a zero owner
// and no error; only I/O failures are returned.
func readLockOwner(path string) (LockOwner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LockOwner{}, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return LockOwner{}, nil
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil || pid <= 0 {
		return LockOwner{}, nil
	}
	owner := LockOwner{PID: pid}
	if len(fields) > 1 {
		owner.Host = fields[1]
	}
	return owner, nil
}

func currentOwner() LockOwner {
	host, err := os.Hostname()
	if err != nil || strings.ContainsAny(host, " \t\n") {
		host = ""
	}
	return LockOwner{PID: os.Getpid(), Host: host}
}

// stale reports whether the owner is a dead process on host. Pids from
// other hosts, or from an unknown host, cannot be checked.
func (o LockOwner) stale(host string) bool {
	if o.PID <= 0 || o.Host == "" || o.Host != host {
		return false
	}
	return !processAlive(o.PID)
}

func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	// EPERM: the process exists but belongs to another user.
	return err == nil || errors.Is(err, syscall.EPERM)
}
