// Package errs defines the error kind taxonomy the sender daemon uses
// to decide retry and abort behavior, built on github.com/pkg/errors
// wrapping rather than bare stdlib errors.
package errs

import "github.com/pkg/errors"

// Sentinel error kinds. Callers wrap these with errors.Wrap(Kind, msg)
// and unwrap with errors.Cause to recover the kind for branching.
var (
	IOError             = errors.New("io error")
	DigestMismatch      = errors.New("digest mismatch")
	ReceiverRejected    = errors.New("receiver rejected")
	SyncConnectionError = errors.New("sync connection error")
	NoSuchAlgorithm     = errors.New("no such digest algorithm")
	SnapshotFailed      = errors.New("snapshot failed")
)

// Wrap attaches msg to kind, preserving kind as the Cause.
func Wrap(kind error, msg string) error {
	return errors.Wrap(kind, msg)
}

// Wrapf is Wrap with a format string.
func Wrapf(kind error, format string, args ...interface{}) error {
	return errors.Wrapf(kind, format, args...)
}

// Is reports whether err's cause chain bottoms out at kind.
func Is(err, kind error) bool {
	return errors.Cause(err) == kind
}
