// Package schema streams whatever schema-log lines have not yet been
// acknowledged, verifies the shipment with a digest round-trip, and
// persists the new cursor. Batch/digest/retry shape is grounded on
// DataTransferManager.tryToSyncSchema/syncSchema; cursor persistence
// uses the same simple-text-file pattern as a key=value state file,
// generalized from a byte-offset diff sequence to a lines-shipped
// count.
package schema

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tsreplica/sender/errs"
)

// ReadCursor returns the number of schema-log lines already committed
// as of the last successful shipment: the cursor counts lines already
// committed, so replay skips exactly that many. A missing cursor file
// means 0 (first run).
func ReadCursor(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errs.Wrapf(errs.IOError, "reading schema cursor %s", path)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, errs.Wrapf(errs.IOError, "parsing schema cursor %s", path)
	}
	return n, nil
}

// WriteCursor atomically persists n as the new schema cursor, using
// the same create-temp-then-rename discipline as the baseline file so
// a crash never leaves a half-written cursor.
func WriteCursor(path string, n int) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.Wrapf(errs.IOError, "creating schema cursor directory for %s", path)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".new-*")
	if err != nil {
		return errs.Wrapf(errs.IOError, "creating new schema cursor for %s", path)
	}
	tmpPath := tmp.Name()

	w := bufio.NewWriter(tmp)
	if _, err := w.WriteString(strconv.Itoa(n)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.Wrapf(errs.IOError, "writing schema cursor for %s", path)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.Wrapf(errs.IOError, "flushing schema cursor for %s", path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.Wrapf(errs.IOError, "syncing schema cursor for %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errs.Wrapf(errs.IOError, "closing schema cursor for %s", path)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errs.Wrapf(errs.IOError, "replacing schema cursor %s", path)
	}
	return nil
}
