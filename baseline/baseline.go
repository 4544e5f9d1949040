// Package baseline persists the baseline file: the complete set of
// DataFiles the receiver has acknowledged as of the last successful
// cycle. Grounded on DataTransferManager.endSync and a
// create-then-replace pattern, but replaces the original's
// delete-then-rename with a single os.Rename so the swap is atomic: a
// delete-then-rename has a window where no baseline file exists at
// all, which this implementation never allows.
package baseline

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/tsreplica/sender/errs"
)

// Read returns the set of absolute paths recorded in the baseline
// file. A missing file is treated as an empty baseline (first run).
func Read(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]struct{}{}, nil
		}
		return nil, errs.Wrapf(errs.IOError, "reading baseline %s", path)
	}
	defer f.Close()

	paths := map[string]struct{}{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		paths[line] = struct{}{}
	}
	return paths, nil
}

// Replace atomically writes paths (one per line, LF-terminated) as the
// new baseline, replacing whatever was there before in a single
// rename so a concurrent reader never observes a partial file.
func Replace(path string, paths []string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.Wrapf(errs.IOError, "creating baseline directory for %s", path)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".new-*")
	if err != nil {
		return errs.Wrapf(errs.IOError, "creating new baseline for %s", path)
	}
	tmpPath := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, p := range paths {
		if _, err := w.WriteString(p + "\n"); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return errs.Wrapf(errs.IOError, "writing new baseline for %s", path)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.Wrapf(errs.IOError, "flushing new baseline for %s", path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.Wrapf(errs.IOError, "syncing new baseline for %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errs.Wrapf(errs.IOError, "closing new baseline for %s", path)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errs.Wrapf(errs.IOError, "replacing baseline %s", path)
	}
	return nil
}
