// Package journal implements the sender's progress journal: an
// append-only, synchronously-flushed log of sync milestones so a
// crashed run can be resumed or cleanly discarded. Record kinds and
// flush-per-boundary discipline are grounded on the original Java
// sender's SyncSenderLogger, styled as a line-oriented writer.
package journal

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/tsreplica/sender/errs"
)

// Kind enumerates the record types the journal writes.
type Kind string

const (
	BeginDeletions Kind = "BEGIN_DELETIONS"
	Deleted        Kind = "DELETED"
	BeginTSFiles   Kind = "BEGIN_TSFILES"
	Sent           Kind = "SENT"
)

// Record is one committed line of the journal.
type Record struct {
	Kind Kind
	Path string
}

func (r Record) String() string {
	if r.Path == "" {
		return string(r.Kind)
	}
	return string(r.Kind) + " " + r.Path
}

// Writer appends records to a journal file, flushing (fsync) after
// every write so a crash never loses a committed record.
type Writer struct {
	f *os.File
}

// Open creates path (and its parent directory) if necessary and
// returns a Writer appending to it.
func Open(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errs.Wrapf(errs.IOError, "creating journal directory for %s", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errs.Wrapf(errs.IOError, "opening journal %s", path)
	}
	return &Writer{f: f}, nil
}

// WriteBeginDeletions journals the start of a group's deletion phase.
func (w *Writer) WriteBeginDeletions() error {
	return w.write(Record{Kind: BeginDeletions})
}

// WriteDeleted journals one acknowledged deletion.
func (w *Writer) WriteDeleted(path string) error {
	return w.write(Record{Kind: Deleted, Path: path})
}

// WriteBeginTSFiles journals the start of a group's additions phase.
func (w *Writer) WriteBeginTSFiles() error {
	return w.write(Record{Kind: BeginTSFiles})
}

// WriteSent journals one fully-verified file transfer.
func (w *Writer) WriteSent(path string) error {
	return w.write(Record{Kind: Sent, Path: path})
}

func (w *Writer) write(r Record) error {
	if _, err := w.f.WriteString(r.String() + "\n"); err != nil {
		return errs.Wrapf(errs.IOError, "writing journal record %q", r)
	}
	return w.f.Sync()
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	return w.f.Close()
}

// Exists reports whether a journal file is present at path, which by
// itself means a prior run did not finish.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Remove deletes the journal file; this is the commit point after
// recovery folds its records into the baseline.
func Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return errs.Wrapf(errs.IOError, "removing journal %s", path)
	}
	return nil
}

// Read parses every record present in the journal file. A truncated
// final line (a crash mid-write) is silently dropped: any record
// present was fully committed (fsynced) before being relied on.
func Read(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrapf(errs.IOError, "reading journal %s", path)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		r := Record{Kind: Kind(parts[0])}
		if len(parts) == 2 {
			r.Path = parts[1]
		}
		records = append(records, r)
	}
	// every committed record ends in "\n"; a last line without one was
	// cut short by a crash and is not a record.
	if info, err := f.Stat(); err == nil && info.Size() > 0 && len(records) > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, info.Size()-1); err == nil && last[0] != '\n' {
			records = records[:len(records)-1]
		}
	}
	return records, nil
}
