// Package recovery is invoked once before a new cycle begins: it
// inspects any journal left by an interrupted prior run and reconciles
// it. The prior run's RPC connection cannot be resumed, so instead of
// replaying into a live connection it folds every acknowledged
// deletion and send into the baseline in place, then discards the
// journal. This is always safe since only DELETED/SENT records
// (already receiver-acknowledged at journal-write time) are applied.
package recovery

import (
	"github.com/tsreplica/sender/baseline"
	"github.com/tsreplica/sender/journal"
)

// Recover reconciles journalPath into baselinePath if a journal is
// present, then removes the journal. If no journal exists, it is a
// no-op: absence of a journal means the prior cycle committed cleanly
// or never started.
func Recover(journalPath, baselinePath string) error {
	if !journal.Exists(journalPath) {
		return nil
	}

	records, err := journal.Read(journalPath)
	if err != nil {
		return err
	}

	current, err := baseline.Read(baselinePath)
	if err != nil {
		return err
	}

	for _, r := range records {
		switch r.Kind {
		case journal.Deleted:
			delete(current, r.Path)
		case journal.Sent:
			current[r.Path] = struct{}{}
		}
	}

	paths := make([]string, 0, len(current))
	for p := range current {
		paths = append(paths, p)
	}
	if err := baseline.Replace(baselinePath, paths); err != nil {
		return err
	}
	return journal.Remove(journalPath)
}
