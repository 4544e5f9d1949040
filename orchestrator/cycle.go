package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/tsreplica/sender/baseline"
	"github.com/tsreplica/sender/errs"
	"github.com/tsreplica/sender/fileshipper"
	"github.com/tsreplica/sender/historystore"
	"github.com/tsreplica/sender/identity"
	"github.com/tsreplica/sender/inventory"
	"github.com/tsreplica/sender/journal"
	"github.com/tsreplica/sender/rpcclient"
	"github.com/tsreplica/sender/schema"
)

const dialTimeout = 30 * time.Second

// syncAll enqueues one cycle, dropping the request if a previous cycle
// is still running.
func (o *Orchestrator) syncAll() {
	if !atomic.CompareAndSwapInt32(&o.syncInProgress, 0, 1) {
		return
	}
	defer func() {
		o.mu.Lock()
		atomic.StoreInt32(&o.syncInProgress, 0)
		o.progress = nil
		sp := o.shutdownSP
		o.shutdownSP = nil
		o.mu.Unlock()
		if sp != nil {
			sp.Sync()
		}
	}()

	outcome := historystore.CycleOutcome{StartedAt: time.Now()}
	err := o.cycle(&outcome)
	outcome.EndedAt = time.Now()
	outcome.Err = err

	if herr := o.history.Insert(outcome); herr != nil {
		log.Warnf("recording cycle outcome: %v", herr)
	}

	if err == nil {
		return
	}

	log.Errorf("sync cycle failed: %v", err)
	if errs.Is(err, errs.SyncConnectionError) {
		o.stop()
	}
}

// cycle drives one full pass of the state machine: CONNECT -> IDENTIFY
// -> SCHEMA -> DIR_LOOP{GROUP_LOOP{DELETIONS -> ADDITIONS}} -> FINALIZE.
func (o *Orchestrator) cycle(outcome *historystore.CycleOutcome) error {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	id, err := identity.GetOrCreate(o.cfg.IdentityFile)
	if err != nil {
		return err
	}

	client, err := rpcclient.Dial(fmt.Sprintf("%s:%d", o.cfg.ReceiverHost, o.cfg.ReceiverPort), dialTimeout)
	if err != nil {
		return err
	}
	defer client.Close()

	status, err := client.Check(host, id)
	if err != nil {
		return err
	}
	if !status.Success {
		return errs.Wrapf(errs.ReceiverRejected, "check: %s", status.ErrorMsg)
	}
	if err := client.StartSync(); err != nil {
		return err
	}

	shipper := &schema.Shipper{
		Client:         client,
		Filename:       filepath.Base(o.cfg.SchemaLogFile),
		MaxSyncFileTry: o.cfg.MaxSyncFileTry,
		BatchLine:      o.cfg.BatchLine,
	}
	before, _ := schema.ReadCursor(o.cfg.SchemaCursorFile)
	if err := shipper.Ship(o.cfg.SchemaLogFile, o.cfg.SchemaCursorFile); err != nil {
		return err
	}
	after, _ := schema.ReadCursor(o.cfg.SchemaCursorFile)
	outcome.SchemaLinesShipped = after - before

	jw, err := journal.Open(o.cfg.JournalFile)
	if err != nil {
		return err
	}
	defer jw.Close()

	baselineSet, err := baseline.Read(o.cfg.BaselineFile)
	if err != nil {
		return err
	}

	progress := newProgressCounter()
	o.mu.Lock()
	o.progress = progress
	o.mu.Unlock()
	fs := &fileshipper.Shipper{
		Client:         client,
		Journal:        jw,
		SnapshotDir:    o.cfg.SnapshotDir,
		DataChunkSize:  o.cfg.DataChunkSize,
		MaxSyncFileTry: o.cfg.MaxSyncFileTry,
		Progress:       progress,
	}

	var newBaseline []string

	for _, dd := range o.cfg.DataDirs {
		inv, err := inventory.DefaultBuilder{}.Build(dd.Path, dd.Group, baselineSet)
		if err != nil {
			return err
		}

		for _, group := range inv.AllGroups {
			if err := client.Init(group); err != nil {
				return err
			}

			if err := jw.WriteBeginDeletions(); err != nil {
				return err
			}
			acked := fs.ShipDeletions(group, inv.Deleted[group])
			ackedSet := map[string]struct{}{}
			for _, f := range acked {
				ackedSet[f.Path] = struct{}{}
			}
			for _, f := range inv.Deleted[group] {
				if _, ok := ackedSet[f.Path]; !ok {
					newBaseline = append(newBaseline, f.Path)
				}
			}

			if err := jw.WriteBeginTSFiles(); err != nil {
				return err
			}
			shipped, err := fs.ShipAdditions(group, inv.ToSend[group])
			if err != nil {
				return err
			}
			outcome.FilesShipped += len(shipped)
			for _, f := range shipped {
				newBaseline = append(newBaseline, f.Path)
			}
			for _, f := range inv.LastLocal[group] {
				newBaseline = append(newBaseline, f.Path)
			}

			outcome.GroupsProcessed++
		}
	}
	outcome.BytesShipped = progress.Value()

	if err := baseline.Replace(o.cfg.BaselineFile, newBaseline); err != nil {
		log.Warnf("replacing baseline: %v", err)
		return nil
	}

	if err := os.RemoveAll(o.cfg.SnapshotDir); err != nil {
		log.Warnf("removing snapshot directory: %v", err)
	}

	if err := client.EndSync(); err != nil {
		log.Warnf("endSync: %v", err)
	}

	if err := journal.Remove(o.cfg.JournalFile); err != nil {
		log.Warnf("removing journal: %v", err)
	}

	return nil
}
