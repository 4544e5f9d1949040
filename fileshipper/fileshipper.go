// Package fileshipper implements the file shipper: for
// each new data file it makes a hard-link snapshot, streams the
// sidecar then the file itself in fixed-size chunks with an
// end-to-end digest check, and is retry-bounded; for each deleted
// file it reports the removal and, on success, journals it and hands
// it back to the caller as acknowledged. Grounded on DataTransferManager.makeFileSnapshot,
// syncSingleFile, syncDataFilesInOneGroup and
// syncDeletedFilesNameInOneGroup, with the snapshot open question
// resolved by deriving the link source from the snapshot directory
// and the link target from the original DataFile — never a self-link.
package fileshipper

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/tsreplica/sender/errs"
	"github.com/tsreplica/sender/inventory"
	"github.com/tsreplica/sender/journal"
	"github.com/tsreplica/sender/logging"
	"github.com/tsreplica/sender/rpcclient"
	"github.com/tsreplica/sender/stats"
)

var log = logging.NewLogger("fileshipper")

// Shipper streams one data directory's deletions and additions for
// the current sync cycle.
type Shipper struct {
	Client         *rpcclient.Client
	Journal        *journal.Writer
	SnapshotDir    string
	DataChunkSize  int
	MaxSyncFileTry int
	Progress       *stats.RpsCounter // optional; nil disables throughput accounting
}

// ShipDeletions reports every file in deleted to the receiver. A file
// that fails is logged and skipped rather than aborting the group;
// only the files the receiver acknowledged are returned, so the caller
// can leave them out of the new baseline.
func (s *Shipper) ShipDeletions(group string, deleted []inventory.DataFile) []inventory.DataFile {
	var acknowledged []inventory.DataFile
	for _, f := range deleted {
		status, err := s.Client.SyncDeletedFileName(f.Path)
		if err != nil {
			log.Warnf("syncDeletedFileName %s: %v", f.Path, err)
			continue
		}
		if !status.Success {
			log.Warnf("receiver rejected deletion of %s: %s", f.Path, status.ErrorMsg)
			continue
		}
		if s.Journal != nil {
			if err := s.Journal.WriteDeleted(f.Path); err != nil {
				log.Warnf("journaling deletion of %s: %v", f.Path, err)
			}
		}
		acknowledged = append(acknowledged, f)
	}
	return acknowledged
}

// ShipAdditions streams every file in toSend, sidecar then primary,
// and returns the ones fully verified. Any SyncConnectionError aborts
// immediately and is returned to the caller; a SnapshotFailed for one
// file is logged and that file is skipped.
func (s *Shipper) ShipAdditions(group string, toSend []inventory.DataFile) ([]inventory.DataFile, error) {
	var shipped []inventory.DataFile
	for _, f := range toSend {
		ok, err := s.shipOne(f)
		if err != nil {
			return shipped, err
		}
		if !ok {
			continue
		}
		if s.Journal != nil {
			if err := s.Journal.WriteSent(f.Path); err != nil {
				log.Warnf("journaling sent %s: %v", f.Path, err)
			}
		}
		shipped = append(shipped, f)
	}
	return shipped, nil
}

func (s *Shipper) shipOne(f inventory.DataFile) (bool, error) {
	snapFile, err := s.snapshot(f.Path)
	if err != nil {
		log.Warnf("snapshotting %s: %v", f.Path, err)
		return false, nil
	}
	defer os.Remove(snapFile)

	snapSidecar, err := s.snapshot(f.Sidecar())
	if err != nil {
		log.Warnf("snapshotting sidecar of %s: %v", f.Path, err)
		return false, nil
	}
	defer os.Remove(snapSidecar)

	if err := s.syncWithRetry(filepath.Base(f.Sidecar()), snapSidecar); err != nil {
		return false, err
	}
	if err := s.syncWithRetry(filepath.Base(f.Path), snapFile); err != nil {
		return false, err
	}
	return true, nil
}

// snapshot creates a hard-link to src inside the snapshot directory
// and returns its path. The link target is always src itself, never
// the snapshot path.
func (s *Shipper) snapshot(src string) (string, error) {
	if err := os.MkdirAll(s.SnapshotDir, 0755); err != nil {
		return "", errs.Wrapf(errs.SnapshotFailed, "creating snapshot directory %s", s.SnapshotDir)
	}
	dst := filepath.Join(s.SnapshotDir, filepath.Base(src))
	if err := os.Link(src, dst); err != nil {
		return "", errs.Wrapf(errs.SnapshotFailed, "linking %s into snapshot", src)
	}
	return dst, nil
}

// syncWithRetry implements syncSingleFile(snapshot): stream in
// DataChunkSize chunks with a running digest, verify with
// checkDataMD5, and on any non-success restart the whole file from
// byte zero with a fresh digest, up to MaxSyncFileTry attempts.
func (s *Shipper) syncWithRetry(remoteName, localPath string) error {
	if err := s.Client.InitSyncData(remoteName); err != nil {
		return err
	}

	tries := s.MaxSyncFileTry
	if tries < 1 {
		tries = 1
	}

	for attempt := 1; attempt <= tries; attempt++ {
		ok, n, err := s.trySyncFile(localPath)
		if err != nil {
			return err
		}
		if ok {
			if s.Progress != nil {
				s.Progress.Add(int(n))
			}
			log.Printf("sent %s (%s)", remoteName, humanize.Bytes(uint64(n)))
			return nil
		}
	}
	return errs.Wrapf(errs.SyncConnectionError, "exhausted %d attempts syncing %s", tries, remoteName)
}

func (s *Shipper) trySyncFile(localPath string) (bool, int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return false, 0, errs.Wrapf(errs.IOError, "opening snapshot %s", localPath)
	}
	defer f.Close()

	chunkSize := s.DataChunkSize
	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}
	buf := make([]byte, chunkSize)
	digest := md5.New()
	var total int64

	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			status, err := s.Client.SyncData(chunk)
			if err != nil {
				return false, 0, err
			}
			if !status.Success {
				return false, 0, nil
			}
			digest.Write(chunk)
			total += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return false, 0, errs.Wrapf(errs.IOError, "reading snapshot %s", localPath)
		}
	}

	hexDigest := hex.EncodeToString(digest.Sum(nil))
	status, err := s.Client.CheckDataMD5(hexDigest)
	if err != nil {
		return false, 0, err
	}
	if !status.Success || status.Msg != hexDigest {
		return false, 0, nil
	}
	return true, total, nil
}
