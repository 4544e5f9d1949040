package schema

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"os"

	"github.com/tsreplica/sender/errs"
	"github.com/tsreplica/sender/rpcclient"
)

// defaultBatchLine is used when Shipper.BatchLine is left at its zero
// value, matching the BATCH_LINE threshold's documented default.
const defaultBatchLine = 1000

// Shipper streams unshipped schema-log lines to the receiver and
// verifies the shipment with a digest round-trip.
type Shipper struct {
	Client         *rpcclient.Client
	Filename       string // name announced to the receiver via initSyncData
	MaxSyncFileTry int
	BatchLine      int // lines accumulated into one syncData call before flushing
}

// Ship reads the cursor, skips that many already-committed lines, and
// streams the remainder in BatchLine-sized syncData calls with each
// line's original "\n" re-emitted (this repo's resolution of the
// line-terminator open question). On a failed syncData or a digest
// mismatch the whole shipment restarts from the cursor with a fresh
// digest, mirroring fileshipper's syncWithRetry, up to MaxSyncFileTry
// attempts; exhausting those raises SyncConnectionError. The cursor is
// only persisted once a passing digest confirms the shipment.
func (s *Shipper) Ship(localPath, cursorPath string) error {
	cursor, err := ReadCursor(cursorPath)
	if err != nil {
		return err
	}

	if err := s.Client.InitSyncData(s.Filename); err != nil {
		return err
	}

	tries := s.MaxSyncFileTry
	if tries < 1 {
		tries = 1
	}

	for attempt := 1; attempt <= tries; attempt++ {
		ok, shipped, err := s.tryShip(localPath, cursor)
		if err != nil {
			return err
		}
		if ok {
			return WriteCursor(cursorPath, cursor+shipped)
		}
	}
	return errs.Wrapf(errs.SyncConnectionError, "exhausted %d attempts shipping schema log %s", tries, localPath)
}

// tryShip streams localPath's lines after cursor once. A hard
// client/IO error aborts immediately; a rejected syncData or a digest
// mismatch returns ok=false so Ship retries from cursor with a fresh
// digest.
func (s *Shipper) tryShip(localPath string, cursor int) (bool, int, error) {
	f, err := os.Open(localPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return false, 0, errs.Wrapf(errs.IOError, "opening schema log %s", localPath)
		}
		f = nil
	}

	batchLine := s.BatchLine
	if batchLine < 1 {
		batchLine = defaultBatchLine
	}

	digest := md5.New()
	var batch bytes.Buffer
	batchCount := 0
	shipped := 0
	rejected := false

	if f != nil {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			if lineNum <= cursor {
				continue
			}
			line := scanner.Text() + "\n"
			batch.WriteString(line)
			digest.Write([]byte(line))
			shipped++
			batchCount++
			if batchCount == batchLine {
				ok, err := s.flush(&batch)
				if err != nil {
					return false, 0, err
				}
				if !ok {
					rejected = true
					break
				}
				batchCount = 0
			}
		}
		if err := scanner.Err(); err != nil {
			return false, 0, errs.Wrapf(errs.IOError, "reading schema log %s", localPath)
		}
	}

	if !rejected && batchCount > 0 {
		ok, err := s.flush(&batch)
		if err != nil {
			return false, 0, err
		}
		if !ok {
			rejected = true
		}
	}
	if rejected {
		return false, 0, nil
	}

	hexDigest := hex.EncodeToString(digest.Sum(nil))
	status, err := s.Client.CheckDataMD5(hexDigest)
	if err != nil {
		return false, 0, err
	}
	if !status.Success || status.Msg != hexDigest {
		return false, 0, nil
	}
	return true, shipped, nil
}

func (s *Shipper) flush(batch *bytes.Buffer) (bool, error) {
	status, err := s.Client.SyncData(batch.Bytes())
	batch.Reset()
	if err != nil {
		return false, err
	}
	return status.Success, nil
}
