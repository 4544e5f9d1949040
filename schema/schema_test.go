package schema

import (
	"crypto/md5"
	"encoding/hex"
	"io/ioutil"
	"net"
	"os"
	"testing"

	"github.com/gogo/protobuf/proto"
	"github.com/stretchr/testify/assert"

	"github.com/tsreplica/sender/errs"
	"github.com/tsreplica/sender/rpcclient"
	"github.com/tsreplica/sender/wire"
)

// fakeReceiver accumulates every syncData chunk it is sent and, on
// checkDataMD5, echoes back the sender's own digest iff it matches
// what the receiver independently computed from the bytes it saw.
func fakeReceiver(t *testing.T, conn net.Conn) {
	defer conn.Close()
	h := md5.New()
	for {
		op, payload, err := wire.ReadFrame(conn)
		if err != nil {
			return
		}
		switch op {
		case wire.OpInitSyncData:
		case wire.OpSyncData:
			h.Write(payload)
			assert.NoError(t, wire.WriteMessage(conn, op, &wire.ResultStatus{Success: true}))
		case wire.OpCheckDataMD5:
			var req wire.CheckDataMD5Request
			assert.NoError(t, proto.Unmarshal(payload, &req))
			want := hex.EncodeToString(h.Sum(nil))
			msg := ""
			if req.Digest == want {
				msg = req.Digest
			}
			assert.NoError(t, wire.WriteMessage(conn, op, &wire.ResultStatus{Success: req.Digest == want, Msg: msg}))
		default:
			return
		}
	}
}

// fakeFlakyReceiver behaves like fakeReceiver except it rejects the
// first failCount checkDataMD5 calls outright, simulating a digest
// mismatch so the caller's retry loop is exercised. Its accumulated
// hash resets after every checkDataMD5 response, since a retried
// attempt restarts the whole shipment from the cursor.
func fakeFlakyReceiver(t *testing.T, conn net.Conn, failCount int) {
	defer conn.Close()
	h := md5.New()
	calls := 0
	for {
		op, payload, err := wire.ReadFrame(conn)
		if err != nil {
			return
		}
		switch op {
		case wire.OpInitSyncData:
		case wire.OpSyncData:
			h.Write(payload)
			assert.NoError(t, wire.WriteMessage(conn, op, &wire.ResultStatus{Success: true}))
		case wire.OpCheckDataMD5:
			var req wire.CheckDataMD5Request
			assert.NoError(t, proto.Unmarshal(payload, &req))
			calls++
			if calls <= failCount {
				assert.NoError(t, wire.WriteMessage(conn, op, &wire.ResultStatus{Success: false}))
			} else {
				want := hex.EncodeToString(h.Sum(nil))
				msg := ""
				if req.Digest == want {
					msg = req.Digest
				}
				assert.NoError(t, wire.WriteMessage(conn, op, &wire.ResultStatus{Success: req.Digest == want, Msg: msg}))
			}
			h = md5.New()
		default:
			return
		}
	}
}

func newShipper(t *testing.T) (*Shipper, func()) {
	server, client := net.Pipe()
	go fakeReceiver(t, server)
	s := &Shipper{Client: rpcclient.NewClient(client), Filename: "schema.log", MaxSyncFileTry: 3}
	return s, func() { client.Close(); server.Close() }
}

func newFlakyShipper(t *testing.T, failCount, maxTry int) (*Shipper, func()) {
	server, client := net.Pipe()
	go fakeFlakyReceiver(t, server, failCount)
	s := &Shipper{Client: rpcclient.NewClient(client), Filename: "schema.log", MaxSyncFileTry: maxTry}
	return s, func() { client.Close(); server.Close() }
}

func TestShipEmptyLogProducesEmptyDigest(t *testing.T) {
	dir, err := ioutil.TempDir("", "schema-test")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	cursorPath := dir + "/schema.cursor"
	logPath := dir + "/schema.log"

	s, done := newShipper(t)
	defer done()

	assert.NoError(t, s.Ship(logPath, cursorPath))

	cursor, err := ReadCursor(cursorPath)
	assert.NoError(t, err)
	assert.Equal(t, 0, cursor)
}

func TestShipNewLinesAdvancesCursor(t *testing.T) {
	dir, err := ioutil.TempDir("", "schema-test")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	cursorPath := dir + "/schema.cursor"
	logPath := dir + "/schema.log"
	assert.NoError(t, ioutil.WriteFile(logPath, []byte("a\nb\nc\n"), 0644))

	s, done := newShipper(t)
	defer done()

	assert.NoError(t, s.Ship(logPath, cursorPath))

	cursor, err := ReadCursor(cursorPath)
	assert.NoError(t, err)
	assert.Equal(t, 3, cursor)
}

func TestShipSkipsAlreadyCommittedLines(t *testing.T) {
	dir, err := ioutil.TempDir("", "schema-test")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	cursorPath := dir + "/schema.cursor"
	logPath := dir + "/schema.log"
	assert.NoError(t, ioutil.WriteFile(logPath, []byte("a\nb\nc\n"), 0644))
	assert.NoError(t, WriteCursor(cursorPath, 2))

	s, done := newShipper(t)
	defer done()

	assert.NoError(t, s.Ship(logPath, cursorPath))

	cursor, err := ReadCursor(cursorPath)
	assert.NoError(t, err)
	assert.Equal(t, 3, cursor)
}

func TestShipRetriesOnDigestMismatchThenSucceeds(t *testing.T) {
	dir, err := ioutil.TempDir("", "schema-test")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	cursorPath := dir + "/schema.cursor"
	logPath := dir + "/schema.log"
	assert.NoError(t, ioutil.WriteFile(logPath, []byte("a\nb\nc\n"), 0644))

	s, done := newFlakyShipper(t, 1, 3)
	defer done()

	assert.NoError(t, s.Ship(logPath, cursorPath))

	cursor, err := ReadCursor(cursorPath)
	assert.NoError(t, err)
	assert.Equal(t, 3, cursor)
}

func TestShipExhaustsRetriesAndRaisesSyncConnectionError(t *testing.T) {
	dir, err := ioutil.TempDir("", "schema-test")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	cursorPath := dir + "/schema.cursor"
	logPath := dir + "/schema.log"
	assert.NoError(t, ioutil.WriteFile(logPath, []byte("a\nb\nc\n"), 0644))

	s, done := newFlakyShipper(t, 99, 2)
	defer done()

	err = s.Ship(logPath, cursorPath)
	assert.Error(t, err)
	assert.True(t, errs.Is(err, errs.SyncConnectionError))

	cursor, err := ReadCursor(cursorPath)
	assert.NoError(t, err)
	assert.Equal(t, 0, cursor)
}
