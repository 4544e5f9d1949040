// Package rpcclient implements the single-connection-per-cycle client
// for the length-framed protocol defined in wire. Every external call
// either works or the cycle aborts, so every transport or framing
// failure is wrapped as errs.SyncConnectionError; an init the receiver
// rejects is reported as errs.ReceiverRejected.
package rpcclient

import (
	"net"
	"time"

	"github.com/gogo/protobuf/proto"

	"github.com/tsreplica/sender/errs"
	"github.com/tsreplica/sender/wire"
)

// Client is a single TCP connection carrying exactly one sync cycle's
// worth of RPCs. It is not safe for concurrent use.
type Client struct {
	conn net.Conn
}

// NewClient wraps an already-established connection, letting tests
// and callers outside this package supply something other than a real
// TCP dial (e.g. net.Pipe).
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn}
}

// Dial opens a TCP connection to addr, giving up after timeout. The
// timeout covers only the dial; no deadline is set on the RPCs that
// follow unless the caller uses SetDeadline.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errs.Wrapf(errs.SyncConnectionError, "dialing receiver at %s", addr)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(op wire.Opcode, req proto.Message) (*wire.ResultStatus, error) {
	if err := wire.WriteMessage(c.conn, op, req); err != nil {
		return nil, err
	}
	var status wire.ResultStatus
	if _, err := wire.ReadMessage(c.conn, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Check sends this sender's identity; the receiver may reject it
// outright.
func (c *Client) Check(host, identity string) (*wire.ResultStatus, error) {
	return c.call(wire.OpCheck, &wire.CheckRequest{Host: host, Identity: identity})
}

// StartSync begins the cycle.
func (c *Client) StartSync() error {
	if err := wire.WriteFrame(c.conn, wire.OpStartSync, nil); err != nil {
		return err
	}
	_, _, err := wire.ReadFrame(c.conn)
	return err
}

// Init announces the storage group about to be synced.
func (c *Client) Init(storageGroup string) error {
	status, err := c.call(wire.OpInit, &wire.InitRequest{StorageGroup: storageGroup})
	if err != nil {
		return err
	}
	if !status.Success {
		return errs.Wrapf(errs.ReceiverRejected, "init %s: %s", storageGroup, status.ErrorMsg)
	}
	return nil
}

// InitSyncData announces the filename about to be streamed.
func (c *Client) InitSyncData(filename string) error {
	return wire.WriteMessage(c.conn, wire.OpInitSyncData, &wire.InitSyncDataRequest{Filename: filename})
}

// SyncData appends one chunk of bytes to the file currently being
// streamed and returns the receiver's ack.
func (c *Client) SyncData(chunk []byte) (*wire.ResultStatus, error) {
	if err := wire.WriteFrame(c.conn, wire.OpSyncData, chunk); err != nil {
		return nil, err
	}
	var status wire.ResultStatus
	if _, err := wire.ReadMessage(c.conn, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// CheckDataMD5 sends the sender's digest and returns the receiver's
// echoed digest; the caller compares it against the input.
func (c *Client) CheckDataMD5(hexDigest string) (*wire.ResultStatus, error) {
	return c.call(wire.OpCheckDataMD5, &wire.CheckDataMD5Request{Digest: hexDigest})
}

// SyncDeletedFileName tells the receiver one file is gone locally.
func (c *Client) SyncDeletedFileName(filename string) (*wire.ResultStatus, error) {
	return c.call(wire.OpSyncDeletedFileName, &wire.SyncDeletedFileNameRequest{Filename: filename})
}

// EndSync ends the cycle.
func (c *Client) EndSync() error {
	if err := wire.WriteFrame(c.conn, wire.OpEndSync, nil); err != nil {
		return err
	}
	_, _, err := wire.ReadFrame(c.conn)
	return err
}

// SetDeadline sets a read/write deadline d from now on the connection;
// it applies to every RPC until that moment passes.
func (c *Client) SetDeadline(d time.Duration) error {
	return c.conn.SetDeadline(time.Now().Add(d))
}
