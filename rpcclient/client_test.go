package rpcclient

import (
	"net"
	"testing"
	"time"

	"github.com/gogo/protobuf/proto"
	"github.com/stretchr/testify/assert"

	"github.com/tsreplica/sender/wire"
)

// fakeReceiver answers Check with success and echoes back whatever
// digest it is sent via checkDataMD5, just enough to exercise the
// client's framing and call sequencing.
func fakeReceiver(t *testing.T, conn net.Conn) {
	defer conn.Close()
	for {
		op, payload, err := wire.ReadFrame(conn)
		if err != nil {
			return
		}
		switch op {
		case wire.OpCheck:
			assert.NoError(t, wire.WriteMessage(conn, op, &wire.ResultStatus{Success: true}))
		case wire.OpCheckDataMD5:
			var req wire.CheckDataMD5Request
			assert.NoError(t, proto.Unmarshal(payload, &req))
			assert.NoError(t, wire.WriteMessage(conn, op, &wire.ResultStatus{Success: true, Msg: req.Digest}))
		case wire.OpStartSync, wire.OpEndSync:
			assert.NoError(t, wire.WriteFrame(conn, op, nil))
		default:
			return
		}
	}
}

func TestClientCheckAndCheckDataMD5(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go fakeReceiver(t, server)

	c := &Client{conn: client}
	c.SetDeadline(5 * time.Second)

	status, err := c.Check("sender-1", "abc123")
	assert.NoError(t, err)
	assert.True(t, status.Success)

	assert.NoError(t, c.StartSync())

	status, err = c.CheckDataMD5("deadbeef")
	assert.NoError(t, err)
	assert.True(t, status.Success)
	assert.Equal(t, "deadbeef", status.Msg)

	assert.NoError(t, c.EndSync())
}
