package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, WriteFrame(&buf, OpSyncData, []byte("hello")))

	op, payload, err := ReadFrame(&buf)
	assert.NoError(t, err)
	assert.Equal(t, OpSyncData, op)
	assert.Equal(t, []byte("hello"), payload)
}

func TestWriteReadEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, WriteFrame(&buf, OpStartSync, nil))

	op, payload, err := ReadFrame(&buf)
	assert.NoError(t, err)
	assert.Equal(t, OpStartSync, op)
	assert.Empty(t, payload)
}

func TestWriteReadMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := &CheckRequest{Host: "sender-1", Identity: "abc123"}
	assert.NoError(t, WriteMessage(&buf, OpCheck, req))

	var got CheckRequest
	op, err := ReadMessage(&buf, &got)
	assert.NoError(t, err)
	assert.Equal(t, OpCheck, op)
	assert.Equal(t, "sender-1", got.Host)
	assert.Equal(t, "abc123", got.Identity)
}

func TestReadFrameOversizeRejected(t *testing.T) {
	var buf bytes.Buffer
	header := []byte{0, 0, 0, byte(OpSyncData), 0xFF, 0xFF, 0xFF, 0xFF}
	buf.Write(header)

	_, _, err := ReadFrame(&buf)
	assert.Error(t, err)
}
