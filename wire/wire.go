// Package wire implements the sender's length-framed RPC transport: a
// 4-byte opcode, a 4-byte big-endian payload length, then the payload
// itself. Structured payloads are marshaled with
// github.com/gogo/protobuf/proto the way protoc-gen-gogo would
// generate them by hand for a handful of small messages, rather than
// pulling in a full grpc stack for a transport this small and bespoke.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/gogo/protobuf/proto"

	"github.com/tsreplica/sender/errs"
)

// Opcode identifies one RPC operation.
type Opcode uint32

const (
	OpCheck               Opcode = 1
	OpStartSync           Opcode = 2
	OpInit                Opcode = 3
	OpInitSyncData        Opcode = 4
	OpSyncData            Opcode = 5
	OpCheckDataMD5        Opcode = 6
	OpSyncDeletedFileName Opcode = 7
	OpEndSync             Opcode = 8
)

const maxFrameLen = 64 << 20

// WriteFrame writes one opcode-tagged, length-prefixed frame.
func WriteFrame(w io.Writer, op Opcode, payload []byte) error {
	header := make([]byte, 8)
	binary.BigEndian.PutUint32(header[0:4], uint32(op))
	binary.BigEndian.PutUint32(header[4:8], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return errs.Wrapf(errs.SyncConnectionError, "writing frame header for opcode %d", op)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return errs.Wrapf(errs.SyncConnectionError, "writing frame payload for opcode %d", op)
	}
	return nil
}

// ReadFrame reads one frame and returns its opcode and payload.
func ReadFrame(r io.Reader) (Opcode, []byte, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, errs.Wrap(errs.SyncConnectionError, "reading frame header")
	}
	op := Opcode(binary.BigEndian.Uint32(header[0:4]))
	length := binary.BigEndian.Uint32(header[4:8])
	if length > maxFrameLen {
		return 0, nil, errs.Wrapf(errs.SyncConnectionError, "frame payload too large: %d bytes", length)
	}
	if length == 0 {
		return op, nil, nil
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, errs.Wrapf(errs.SyncConnectionError, "reading frame payload for opcode %d", op)
	}
	return op, payload, nil
}

// WriteMessage marshals m with proto and writes it as one frame.
func WriteMessage(w io.Writer, op Opcode, m proto.Message) error {
	payload, err := proto.Marshal(m)
	if err != nil {
		return errs.Wrapf(errs.SyncConnectionError, "marshaling opcode %d", op)
	}
	return WriteFrame(w, op, payload)
}

// ReadMessage reads one frame and unmarshals its payload into m,
// returning the opcode actually present on the wire.
func ReadMessage(r io.Reader, m proto.Message) (Opcode, error) {
	op, payload, err := ReadFrame(r)
	if err != nil {
		return 0, err
	}
	if err := proto.Unmarshal(payload, m); err != nil {
		return 0, errs.Wrapf(errs.SyncConnectionError, "unmarshaling opcode %d", op)
	}
	return op, nil
}
