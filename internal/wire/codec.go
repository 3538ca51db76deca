package wire

import (
	"encoding/binary"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vuuvv/errors"
)

// wireResponse mirrors the four-key envelope spec.md §3/§4.1 requires,
// in declared order: id, type, payload, error. msgpack/v5 encodes structs
// as maps keyed by tag name in field-declaration order by default, which
// is what gives us the guaranteed key ordering on the wire.
type wireResponse struct {
	ID      string         `msgpack:"id"`
	Type    string         `msgpack:"type"`
	Payload map[string]any `msgpack:"payload"`
	Err     *ResponseError `msgpack:"error"`
}

// DecodeRequest parses one MessagePack-encoded request body (spec.md
// §4.1). It never returns a partially-valid Request: on any decode error
// the zero Request and a non-nil error are returned.
func DecodeRequest(body []byte) (Request, error) {
	var raw map[string]any
	if err := msgpack.Unmarshal(body, &raw); err != nil {
		return Request{}, errors.Wrap(err, "decode request")
	}
	if raw == nil {
		return Request{}, errors.New("decode request: outer value is not a map")
	}

	req := Request{
		ID:     AsString(raw["id"], ""),
		Action: AsString(raw["action"], ""),
	}

	if payload, ok := raw["payload"]; ok {
		req.HasPayload = true
		if m, ok := payload.(map[string]any); ok {
			req.Payload = m
		}
	}

	return req, nil
}

// EncodeResponse renders resp as the four-key MessagePack envelope.
func EncodeResponse(resp Response) ([]byte, error) {
	wr := wireResponse{
		ID:      resp.ID,
		Type:    responseType,
		Payload: resp.Payload,
		Err:     resp.Err,
	}
	if wr.Payload == nil {
		wr.Payload = map[string]any{}
	}
	body, err := msgpack.Marshal(wr)
	if err != nil {
		return nil, errors.Wrap(err, "encode response")
	}
	return body, nil
}

// DefaultMaxFrameBytes is the cap spec.md §9 recommends adding without
// changing the happy path. 16 MiB comfortably holds any realistic model
// description or batch read/write payload.
const DefaultMaxFrameBytes = 16 << 20

// ErrFrameTooLarge is returned by ReadFrame when the declared body length
// exceeds the configured maximum.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// ReadFrame reads one u32-be-length-prefixed MessagePack frame body from
// r, per spec.md §4.2's per-connection protocol: read exactly 4 bytes of
// length prefix, then read exactly length bytes of body. maxBytes bounds
// the allocation; 0 means DefaultMaxFrameBytes.
func ReadFrame(r io.Reader, maxBytes uint32) ([]byte, error) {
	if maxBytes == 0 {
		maxBytes = DefaultMaxFrameBytes
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > maxBytes {
		return nil, ErrFrameTooLarge
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// WriteFrame writes body as a u32-be-length-prefixed frame: length prefix
// then body, in that order, in a single Write where possible to avoid
// interleaving with a concurrent writer on the same connection.
func WriteFrame(w io.Writer, body []byte) error {
	frame := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(body)))
	copy(frame[4:], body)
	_, err := w.Write(frame)
	return err
}
