package wire

import (
	"golang.org/x/crypto/cryptobyte"

	"github.com/gluk-w/sshagent/internal/protoerr"
)

// Reader consumes SSH fields from a buffer. Field names passed to the read
// methods are reported in errors. Values returned by Bytes and MPInt are
// copies and never alias the input buffer.
type Reader struct {
	s cryptobyte.String
}

func NewReader(b []byte) *Reader {
	return &Reader{s: cryptobyte.String(b)}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.s) }

// Rest returns the unread bytes without copying them.
func (r *Reader) Rest() []byte { return []byte(r.s) }

func (r *Reader) field(name string) ([]byte, error) {
	var n uint32
	if !r.s.ReadUint32(&n) {
		return nil, protoerr.Truncated(name, len(r.s))
	}
	if uint64(n) > uint64(len(r.s)) {
		return nil, protoerr.Truncated(name, len(r.s))
	}
	var v []byte
	if !r.s.ReadBytes(&v, int(n)) {
		return nil, protoerr.Truncated(name, len(r.s))
	}
	return v, nil
}

// Bytes reads a length-prefixed byte string.
func (r *Reader) Bytes(name string) ([]byte, error) {
	v, err := r.field(name)
	if err != nil {
		return nil, err
	}
	return append([]byte{}, v...), nil
}

// MPInt reads a length-prefixed mpint payload verbatim.
func (r *Reader) MPInt(name string) (MPInt, error) {
	v, err := r.Bytes(name)
	if err != nil {
		return nil, err
	}
	return MPInt(v), nil
}

// String reads a length-prefixed string. The content is returned as is, so
// any string the Writer produced reads back unchanged.
func (r *Reader) String(name string) (string, error) {
	v, err := r.field(name)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// Peek reads a length-prefixed string without consuming it.
func (r *Reader) Peek(name string) (string, error) {
	saved := r.s
	defer func() { r.s = saved }()
	return r.String(name)
}
