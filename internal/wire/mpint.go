// Package wire implements the SSH binary field encodings used by agent key
// material: uint32 length-prefixed strings and mpints (RFC 4251 §5).
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/big"
)

// MPInt is the wire payload of an SSH mpint: big-endian two's complement
// digits without the length prefix. Non-negative values whose first digit has
// the top bit set carry a leading 0x00. The payload is kept verbatim so that
// decode(encode(m)) is the identity, including for non-canonical input.
type MPInt []byte

var errNegative = errors.New("wire: negative mpint")

// NewMPInt builds the canonical payload for the non-negative integer whose
// big-endian magnitude is given. The result never aliases magnitude.
func NewMPInt(magnitude []byte) MPInt {
	magnitude = bytes.TrimLeft(magnitude, "\x00")
	if len(magnitude) == 0 {
		return MPInt{}
	}
	if magnitude[0]&0x80 == 0 {
		return MPInt(bytes.Clone(magnitude))
	}
	m := make(MPInt, len(magnitude)+1)
	copy(m[1:], magnitude)
	return m
}

// MPIntFromBig returns the canonical payload of n, which must be
// non-negative. The digits are written straight into the result, so no
// intermediate copy of a secret value is left behind.
func MPIntFromBig(n *big.Int) (MPInt, error) {
	switch n.Sign() {
	case -1:
		return nil, errNegative
	case 0:
		return MPInt{}, nil
	}
	// BitLen/8+1 leaves room for the 0x00 pad exactly when the top bit of
	// the leading digit is set.
	return MPInt(n.FillBytes(make([]byte, n.BitLen()/8+1))), nil
}

// Big interprets m as a non-negative integer.
func (m MPInt) Big() *big.Int {
	return new(big.Int).SetBytes(m)
}

// Equal reports whether m and o have identical payloads.
func (m MPInt) Equal(o MPInt) bool {
	return bytes.Equal(m, o)
}

// Clone returns a copy of m backed by fresh storage.
func (m MPInt) Clone() MPInt {
	if m == nil {
		return nil
	}
	return MPInt(bytes.Clone(m))
}

// EncodeMPInt returns the length-prefixed wire form of m.
func EncodeMPInt(m MPInt) []byte {
	return AppendMPInt(make([]byte, 0, 4+len(m)), m)
}

// AppendMPInt appends the length-prefixed wire form of m to dst.
func AppendMPInt(dst []byte, m MPInt) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(m)))
	return append(dst, m...)
}

// DecodeMPInt reads one length-prefixed mpint from b and returns it together
// with the unread remainder of b. The returned value is a copy.
func DecodeMPInt(b []byte) (MPInt, []byte, error) {
	r := NewReader(b)
	m, err := r.MPInt("mpint")
	if err != nil {
		return nil, nil, err
	}
	return m, r.Rest(), nil
}
