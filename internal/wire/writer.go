package wire

import (
	"golang.org/x/crypto/cryptobyte"
)

// Writer builds SSH fields into a buffer whose capacity is fixed up front, so
// the output is never reallocated and no stale copies of its contents are left
// behind by growth.
type Writer struct {
	b *cryptobyte.Builder
}

// NewWriter returns a Writer with room for size bytes. Use FieldSize and
// StringSize to compute it.
func NewWriter(size int) *Writer {
	return &Writer{b: cryptobyte.NewBuilder(make([]byte, 0, size))}
}

// FieldSize is the encoded size of a length-prefixed field of n bytes.
func FieldSize(n int) int { return 4 + n }

func (w *Writer) add(v []byte) {
	w.b.AddUint32LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(v)
	})
}

func (w *Writer) Bytes(v []byte) { w.add(v) }

func (w *Writer) MPInt(m MPInt) { w.add(m) }

func (w *Writer) String(s string) { w.add([]byte(s)) }

// Finish returns the encoded bytes. It panics only if a field exceeds the
// uint32 length range, which in-memory key material never does.
func (w *Writer) Finish() []byte {
	return w.b.BytesOrPanic()
}
