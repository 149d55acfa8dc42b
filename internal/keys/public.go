package keys

import (
	"bytes"

	"github.com/gluk-w/sshagent/internal/wire"
)

// PublicKey is one of *RSAPublicKey, *DSAPublicKey, *ECDSAPublicKey or
// *Ed25519PublicKey.
type PublicKey interface {
	Tagged
	fieldsSize() int
	writeFields(w *wire.Writer)
	equal(PublicKey) bool
}

type RSAPublicKey struct {
	E, N wire.MPInt
}

type DSAPublicKey struct {
	P, Q, G, Y wire.MPInt
}

type ECDSAPublicKey struct {
	Identifier string
	Q          wire.MPInt
}

type Ed25519PublicKey struct {
	EncA []byte
}

func (k *RSAPublicKey) KeyType() string     { return KeyTypeRSA }
func (k *DSAPublicKey) KeyType() string     { return KeyTypeDSA }
func (k *ECDSAPublicKey) KeyType() string   { return ECDSAKeyType(k.Identifier) }
func (k *Ed25519PublicKey) KeyType() string { return KeyTypeEd25519 }

func (k *RSAPublicKey) fieldsSize() int {
	return sizeOf(k.E, k.N)
}

func (k *RSAPublicKey) writeFields(w *wire.Writer) {
	w.MPInt(k.E)
	w.MPInt(k.N)
}

func (k *RSAPublicKey) equal(o PublicKey) bool {
	p, ok := o.(*RSAPublicKey)
	return ok && k.E.Equal(p.E) && k.N.Equal(p.N)
}

func (k *DSAPublicKey) fieldsSize() int {
	return sizeOf(k.P, k.Q, k.G, k.Y)
}

func (k *DSAPublicKey) writeFields(w *wire.Writer) {
	w.MPInt(k.P)
	w.MPInt(k.Q)
	w.MPInt(k.G)
	w.MPInt(k.Y)
}

func (k *DSAPublicKey) equal(o PublicKey) bool {
	p, ok := o.(*DSAPublicKey)
	return ok && k.P.Equal(p.P) && k.Q.Equal(p.Q) && k.G.Equal(p.G) && k.Y.Equal(p.Y)
}

func (k *ECDSAPublicKey) fieldsSize() int {
	return wire.FieldSize(len(k.Identifier)) + sizeOf(k.Q)
}

func (k *ECDSAPublicKey) writeFields(w *wire.Writer) {
	w.String(k.Identifier)
	w.MPInt(k.Q)
}

func (k *ECDSAPublicKey) equal(o PublicKey) bool {
	p, ok := o.(*ECDSAPublicKey)
	return ok && k.Identifier == p.Identifier && k.Q.Equal(p.Q)
}

func (k *Ed25519PublicKey) fieldsSize() int {
	return sizeOf(k.EncA)
}

func (k *Ed25519PublicKey) writeFields(w *wire.Writer) {
	w.Bytes(k.EncA)
}

func (k *Ed25519PublicKey) equal(o PublicKey) bool {
	p, ok := o.(*Ed25519PublicKey)
	return ok && bytes.Equal(k.EncA, p.EncA)
}

// EqualPublic reports whether a and b are the same key variant with
// byte-identical fields.
func EqualPublic(a, b PublicKey) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.equal(b)
}

func sizeOf[T ~[]byte](fields ...T) int {
	n := 0
	for _, f := range fields {
		n += wire.FieldSize(len(f))
	}
	return n
}
