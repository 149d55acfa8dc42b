package keys

import (
	"bytes"
	"crypto/subtle"

	"github.com/gluk-w/sshagent/internal/secmem"
	"github.com/gluk-w/sshagent/internal/wire"
)

// PrivateKey is one of *RSAPrivateKey, *DSAPrivateKey, *ECDSAPrivateKey or
// *Ed25519PrivateKey. A PrivateKey exclusively owns the memory behind its
// fields; Destroy zeroes all of it.
//
// The byte fields are reachable only through accessor methods. The slices
// they return alias the key's storage and read as zero after Destroy. The
// zero value of each type is an empty key that holds no secret.
type PrivateKey interface {
	Tagged
	// Destroy zeroes every field and resets the key to its empty value. It
	// is safe to call more than once.
	Destroy()

	fieldsSize() int
	writeFields(w *wire.Writer)
	equal(PrivateKey) bool
	project() PublicKey
	clonePrivate() PrivateKey
}

// Each key keeps its buffers in a separately allocated field set. The
// cleanup registered by the constructor holds the field set, not the key, and
// wipes whatever it contains when the key is collected.

type rsaFields struct {
	n, e, d, iqmp, p, q wire.MPInt
}

func (f *rsaFields) Wipe() {
	secmem.WipeAll(f.n, f.e, f.d, f.iqmp, f.p, f.q)
	*f = rsaFields{}
}

type dsaFields struct {
	p, q, g, y, x wire.MPInt
}

func (f *dsaFields) Wipe() {
	secmem.WipeAll(f.p, f.q, f.g, f.y, f.x)
	*f = dsaFields{}
}

type ecdsaFields struct {
	q, d wire.MPInt
}

func (f *ecdsaFields) Wipe() {
	secmem.WipeAll(f.q, f.d)
	*f = ecdsaFields{}
}

type ed25519Fields struct {
	encA, kEncA []byte
}

func (f *ed25519Fields) Wipe() {
	secmem.WipeAll(f.encA, f.kEncA)
	*f = ed25519Fields{}
}

// RSAPrivateKey holds n, e, d, iqmp, p and q in agent field order.
type RSAPrivateKey struct {
	f *rsaFields
}

// DSAPrivateKey holds p, q, g, y and x in agent field order.
type DSAPrivateKey struct {
	f *dsaFields
}

// ECDSAPrivateKey holds the curve identifier, the public point Q and the
// private scalar D.
type ECDSAPrivateKey struct {
	identifier string
	f          *ecdsaFields
}

// Ed25519PrivateKey holds the 32-byte public point EncA and the 64-byte
// seed||public concatenation KEncA.
type Ed25519PrivateKey struct {
	f *ed25519Fields
}

// NewRSAPrivateKey takes ownership of the given fields.
func NewRSAPrivateKey(n, e, d, iqmp, p, q wire.MPInt) *RSAPrivateKey {
	k := &RSAPrivateKey{f: &rsaFields{n: n, e: e, d: d, iqmp: iqmp, p: p, q: q}}
	secmem.Guard(k, k.f)
	return k
}

// NewDSAPrivateKey takes ownership of the given fields.
func NewDSAPrivateKey(p, q, g, y, x wire.MPInt) *DSAPrivateKey {
	k := &DSAPrivateKey{f: &dsaFields{p: p, q: q, g: g, y: y, x: x}}
	secmem.Guard(k, k.f)
	return k
}

// NewECDSAPrivateKey takes ownership of the given fields.
func NewECDSAPrivateKey(identifier string, q, d wire.MPInt) *ECDSAPrivateKey {
	k := &ECDSAPrivateKey{identifier: identifier, f: &ecdsaFields{q: q, d: d}}
	secmem.Guard(k, k.f)
	return k
}

// NewEd25519PrivateKey takes ownership of the given fields.
func NewEd25519PrivateKey(encA, kEncA []byte) *Ed25519PrivateKey {
	k := &Ed25519PrivateKey{f: &ed25519Fields{encA: encA, kEncA: kEncA}}
	secmem.Guard(k, k.f)
	return k
}

func (k *RSAPrivateKey) KeyType() string     { return KeyTypeRSA }
func (k *DSAPrivateKey) KeyType() string     { return KeyTypeDSA }
func (k *ECDSAPrivateKey) KeyType() string   { return ECDSAKeyType(k.identifier) }
func (k *Ed25519PrivateKey) KeyType() string { return KeyTypeEd25519 }

// RSA

func (k *RSAPrivateKey) fields() rsaFields {
	if k == nil || k.f == nil {
		return rsaFields{}
	}
	return *k.f
}

func (k *RSAPrivateKey) N() wire.MPInt    { return k.fields().n }
func (k *RSAPrivateKey) E() wire.MPInt    { return k.fields().e }
func (k *RSAPrivateKey) D() wire.MPInt    { return k.fields().d }
func (k *RSAPrivateKey) Iqmp() wire.MPInt { return k.fields().iqmp }
func (k *RSAPrivateKey) P() wire.MPInt    { return k.fields().p }
func (k *RSAPrivateKey) Q() wire.MPInt    { return k.fields().q }

func (k *RSAPrivateKey) Destroy() {
	if k == nil || k.f == nil {
		return
	}
	k.f.Wipe()
	*k = RSAPrivateKey{}
}

func (k *RSAPrivateKey) Clone() *RSAPrivateKey {
	f := k.fields()
	return NewRSAPrivateKey(f.n.Clone(), f.e.Clone(), f.d.Clone(), f.iqmp.Clone(), f.p.Clone(), f.q.Clone())
}

// IntoPublic returns the public half of k and destroys k.
func (k *RSAPrivateKey) IntoPublic() *RSAPublicKey {
	defer k.Destroy()
	f := k.fields()
	return &RSAPublicKey{E: f.e.Clone(), N: f.n.Clone()}
}

// Public returns the public half of k, leaving k intact.
func (k *RSAPrivateKey) Public() *RSAPublicKey {
	return k.Clone().IntoPublic()
}

func (k *RSAPrivateKey) Equal(o *RSAPrivateKey) bool {
	a, b := k.fields(), o.fields()
	return a.n.Equal(b.n) && a.e.Equal(b.e) && secretEqual(a.d, b.d) &&
		secretEqual(a.iqmp, b.iqmp) && secretEqual(a.p, b.p) && secretEqual(a.q, b.q)
}

func (k *RSAPrivateKey) fieldsSize() int {
	f := k.fields()
	return sizeOf(f.n, f.e, f.d, f.iqmp, f.p, f.q)
}

func (k *RSAPrivateKey) writeFields(w *wire.Writer) {
	f := k.fields()
	for _, m := range []wire.MPInt{f.n, f.e, f.d, f.iqmp, f.p, f.q} {
		w.MPInt(m)
	}
}

func (k *RSAPrivateKey) equal(o PrivateKey) bool {
	p, ok := o.(*RSAPrivateKey)
	return ok && k.Equal(p)
}

func (k *RSAPrivateKey) project() PublicKey       { return k.IntoPublic() }
func (k *RSAPrivateKey) clonePrivate() PrivateKey { return k.Clone() }

// DSA

func (k *DSAPrivateKey) fields() dsaFields {
	if k == nil || k.f == nil {
		return dsaFields{}
	}
	return *k.f
}

func (k *DSAPrivateKey) P() wire.MPInt { return k.fields().p }
func (k *DSAPrivateKey) Q() wire.MPInt { return k.fields().q }
func (k *DSAPrivateKey) G() wire.MPInt { return k.fields().g }
func (k *DSAPrivateKey) Y() wire.MPInt { return k.fields().y }
func (k *DSAPrivateKey) X() wire.MPInt { return k.fields().x }

func (k *DSAPrivateKey) Destroy() {
	if k == nil || k.f == nil {
		return
	}
	k.f.Wipe()
	*k = DSAPrivateKey{}
}

func (k *DSAPrivateKey) Clone() *DSAPrivateKey {
	f := k.fields()
	return NewDSAPrivateKey(f.p.Clone(), f.q.Clone(), f.g.Clone(), f.y.Clone(), f.x.Clone())
}

// IntoPublic returns the public half of k and destroys k.
func (k *DSAPrivateKey) IntoPublic() *DSAPublicKey {
	defer k.Destroy()
	f := k.fields()
	return &DSAPublicKey{P: f.p.Clone(), Q: f.q.Clone(), G: f.g.Clone(), Y: f.y.Clone()}
}

// Public returns the public half of k, leaving k intact.
func (k *DSAPrivateKey) Public() *DSAPublicKey {
	return k.Clone().IntoPublic()
}

func (k *DSAPrivateKey) Equal(o *DSAPrivateKey) bool {
	a, b := k.fields(), o.fields()
	return a.p.Equal(b.p) && a.q.Equal(b.q) && a.g.Equal(b.g) && a.y.Equal(b.y) && secretEqual(a.x, b.x)
}

func (k *DSAPrivateKey) fieldsSize() int {
	f := k.fields()
	return sizeOf(f.p, f.q, f.g, f.y, f.x)
}

func (k *DSAPrivateKey) writeFields(w *wire.Writer) {
	f := k.fields()
	for _, m := range []wire.MPInt{f.p, f.q, f.g, f.y, f.x} {
		w.MPInt(m)
	}
}

func (k *DSAPrivateKey) equal(o PrivateKey) bool {
	p, ok := o.(*DSAPrivateKey)
	return ok && k.Equal(p)
}

func (k *DSAPrivateKey) project() PublicKey       { return k.IntoPublic() }
func (k *DSAPrivateKey) clonePrivate() PrivateKey { return k.Clone() }

// ECDSA

func (k *ECDSAPrivateKey) fields() ecdsaFields {
	if k == nil || k.f == nil {
		return ecdsaFields{}
	}
	return *k.f
}

func (k *ECDSAPrivateKey) Identifier() string { return k.identifier }
func (k *ECDSAPrivateKey) Q() wire.MPInt      { return k.fields().q }
func (k *ECDSAPrivateKey) D() wire.MPInt      { return k.fields().d }

// Destroy zeroes Q and D. The identifier is a public curve name held in an
// immutable string; it is dropped rather than overwritten.
func (k *ECDSAPrivateKey) Destroy() {
	if k == nil {
		return
	}
	if k.f != nil {
		k.f.Wipe()
	}
	*k = ECDSAPrivateKey{}
}

func (k *ECDSAPrivateKey) Clone() *ECDSAPrivateKey {
	f := k.fields()
	return NewECDSAPrivateKey(k.identifier, f.q.Clone(), f.d.Clone())
}

// IntoPublic returns the public half of k and destroys k.
func (k *ECDSAPrivateKey) IntoPublic() *ECDSAPublicKey {
	defer k.Destroy()
	return &ECDSAPublicKey{Identifier: k.identifier, Q: k.fields().q.Clone()}
}

// Public returns the public half of k, leaving k intact.
func (k *ECDSAPrivateKey) Public() *ECDSAPublicKey {
	return k.Clone().IntoPublic()
}

func (k *ECDSAPrivateKey) Equal(o *ECDSAPrivateKey) bool {
	a, b := k.fields(), o.fields()
	return k.identifier == o.identifier && a.q.Equal(b.q) && secretEqual(a.d, b.d)
}

func (k *ECDSAPrivateKey) fieldsSize() int {
	f := k.fields()
	return wire.FieldSize(len(k.identifier)) + sizeOf(f.q, f.d)
}

func (k *ECDSAPrivateKey) writeFields(w *wire.Writer) {
	f := k.fields()
	w.String(k.identifier)
	w.MPInt(f.q)
	w.MPInt(f.d)
}

func (k *ECDSAPrivateKey) equal(o PrivateKey) bool {
	p, ok := o.(*ECDSAPrivateKey)
	return ok && k.Equal(p)
}

func (k *ECDSAPrivateKey) project() PublicKey       { return k.IntoPublic() }
func (k *ECDSAPrivateKey) clonePrivate() PrivateKey { return k.Clone() }

// Ed25519

func (k *Ed25519PrivateKey) fields() ed25519Fields {
	if k == nil || k.f == nil {
		return ed25519Fields{}
	}
	return *k.f
}

func (k *Ed25519PrivateKey) EncA() []byte  { return k.fields().encA }
func (k *Ed25519PrivateKey) KEncA() []byte { return k.fields().kEncA }

func (k *Ed25519PrivateKey) Destroy() {
	if k == nil || k.f == nil {
		return
	}
	k.f.Wipe()
	*k = Ed25519PrivateKey{}
}

func (k *Ed25519PrivateKey) Clone() *Ed25519PrivateKey {
	f := k.fields()
	return NewEd25519PrivateKey(bytes.Clone(f.encA), bytes.Clone(f.kEncA))
}

// IntoPublic returns the public half of k and destroys k.
func (k *Ed25519PrivateKey) IntoPublic() *Ed25519PublicKey {
	defer k.Destroy()
	return &Ed25519PublicKey{EncA: bytes.Clone(k.fields().encA)}
}

// Public returns the public half of k, leaving k intact.
func (k *Ed25519PrivateKey) Public() *Ed25519PublicKey {
	return k.Clone().IntoPublic()
}

func (k *Ed25519PrivateKey) Equal(o *Ed25519PrivateKey) bool {
	a, b := k.fields(), o.fields()
	return bytes.Equal(a.encA, b.encA) && secretEqual(a.kEncA, b.kEncA)
}

func (k *Ed25519PrivateKey) fieldsSize() int {
	f := k.fields()
	return sizeOf(f.encA, f.kEncA)
}

func (k *Ed25519PrivateKey) writeFields(w *wire.Writer) {
	f := k.fields()
	w.Bytes(f.encA)
	w.Bytes(f.kEncA)
}

func (k *Ed25519PrivateKey) equal(o PrivateKey) bool {
	p, ok := o.(*Ed25519PrivateKey)
	return ok && k.Equal(p)
}

func (k *Ed25519PrivateKey) project() PublicKey       { return k.IntoPublic() }
func (k *Ed25519PrivateKey) clonePrivate() PrivateKey { return k.Clone() }

// EqualPrivate reports whether a and b are the same key variant with
// byte-identical fields. Secret fields are compared in constant time.
func EqualPrivate(a, b PrivateKey) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.equal(b)
}

func secretEqual[T ~[]byte](a, b T) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
