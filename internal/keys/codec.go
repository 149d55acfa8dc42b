package keys

import (
	"fmt"
	"strings"

	"github.com/gluk-w/sshagent/internal/protoerr"
	"github.com/gluk-w/sshagent/internal/secmem"
	"github.com/gluk-w/sshagent/internal/wire"
)

// family decodes the fields that follow a key type tag. identifier is the
// tag suffix for ECDSA and empty otherwise.
type family struct {
	readPrivate func(r *wire.Reader, identifier string) (PrivateKey, error)
	readPublic  func(r *wire.Reader, identifier string) (PublicKey, error)
}

// families is the dispatch table for fixed tags. It is never written after
// package initialization.
var families = map[string]family{
	KeyTypeRSA:     {readPrivate: readRSAPrivate, readPublic: readRSAPublic},
	KeyTypeDSA:     {readPrivate: readDSAPrivate, readPublic: readDSAPublic},
	KeyTypeEd25519: {readPrivate: readEd25519Private, readPublic: readEd25519Public},
}

var ecdsaFamily = family{readPrivate: readECDSAPrivate, readPublic: readECDSAPublic}

func lookup(tag string) (family, string, bool) {
	if f, ok := families[tag]; ok {
		return f, "", true
	}
	if id, ok := strings.CutPrefix(tag, ecdsaTagPrefix); ok {
		return ecdsaFamily, id, true
	}
	return family{}, "", false
}

func readTag(r *wire.Reader) (family, string, error) {
	tag, err := r.String("key type")
	if err != nil {
		return family{}, "", err
	}
	f, id, ok := lookup(tag)
	if !ok {
		return family{}, "", protoerr.UnknownKeyType(tag)
	}
	return f, id, nil
}

// PrivateKeySize returns the encoded length of k including its tag.
func PrivateKeySize(k PrivateKey) int {
	return wire.FieldSize(len(k.KeyType())) + k.fieldsSize()
}

// PublicKeySize returns the encoded length of k including its tag.
func PublicKeySize(k PublicKey) int {
	return wire.FieldSize(len(k.KeyType())) + k.fieldsSize()
}

// WritePrivateKey appends the tag and fields of k to w.
func WritePrivateKey(w *wire.Writer, k PrivateKey) {
	w.String(k.KeyType())
	k.writeFields(w)
}

// EncodePrivateKey returns the wire encoding of k. The result contains the
// secret fields; wipe it with secmem.Wipe once it has been sent or stored.
func EncodePrivateKey(k PrivateKey) []byte {
	w := wire.NewWriter(PrivateKeySize(k))
	WritePrivateKey(w, k)
	return w.Finish()
}

// WritePublicKey appends the tag and fields of k to w.
func WritePublicKey(w *wire.Writer, k PublicKey) {
	w.String(k.KeyType())
	k.writeFields(w)
}

// EncodePublicKey returns the wire encoding of k, which is the OpenSSH public
// key blob.
func EncodePublicKey(k PublicKey) []byte {
	w := wire.NewWriter(PublicKeySize(k))
	WritePublicKey(w, k)
	return w.Finish()
}

// ReadPrivateKey decodes one private key from r, leaving any following data
// unread.
func ReadPrivateKey(r *wire.Reader) (PrivateKey, error) {
	f, id, err := readTag(r)
	if err != nil {
		return nil, err
	}
	return f.readPrivate(r, id)
}

// DecodePrivateKey decodes b, which must hold exactly one private key.
func DecodePrivateKey(b []byte) (PrivateKey, error) {
	r := wire.NewReader(b)
	k, err := ReadPrivateKey(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		k.Destroy()
		return nil, trailing(r)
	}
	return k, nil
}

// ReadPublicKey decodes one public key from r, leaving any following data
// unread.
func ReadPublicKey(r *wire.Reader) (PublicKey, error) {
	f, id, err := readTag(r)
	if err != nil {
		return nil, err
	}
	return f.readPublic(r, id)
}

// DecodePublicKey decodes b, which must hold exactly one public key blob.
func DecodePublicKey(b []byte) (PublicKey, error) {
	r := wire.NewReader(b)
	k, err := ReadPublicKey(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, trailing(r)
	}
	return k, nil
}

func trailing(r *wire.Reader) error {
	return protoerr.Malformed("key", fmt.Sprintf("%d trailing bytes", r.Len()))
}

type field struct {
	name string
	dst  *[]byte
}

// fieldReader is the part of *wire.Reader that readFields needs.
type fieldReader interface {
	Bytes(name string) ([]byte, error)
}

// readFields fills each field in order. If any read fails, or the read
// panics, the fields already filled are wiped and reset.
func readFields(r fieldReader, fields ...field) (err error) {
	done := false
	defer func() {
		if done {
			return
		}
		for _, f := range fields {
			secmem.Wipe(*f.dst)
			*f.dst = nil
		}
	}()
	for _, f := range fields {
		if *f.dst, err = r.Bytes(f.name); err != nil {
			return err
		}
	}
	done = true
	return nil
}

func mp(name string, dst *wire.MPInt) field {
	return field{name: name, dst: (*[]byte)(dst)}
}

func raw(name string, dst *[]byte) field {
	return field{name: name, dst: dst}
}

// readIdentifier reads the curve name that follows an ECDSA tag and checks it
// against the tag suffix, so the decoded key reports the tag it was read with.
func readIdentifier(r *wire.Reader, fromTag string) (string, error) {
	id, err := r.String("identifier")
	if err != nil {
		return "", err
	}
	if id != fromTag {
		return "", protoerr.Malformed("identifier", fmt.Sprintf("curve %q does not match key type suffix %q", id, fromTag))
	}
	return id, nil
}

func readRSAPrivate(r *wire.Reader, _ string) (PrivateKey, error) {
	var n, e, d, iqmp, p, q wire.MPInt
	err := readFields(r, mp("n", &n), mp("e", &e), mp("d", &d), mp("iqmp", &iqmp), mp("p", &p), mp("q", &q))
	if err != nil {
		return nil, err
	}
	return NewRSAPrivateKey(n, e, d, iqmp, p, q), nil
}

func readDSAPrivate(r *wire.Reader, _ string) (PrivateKey, error) {
	var p, q, g, y, x wire.MPInt
	err := readFields(r, mp("p", &p), mp("q", &q), mp("g", &g), mp("y", &y), mp("x", &x))
	if err != nil {
		return nil, err
	}
	return NewDSAPrivateKey(p, q, g, y, x), nil
}

func readECDSAPrivate(r *wire.Reader, curve string) (PrivateKey, error) {
	id, err := readIdentifier(r, curve)
	if err != nil {
		return nil, err
	}
	var q, d wire.MPInt
	if err := readFields(r, mp("q", &q), mp("d", &d)); err != nil {
		return nil, err
	}
	return NewECDSAPrivateKey(id, q, d), nil
}

func readEd25519Private(r *wire.Reader, _ string) (PrivateKey, error) {
	var encA, kEncA []byte
	if err := readFields(r, raw("enc_a", &encA), raw("k_enc_a", &kEncA)); err != nil {
		return nil, err
	}
	return NewEd25519PrivateKey(encA, kEncA), nil
}

func readRSAPublic(r *wire.Reader, _ string) (PublicKey, error) {
	k := new(RSAPublicKey)
	if err := readFields(r, mp("e", &k.E), mp("n", &k.N)); err != nil {
		return nil, err
	}
	return k, nil
}

func readDSAPublic(r *wire.Reader, _ string) (PublicKey, error) {
	k := new(DSAPublicKey)
	if err := readFields(r, mp("p", &k.P), mp("q", &k.Q), mp("g", &k.G), mp("y", &k.Y)); err != nil {
		return nil, err
	}
	return k, nil
}

func readECDSAPublic(r *wire.Reader, curve string) (PublicKey, error) {
	id, err := readIdentifier(r, curve)
	if err != nil {
		return nil, err
	}
	k := &ECDSAPublicKey{Identifier: id}
	if err := readFields(r, mp("q", &k.Q)); err != nil {
		return nil, err
	}
	return k, nil
}

func readEd25519Public(r *wire.Reader, _ string) (PublicKey, error) {
	k := new(Ed25519PublicKey)
	if err := readFields(r, raw("enc_a", &k.EncA)); err != nil {
		return nil, err
	}
	return k, nil
}
