package sshkeys

import (
	"bytes"
	"crypto"
	"crypto/dsa" //nolint:staticcheck // DSA agent keys still have to be decoded
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/ssh"

	"github.com/gluk-w/sshagent/internal/keys"
	"github.com/gluk-w/sshagent/internal/secmem"
	"github.com/gluk-w/sshagent/internal/wire"
)

var errUnsupportedCurve = errors.New("unsupported ecdsa curve")

// FromCryptoPrivateKey converts a crypto private key into agent key material.
// priv is not modified.
func FromCryptoPrivateKey(priv crypto.PrivateKey) (keys.PrivateKey, error) {
	switch k := priv.(type) {
	case *rsa.PrivateKey:
		return fromRSA(k)
	case *dsa.PrivateKey:
		return fromDSA(k)
	case *ecdsa.PrivateKey:
		return fromECDSA(k)
	case ed25519.PrivateKey:
		return fromEd25519(k)
	case *ed25519.PrivateKey:
		return fromEd25519(*k)
	}
	return nil, fmt.Errorf("convert private key: unsupported type %T", priv)
}

// mpints converts each value, wiping everything converted so far if one of
// them is invalid.
func mpints(values ...*big.Int) ([]wire.MPInt, error) {
	out := make([]wire.MPInt, 0, len(values))
	for _, v := range values {
		if v == nil {
			v = new(big.Int)
		}
		m, err := wire.MPIntFromBig(v)
		if err != nil {
			for _, done := range out {
				secmem.Wipe(done)
			}
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func fromRSA(k *rsa.PrivateKey) (keys.PrivateKey, error) {
	if len(k.Primes) != 2 {
		return nil, fmt.Errorf("convert rsa key: %d primes, want 2", len(k.Primes))
	}
	p, q := k.Primes[0], k.Primes[1]

	iqmp := new(big.Int).ModInverse(q, p)
	if iqmp == nil {
		return nil, fmt.Errorf("convert rsa key: q has no inverse mod p")
	}
	defer secmem.WipeBig(iqmp)

	f, err := mpints(k.N, big.NewInt(int64(k.E)), k.D, iqmp, p, q)
	if err != nil {
		return nil, fmt.Errorf("convert rsa key: %w", err)
	}
	return keys.NewRSAPrivateKey(f[0], f[1], f[2], f[3], f[4], f[5]), nil
}

func fromDSA(k *dsa.PrivateKey) (keys.PrivateKey, error) {
	f, err := mpints(k.P, k.Q, k.G, k.Y, k.X)
	if err != nil {
		return nil, fmt.Errorf("convert dsa key: %w", err)
	}
	return keys.NewDSAPrivateKey(f[0], f[1], f[2], f[3], f[4]), nil
}

func curveIdentifier(c elliptic.Curve) (string, error) {
	switch c {
	case elliptic.P256():
		return keys.CurveP256, nil
	case elliptic.P384():
		return keys.CurveP384, nil
	case elliptic.P521():
		return keys.CurveP521, nil
	}
	return "", errUnsupportedCurve
}

func curveByIdentifier(id string) (elliptic.Curve, error) {
	switch id {
	case keys.CurveP256:
		return elliptic.P256(), nil
	case keys.CurveP384:
		return elliptic.P384(), nil
	case keys.CurveP521:
		return elliptic.P521(), nil
	}
	return nil, errUnsupportedCurve
}

func fromECDSA(k *ecdsa.PrivateKey) (keys.PrivateKey, error) {
	id, err := curveIdentifier(k.Curve)
	if err != nil {
		return nil, fmt.Errorf("convert ecdsa key: %w", err)
	}
	pub, err := k.PublicKey.ECDH()
	if err != nil {
		return nil, fmt.Errorf("convert ecdsa key: %w", err)
	}
	d, err := wire.MPIntFromBig(k.D)
	if err != nil {
		return nil, fmt.Errorf("convert ecdsa key: %w", err)
	}
	return keys.NewECDSAPrivateKey(id, wire.MPInt(pub.Bytes()), d), nil
}

func fromEd25519(k ed25519.PrivateKey) (keys.PrivateKey, error) {
	if len(k) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("convert ed25519 key: length %d, want %d", len(k), ed25519.PrivateKeySize)
	}
	pub := k[ed25519.SeedSize:]
	return keys.NewEd25519PrivateKey(bytes.Clone(pub), bytes.Clone(k)), nil
}

// ToCryptoPrivateKey converts agent key material into the matching crypto
// private key: *rsa.PrivateKey, *dsa.PrivateKey, *ecdsa.PrivateKey or
// ed25519.PrivateKey. The result shares no memory with k; wipe it with
// WipeCryptoPrivateKey when done.
func ToCryptoPrivateKey(k keys.PrivateKey) (crypto.PrivateKey, error) {
	switch k := k.(type) {
	case *keys.RSAPrivateKey:
		e := k.E().Big()
		if !e.IsInt64() || e.Int64() > int64(^uint32(0)>>1) {
			return nil, fmt.Errorf("convert rsa key: public exponent out of range")
		}
		priv := &rsa.PrivateKey{
			PublicKey: rsa.PublicKey{N: k.N().Big(), E: int(e.Int64())},
			D:         k.D().Big(),
			Primes:    []*big.Int{k.P().Big(), k.Q().Big()},
		}
		priv.Precompute()
		return priv, nil
	case *keys.DSAPrivateKey:
		return &dsa.PrivateKey{
			PublicKey: dsa.PublicKey{
				Parameters: dsa.Parameters{P: k.P().Big(), Q: k.Q().Big(), G: k.G().Big()},
				Y:          k.Y().Big(),
			},
			X: k.X().Big(),
		}, nil
	case *keys.ECDSAPrivateKey:
		curve, err := curveByIdentifier(k.Identifier())
		if err != nil {
			return nil, fmt.Errorf("convert ecdsa key: %w", err)
		}
		size := (curve.Params().BitSize + 7) / 8
		q := k.Q()
		if len(q) != 1+2*size || q[0] != 0x04 {
			return nil, fmt.Errorf("convert ecdsa key: point is not an uncompressed %s point", k.Identifier())
		}
		return &ecdsa.PrivateKey{
			PublicKey: ecdsa.PublicKey{
				Curve: curve,
				X:     new(big.Int).SetBytes(q[1 : 1+size]),
				Y:     new(big.Int).SetBytes(q[1+size:]),
			},
			D: k.D().Big(),
		}, nil
	case *keys.Ed25519PrivateKey:
		kEncA := k.KEncA()
		if len(kEncA) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("convert ed25519 key: length %d, want %d", len(kEncA), ed25519.PrivateKeySize)
		}
		return ed25519.PrivateKey(bytes.Clone(kEncA)), nil
	}
	return nil, fmt.Errorf("convert private key: unsupported type %T", k)
}

// WipeCryptoPrivateKey zeroes the secret values of a crypto private key
// produced by this package or by ssh.ParseRawPrivateKey.
func WipeCryptoPrivateKey(priv crypto.PrivateKey) {
	switch k := priv.(type) {
	case *rsa.PrivateKey:
		secmem.WipeBig(k.D)
		for _, p := range k.Primes {
			secmem.WipeBig(p)
		}
		secmem.WipeBig(k.Precomputed.Dp)
		secmem.WipeBig(k.Precomputed.Dq)
		secmem.WipeBig(k.Precomputed.Qinv)
	case *dsa.PrivateKey:
		secmem.WipeBig(k.X)
	case *ecdsa.PrivateKey:
		secmem.WipeBig(k.D)
	case ed25519.PrivateKey:
		secmem.Wipe(k)
	case *ed25519.PrivateKey:
		secmem.Wipe(*k)
	}
}

// ParsePrivateKeyPEM parses an unencrypted PEM private key.
func ParsePrivateKeyPEM(pemBytes []byte) (keys.PrivateKey, error) {
	raw, err := ssh.ParseRawPrivateKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	defer WipeCryptoPrivateKey(raw)
	return FromCryptoPrivateKey(raw)
}

// ParsePrivateKeyPEMWithPassphrase parses a passphrase-protected PEM private
// key.
func ParsePrivateKeyPEMWithPassphrase(pemBytes, passphrase []byte) (keys.PrivateKey, error) {
	raw, err := ssh.ParseRawPrivateKeyWithPassphrase(pemBytes, passphrase)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	defer WipeCryptoPrivateKey(raw)
	return FromCryptoPrivateKey(raw)
}

// ToSSHPublicKey converts pub into an ssh.PublicKey. It fails for key types
// x/crypto/ssh cannot parse, such as ECDSA on unlisted curves.
func ToSSHPublicKey(pub keys.PublicKey) (ssh.PublicKey, error) {
	k, err := ssh.ParsePublicKey(keys.EncodePublicKey(pub))
	if err != nil {
		return nil, fmt.Errorf("convert public key: %w", err)
	}
	return k, nil
}

// FromSSHPublicKey converts an ssh.PublicKey into agent key material.
func FromSSHPublicKey(pub ssh.PublicKey) (keys.PublicKey, error) {
	k, err := keys.DecodePublicKey(pub.Marshal())
	if err != nil {
		return nil, fmt.Errorf("convert public key: %w", err)
	}
	return k, nil
}
