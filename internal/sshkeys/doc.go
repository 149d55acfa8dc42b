// Package sshkeys connects agent key material from package keys to the Go
// crypto ecosystem: crypto/rsa, crypto/dsa, crypto/ecdsa, crypto/ed25519 and
// golang.org/x/crypto/ssh.
//
// # Conversions
//
//   - [FromCryptoPrivateKey] and [ToCryptoPrivateKey] convert between
//     crypto.PrivateKey values and [keys.PrivateKey].
//   - [ParsePrivateKeyPEM] reads an OpenSSH, PKCS#1, PKCS#8 or SEC1 PEM file.
//     The intermediate crypto key is wiped once converted.
//   - [ToSSHPublicKey] and [FromSSHPublicKey] convert public keys through
//     their wire blob, which is identical in both representations.
//
// # Verification
//
// [Fingerprint] computes the OpenSSH SHA256 fingerprint of any public key,
// including ECDSA curves x/crypto/ssh does not know. [VerifyFingerprint]
// compares against a stored fingerprint and returns a
// [*FingerprintMismatchError] on mismatch.
//
// # Security Model
//
//   - Keys returned by this package are owned by the caller and must be
//     released with Destroy (or left to the garbage collector, which wipes
//     them too).
//   - crypto keys passed in by the caller are left untouched; only keys this
//     package parses itself are wiped after conversion.
//   - DSA is supported for decoding existing keys only.
package sshkeys
