// Package keys encodes and decodes SSH agent key material for the four key
// families: RSA, DSA, ECDSA and Ed25519.
//
// Private keys use the field layout of the agent "add identity" message and
// public keys use the OpenSSH public key blob layout. Both start with the key
// type tag ("ssh-rsa", "ssh-dss", "ssh-ed25519", "ecdsa-sha2-<curve>"), which
// selects the field list on decode.
//
// # Key Lifecycle
//
// A private key owns the storage behind its byte fields. Destroy overwrites
// all of it with zeros; callers use it as a scoped release:
//
//	priv, err := keys.DecodePrivateKey(buf)
//	if err != nil { ... }
//	defer priv.Destroy()
//
// The buffers live in an unexported field set that only the constructors
// fill. Each constructor registers a cleanup on the key that wipes the field
// set once the key is unreachable, so a forgotten Destroy still never leaves
// key bytes behind in reused memory. A key written as a composite literal is
// empty and has nothing to wipe.
//
// Project converts a private key into its public key and destroys the
// private key. PublicOf does the same on a throwaway clone and leaves its
// argument intact. Neither validates the key mathematically.
//
// Decode errors are *protoerr.Error values: ErrUnknownKeyType for a tag
// outside the four families, ErrTruncated when a field runs past the input,
// ErrMalformedField for an ECDSA identifier that disagrees with its tag and
// for trailing data.
package keys
