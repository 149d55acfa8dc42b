package sshkeys

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/ssh"

	"github.com/gluk-w/sshagent/internal/keys"
)

// FingerprintMismatchError is returned when a key fingerprint does not match
// the expected value.
type FingerprintMismatchError struct {
	Expected string
	Actual   string
}

func (e *FingerprintMismatchError) Error() string {
	return fmt.Sprintf("ssh key fingerprint mismatch: expected %s, got %s", e.Expected, e.Actual)
}

var errBlobOnly = errors.New("sshkeys: key is not usable for verification")

// blobKey presents an encoded public key to x/crypto/ssh helpers that only
// need Type and Marshal, so curves it does not implement still work.
type blobKey struct {
	tag  string
	blob []byte
}

func (b blobKey) Type() string    { return b.tag }
func (b blobKey) Marshal() []byte { return b.blob }

func (b blobKey) Verify([]byte, *ssh.Signature) error { return errBlobOnly }

func asSSH(pub keys.PublicKey) ssh.PublicKey {
	return blobKey{tag: pub.KeyType(), blob: keys.EncodePublicKey(pub)}
}

// Fingerprint returns the SHA256 fingerprint of pub in OpenSSH format
// (SHA256:xxx).
func Fingerprint(pub keys.PublicKey) string {
	return ssh.FingerprintSHA256(asSSH(pub))
}

// MarshalAuthorizedKey returns pub as an authorized_keys line. comment is
// appended when non-empty.
func MarshalAuthorizedKey(pub keys.PublicKey, comment string) []byte {
	line := ssh.MarshalAuthorizedKey(asSSH(pub))
	if comment == "" {
		return line
	}
	line = line[:len(line)-1]
	return append(append(append(line, ' '), comment...), '\n')
}

// ParseAuthorizedKey parses a single authorized_keys line and returns its key
// and comment.
func ParseAuthorizedKey(line []byte) (keys.PublicKey, string, error) {
	if len(line) == 0 {
		return nil, "", fmt.Errorf("parse authorized key: line is empty")
	}
	parsed, comment, _, _, err := ssh.ParseAuthorizedKey(line)
	if err != nil {
		return nil, "", fmt.Errorf("parse authorized key: %w", err)
	}
	pub, err := FromSSHPublicKey(parsed)
	if err != nil {
		return nil, "", fmt.Errorf("parse authorized key: %w", err)
	}
	return pub, comment, nil
}

// VerifyFingerprint checks that pub matches the expected fingerprint. An empty
// expectation always passes. Returns a *FingerprintMismatchError if the
// fingerprints differ.
func VerifyFingerprint(pub keys.PublicKey, expected string) error {
	if expected == "" {
		return nil
	}
	if actual := Fingerprint(pub); actual != expected {
		return &FingerprintMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}
