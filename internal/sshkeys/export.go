package sshkeys

import (
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"

	"github.com/gluk-w/sshagent/internal/keys"
	"github.com/gluk-w/sshagent/internal/secmem"
)

// MarshalPrivateKeyPEM encodes k as an OpenSSH PEM private key. DSA keys
// cannot be exported.
func MarshalPrivateKeyPEM(k keys.PrivateKey, comment string) ([]byte, error) {
	if k.KeyType() == keys.KeyTypeDSA {
		return nil, fmt.Errorf("marshal private key: %s export is not supported", keys.KeyTypeDSA)
	}
	raw, err := ToCryptoPrivateKey(k)
	if err != nil {
		return nil, err
	}
	defer WipeCryptoPrivateKey(raw)

	block, err := ssh.MarshalPrivateKey(raw, comment)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	defer secmem.Wipe(block.Bytes)
	return pem.EncodeToMemory(block), nil
}
