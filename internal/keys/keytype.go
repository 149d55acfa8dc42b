package keys

// Key type tags as they appear on the wire.
const (
	KeyTypeRSA     = "ssh-rsa"
	KeyTypeDSA     = "ssh-dss"
	KeyTypeEd25519 = "ssh-ed25519"

	ecdsaTagPrefix = "ecdsa-sha2-"
)

// Curve identifiers used by OpenSSH for ECDSA keys.
const (
	CurveP256 = "nistp256"
	CurveP384 = "nistp384"
	CurveP521 = "nistp521"
)

// Tagged is implemented by every private and public key type.
type Tagged interface {
	KeyType() string
}

// TagOf returns the wire tag of k.
func TagOf(k Tagged) string {
	return k.KeyType()
}

// ECDSAKeyType returns the tag for an ECDSA key on the named curve, e.g.
// "ecdsa-sha2-nistp256" for "nistp256".
func ECDSAKeyType(identifier string) string {
	return ecdsaTagPrefix + identifier
}
