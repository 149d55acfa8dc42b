package keys

// Project returns the public key of k and destroys k: the public fields are
// copied into the result, then every field of k, public and secret alike, is
// zeroed. k must not be used afterwards.
func Project(k PrivateKey) PublicKey {
	return k.project()
}

// PublicOf returns the public key of k without modifying it. The temporary
// copy made along the way is destroyed before PublicOf returns.
func PublicOf(k PrivateKey) PublicKey {
	return k.clonePrivate().project()
}

// Clone returns a deep copy of k that owns its own storage.
func Clone(k PrivateKey) PrivateKey {
	return k.clonePrivate()
}
