package keystore

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gluk-w/sshagent/internal/keys"
	"github.com/gluk-w/sshagent/internal/sshkeys"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "keys.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func ed25519Key(seed byte) keys.PrivateKey {
	raw := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
	pub := raw.Public().(ed25519.PublicKey)
	return keys.NewEd25519PrivateKey(append([]byte{}, pub...), raw)
}

func dsaKey() keys.PrivateKey {
	return keys.NewDSAPrivateKey([]byte{0x01}, []byte{0x02}, []byte{0x03}, []byte{0x04}, []byte{0x05})
}

func TestOpen_CreatesDatabase(t *testing.T) {
	s, path := openTestStore(t)
	_, err := os.Stat(path)
	require.NoError(t, err)

	encoded, err := s.getSetting(fernetKeySetting)
	require.NoError(t, err)
	assert.NotEmpty(t, encoded)

	list, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAdd_AndRead(t *testing.T) {
	s, _ := openTestStore(t)
	k := ed25519Key(1)

	ident, err := s.Add(k, "alice@laptop")
	require.NoError(t, err)
	assert.Len(t, ident.ID, 36)
	assert.Equal(t, keys.KeyTypeEd25519, ident.KeyType)
	assert.Equal(t, sshkeys.Fingerprint(keys.PublicOf(k)), ident.Fingerprint)
	assert.Equal(t, "alice@laptop", ident.Comment)
	assert.False(t, ident.CreatedAt.IsZero())

	got, err := s.Get(ident.ID)
	require.NoError(t, err)
	assert.Equal(t, ident.Fingerprint, got.Fingerprint)

	byFP, err := s.FindByFingerprint(ident.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, ident.ID, byFP.ID)

	pub, err := s.PublicKey(ident.ID)
	require.NoError(t, err)
	assert.True(t, keys.EqualPublic(keys.PublicOf(k), pub))

	priv, err := s.PrivateKey(ident.ID)
	require.NoError(t, err)
	defer priv.Destroy()
	assert.True(t, keys.EqualPrivate(k, priv))

	// the caller keeps ownership of the added key
	assert.NotEmpty(t, k.(*keys.Ed25519PrivateKey).KEncA())
}

func TestIdentityLookups_SingleRead(t *testing.T) {
	s, _ := openTestStore(t)
	k := ed25519Key(4)
	ident, err := s.Add(k, "bob@desk")
	require.NoError(t, err)

	got, pub, err := s.PublicIdentity(ident.ID)
	require.NoError(t, err)
	assert.Equal(t, ident.ID, got.ID)
	assert.Equal(t, "bob@desk", got.Comment)
	assert.Equal(t, ident.Fingerprint, sshkeys.Fingerprint(pub))

	got, priv, err := s.PrivateIdentity(ident.ID)
	require.NoError(t, err)
	defer priv.Destroy()
	assert.Equal(t, ident.ID, got.ID)
	assert.True(t, keys.EqualPrivate(k, priv))

	require.NoError(t, s.Remove(ident.ID))
	_, _, err = s.PublicIdentity(ident.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = s.PrivateIdentity(ident.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdd_TokenHidesPrivateKey(t *testing.T) {
	s, _ := openTestStore(t)
	k := ed25519Key(2)
	ident, err := s.Add(k, "")
	require.NoError(t, err)

	secret := string(k.(*keys.Ed25519PrivateKey).KEncA()[:ed25519.SeedSize])
	assert.NotContains(t, ident.PrivateToken, secret)
	assert.NotContains(t, string(ident.PublicBlob), secret)
}

func TestAdd_Duplicate(t *testing.T) {
	s, _ := openTestStore(t)
	_, err := s.Add(ed25519Key(3), "first")
	require.NoError(t, err)

	_, err = s.Add(ed25519Key(3), "second")
	assert.ErrorIs(t, err, ErrDuplicate)

	list, err := s.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAdd_AnyKeyType(t *testing.T) {
	s, _ := openTestStore(t)
	odd := keys.NewECDSAPrivateKey("brainpoolP256r1", []byte{0x04, 0xaa, 0xbb}, []byte{0x01})

	for _, k := range []keys.PrivateKey{dsaKey(), odd} {
		ident, err := s.Add(k, "")
		require.NoError(t, err, k.KeyType())
		assert.Equal(t, k.KeyType(), ident.KeyType)

		back, err := s.PrivateKey(ident.ID)
		require.NoError(t, err)
		assert.True(t, keys.EqualPrivate(k, back))
	}
}

func TestList_Order(t *testing.T) {
	s, _ := openTestStore(t)
	var ids []string
	for i := byte(10); i < 13; i++ {
		ident, err := s.Add(ed25519Key(i), "")
		require.NoError(t, err)
		ids = append(ids, ident.ID)
	}

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	for _, ident := range list {
		assert.Contains(t, ids, ident.ID)
		assert.NotEmpty(t, ident.PrivateToken)
	}
}

func TestNotFound(t *testing.T) {
	s, _ := openTestStore(t)

	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindByFingerprint("SHA256:nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.PublicKey("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.PrivateKey("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Remove("missing"), ErrNotFound)
}

func TestRemove(t *testing.T) {
	s, _ := openTestStore(t)
	a, err := s.Add(ed25519Key(20), "")
	require.NoError(t, err)
	b, err := s.Add(ed25519Key(21), "")
	require.NoError(t, err)

	require.NoError(t, s.Remove(a.ID))
	_, err = s.Get(a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(b.ID)
	assert.NoError(t, err)

	n, err := s.RemoveAll()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.RemoveAll()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReopen_KeepsEncryptionKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.db")
	s, err := Open(path)
	require.NoError(t, err)
	k := ed25519Key(30)
	ident, err := s.Add(k, "persisted")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	priv, err := s.PrivateKey(ident.ID)
	require.NoError(t, err)
	assert.True(t, keys.EqualPrivate(k, priv))
}

func TestPrivateKey_CorruptToken(t *testing.T) {
	s, _ := openTestStore(t)
	ident, err := s.Add(ed25519Key(40), "")
	require.NoError(t, err)

	require.NoError(t, s.db.Model(&Identity{}).Where("id = ?", ident.ID).
		Update("private_token", "gAAAAAnot-a-token").Error)

	_, err = s.PrivateKey(ident.ID)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestTamperedFingerprint(t *testing.T) {
	s, _ := openTestStore(t)
	ident, err := s.Add(ed25519Key(50), "")
	require.NoError(t, err)

	require.NoError(t, s.db.Model(&Identity{}).Where("id = ?", ident.ID).
		Update("fingerprint", "SHA256:forged").Error)

	var mismatch *sshkeys.FingerprintMismatchError
	_, err = s.PublicKey(ident.ID)
	assert.True(t, errors.As(err, &mismatch))
	_, err = s.PrivateKey(ident.ID)
	assert.True(t, errors.As(err, &mismatch))
}
