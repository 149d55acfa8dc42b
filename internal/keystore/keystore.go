// Package keystore persists agent identities in SQLite. Private keys are
// encrypted at rest with fernet under a key kept in the settings table.
package keystore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fernet/fernet-go"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gluk-w/sshagent/internal/keys"
	"github.com/gluk-w/sshagent/internal/logging"
	"github.com/gluk-w/sshagent/internal/secmem"
	"github.com/gluk-w/sshagent/internal/sshkeys"
)

const fernetKeySetting = "fernet_key"

var (
	ErrNotFound  = errors.New("identity not found")
	ErrDuplicate = errors.New("identity already stored")
	ErrCorrupt   = errors.New("stored private key cannot be decrypted")
)

// Store is safe for concurrent use.
type Store struct {
	db  *gorm.DB
	key *fernet.Key
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{db: db}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		s.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := db.AutoMigrate(&Identity{}, &Setting{}); err != nil {
		s.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	if s.key, err = s.loadKey(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (s *Store) getSetting(key string) (string, error) {
	var st Setting
	if err := s.db.Where("key = ?", key).First(&st).Error; err != nil {
		return "", err
	}
	return st.Value, nil
}

func (s *Store) setSetting(key, value string) error {
	return s.db.Where("key = ?", key).Assign(Setting{Value: value}).FirstOrCreate(&Setting{Key: key}).Error
}

func (s *Store) loadKey() (*fernet.Key, error) {
	encoded, err := s.getSetting(fernetKeySetting)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var k fernet.Key
		if err := k.Generate(); err != nil {
			return nil, fmt.Errorf("generate fernet key: %w", err)
		}
		if err := s.setSetting(fernetKeySetting, k.Encode()); err != nil {
			return nil, fmt.Errorf("save fernet key: %w", err)
		}
		log.WithField("component", "keystore").Info("generated store encryption key")
		return &k, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fernet key: %w", err)
	}
	k, err := fernet.DecodeKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode fernet key: %w", err)
	}
	return k, nil
}

// Add encrypts and stores k. k is not consumed; the caller still owns it.
func (s *Store) Add(k keys.PrivateKey, comment string) (*Identity, error) {
	pub := keys.PublicOf(k)
	fp := sshkeys.Fingerprint(pub)

	var count int64
	if err := s.db.Model(&Identity{}).Where("fingerprint = ?", fp).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("add identity: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("add identity %s: %w", fp, ErrDuplicate)
	}

	plain := keys.EncodePrivateKey(k)
	defer secmem.Wipe(plain)
	tok, err := fernet.EncryptAndSign(plain, s.key)
	if err != nil {
		return nil, fmt.Errorf("encrypt private key: %w", err)
	}

	ident := &Identity{
		ID:           uuid.NewString(),
		KeyType:      k.KeyType(),
		Fingerprint:  fp,
		Comment:      comment,
		PublicBlob:   keys.EncodePublicKey(pub),
		PrivateToken: string(tok),
	}
	if err := s.db.Create(ident).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("add identity %s: %w", fp, ErrDuplicate)
		}
		return nil, fmt.Errorf("add identity: %w", err)
	}

	log.WithFields(log.Fields{
		"component":   "keystore",
		"id":          ident.ID,
		"type":        ident.KeyType,
		"fingerprint": fp,
		"comment":     logging.Sanitize(comment),
	}).Info("identity added")
	return ident, nil
}

// List returns all identities, oldest first.
func (s *Store) List() ([]Identity, error) {
	var out []Identity
	if err := s.db.Order("created_at, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	return out, nil
}

func (s *Store) Get(id string) (*Identity, error) {
	return s.first("id = ?", id)
}

func (s *Store) FindByFingerprint(fp string) (*Identity, error) {
	return s.first("fingerprint = ?", fp)
}

func (s *Store) first(query, arg string) (*Identity, error) {
	var ident Identity
	err := s.db.Where(query, arg).First(&ident).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", logging.Sanitize(arg), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return &ident, nil
}

// PublicKey returns the public half of identity id, checked against the
// stored fingerprint.
func (s *Store) PublicKey(id string) (keys.PublicKey, error) {
	_, pub, err := s.PublicIdentity(id)
	return pub, err
}

// PublicIdentity returns identity id together with its public key. Both come
// from the same row read.
func (s *Store) PublicIdentity(id string) (*Identity, keys.PublicKey, error) {
	ident, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	pub, err := keys.DecodePublicKey(ident.PublicBlob)
	if err != nil {
		return nil, nil, fmt.Errorf("decode public key %s: %w", id, err)
	}
	if err := sshkeys.VerifyFingerprint(pub, ident.Fingerprint); err != nil {
		return nil, nil, fmt.Errorf("public key %s: %w", id, err)
	}
	return ident, pub, nil
}

// PrivateKey decrypts identity id. The caller owns the returned key and
// should Destroy it when done.
func (s *Store) PrivateKey(id string) (keys.PrivateKey, error) {
	_, k, err := s.PrivateIdentity(id)
	return k, err
}

// PrivateIdentity is PrivateKey that also returns the identity row the key
// was decrypted from.
func (s *Store) PrivateIdentity(id string) (*Identity, keys.PrivateKey, error) {
	ident, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}

	plain := fernet.VerifyAndDecrypt([]byte(ident.PrivateToken), 0, []*fernet.Key{s.key})
	if plain == nil {
		return nil, nil, fmt.Errorf("private key %s: %w", id, ErrCorrupt)
	}
	defer secmem.Wipe(plain)

	k, err := keys.DecodePrivateKey(plain)
	if err != nil {
		return nil, nil, fmt.Errorf("decode private key %s: %w", id, err)
	}
	if err := sshkeys.VerifyFingerprint(keys.PublicOf(k), ident.Fingerprint); err != nil {
		k.Destroy()
		return nil, nil, fmt.Errorf("private key %s: %w", id, err)
	}

	log.WithFields(log.Fields{"component": "keystore", "id": id}).Debug("private key loaded")
	return ident, k, nil
}

// Remove deletes identity id.
func (s *Store) Remove(id string) error {
	res := s.db.Where("id = ?", id).Delete(&Identity{})
	if res.Error != nil {
		return fmt.Errorf("remove identity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", logging.Sanitize(id), ErrNotFound)
	}
	log.WithFields(log.Fields{"component": "keystore", "id": id}).Info("identity removed")
	return nil
}

// RemoveAll deletes every identity and returns how many were removed.
func (s *Store) RemoveAll() (int64, error) {
	res := s.db.Where("1 = 1").Delete(&Identity{})
	if res.Error != nil {
		return 0, fmt.Errorf("remove identities: %w", res.Error)
	}
	log.WithFields(log.Fields{"component": "keystore", "count": res.RowsAffected}).Info("all identities removed")
	return res.RowsAffected, nil
}
