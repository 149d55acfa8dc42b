package keystore

import "time"

// Identity is a stored private key. The private key is kept as a fernet
// token over its agent wire encoding; the public key is stored in the clear
// so listing never touches secret material.
type Identity struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id" yaml:"id"`
	KeyType      string    `gorm:"not null" json:"key_type" yaml:"key_type"`
	Fingerprint  string    `gorm:"uniqueIndex;not null" json:"fingerprint" yaml:"fingerprint"`
	Comment      string    `gorm:"not null;default:''" json:"comment" yaml:"comment"`
	PublicBlob   []byte    `gorm:"not null" json:"-" yaml:"-"`
	PrivateToken string    `gorm:"not null" json:"-" yaml:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at" yaml:"created_at"`
}

type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
