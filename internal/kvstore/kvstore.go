// Package kvstore persists encrypted key bundles: an append-mostly
// key-value store keyed by account id, each secret independently encrypted
// with AES-256-GCM under a PBKDF2-HMAC-SHA256(100000 iterations)-derived
// key.
package kvstore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100_000
	keyLen           = 32
	saltLen          = 16
	ivLen            = 12 // 96-bit GCM nonce
)

var (
	ErrNotFound      = errors.New("key bundle not found")
	ErrDecryptFailed = errors.New("key bundle decryption failed")
)

// KeyBundle is the persisted record for one account: every secret
// independently encrypted, addresses plaintext.
type KeyBundle struct {
	AccountID         string
	SpendingKeyEnc    EncryptedSecret
	ViewingKeyEnc     EncryptedSecret
	TransparentKeyEnc EncryptedSecret
	TAddr             string
	ZAddr             string
}

// EncryptedSecret is one AES-256-GCM ciphertext with its own salt and IV.
// GCM's Seal appends the auth tag to the ciphertext, so Ciphertext already
// carries it.
type EncryptedSecret struct {
	Ciphertext []byte
	Salt       [saltLen]byte
	IV         [ivLen]byte
}

// Store is the abstract key-bundle persistence contract.
type Store interface {
	Put(ctx context.Context, bundle *KeyBundle) error
	Get(ctx context.Context, accountID string) (*KeyBundle, error)
	Delete(ctx context.Context, accountID string) error
}

// EncryptSecret seals plaintext under PBKDF2-HMAC-SHA256(password, salt,
// 100000, 32) with a fresh random salt and IV.
func EncryptSecret(password []byte, plaintext []byte) (EncryptedSecret, error) {
	var out EncryptedSecret
	if _, err := rand.Read(out.Salt[:]); err != nil {
		return out, err
	}
	if _, err := rand.Read(out.IV[:]); err != nil {
		return out, err
	}

	key := pbkdf2.Key(password, out.Salt[:], pbkdf2Iterations, keyLen, sha256.New)
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return out, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return out, err
	}
	out.Ciphertext = gcm.Seal(nil, out.IV[:], plaintext, nil)
	return out, nil
}

// DecryptSecret reverses EncryptSecret.
func DecryptSecret(password []byte, enc EncryptedSecret) ([]byte, error) {
	key := pbkdf2.Key(password, enc.Salt[:], pbkdf2Iterations, keyLen, sha256.New)
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, enc.IV[:], enc.Ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// IVBase64 and SaltBase64 render a secret's nonce/salt for a bundle
// exported as JSON.
func (e EncryptedSecret) IVBase64() string   { return base64.StdEncoding.EncodeToString(e.IV[:]) }
func (e EncryptedSecret) SaltBase64() string { return base64.StdEncoding.EncodeToString(e.Salt[:]) }

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
