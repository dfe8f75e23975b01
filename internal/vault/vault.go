package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrDecrypt covers every way a stored blob can fail to open: truncation,
// tampering (bad auth tag) and master-key rotation. Callers surface it as
// "reconnect this account" rather than crashing a fan-out.
var ErrDecrypt = errors.New("vault: unable to decrypt credential blob")

const blobVersion = byte(1)

// Vault encrypts and decrypts per-account secrets with AES-GCM. The stored
// blob layout is version || nonce || ciphertext+tag, base64 encoded. The
// vault knows nothing about which platform owns a secret.
type Vault struct {
	key []byte
}

func New(masterSecret string) (*Vault, error) {
	if masterSecret == "" {
		return nil, errors.New("vault: master secret is empty")
	}
	key := sha256.Sum256([]byte(masterSecret))
	return &Vault{key: key[:]}, nil
}

func (v *Vault) Encrypt(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := aesGCM.Seal(nil, nonce, plaintext, nil)

	blob := make([]byte, 0, 1+len(nonce)+len(ciphertext))
	blob = append(blob, blobVersion)
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

func (v *Vault) Decrypt(encoded string) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	if len(blob) < 1 || blob[0] != blobVersion {
		return nil, fmt.Errorf("%w: unknown blob version", ErrDecrypt)
	}
	blob = blob[1:]

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := aesGCM.NonceSize()
	if len(blob) < nonceSize {
		return nil, fmt.Errorf("%w: blob too short", ErrDecrypt)
	}
	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	return plaintext, nil
}
