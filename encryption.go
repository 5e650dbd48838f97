package haven

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// EncryptionNonceSize is the nonce size for AES-GCM
	EncryptionNonceSize = 12
	// EncryptionSaltSize is the salt size for key derivation
	EncryptionSaltSize = 32
	// EncryptionKeySize is the AES-256 key size
	EncryptionKeySize = 32
	// PBKDF2Iterations is the number of iterations for key derivation
	PBKDF2Iterations = 100000
)

// Encryptor provides AES-256-GCM encryption for snapshot blobs. Learned
// baselines describe when a home is typically empty, so installations that
// replicate snapshots off the box can seal them at rest.
//
// A password-derived encryptor writes a fresh salt into every blob, so any
// process holding the password can decrypt a snapshot it did not write.
type Encryptor struct {
	password string
	gcm      cipher.AEAD // set only for raw-key encryptors
}

// NewEncryptor creates an encryptor that derives keys from a password
// via PBKDF2.
func NewEncryptor(password string) (*Encryptor, error) {
	if password == "" {
		return nil, errors.New("encryption password must not be empty")
	}
	return &Encryptor{password: password}, nil
}

// NewEncryptorWithKey creates an encryptor with a raw 32-byte AES-256 key.
func NewEncryptorWithKey(key []byte) (*Encryptor, error) {
	if len(key) != EncryptionKeySize {
		return nil, errors.New("encryption key must be 32 bytes for AES-256")
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return &Encryptor{gcm: gcm}, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (e *Encryptor) deriveGCM(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(e.password), salt, PBKDF2Iterations, EncryptionKeySize, sha256.New)
	return newGCM(key)
}

// Encrypt seals plaintext. Password mode output is salt || nonce || sealed,
// raw-key mode output is nonce || sealed.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, EncryptionNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	if e.gcm != nil {
		return e.gcm.Seal(nonce, nonce, plaintext, nil), nil
	}

	salt := make([]byte, EncryptionSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	gcm, err := e.deriveGCM(salt)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, EncryptionSaltSize+EncryptionNonceSize+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt.
func (e *Encryptor) Decrypt(data []byte) ([]byte, error) {
	gcm := e.gcm
	if gcm == nil {
		if len(data) < EncryptionSaltSize {
			return nil, errors.New("encrypted snapshot too short")
		}
		var err error
		gcm, err = e.deriveGCM(data[:EncryptionSaltSize])
		if err != nil {
			return nil, err
		}
		data = data[EncryptionSaltSize:]
	}

	if len(data) < EncryptionNonceSize {
		return nil, errors.New("encrypted snapshot too short")
	}
	nonce, sealed := data[:EncryptionNonceSize], data[EncryptionNonceSize:]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt snapshot: %w", err)
	}
	return plaintext, nil
}
