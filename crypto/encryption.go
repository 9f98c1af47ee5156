package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// FieldPrefix marks an encrypted value inside the settings file.
const FieldPrefix = "enc:"

// KeyFromString turns SETTINGS_ENCRYPTION_KEY into a 32 byte key.
// An empty string yields a nil key, which disables field encryption.
func KeyFromString(keyString string) []byte {
	keyString = strings.TrimSpace(keyString)
	if keyString == "" {
		return nil
	}

	key, err := base64.StdEncoding.DecodeString(keyString)
	if err != nil {
		// Not base64: hash the passphrase into a key
		hash := sha256.Sum256([]byte(keyString))
		return hash[:]
	}

	if len(key) != 32 {
		hash := sha256.Sum256(key)
		return hash[:]
	}

	return key
}

// Encrypt encrypts plaintext using AES-256-GCM
func Encrypt(plaintext string, key []byte) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts ciphertext using AES-256-GCM
func Decrypt(ciphertext string, key []byte) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, encryptedData := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, encryptedData, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// SealField encrypts value for storage. Without a key the value is returned
// unchanged.
func SealField(value string, key []byte) (string, error) {
	if key == nil || value == "" {
		return value, nil
	}
	sealed, err := Encrypt(value, key)
	if err != nil {
		return "", err
	}
	return FieldPrefix + sealed, nil
}

// OpenField reverses SealField. Values without the prefix are plain text
// written before encryption was enabled.
func OpenField(value string, key []byte) (string, error) {
	if !strings.HasPrefix(value, FieldPrefix) {
		return value, nil
	}
	if key == nil {
		return "", errors.New("encrypted value found but no encryption key configured")
	}
	return Decrypt(strings.TrimPrefix(value, FieldPrefix), key)
}

// GenerateEncryptionKey generates a new random 256-bit encryption key
func GenerateEncryptionKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
