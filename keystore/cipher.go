package keystore

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strconv"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrCorrupt = errors.New("keystore: sealed value is corrupt")

// The user id is bound as additional data so a value cannot be moved between users.
func seal(key []byte, userID uint, plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	out := aead.Seal(nonce, nonce, []byte(plaintext), additionalData(userID))
	return base64.StdEncoding.EncodeToString(out), nil
}

func unseal(key []byte, userID uint, sealed string) (string, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}

	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(data) < aead.NonceSize() {
		return "", ErrCorrupt
	}

	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, additionalData(userID))
	if err != nil {
		return "", ErrCorrupt
	}
	return string(plain), nil
}

func additionalData(userID uint) []byte {
	return []byte(strconv.FormatUint(uint64(userID), 10))
}
