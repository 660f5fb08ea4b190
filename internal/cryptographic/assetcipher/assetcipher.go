package assetcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"otr_messaging/internal/model"
)

// AES-256-CBC for file attachments. Every asset gets a fresh key and IV,
// output layout is IV || ciphertext, and the SHA-256 digest covers the whole
// output (IV included). Integrity is checked before any decryption happens.

const (
	ivSize  = 16
	keySize = 32
)

var (
	// ErrIntegrity means the received cipher text does not hash to the
	// digest that was delivered with it. Nothing was decrypted.
	ErrIntegrity = errors.New("encrypted asset does not match its SHA-256 digest")

	// ErrDecryption means the cipher rejected the key, IV or padding.
	ErrDecryption = errors.New("asset decryption failed")
)

// Encrypt encrypts plaintext under a fresh random key and IV.
func Encrypt(plaintext []byte) (*model.EncryptedAsset, error) {
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("rand.Read iv: %w", err)
	}
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("rand.Read key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}

	padded := pad(plaintext)
	cipherText := make([]byte, ivSize+len(padded))
	copy(cipherText, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(cipherText[ivSize:], padded)

	digest := sha256.Sum256(cipherText)
	return &model.EncryptedAsset{
		CipherText: cipherText,
		Key:        key,
		SHA256:     digest[:],
	}, nil
}

// Decrypt verifies the digest over the full cipher text and then decrypts.
func Decrypt(asset *model.EncryptedAsset) ([]byte, error) {
	digest := sha256.Sum256(asset.CipherText)
	// ConstantTimeCompare reports 0 on length mismatch, so a truncated
	// digest never passes as "some bytes equal".
	if subtle.ConstantTimeCompare(digest[:], asset.SHA256) != 1 {
		return nil, ErrIntegrity
	}

	if len(asset.CipherText) < ivSize {
		return nil, fmt.Errorf("cipher text shorter than IV: %w", ErrDecryption)
	}
	iv := asset.CipherText[:ivSize]
	ct := asset.CipherText[ivSize:]
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("cipher text not block aligned: %w", ErrDecryption)
	}

	block, err := aes.NewCipher(asset.Key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w: %v", ErrDecryption, err)
	}

	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)
	return unpad(plain)
}

// pad applies PKCS#7 padding to a whole number of AES blocks.
func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	padded := make([]byte, len(b)+n)
	copy(padded, b)
	for i := len(b); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty plaintext: %w", ErrDecryption)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, fmt.Errorf("bad padding: %w", ErrDecryption)
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("bad padding: %w", ErrDecryption)
		}
	}
	return b[:len(b)-n], nil
}
