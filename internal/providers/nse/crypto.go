package nse

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Upstream envelope constants. The gateway derives the same key on its side
// from the same inputs, so every value here must stay bit-exact: same
// passphrase, salt, iteration count, key length and IV.
const (
	envelopePassphrase = "marketpulse-feed-v1"
	envelopeSalt       = "nse-gw-static-salt"
	envelopeIterations = 1000
	envelopeKeyLen     = 32
	envelopeIV         = "a1b2c3d4e5f60718"
)

func envelopeKey() []byte {
	return pbkdf2.Key([]byte(envelopePassphrase), []byte(envelopeSalt), envelopeIterations, envelopeKeyLen, sha256.New)
}

// sealPayload encrypts plaintext with AES-256-CBC and returns it base64
// encoded, padded PKCS#7 the way the gateway expects.
func sealPayload(plain []byte) (string, error) {
	block, err := aes.NewCipher(envelopeKey())
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, []byte(envelopeIV)).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// openPayload reverses sealPayload.
func openPayload(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("envelope: decode: %w", err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return nil, errors.New("envelope: ciphertext not block aligned")
	}

	block, err := aes.NewCipher(envelopeKey())
	if err != nil {
		return nil, err
	}

	plain := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, []byte(envelopeIV)).CryptBlocks(plain, raw)
	return pkcs7Unpad(plain, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padding)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("envelope: bad padded length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, errors.New("envelope: bad padding byte")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, errors.New("envelope: inconsistent padding")
		}
	}
	return data[:len(data)-padding], nil
}
