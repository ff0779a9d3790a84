package encrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Mode nonce strategy of the codec
type Mode string

const (
	// ModeRandom fresh nonce per message, stored in front of the ciphertext
	ModeRandom Mode = "random"
	// ModeFixed synthetic nonce HMAC(ivKey, plaintext). Identical plaintexts give
	// identical ciphertexts, distinct plaintexts never share a nonce.
	ModeFixed Mode = "fixed"
)

const (
	keySalt  = "messaging-at-rest"
	keyInfo  = "message-content"
	ivInfo   = "message-content-synthetic-iv"
	keyBytes = 32
)

// 定義錯誤信息
var (
	ErrCrypto      = errors.New("crypto: cannot decrypt content")
	ErrEmptySecret = errors.New("crypto: server secret is empty")
)

// Codec encrypt message bodies for storage
type Codec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// AESCodec AES-256-GCM codec keyed from a server secret
type AESCodec struct {
	aead  cipher.AEAD
	mode  Mode
	ivKey []byte
	rand  io.Reader
}

// NewAESCodec derive the key from secret with HKDF-SHA256 and build the codec
func NewAESCodec(secret string, mode Mode) (*AESCodec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if mode == "" {
		mode = ModeRandom
	}
	if mode != ModeRandom && mode != ModeFixed {
		return nil, fmt.Errorf("crypto: unsupported mode %q", mode)
	}

	key, err := derive(secret, keyInfo, keyBytes)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	c := &AESCodec{aead: aead, mode: mode, rand: rand.Reader}
	if mode == ModeFixed {
		if c.ivKey, err = derive(secret, ivInfo, keyBytes); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func derive(secret, info string, size int) ([]byte, error) {
	out := make([]byte, size)
	r := hkdf.New(sha256.New, []byte(secret), []byte(keySalt), []byte(info))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("crypto: derive key: %w", err)
	}
	return out, nil
}

// Mode nonce strategy in use
func (c *AESCodec) Mode() Mode { return c.mode }

// Encrypt returns base64(nonce|ciphertext)
func (c *AESCodec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if c.mode == ModeFixed {
		copy(nonce, c.syntheticNonce(plaintext))
	} else if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", fmt.Errorf("crypto: read nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// syntheticNonce GCM breaks on a reused nonce, so deterministic mode keys the nonce on the plaintext
func (c *AESCodec) syntheticNonce(plaintext string) []byte {
	mac := hmac.New(sha256.New, c.ivKey)
	mac.Write([]byte(plaintext))
	return mac.Sum(nil)
}

// Decrypt expects base64(nonce|ciphertext); any failure wraps ErrCrypto
func (c *AESCodec) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrCrypto, err)
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns+c.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrCrypto)
	}

	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	return string(plain), nil
}
