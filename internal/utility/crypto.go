package utility

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Client-side sealing for the CLI. The server never sees the key; it stores
// whatever sealed text it is handed.

const (
	sealPrefix = "v1:"
	saltLen    = 16
	nonceLen   = 12
	keyLen     = 32
)

var ErrOpenFailed = errors.New("unable to open sealed content")

// KDFParams are the argon2id cost parameters.
type KDFParams struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 1, Memory: 64 * 1024, Threads: 4}
}

var (
	kdfParams   = DefaultKDFParams()
	kdfParamsMu sync.RWMutex
)

func currentKDFParams() KDFParams {
	kdfParamsMu.RLock()
	defer kdfParamsMu.RUnlock()
	return kdfParams
}

func setKDFParams(p KDFParams) {
	kdfParamsMu.Lock()
	defer kdfParamsMu.Unlock()
	kdfParams = p
}

func newAEAD(key string, salt []byte) (cipher.AEAD, error) {
	p := currentKDFParams()
	derived := argon2.IDKey([]byte(key), salt, p.Time, p.Memory, p.Threads, keyLen)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext under key and returns
// "v1:" + base64(salt|nonce|ciphertext).
func Seal(plaintext []byte, key string) (string, error) {
	buf := make([]byte, saltLen+nonceLen, saltLen+nonceLen+len(plaintext)+16)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("random: %w", err)
	}
	aead, err := newAEAD(key, buf[:saltLen])
	if err != nil {
		return "", err
	}
	buf = aead.Seal(buf, buf[saltLen:], plaintext, nil)
	return sealPrefix + base64.StdEncoding.EncodeToString(buf), nil
}

// Open reverses Seal. Any key mismatch or tampering yields ErrOpenFailed.
func Open(sealed, key string) ([]byte, error) {
	b64, ok := strings.CutPrefix(sealed, sealPrefix)
	if !ok {
		return nil, errors.New("unsupported sealed format")
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("b64: %w", err)
	}
	if len(raw) < saltLen+nonceLen+1 {
		return nil, errors.New("sealed content too short")
	}
	aead, err := newAEAD(key, raw[:saltLen])
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, raw[saltLen:saltLen+nonceLen], raw[saltLen+nonceLen:], nil)
	if err != nil {
		return nil, ErrOpenFailed
	}
	return pt, nil
}
