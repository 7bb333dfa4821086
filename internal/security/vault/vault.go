// Package vault encrypts provider credentials at rest.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrInvalidKey      = errors.New("vault: invalid encryption key")
	ErrInvalidPayload  = errors.New("vault: invalid encrypted payload")
	ErrDecryption      = errors.New("vault: decryption failed")
	ErrUnknownProvider = errors.New("vault: unknown provider")
)

type Provider interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
}

type Config struct {
	Provider string // only "aes" today
	AESKey   string
	// PreviousKeys still decrypt but are never used to encrypt.
	PreviousKeys []string
}

func NewFactory(cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "aes", "":
		return NewAESVault(cfg.AESKey, cfg.PreviousKeys...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

// AESVault implements Provider with AES-256-GCM. Any string works as a key;
// it is hashed to 32 bytes.
type AESVault struct {
	keys []cipher.AEAD
}

func NewAESVault(key string, previous ...string) (*AESVault, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrInvalidKey
	}
	v := &AESVault{}
	for _, k := range append([]string{key}, previous...) {
		if strings.TrimSpace(k) == "" {
			continue
		}
		aead, err := newAEAD(k)
		if err != nil {
			return nil, err
		}
		v.keys = append(v.keys, aead)
	}
	return v, nil
}

func newAEAD(key string) (cipher.AEAD, error) {
	sum := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

type EncryptedData struct {
	Version    int    `json:"v"`
	Nonce      string `json:"n"`
	Ciphertext string `json:"c"`
}

func (v *AESVault) Encrypt(plaintext []byte) ([]byte, error) {
	gcm := v.keys[0]
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return json.Marshal(EncryptedData{
		Version:    1,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, nil)),
	})
}

func (v *AESVault) Decrypt(data []byte) ([]byte, error) {
	var payload EncryptedData
	if err := json.Unmarshal(data, &payload); err != nil || payload.Version != 1 {
		return nil, ErrInvalidPayload
	}
	nonce, err := base64.RawStdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return nil, ErrInvalidPayload
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return nil, ErrInvalidPayload
	}

	for _, gcm := range v.keys {
		if len(nonce) != gcm.NonceSize() {
			return nil, ErrInvalidPayload
		}
		if plaintext, err := gcm.Open(nil, nonce, ciphertext, nil); err == nil {
			return plaintext, nil
		}
	}
	return nil, ErrDecryption
}

// EncryptJSON marshals value and encrypts it.
func EncryptJSON(p Provider, value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return p.Encrypt(raw)
}

// DecryptJSON decrypts data into out.
func DecryptJSON(p Provider, data []byte, out any) error {
	raw, err := p.Decrypt(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
