package config

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20poly1305"

	"homedash/internal/storage"
)

// storageKey is the single store entry holding the encrypted backend list.
const storageKey = "ha_servers_v2"

// Vault persists the backend list encrypted with XChaCha20-Poly1305. The
// whole configuration is encrypted as one JSON payload; a random 24-byte
// nonce is prepended to the ciphertext and the result base64-encoded.
type Vault struct {
	store  storage.Store
	key    []byte
	logger *zap.Logger
}

// DeriveKey stretches a passphrase to the 32 bytes the cipher requires by
// repeating its bytes.
func DeriveKey(passphrase string) []byte {
	key := make([]byte, chacha20poly1305.KeySize)
	data := []byte(passphrase)
	for i := range key {
		key[i] = data[i%len(data)]
	}
	return key
}

// NewVault creates a vault over the given store.
func NewVault(store storage.Store, passphrase string, logger *zap.Logger) (*Vault, error) {
	if passphrase == "" {
		return nil, &ConfigError{Field: "key", Reason: "is empty"}
	}
	return &Vault{
		store:  store,
		key:    DeriveKey(passphrase),
		logger: logger,
	}, nil
}

// Save encrypts and stores the full backend list.
func (v *Vault) Save(backends []Backend) error {
	payload, err := json.Marshal(backends)
	if err != nil {
		return fmt.Errorf("marshal backends: %w", err)
	}

	sealed, err := v.Encrypt(string(payload))
	if err != nil {
		return err
	}

	if err := v.store.Set(storageKey, sealed); err != nil {
		return fmt.Errorf("store backends: %w", err)
	}
	return nil
}

// Load returns the stored backend list. Any read, decrypt, or parse
// failure is treated as no data: logged and an empty list returned, so a
// corrupt store never takes the daemon down.
func (v *Vault) Load() []Backend {
	sealed, ok, err := v.store.Get(storageKey)
	if err != nil {
		v.logger.Warn("Failed to read stored backends", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	payload, err := v.Decrypt(sealed)
	if err != nil {
		v.logger.Warn("Failed to decrypt stored backends, treating as empty", zap.Error(err))
		return nil
	}

	var backends []Backend
	if err := json.Unmarshal([]byte(payload), &backends); err != nil {
		v.logger.Warn("Failed to parse stored backends, treating as empty", zap.Error(err))
		return nil
	}
	return backends
}

// Clear removes the stored backend list.
func (v *Vault) Clear() error {
	return v.store.Remove(storageKey)
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (v *Vault) Decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return "", fmt.Errorf("ciphertext shorter than nonce")
	}

	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	nonce, ciphertext := sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}
