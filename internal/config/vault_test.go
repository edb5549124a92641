package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"homedash/internal/storage"
)

func newTestVault(t *testing.T) (*Vault, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	vault, err := NewVault(store, "test-passphrase", zap.NewNop())
	require.NoError(t, err)
	return vault, store
}

func TestVault_RoundTrip(t *testing.T) {
	vault, _ := newTestVault(t)

	backends := []Backend{
		{ID: "b1", Name: "Home", URL: "https://homeassistant.local:8123", Token: "secret-token", Enabled: true},
		{ID: "b2", Name: "Cabin", URL: "http://10.0.0.5:8123", Token: "other-token", Enabled: false},
	}

	require.NoError(t, vault.Save(backends))
	assert.Equal(t, backends, vault.Load())
}

func TestVault_RoundTripEmptyList(t *testing.T) {
	vault, _ := newTestVault(t)

	require.NoError(t, vault.Save([]Backend{}))
	assert.Empty(t, vault.Load())
}

func TestVault_EncryptDecrypt(t *testing.T) {
	vault, _ := newTestVault(t)

	for _, plaintext := range []string{"", "{}", `{"token":"abc"}`, "plain text with spaces"} {
		sealed, err := vault.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, sealed)

		opened, err := vault.Decrypt(sealed)
		require.NoError(t, err)
		assert.Equal(t, plaintext, opened)
	}

	// Two encryptions of the same plaintext differ because the nonce is
	// random.
	first, err := vault.Encrypt("same")
	require.NoError(t, err)
	second, err := vault.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestVault_LoadMissingKey(t *testing.T) {
	vault, _ := newTestVault(t)
	assert.Nil(t, vault.Load())
}

func TestVault_LoadCorruptData(t *testing.T) {
	vault, store := newTestVault(t)

	require.NoError(t, store.Set("ha_servers_v2", "corrupted-data-{{{"))
	assert.Nil(t, vault.Load())
}

func TestVault_LoadWrongKey(t *testing.T) {
	store := storage.NewMemoryStore()

	vault, err := NewVault(store, "first-passphrase", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, vault.Save([]Backend{{ID: "b1", URL: "http://x:1"}}))

	other, err := NewVault(store, "second-passphrase", zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, other.Load())
}

func TestVault_Clear(t *testing.T) {
	vault, _ := newTestVault(t)

	require.NoError(t, vault.Save([]Backend{{ID: "b1", URL: "http://x:1"}}))
	require.NoError(t, vault.Clear())
	assert.Nil(t, vault.Load())
}

func TestNewVault_EmptyPassphrase(t *testing.T) {
	_, err := NewVault(storage.NewMemoryStore(), "", zap.NewNop())
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
