package bootstrap

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmont/insights-api/config"
	"github.com/oakmont/insights-api/internal/data/cryptoutil"
)

func TestCreateEncryptor(t *testing.T) {
	t.Run("empty key falls back to noop", func(t *testing.T) {
		enc := CreateEncryptor("", nil)
		_, ok := enc.(*cryptoutil.NoopEncryptor)
		assert.True(t, ok)
	})

	t.Run("hex key round-trips", func(t *testing.T) {
		key := hex.EncodeToString(make([]byte, 32))
		enc := CreateEncryptor(key, nil)

		cipher, err := enc.Encrypt([]byte("grant"))
		require.NoError(t, err)
		assert.NotEqual(t, "grant", cipher)

		plain, err := enc.Decrypt(cipher)
		require.NoError(t, err)
		assert.Equal(t, []byte("grant"), plain)
	})

	t.Run("passphrase key is hashed to 32 bytes", func(t *testing.T) {
		enc := CreateEncryptor("not-hex-at-all", nil)

		cipher, err := enc.Encrypt([]byte("grant"))
		require.NoError(t, err)
		plain, err := enc.Decrypt(cipher)
		require.NoError(t, err)
		assert.Equal(t, []byte("grant"), plain)
	})

	t.Run("different keys cannot decrypt", func(t *testing.T) {
		a := CreateEncryptor("key-a", nil)
		b := CreateEncryptor("key-b", nil)

		cipher, err := a.Encrypt([]byte("grant"))
		require.NoError(t, err)
		_, err = b.Decrypt(cipher)
		assert.Error(t, err)
	})
}

func TestValidateConfig(t *testing.T) {
	base := func() *config.AppConfig {
		cfg := &config.AppConfig{IsDev: true, EncryptionKey: "k"}
		cfg.Auth.Session.Secret = "secret"
		cfg.Auth.Session.Lifetime = 30 * time.Minute
		return cfg
	}

	t.Run("valid dev config", func(t *testing.T) {
		assert.NoError(t, ValidateConfig(base()))
	})

	t.Run("nil config", func(t *testing.T) {
		assert.Error(t, ValidateConfig(nil))
	})

	t.Run("missing session secret", func(t *testing.T) {
		cfg := base()
		cfg.Auth.Session.Secret = ""
		assert.Error(t, ValidateConfig(cfg))
	})

	t.Run("encryption key optional in dev", func(t *testing.T) {
		cfg := base()
		cfg.EncryptionKey = ""
		assert.NoError(t, ValidateConfig(cfg))
	})

	t.Run("encryption key required outside dev", func(t *testing.T) {
		cfg := base()
		cfg.IsDev = false
		cfg.EncryptionKey = ""
		assert.Error(t, ValidateConfig(cfg))
	})
}
