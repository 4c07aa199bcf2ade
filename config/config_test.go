package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/tower-sdk/crypto"
	"github.com/blockberries/tower-sdk/rpc"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tower.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, rpc.ModeSequential, cfg.DispatchMode())
	assert.Equal(t, crypto.AlgorithmEd25519, cfg.SigningAlgorithm())
}

func TestLoad_Layering(t *testing.T) {
	path := writeConfig(t, `
endpoint: http://game.example:9000
account: "1234"
mode: unordered
timeout: 3s
keystore:
  kind: memory
  key: player
journal:
  backend: memory
log:
  level: debug
`)

	t.Run("yaml over defaults", func(t *testing.T) {
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "http://game.example:9000", cfg.Endpoint)
		assert.Equal(t, "1234", cfg.Account)
		assert.Equal(t, rpc.ModeUnordered, cfg.DispatchMode())
		assert.Equal(t, 3*time.Second, cfg.Timeout)
		assert.Equal(t, KeyStoreMemory, cfg.KeyStore.Kind)
		assert.Equal(t, "player", cfg.KeyStore.Key)
		assert.Equal(t, "tower-sdk", cfg.KeyStore.Service, "unset keys keep defaults")
		assert.Equal(t, "tower-defense", cfg.AppID)
	})

	t.Run("env over yaml", func(t *testing.T) {
		t.Setenv("TOWER_ENDPOINT", "http://env.example")
		t.Setenv("TOWER_TIMEOUT", "250ms")
		t.Setenv("TOWER_KEYSTORE_KIND", "file")
		t.Setenv("TOWER_KEYSTORE_DIR", t.TempDir())
		t.Setenv("TOWER_PASSWORD", "hunter2")
		t.Setenv("TOWER_LOG_JSON", "true")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "http://env.example", cfg.Endpoint)
		assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
		assert.Equal(t, KeyStoreFile, cfg.KeyStore.Kind)
		assert.Equal(t, "hunter2", cfg.Password)
		assert.True(t, cfg.Log.JSON)
		assert.Equal(t, "1234", cfg.Account)
	})
}

func TestLoad_PasswordNotFromYAML(t *testing.T) {
	path := writeConfig(t, "password: secret\nkeystore:\n  kind: file\n  dir: /tmp/keys\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "TOWER_PASSWORD")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "endpoint: [unterminated"))
	assert.Error(t, err)

	t.Setenv("TOWER_TIMEOUT", "soon")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"no endpoint":         func(c *Config) { c.Endpoint = "" },
		"bad account":         func(c *Config) { c.Account = "bad\x00id" },
		"bad algorithm":       func(c *Config) { c.Algorithm = "rsa" },
		"bad mode":            func(c *Config) { c.Mode = "parallel" },
		"zero timeout":        func(c *Config) { c.Timeout = 0 },
		"shadowing upgrade":   func(c *Config) { c.UpgradeCode = 3 },
		"unknown keystore":    func(c *Config) { c.KeyStore.Kind = "hsm" },
		"file without dir":    func(c *Config) { c.KeyStore.Kind = KeyStoreFile; c.Password = "x" },
		"keychain no svc":     func(c *Config) { c.KeyStore.Kind = KeyStoreKeychain; c.KeyStore.Service = "" },
		"negative cache":      func(c *Config) { c.KeyStore.Cache = -1 },
		"unknown journal":     func(c *Config) { c.Journal.Backend = "rocksdb" },
		"leveldb without dir": func(c *Config) { c.Journal.Backend = "goleveldb" },
		"bad log level":       func(c *Config) { c.Log.Level = "loud" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	cfg := Default()
	cfg.UpgradeCode = 4
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Logger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.Log = Log{Level: "error", JSON: true}

	logger, err := cfg.Logger(&buf)
	require.NoError(t, err)
	logger.Info("dropped")
	logger.Error("kept", "k", "v")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"k":"v"`)
}
