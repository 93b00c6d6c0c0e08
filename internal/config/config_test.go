package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndFlags(t *testing.T) {
	fs := Flags()
	require.NoError(t, fs.Parse([]string{"--foreman-url", "https://foreman.example.com", "--port", "8080"}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, "https://foreman.example.com", cfg.Foreman.URL)
	assert.Equal(t, "admin", cfg.Foreman.Username)
	assert.Equal(t, "changeme", cfg.Foreman.Password)
	assert.False(t, cfg.Foreman.VerifySSL)
	assert.Equal(t, 30*time.Second, cfg.Foreman.Timeout)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Server.TLSEnabled())
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("FOREMAN_MCP_FOREMAN_URL", "https://env.example.com")
	t.Setenv("FOREMAN_MCP_FOREMAN_PASSWORD", "secret")
	t.Setenv("FOREMAN_MCP_FOREMAN_TIMEOUT", "5s")
	t.Setenv("FOREMAN_MCP_LOG_LEVEL", "debug")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.Foreman.URL)
	assert.Equal(t, "secret", cfg.Foreman.Password)
	assert.Equal(t, 5*time.Second, cfg.Foreman.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFileWithFlagOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 4000
  token: abc
  rate_limit: 2.5
foreman:
  url: https://file.example.com
  username: viewer
  verify_ssl: true
`), 0o600))

	fs := Flags()
	require.NoError(t, fs.Parse([]string{"--config", path, "--foreman-username", "operator"}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "abc", cfg.Server.Token)
	assert.Equal(t, 2.5, cfg.Server.RateLimit)
	assert.Equal(t, "https://file.example.com", cfg.Foreman.URL)
	assert.Equal(t, "operator", cfg.Foreman.Username)
	assert.True(t, cfg.Foreman.VerifySSL)
}

func TestLoadMissingConfigFile(t *testing.T) {
	fs := Flags()
	require.NoError(t, fs.Parse([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}))
	_, err := Load(fs)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	_, err := Load(Flags())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "foreman.url is required")

	cfg := Config{
		Server:  ServerConfig{Port: 0, TLSCertFile: "cert.pem"},
		Foreman: ForemanConfig{URL: "foreman.local", Timeout: 0},
	}
	err = cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"not an absolute URL", "server.port", "tls_key_file", "foreman.timeout"} {
		assert.Contains(t, err.Error(), want)
	}
}
