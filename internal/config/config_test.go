package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oficina.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
db: /var/lib/oficina/data.sqlite3
base_url: https://oficina.example.com
store_timeout: 2s
http:
  write_timeout: 90s
`)

	c, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/oficina/data.sqlite3", c.DBPath)
	assert.Equal(t, "https://oficina.example.com", c.BaseURL)
	assert.Equal(t, 2*time.Second, c.StoreTimeout)
	assert.Equal(t, 90*time.Second, c.HTTP.WriteTimeout)

	// Untouched keys keep their defaults.
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, 10*time.Second, c.HTTP.ReadHeaderTimeout)
	assert.NoError(t, c.Validate())
}

func TestLoadFileEmpty(t *testing.T) {
	c, err := LoadFile(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	_, err := LoadFile(writeFile(t, "adress: :9090\n"))
	assert.Error(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty db", func(c *Config) { c.DBPath = "" }, "db"},
		{"relative base url", func(c *Config) { c.BaseURL = "/public" }, "base_url"},
		{"ftp base url", func(c *Config) { c.BaseURL = "ftp://example.com" }, "base_url"},
		{"base url with query", func(c *Config) { c.BaseURL = "https://example.com/?x=1" }, "base_url"},
		{"admin email with name", func(c *Config) { c.AdminEmail = "Admin <admin@example.com>" }, "admin_email"},
		{"zero store timeout", func(c *Config) { c.StoreTimeout = 0 }, "store_timeout"},
		{"negative ttl", func(c *Config) { c.TokenTTL = -time.Hour }, "token_ttl"},
		{"negative idle timeout", func(c *Config) { c.HTTP.IdleTimeout = -1 }, "http.idle_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field+":")
		})
	}
}

func TestApplyFlagsOnlyOverridesSetFlags(t *testing.T) {
	fs := pflag.NewFlagSet("oficina", pflag.ContinueOnError)
	flags := Default()
	AddFlags(fs, flags)
	require.NoError(t, fs.Parse([]string{"-a", ":9090", "--store-timeout", "1s"}))

	c := Default()
	c.DBPath = "from-file.sqlite3"
	c.ApplyFlags(fs, flags)

	assert.Equal(t, ":9090", c.Addr)
	assert.Equal(t, time.Second, c.StoreTimeout)
	assert.Equal(t, "from-file.sqlite3", c.DBPath)
}
