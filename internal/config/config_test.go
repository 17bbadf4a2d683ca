package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "en", cfg.DefaultLanguage())
	assert.True(t, cfg.LanguageSupported("es"))
	assert.False(t, cfg.LanguageSupported("fr"))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Listen, cfg.Listen)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
listen: ":9090"
database_path: /tmp/test.db
default_tax_year: 2024
supported_languages: [en]
session_ttl: 30m
rate_limit:
  enabled: true
  chat_per_min: 10
  calc_per_min: 10
  read_per_min: 10
  burst: 2
admin:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "/tmp/test.db", cfg.DatabasePath)
	assert.Equal(t, 2024, cfg.DefaultTaxYear)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL.Std())
	assert.Equal(t, 10, cfg.RateLimit.ChatPerMin)
	assert.False(t, cfg.Admin.Enabled)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [not a string"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session_ttl: nonsense"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TAXINTEL_LISTEN", ":7070")
	t.Setenv("TAXINTEL_TAX_YEAR", "2024")
	t.Setenv("TAXINTEL_SESSION_TTL", "45m")
	t.Setenv("TAXINTEL_ADMIN_PASSWORD", "hunter2")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Listen)
	assert.Equal(t, 2024, cfg.DefaultTaxYear)
	assert.Equal(t, 45*time.Minute, cfg.SessionTTL.Std())
	assert.Equal(t, "hunter2", cfg.Admin.Password)
}

func TestValidateErrors(t *testing.T) {
	cfg := Default()
	cfg.Listen = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.DefaultTaxYear = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.RateLimit.ChatPerMin = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.SupportedLanguages = nil
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Listen = ":1234"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":1234", loaded.Listen)
	assert.Equal(t, cfg.SessionTTL, loaded.SessionTTL)
}
