package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every DIALBOOK_* variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestDefaults verifies all default values are applied when no file exists.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")

	cfg, err := loadWith(newFileBackend(filepath.Join(t.TempDir(), "missing.yaml")))
	require.NoError(t, err)

	assert.Equal(t, 4100, cfg.Server.Port)
	assert.Equal(t, 64, cfg.Server.MaxConns)
	assert.Empty(t, cfg.Server.Token)
	assert.Equal(t, "/tmp/xdg-data/dialbook", cfg.Storage.DataDir)
	assert.Equal(t, "savedPhones", cfg.Storage.SlotKey)
	assert.Equal(t, "1", cfg.Phone.CountryCode)
	assert.Equal(t, 10, cfg.Phone.NationalLength)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

// TestYAMLParsing verifies that all fields are correctly read from a YAML file.
func TestYAMLParsing(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `
server:
  port: 5000
  max_conns: 8
  token: ignored-secret
storage:
  data_dir: /tmp/dialbook-test
  slot_key: phones
phone:
  country_code: 44
  national_length: 10
log:
  level: debug
  format: json
`)

	cfg, err := loadWith(newFileBackend(path))
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Server.MaxConns)
	assert.Empty(t, cfg.Server.Token, "secrets are read from the environment only")
	assert.Equal(t, "/tmp/dialbook-test", cfg.Storage.DataDir)
	assert.Equal(t, "phones", cfg.Storage.SlotKey)
	assert.Equal(t, "44", cfg.Phone.CountryCode)
	assert.Equal(t, 10, cfg.Phone.NationalLength)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

// TestEnvOverride verifies that environment variables override file values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "server:\n  port: 5000\n")

	t.Setenv("DIALBOOK_SERVER_PORT", "6000")
	t.Setenv("DIALBOOK_SERVER_TOKEN", "s3cret")
	t.Setenv("DIALBOOK_PHONE_COUNTRY_CODE", "33")
	t.Setenv("DIALBOOK_PHONE_NATIONAL_LENGTH", "9")

	cfg, err := loadWith(newFileBackend(path))
	require.NoError(t, err)

	assert.Equal(t, 6000, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Server.Token)
	assert.Equal(t, "33", cfg.Phone.Plan().CountryCode)
	assert.Equal(t, 9, cfg.Phone.Plan().NationalLength)
}

// TestEnvOverride_BadIntegerKeepsValue verifies unparsable env values are ignored.
func TestEnvOverride_BadIntegerKeepsValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("DIALBOOK_SERVER_PORT", "not-a-port")

	cfg, err := loadWith(newFileBackend(filepath.Join(t.TempDir(), "none.yaml")))
	require.NoError(t, err)
	assert.Equal(t, 4100, cfg.Server.Port)
}

func TestMalformedFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "server: [unclosed")

	cfg, err := loadWith(newFileBackend(path))
	require.NoError(t, err)
	assert.Equal(t, 4100, cfg.Server.Port)
}

func TestInvalidFileValueKeepsDefault(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "server:\n  port: abc\n  max_conns: 1.5\nlog:\n  level: debug\n")

	cfg, err := loadWith(newFileBackend(path))
	require.NoError(t, err)
	assert.Equal(t, 4100, cfg.Server.Port)
	assert.Equal(t, 64, cfg.Server.MaxConns)
	assert.Equal(t, "debug", cfg.Log.Level, "valid keys in the same file still apply")
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad country code", map[string]string{"DIALBOOK_PHONE_COUNTRY_CODE": "+1"}, "invalid phone config"},
		{"zero national length", map[string]string{"DIALBOOK_PHONE_NATIONAL_LENGTH": "0"}, "invalid phone config"},
		{"port out of range", map[string]string{"DIALBOOK_SERVER_PORT": "70000"}, "server.port"},
		{"no connections", map[string]string{"DIALBOOK_SERVER_MAX_CONNS": "0"}, "server.max_conns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadWith(newFileBackend(filepath.Join(t.TempDir(), "none.yaml")))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSetKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	require.NoError(t, SetKey("server.port", "4200"))
	require.NoError(t, SetKey("phone.country_code", "44"))

	cfg, err := loadWith(newFileBackend(ConfigFilePath()))
	require.NoError(t, err)
	assert.Equal(t, 4200, cfg.Server.Port)
	assert.Equal(t, "44", cfg.Phone.CountryCode)

	assert.ErrorContains(t, SetKey("server.port", "lots"), "invalid integer")
	assert.ErrorContains(t, SetKey("server.token", "x"), "DIALBOOK_SERVER_TOKEN")
	assert.ErrorContains(t, SetKey("nope", "x"), "unknown config key")
}

func TestFileBackendDelete(t *testing.T) {
	path := writeTempConfig(t, "log:\n  level: debug\n  format: json\n")
	b := newFileBackend(path)

	require.NoError(t, b.Delete("log.level"))
	require.NoError(t, b.Delete("missing.key"))

	reloaded := newFileBackend(path)
	_, ok, err := reloaded.GetString("log.level")
	require.NoError(t, err)
	assert.False(t, ok)
	v, ok, err := reloaded.GetString("log.format")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "json", v)
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Server.Token = "hidden"

	keys := ShowAll(cfg)
	assert.Len(t, keys, len(ValidKeys()))
	for _, k := range keys {
		assert.NotEqual(t, "server.token", k.Key)
		assert.NotEqual(t, "hidden", k.Value)
	}
	assert.Contains(t, ValidKeys(), "phone.national_length")
}
