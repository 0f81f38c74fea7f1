package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedVars = []string{
	"SECRET_KEY", "DEBUG_MODE", "ALLOWED_HOSTS", "BUILD_DIR", "STATIC_URL", "STATIC_ROOT",
	"PORT", "WEB_SSL", "WEB_CERT_FILE", "WEB_KEY_FILE", "LOG_LEVEL", "LOG_FORMAT",
	"METRICS_ADDR", "PPROF_ADDR",
}

// unsetAll removes every managed variable for the duration of the test.
func unsetAll(t *testing.T) {
	t.Helper()
	for _, name := range managedVars {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	t.Chdir(t.TempDir())
}

func TestLoad_DefaultValues(t *testing.T) {
	unsetAll(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultSecretKey, cfg.SecretKey)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"localhost", "127.0.0.1"}, cfg.AllowedHosts)
	assert.Equal(t, "build", cfg.BuildDir)
	assert.Equal(t, filepath.Join("build", "assets"), cfg.AssetDir)
	assert.Equal(t, filepath.Join("build", "index.html"), cfg.IndexPath)
	assert.Equal(t, "/assets/", cfg.StaticURL)
	assert.Equal(t, "staticfiles", cfg.StaticRoot)
	assert.Equal(t, 8000, cfg.ListenPort)
	assert.False(t, cfg.SSL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Empty(t, cfg.PprofAddr)
}

func TestLoad_EmptyCountsAsUnset(t *testing.T) {
	unsetAll(t)
	for _, name := range managedVars {
		t.Setenv(name, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultSecretKey, cfg.SecretKey)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"localhost", "127.0.0.1"}, cfg.AllowedHosts)
	assert.Equal(t, 8000, cfg.ListenPort)
}

func TestLoad_DebugMode(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1", true},
		{"0", false},
		{"true", false},
		{"yes", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			unsetAll(t)
			t.Setenv("DEBUG_MODE", tt.value)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Debug)
		})
	}
}

func TestLoad_AllowedHosts(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{"single", "example.com", []string{"example.com"}},
		{"keeps order", "b.example,a.example", []string{"b.example", "a.example"}},
		{"trims whitespace", " a.example , b.example ", []string{"a.example", "b.example"}},
		{"drops empties", "a.example,,b.example,", []string{"a.example", "b.example"}},
		{"only commas falls back", ",,", []string{"localhost", "127.0.0.1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unsetAll(t)
			t.Setenv("ALLOWED_HOSTS", tt.value)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.AllowedHosts)
		})
	}
}

func TestLoad_CustomValues(t *testing.T) {
	unsetAll(t)
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("BUILD_DIR", "/srv/app/build/")
	t.Setenv("STATIC_URL", "static")
	t.Setenv("STATIC_ROOT", "/srv/app/collected")
	t.Setenv("PORT", "9090")
	t.Setenv("WEB_SSL", "true")
	t.Setenv("WEB_CERT_FILE", "cert.pem")
	t.Setenv("WEB_KEY_FILE", "key.pem")
	t.Setenv("METRICS_ADDR", ":9100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.SecretKey)
	assert.Equal(t, "/srv/app/build", cfg.BuildDir)
	assert.Equal(t, "/srv/app/build/assets", cfg.AssetDir)
	assert.Equal(t, "/srv/app/build/index.html", cfg.IndexPath)
	assert.Equal(t, "/static/", cfg.StaticURL)
	assert.Equal(t, "/static/", cfg.StaticPrefix())
	assert.Equal(t, "/srv/app/collected", cfg.StaticRoot)
	assert.Equal(t, 9090, cfg.ListenPort)
	assert.True(t, cfg.SSL)
	assert.Equal(t, "cert.pem", cfg.CertFile)
	assert.Equal(t, "key.pem", cfg.KeyFile)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
}

func TestLoad_InvalidTypedValues(t *testing.T) {
	tests := []struct {
		name    string
		envVar  string
		value   string
		wantErr string
	}{
		{"port", "PORT", "eighty", `invalid PORT "eighty"`},
		{"ssl", "WEB_SSL", "maybe", `invalid WEB_SSL "maybe"`},
		{"static url root", "STATIC_URL", "/", `invalid STATIC_URL "/"`},
		{"static url slashes", "STATIC_URL", "///", `invalid STATIC_URL "///"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unsetAll(t)
			t.Setenv(tt.envVar, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	unsetAll(t)
	dir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SECRET_KEY=from-dotenv\nDEBUG_MODE=0\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv", cfg.SecretKey)
	assert.False(t, cfg.Debug)
}

func TestLoad_EnvironmentWinsOverDotEnv(t *testing.T) {
	unsetAll(t)
	t.Setenv("SECRET_KEY", "from-env")
	dir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SECRET_KEY=from-dotenv\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.SecretKey)
}

func TestWarnings(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		want     int
	}{
		{"debug never warns", Settings{Debug: true, SecretKey: DefaultSecretKey, AllowedHosts: []string{"*"}}, 0},
		{"placeholder key", Settings{SecretKey: DefaultSecretKey, AllowedHosts: []string{"example.com"}}, 1},
		{"wildcard host", Settings{SecretKey: "real", AllowedHosts: []string{"*"}}, 1},
		{"both", Settings{SecretKey: DefaultSecretKey, AllowedHosts: []string{"example.com", "*"}}, 2},
		{"clean", Settings{SecretKey: "real", AllowedHosts: []string{"example.com"}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.settings.Warnings(), tt.want)
		})
	}
}
