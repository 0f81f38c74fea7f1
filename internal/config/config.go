// Package config provides configuration management for go-growfolio.
//
// Settings are read once from the process environment (and an optional .env
// file) at startup and passed explicitly to the components that need them.
package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

var AppVersion = "-unset-" // will be set at build time

const (
	// DefaultSecretKey is a development placeholder and must be replaced in production.
	DefaultSecretKey    = "dev-key-change-me-in-production"
	DefaultAllowedHosts = "localhost,127.0.0.1"
	DefaultBuildDir     = "build"
	DefaultStaticURL    = "/assets/"
	DefaultStaticRoot   = "staticfiles"
	DefaultListenPort   = 8000

	IndexDocumentName = "index.html"
	AssetDirName      = "assets"
)

// environment mirrors the raw variables. Everything is a string so that a
// variable set to "" behaves like an unset one.
type environment struct {
	SecretKey    string `env:"SECRET_KEY" default:"dev-key-change-me-in-production"`
	DebugMode    string `env:"DEBUG_MODE" default:"1"`
	AllowedHosts string `env:"ALLOWED_HOSTS" default:"localhost,127.0.0.1"`
	BuildDir     string `env:"BUILD_DIR" default:"build"`
	StaticURL    string `env:"STATIC_URL" default:"/assets/"`
	StaticRoot   string `env:"STATIC_ROOT" default:"staticfiles"`

	ListenPort string `env:"PORT" default:"8000"`
	SSL        string `env:"WEB_SSL" default:"false"`
	CertFile   string `env:"WEB_CERT_FILE"`
	KeyFile    string `env:"WEB_KEY_FILE"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	MetricsAddr string `env:"METRICS_ADDR"`
	PprofAddr   string `env:"PPROF_ADDR"`
}

// Settings holds the process-wide configuration. Treat it as read-only once
// Load has returned.
type Settings struct {
	SecretKey    string
	Debug        bool
	AllowedHosts []string

	BuildDir  string
	AssetDir  string
	IndexPath string
	StaticURL string
	// StaticRoot is where collectstatic writes the production asset tree.
	StaticRoot string

	ListenPort int
	SSL        bool
	CertFile   string
	KeyFile    string

	LogLevel  string
	LogFormat string

	MetricsAddr string
	PprofAddr   string
}

// Load reads an optional .env file and then the environment. Unset or empty
// variables fall back to their defaults; only malformed typed values fail.
func Load() (Settings, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	var raw environment
	if err := env.Load(&raw, nil); err != nil {
		return Settings{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	return fromEnvironment(raw)
}

func fromEnvironment(raw environment) (Settings, error) {
	secretKey := orDefault(raw.SecretKey, DefaultSecretKey)
	debugMode := orDefault(raw.DebugMode, "1")
	buildDir := filepath.Clean(orDefault(raw.BuildDir, DefaultBuildDir))

	hosts := splitHosts(raw.AllowedHosts)
	if len(hosts) == 0 {
		hosts = splitHosts(DefaultAllowedHosts)
	}

	port := DefaultListenPort
	if v := strings.TrimSpace(raw.ListenPort); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		port = p
	}

	ssl := false
	if v := strings.TrimSpace(raw.SSL); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid WEB_SSL %q: %w", v, err)
		}
		ssl = b
	}

	staticURL := normalizePrefix(orDefault(raw.StaticURL, DefaultStaticURL))
	if staticURL == "/" {
		return Settings{}, fmt.Errorf("invalid STATIC_URL %q: the asset prefix cannot cover the whole site", raw.StaticURL)
	}

	return Settings{
		SecretKey:    secretKey,
		Debug:        debugMode == "1",
		AllowedHosts: hosts,
		BuildDir:     buildDir,
		AssetDir:     filepath.Join(buildDir, AssetDirName),
		IndexPath:    filepath.Join(buildDir, IndexDocumentName),
		StaticURL:    staticURL,
		StaticRoot:   filepath.Clean(orDefault(raw.StaticRoot, DefaultStaticRoot)),
		ListenPort:   port,
		SSL:          ssl,
		CertFile:     raw.CertFile,
		KeyFile:      raw.KeyFile,
		LogLevel:     orDefault(raw.LogLevel, "info"),
		LogFormat:    orDefault(raw.LogFormat, "text"),
		MetricsAddr:  raw.MetricsAddr,
		PprofAddr:    raw.PprofAddr,
	}, nil
}

// StaticPrefix returns the URL prefix under which assets are served,
// always with a leading and trailing slash.
func (s Settings) StaticPrefix() string {
	return normalizePrefix(s.StaticURL)
}

// Warnings reports settings that are unsafe outside development.
func (s Settings) Warnings() []string {
	if s.Debug {
		return nil
	}
	var warnings []string
	if s.SecretKey == DefaultSecretKey {
		warnings = append(warnings, "SECRET_KEY is the development placeholder while DEBUG_MODE is off")
	}
	for _, h := range s.AllowedHosts {
		if h == "*" {
			warnings = append(warnings, "ALLOWED_HOSTS contains '*' while DEBUG_MODE is off")
			break
		}
	}
	return warnings
}

func orDefault(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

func splitHosts(list string) []string {
	var hosts []string
	for _, h := range strings.Split(list, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return "/"
	}
	return "/" + prefix + "/"
}
