// Package web provides the HTTP server for go-growfolio: prebuilt assets
// under the static prefix, and the SPA index document for every other path.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-growfolio/internal/config"
	"github.com/go-while/go-growfolio/internal/metrics"
)

// WebServer represents the web server
type WebServer struct {
	Router    *gin.Engine
	Settings  config.Settings
	StartTime time.Time // Track server start time for uptime calculations

	routes     *RouteTable
	assets     *assetStore // nil when no asset directory is mounted
	index      *indexDocument
	assetRoot  string
	httpServer *http.Server
}

// NewServer creates a new web server instance. httpMetrics may be nil.
// It fails when the index document cannot be read, since nothing useful can
// be served without it.
func NewServer(settings config.Settings, httpMetrics *metrics.HTTPMetrics) (*WebServer, error) {
	index, err := loadIndexDocument(settings.IndexPath, settings.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to load index document: %w", err)
	}

	s := &WebServer{
		Router:    gin.New(),
		Settings:  settings,
		StartTime: time.Now(),
		index:     index,
	}

	s.assetRoot = selectAssetRoot(settings)
	if s.assetRoot != "" {
		s.assets, err = newAssetStore(os.DirFS(s.assetRoot), settings.Debug)
		if err != nil {
			return nil, fmt.Errorf("failed to open asset root %s: %w", s.assetRoot, err)
		}
		s.routes = NewRouteTable(settings.StaticPrefix(), s.assets.fsys)
		slog.Info("Static assets mounted", "prefix", settings.StaticPrefix(), "dir", s.assetRoot, "manifest_entries", s.assets.manifest.Len())
	} else {
		s.routes = NewRouteTable(settings.StaticPrefix(), nil)
		slog.Info("No asset directory found, static mount omitted", "asset_dir", settings.AssetDir)
	}

	s.setupMiddleware(httpMetrics)
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(settings.ListenPort),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// selectAssetRoot picks the directory served under the static prefix:
// the raw build assets in debug, the collected static root (falling back to
// the build assets) otherwise. It returns "" when neither exists.
func selectAssetRoot(settings config.Settings) string {
	candidates := []string{settings.AssetDir}
	if !settings.Debug {
		candidates = []string{settings.StaticRoot, settings.AssetDir}
	}
	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}

// AssetRoot returns the mounted asset directory, or "" when none is mounted.
func (s *WebServer) AssetRoot() string {
	return s.assetRoot
}

// Handler returns the router as a plain http.Handler.
func (s *WebServer) Handler() http.Handler {
	return s.Router
}

// Start starts the web server with SSL support if configured
func (s *WebServer) Start() error {
	if s.Settings.SSL && (s.Settings.CertFile == "" || s.Settings.KeyFile == "") {
		return errors.New("SSL enabled but WEB_CERT_FILE or WEB_KEY_FILE not specified")
	}
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called. It always
// returns a non-nil error, http.ErrServerClosed after a clean shutdown.
func (s *WebServer) Serve(ln net.Listener) error {
	if s.Settings.SSL {
		slog.Info("Starting HTTPS server", "addr", ln.Addr().String())
		return s.httpServer.ServeTLS(ln, s.Settings.CertFile, s.Settings.KeyFile)
	}
	slog.Info("Starting HTTP server", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops a server started with Start.
func (s *WebServer) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
