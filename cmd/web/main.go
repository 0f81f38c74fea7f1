// Web server for go-growfolio: serves the prebuilt frontend and its assets
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	prof "github.com/go-while/go-cpu-mem-profiler"
	"github.com/go-while/go-growfolio/internal/config"
	"github.com/go-while/go-growfolio/internal/logging"
	"github.com/go-while/go-growfolio/internal/metrics"
	"github.com/go-while/go-growfolio/internal/web"
)

var (
	// command-line flags
	webport     int
	webssl      bool
	webcertFile string
	webkeyFile  string
)

var appVersion = "-unset-"

var Prof *prof.Profiler

func main() {
	config.AppVersion = appVersion

	flag.IntVar(&webport, "webport", 0, "Web server port (default: PORT or 8000)")
	flag.BoolVar(&webssl, "webssl", false, "Enable SSL")
	flag.StringVar(&webcertFile, "websslcert", "", "SSL certificate file (/path/to/fullchain.pem)")
	flag.StringVar(&webkeyFile, "websslkey", "", "SSL key file (/path/to/privkey.pem)")
	flag.Parse()

	settings, err := config.Load()
	if err != nil {
		// slog is not configured yet
		log.Fatalf("[WEB]: Failed to load configuration: %v", err)
	}
	logging.InitLogger(settings.LogLevel, settings.LogFormat)
	slog.Info("Starting go-growfolio web server", "version", config.AppVersion, "debug", settings.Debug)

	// Override config with command-line flags if provided
	if webport > 0 {
		settings.ListenPort = webport
		slog.Info("Overriding listen port with command-line flag", "port", settings.ListenPort)
	}
	if webssl {
		settings.SSL = true
		slog.Info("SSL enabled via command-line flag")
	}
	if webcertFile != "" {
		settings.CertFile = webcertFile
		slog.Info("SSL cert file set", "file", settings.CertFile)
	}
	if webkeyFile != "" {
		settings.KeyFile = webkeyFile
		slog.Info("SSL key file set", "file", settings.KeyFile)
	}

	// Validate port
	if settings.ListenPort < 1 || settings.ListenPort > 65535 {
		slog.Error("Invalid port number (must be between 1 and 65535)", "port", settings.ListenPort)
		os.Exit(1)
	}

	for _, warning := range settings.Warnings() {
		slog.Warn(warning)
	}

	if settings.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if settings.PprofAddr != "" {
		Prof = prof.NewProf()
		go Prof.PprofWeb(settings.PprofAddr)
		slog.Info("pprof listening", "addr", settings.PprofAddr)
	}

	registry := metrics.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(registry)
	var metricsServer *http.Server
	if settings.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:              settings.MetricsAddr,
			Handler:           metrics.Handler(registry),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("Metrics listening", "addr", settings.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	server, err := web.NewServer(settings, httpMetrics)
	if err != nil {
		slog.Error("Failed to create web server", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start web server in goroutine to make it non-blocking
	webServerErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			webServerErrChan <- err
		}
	}()

	slog.Info("Server started. Press Ctrl+C to gracefully shutdown...")

	select {
	case <-sigChan:
		slog.Info("Received shutdown signal, initiating graceful shutdown...")
	case err := <-webServerErrChan:
		slog.Error("Failed to start web server", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Web server shutdown error", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	slog.Info("Graceful shutdown completed", "uptime", time.Since(server.StartTime).Round(time.Second))
}
