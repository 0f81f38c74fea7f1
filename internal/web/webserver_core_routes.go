package web

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/go-while/go-growfolio/internal/logging"
	"github.com/go-while/go-growfolio/internal/metrics"
)

// Reverse proxies commonly sit on loopback or a private network (nginx, etc.)
var trustedProxies = []string{"127.0.0.1/32", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}

const (
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 128
)

func (s *WebServer) setupMiddleware(httpMetrics *metrics.HTTPMetrics) {
	s.Router.RedirectTrailingSlash = false
	s.Router.RedirectFixedPath = false
	if err := s.Router.SetTrustedProxies(trustedProxies); err != nil {
		slog.Warn("Failed to set trusted proxies", "error", err)
	}

	s.Router.Use(RecoveryMiddleware())
	s.Router.Use(RequestIDMiddleware())
	if s.Settings.LogFormat == "apache" {
		s.Router.Use(ApacheLogFormat())
	} else {
		s.Router.Use(RequestLoggerMiddleware())
	}
	if httpMetrics != nil {
		s.Router.Use(httpMetrics.Middleware())
	}
	s.Router.Use(ReverseProxyMiddleware())
	s.Router.Use(AllowedHostsMiddleware(s.Settings.AllowedHosts))

	secureConfig := secure.Config{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}
	// SSL-specific headers only when the application terminates TLS itself
	// (not when running behind a reverse proxy like nginx with SSL)
	if s.Settings.SSL {
		secureConfig.SSLRedirect = true
		secureConfig.STSSeconds = 31536000
		secureConfig.STSIncludeSubdomains = true
	}
	s.Router.Use(secure.New(secureConfig))
}

// setupRoutes configures the route table: the static prefix first (only
// when assets are mounted), then the catch-all.
func (s *WebServer) setupRoutes() {
	if s.routes.HasStaticRule() {
		pattern := s.routes.Prefix() + "*filepath"
		s.Router.GET(pattern, s.dispatch)
		s.Router.HEAD(pattern, s.dispatch)
	}
	s.Router.NoRoute(s.dispatch)
}

func (s *WebServer) dispatch(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.Set(metrics.RouteKey, "method_not_allowed")
		c.Header("Allow", "GET, HEAD")
		c.AbortWithStatus(http.StatusMethodNotAllowed)
		return
	}

	decision := s.routes.Resolve(c.Request.URL.Path)
	c.Set(metrics.RouteKey, decision.Kind.String())

	switch decision.Kind {
	case ServeStaticFile:
		s.assets.serve(c, decision.Name)
	case AssetNotFound:
		c.AbortWithStatus(http.StatusNotFound)
	default:
		s.index.serve(c)
	}
}

// RequestIDMiddleware reuses a sane incoming X-Request-ID or mints one, echoes
// it on the response and stores it in the request context for logging.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = logging.NewRequestID()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// RecoveryMiddleware turns a handler panic into a 500 and logs it through
// slog, so the entry carries the request ID like every other log line.
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		slog.ErrorContext(c.Request.Context(), "Panic recovered",
			"panic", fmt.Sprint(recovered),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"stack", string(debug.Stack()),
		)
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}

// RequestLoggerMiddleware writes one structured log line per request.
func RequestLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"route", c.GetString(metrics.RouteKey),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}
		slog.InfoContext(c.Request.Context(), "Request", attrs...)
	}
}

// ApacheLogFormat logs requests in Apache combined log format.
func ApacheLogFormat() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf(`%s - - [%s] "%s %s %s" %d %d "%s" "%s"`+"\n",
			param.ClientIP,
			param.TimeStamp.Format("02/Jan/2006:15:04:05 -0700"),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.BodySize,
			param.Request.Referer(),
			param.Request.UserAgent(),
		)
	})
}

// ReverseProxyMiddleware honours X-Forwarded-Proto and X-Forwarded-Host, but
// only from a trusted proxy. The client IP itself is resolved by gin.
func ReverseProxyMiddleware() gin.HandlerFunc {
	nets := parseNets(trustedProxies)
	return func(c *gin.Context) {
		if !fromTrustedProxy(c.Request.RemoteAddr, nets) {
			c.Next()
			return
		}

		// Handle X-Forwarded-Proto to detect if the original request was HTTPS
		if proto := c.GetHeader("X-Forwarded-Proto"); proto == "https" {
			c.Request.URL.Scheme = "https"
		}

		// Handle X-Forwarded-Host to get the original host
		if host := c.GetHeader("X-Forwarded-Host"); host != "" {
			if first, _, _ := strings.Cut(host, ","); strings.TrimSpace(first) != "" {
				c.Request.Host = strings.TrimSpace(first)
			}
		}

		c.Next()
	}
}

// AllowedHostsMiddleware rejects requests whose Host header matches none of
// the allowed patterns with 400. An empty list allows everything.
func AllowedHostsMiddleware(allowed []string) gin.HandlerFunc {
	patterns := make([]string, 0, len(allowed))
	for _, p := range allowed {
		patterns = append(patterns, strings.ToLower(strings.TrimSpace(p)))
	}
	return func(c *gin.Context) {
		if len(patterns) == 0 || hostAllowed(c.Request.Host, patterns) {
			c.Next()
			return
		}
		slog.WarnContext(c.Request.Context(), "Invalid Host header", "host", c.Request.Host, "path", c.Request.URL.Path)
		c.Set(metrics.RouteKey, "bad_host")
		c.AbortWithStatus(http.StatusBadRequest)
	}
}

// hostAllowed matches a Host header against lower-cased patterns. "*"
// matches anything and ".example.com" matches example.com and its subdomains.
func hostAllowed(hostHeader string, patterns []string) bool {
	host := normalizeHost(hostHeader)
	if host == "" {
		return false
	}
	for _, pattern := range patterns {
		switch {
		case pattern == "*":
			return true
		case strings.HasPrefix(pattern, "."):
			if host == pattern[1:] || strings.HasSuffix(host, pattern) {
				return true
			}
		case host == pattern:
			return true
		}
	}
	return false
}

// normalizeHost lower-cases the host, strips the port and a trailing dot, and
// keeps IPv6 literals bracketed.
func normalizeHost(hostHeader string) string {
	host := strings.ToLower(strings.TrimSpace(hostHeader))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
	}
	return strings.TrimSuffix(host, ".")
}

func parseNets(cidrs []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		if _, n, err := net.ParseCIDR(cidr); err == nil {
			nets = append(nets, n)
		}
	}
	return nets
}

func fromTrustedProxy(remoteAddr string, nets []*net.IPNet) bool {
	host, _, err := net.SplitHostPort(strings.TrimSpace(remoteAddr))
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
