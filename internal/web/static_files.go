package web

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/go-while/go-growfolio/internal/staticfiles"
)

const (
	cacheNone      = "no-cache"
	cacheShort     = "public, max-age=60"
	cacheImmutable = "public, max-age=31536000, immutable"

	sniffLen = 3072
)

// Vite names bundles "<name>-<8 char hash>.<ext>".
var fingerprintPattern = regexp.MustCompile(`-([A-Za-z0-9_-]{8})\.[A-Za-z0-9]+$`)

// contentTypes covers what a frontend build emits; anything else goes
// through the mime registry and then content sniffing.
var contentTypes = map[string]string{
	".ico":         "image/x-icon",
	".css":         "text/css; charset=utf-8",
	".js":          "text/javascript; charset=utf-8",
	".mjs":         "text/javascript; charset=utf-8",
	".json":        "application/json",
	".map":         "application/json",
	".webmanifest": "application/manifest+json",
	".png":         "image/png",
	".jpg":         "image/jpeg",
	".jpeg":        "image/jpeg",
	".gif":         "image/gif",
	".svg":         "image/svg+xml",
	".webp":        "image/webp",
	".avif":        "image/avif",
	".woff":        "font/woff",
	".woff2":       "font/woff2",
	".ttf":         "font/ttf",
	".otf":         "font/otf",
	".html":        "text/html; charset=utf-8",
	".xml":         "application/xml",
	".txt":         "text/plain; charset=utf-8",
	".wasm":        "application/wasm",
}

// assetStore serves files from the mounted asset root.
type assetStore struct {
	fsys     fs.FS
	manifest *staticfiles.Manifest
	// debug serves raw files only: no precompressed variants and no caching.
	debug bool
}

func newAssetStore(fsys fs.FS, debug bool) (*assetStore, error) {
	manifest, err := staticfiles.LoadManifest(fsys)
	if err != nil {
		return nil, err
	}
	return &assetStore{fsys: fsys, manifest: manifest, debug: debug}, nil
}

func (a *assetStore) serve(c *gin.Context, name string) {
	ctype := typeByExtension(name)
	f, encoding, err := a.open(name, ctype != "" && acceptsGzip(c.GetHeader("Accept-Encoding")))
	if err != nil {
		slog.WarnContext(c.Request.Context(), "Failed to open asset", "name", name, "error", err)
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "Failed to stat asset", "name", name, "error", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	content, err := readSeeker(f)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "Failed to read asset", "name", name, "error", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	if ctype == "" {
		ctype, err = sniffContentType(content)
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "Failed to sniff asset", "name", name, "error", err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
	}

	c.Header("Content-Type", ctype)
	c.Header("Cache-Control", a.cacheControl(name))
	if !a.debug {
		c.Header("Vary", "Accept-Encoding")
	}
	if encoding != "" {
		c.Header("Content-Encoding", encoding)
	}
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), content)
}

// open returns the gzip variant when allowed and present, else the file itself.
func (a *assetStore) open(name string, allowGzip bool) (fs.File, string, error) {
	if allowGzip && !a.debug && !strings.HasSuffix(name, staticfiles.GzipSuffix) {
		if f, err := a.fsys.Open(name + staticfiles.GzipSuffix); err == nil {
			return f, "gzip", nil
		}
	}
	f, err := a.fsys.Open(name)
	if err != nil {
		return nil, "", err
	}
	return f, "", nil
}

func (a *assetStore) cacheControl(name string) string {
	if a.debug {
		return cacheNone
	}
	if a.manifest.IsHashed(name) || isFingerprinted(name) {
		return cacheImmutable
	}
	return cacheShort
}

func isFingerprinted(name string) bool {
	m := fingerprintPattern.FindStringSubmatch(path.Base(name))
	if m == nil {
		return false
	}
	return strings.ContainsAny(m[1], "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ")
}

// typeByExtension returns "" when the extension is unknown.
func typeByExtension(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ext == "" {
		return ""
	}
	return mime.TypeByExtension(ext)
}

func sniffContentType(rs io.ReadSeeker) (string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(rs, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", err
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind: %w", err)
	}
	return mimetype.Detect(head[:n]).String(), nil
}

func readSeeker(f fs.File) (io.ReadSeeker, error) {
	if rs, ok := f.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// acceptsGzip reports whether an Accept-Encoding header admits gzip.
func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		coding = strings.ToLower(strings.TrimSpace(coding))
		if coding != "gzip" && coding != "*" {
			continue
		}
		if q, ok := strings.CutPrefix(strings.ReplaceAll(params, " ", ""), "q="); ok && isZeroQ(q) {
			continue
		}
		return true
	}
	return false
}

func isZeroQ(q string) bool {
	return strings.Trim(q, "0.") == "" && strings.HasPrefix(q, "0")
}
