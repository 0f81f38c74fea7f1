package web

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
)

// indexDocument is the SPA entry point returned for every non-asset path.
type indexDocument struct {
	path string
	// reload re-reads the file on every request (debug) instead of serving
	// the copy loaded at startup.
	reload bool

	content []byte
	modTime time.Time
}

// loadIndexDocument reads the index once. A missing or unreadable index is
// a configuration error the caller must not recover from.
func loadIndexDocument(path string, reload bool) (*indexDocument, error) {
	content, modTime, err := readIndex(path)
	if err != nil {
		return nil, err
	}
	return &indexDocument{path: path, reload: reload, content: content, modTime: modTime}, nil
}

func readIndex(path string) ([]byte, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("index document %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, time.Time{}, fmt.Errorf("index document %s is not a regular file", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("index document %s: %w", path, err)
	}
	return content, info.ModTime(), nil
}

func (d *indexDocument) load() ([]byte, time.Time, error) {
	if !d.reload {
		return d.content, d.modTime, nil
	}
	return readIndex(d.path)
}

func (d *indexDocument) serve(c *gin.Context) {
	content, modTime, err := d.load()
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "Failed to read index document", "path", d.path, "error", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	http.ServeContent(c.Writer, c.Request, "index.html", modTime, bytes.NewReader(content))
}
