package staticfiles

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/unicode/norm"
)

// hashLen is the number of hex characters of the content hash kept in names.
const hashLen = 12

// GzipSuffix is appended to the name of a precompressed variant.
const GzipSuffix = ".gz"

// Already-compressed formats gain nothing from gzip.
var skipCompress = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".avif": true,
	".zip": true, ".gz": true, ".tgz": true, ".bz2": true, ".tbz": true, ".xz": true, ".br": true,
	".swf": true, ".flv": true, ".woff": true, ".woff2": true,
	".3gp": true, ".3gpp": true, ".asf": true, ".avi": true, ".m4v": true, ".mov": true,
	".mp4": true, ".mpeg": true, ".mpg": true, ".webm": true, ".wmv": true,
}

// Options controls a Collect run.
type Options struct {
	// Clear removes the destination tree before copying.
	Clear bool
	// DryRun walks the source and reports what would be written.
	DryRun bool
}

// Result summarises a Collect run.
type Result struct {
	Copied     int
	Compressed int
	Manifest   *Manifest
}

// Collect copies every asset in src into the directory dst, adding a
// content-hashed copy of each file, gzip variants where they pay off, and
// the manifest.
func Collect(src fs.FS, dst string, opts Options) (*Result, error) {
	if opts.Clear && !opts.DryRun {
		if err := os.RemoveAll(dst); err != nil {
			return nil, fmt.Errorf("failed to clear %s: %w", dst, err)
		}
		slog.Info("Cleared static root", "dir", dst)
	}

	res := &Result{Manifest: newManifest()}
	err := fs.WalkDir(src, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == "." {
			return nil
		}
		if ignored(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if p == ManifestName {
			return nil
		}
		if precompressedVariant(src, p) {
			slog.Debug("Skipping precompressed variant", "name", p)
			return nil
		}

		content, err := fs.ReadFile(src, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		return collectFile(dst, norm.NFC.String(p), content, opts, res)
	})
	if err != nil {
		return nil, err
	}

	if !opts.DryRun {
		if err := writeManifest(dst, res.Manifest); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func collectFile(dst, name string, content []byte, opts Options, res *Result) error {
	hashed := HashedName(name, content)
	res.Manifest.add(name, hashed)
	res.Copied++

	var gz []byte
	if compressible(name) {
		compressed, err := gzipBytes(content)
		if err != nil {
			return fmt.Errorf("failed to compress %s: %w", name, err)
		}
		if len(compressed)*100 < len(content)*95 {
			gz = compressed
			res.Compressed++
		}
	}

	if opts.DryRun {
		slog.Debug("Would collect", "name", name, "hashed", hashed, "gzip", gz != nil)
		return nil
	}

	for _, target := range []string{name, hashed} {
		if err := writeFile(dst, target, content); err != nil {
			return err
		}
		if gz != nil {
			if err := writeFile(dst, target+GzipSuffix, gz); err != nil {
				return err
			}
		}
	}
	slog.Debug("Collected", "name", name, "hashed", hashed, "gzip", gz != nil)
	return nil
}

// HashedName inserts a short blake2b digest of content before the extension:
// "js/app.js" becomes "js/app.0123456789ab.js".
func HashedName(name string, content []byte) string {
	sum := blake2b.Sum256(content)
	digest := hex.EncodeToString(sum[:])[:hashLen]

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return base + "." + digest + ext
}

// precompressedVariant reports whether name is "<x>.gz" next to an existing
// "<x>". Those are regenerated, while a standalone .gz asset is collected.
func precompressedVariant(src fs.FS, name string) bool {
	orig, ok := strings.CutSuffix(name, GzipSuffix)
	if !ok || orig == "" {
		return false
	}
	info, err := fs.Stat(src, orig)
	return err == nil && info.Mode().IsRegular()
}

func ignored(name string) bool {
	return name == "CVS" || strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~")
}

func compressible(name string) bool {
	return !skipCompress[strings.ToLower(path.Ext(name))]
}

func gzipBytes(content []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(content); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFile(root, name string, data []byte) error {
	target := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func writeManifest(dst string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return writeFile(dst, ManifestName, data)
}
