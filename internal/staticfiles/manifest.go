// Package staticfiles prepares and describes the production asset root:
// content-hashed copies, gzip variants and a manifest mapping original
// names to their hashed counterparts.
package staticfiles

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
)

// ManifestName is the manifest file written at the root of the collected tree.
const ManifestName = "staticfiles.json"

const manifestVersion = "1.0"

// Manifest maps original asset names to their content-hashed names.
type Manifest struct {
	Version string            `json:"version"`
	Paths   map[string]string `json:"paths"`

	hashed map[string]struct{}
}

func newManifest() *Manifest {
	return &Manifest{
		Version: manifestVersion,
		Paths:   make(map[string]string),
		hashed:  make(map[string]struct{}),
	}
}

func (m *Manifest) add(name, hashed string) {
	m.Paths[name] = hashed
	m.hashed[hashed] = struct{}{}
}

// LoadManifest reads ManifestName from fsys. A missing manifest is not an
// error; the result is simply empty.
func LoadManifest(fsys fs.FS) (*Manifest, error) {
	m := newManifest()
	data, err := fs.ReadFile(fsys, ManifestName)
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ManifestName, err)
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ManifestName, err)
	}
	if m.Paths == nil {
		m.Paths = make(map[string]string)
	}
	for name, hashed := range m.Paths {
		m.add(name, hashed)
	}
	return m, nil
}

// IsHashed reports whether name is the hashed copy of some asset.
func (m *Manifest) IsHashed(name string) bool {
	if m == nil {
		return false
	}
	_, ok := m.hashed[name]
	return ok
}

// HashedName returns the hashed counterpart of an original asset name.
func (m *Manifest) HashedName(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	hashed, ok := m.Paths[name]
	return hashed, ok
}

// Len returns the number of assets listed.
func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Paths)
}
