package web

import (
	"io/fs"
	"strings"
)

// RouteKind is the outcome of resolving a request path.
type RouteKind int

const (
	// ServeIndexDocument hands the path to the client-side router.
	ServeIndexDocument RouteKind = iota
	// ServeStaticFile serves a prebuilt asset verbatim.
	ServeStaticFile
	// AssetNotFound answers 404 for a path under the static prefix that
	// names no regular file.
	AssetNotFound
)

func (k RouteKind) String() string {
	switch k {
	case ServeStaticFile:
		return "asset"
	case AssetNotFound:
		return "asset_not_found"
	default:
		return "index"
	}
}

// Decision is the result of RouteTable.Resolve. Name is the asset path
// relative to the asset root and is empty for index decisions.
type Decision struct {
	Kind RouteKind
	Name string
}

// RouteTable holds the two routing rules: the static-prefix rule, present
// only when an asset directory is mounted, and the catch-all rule that is
// evaluated last.
type RouteTable struct {
	prefix string
	assets fs.FS
}

// NewRouteTable builds a route table. A nil assets FS omits the static rule,
// so every path resolves to the index document.
func NewRouteTable(prefix string, assets fs.FS) *RouteTable {
	return &RouteTable{prefix: prefix, assets: assets}
}

// Prefix returns the static URL prefix.
func (t *RouteTable) Prefix() string {
	return t.prefix
}

// HasStaticRule reports whether an asset directory is mounted.
func (t *RouteTable) HasStaticRule() bool {
	return t.assets != nil
}

// Resolve maps a request path to a routing decision.
func (t *RouteTable) Resolve(requestPath string) Decision {
	if t.assets == nil || !strings.HasPrefix(requestPath, t.prefix) {
		return Decision{Kind: ServeIndexDocument}
	}

	name := strings.TrimPrefix(requestPath, t.prefix)
	if name == "" || !fs.ValidPath(name) {
		return Decision{Kind: AssetNotFound, Name: name}
	}
	info, err := fs.Stat(t.assets, name)
	if err != nil || !info.Mode().IsRegular() {
		return Decision{Kind: AssetNotFound, Name: name}
	}
	return Decision{Kind: ServeStaticFile, Name: name}
}
