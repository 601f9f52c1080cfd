package uigen

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// handleLen is the number of hex digits of the content hash used as handle.
const handleLen = 16

// Module is a compiled, loadable unit of code.
type Module struct {
	Handle string
	Path   string // tree path it was compiled from, or a synthetic name
	Code   string
}

// ModuleRegistry stores compiled modules under content-addressed handles so
// the browser can fetch them by URL. Identical code always gets the same
// handle. The registry is bounded; old modules are evicted first.
type ModuleRegistry struct {
	modules *lru.Cache[string, Module]
	prefix  string
}

// NewModuleRegistry creates a registry holding up to size modules. With a
// non-empty prefix, modules are addressed as prefix+handle+".js" and must be
// served by the caller; otherwise every URL is a self-contained data: URL.
func NewModuleRegistry(size int, prefix string) (*ModuleRegistry, error) {
	cache, err := lru.New[string, Module](size)
	if err != nil {
		return nil, fmt.Errorf("module registry: %w", err)
	}
	return &ModuleRegistry{modules: cache, prefix: prefix}, nil
}

// ContentHandle returns the handle code would be registered under.
func ContentHandle(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])[:handleLen]
}

// Register stores code and returns its URL.
func (r *ModuleRegistry) Register(path, code string) string {
	h := ContentHandle(code)
	if _, ok := r.modules.Get(h); !ok {
		r.modules.Add(h, Module{Handle: h, Path: path, Code: code})
	}
	return r.url(h, code)
}

func (r *ModuleRegistry) url(handle, code string) string {
	if r.prefix == "" {
		return "data:text/javascript;base64," + base64.StdEncoding.EncodeToString([]byte(code))
	}
	return r.prefix + handle + ".js"
}

// Lookup returns the module registered under handle. A trailing ".js" is
// accepted.
func (r *ModuleRegistry) Lookup(handle string) (Module, bool) {
	return r.modules.Get(strings.TrimSuffix(handle, ".js"))
}

// Inline reports whether URLs are data: URLs.
func (r *ModuleRegistry) Inline() bool { return r.prefix == "" }

// Len returns the number of registered modules.
func (r *ModuleRegistry) Len() int { return r.modules.Len() }
