package uigen

import (
	"encoding/json"
	"net/url"
	"path"
	"sort"
	"strings"
)

// ImportMap is the browser import map of a preview document.
type ImportMap struct {
	Imports map[string]string `json:"imports"`
}

// reactPackages are always mapped, so the bootstrap and the automatic JSX
// runtime resolve even when no file imports them directly.
var reactPackages = []string{
	"react",
	"react-dom",
	"react-dom/client",
	"react/jsx-runtime",
	"react/jsx-dev-runtime",
}

// specifierKind classifies an import specifier.
type specifierKind int

const (
	specLocal specifierKind = iota // relative, absolute or "@/" alias
	specBare                       // third-party package
	specURL                        // already a URL, left alone
)

func classify(spec string) specifierKind {
	switch {
	case strings.HasPrefix(spec, AliasPrefix),
		strings.HasPrefix(spec, "/"),
		strings.HasPrefix(spec, "./"),
		strings.HasPrefix(spec, "../"),
		spec == ".", spec == "..":
		return specLocal
	case strings.Contains(spec, "://"),
		strings.HasPrefix(spec, "data:"),
		strings.HasPrefix(spec, "blob:"):
		return specURL
	default:
		return specBare
	}
}

// localTarget turns a local specifier into a tree path. importer is the
// path of the file containing the import.
func localTarget(spec, importer string) (string, error) {
	spec = stripQuery(spec)
	switch {
	case strings.HasPrefix(spec, AliasPrefix):
		return NormalizePath(spec[len(AliasPrefix)-1:])
	case strings.HasPrefix(spec, "/"):
		return NormalizePath(spec)
	default:
		return NormalizePath(parentPath(importer) + "/" + spec)
	}
}

// resolver maps local specifiers onto files of one tree snapshot.
type resolver struct {
	files map[string]string
}

// resolve finds the file a tree path refers to: the exact file, the path
// with a source extension added, or a directory index.
func (r resolver) resolve(p string) (string, bool) {
	if _, ok := r.files[p]; ok {
		return p, true
	}
	for _, ext := range sourceExts {
		if _, ok := r.files[p+ext]; ok {
			return p + ext, true
		}
	}
	for _, ext := range sourceExts {
		idx := joinPath(p, "index"+ext)
		if _, ok := r.files[idx]; ok {
			return idx, true
		}
	}
	return "", false
}

// aliasKey is the canonical import specifier of a tree path.
func aliasKey(p string) string {
	return "@" + p
}

// unresolvedKey is the specifier used for local imports that cannot be
// turned into a tree path at all.
func unresolvedKey(spec string) string {
	return AliasPrefix + "__unresolved__/" + url.PathEscape(spec)
}

// splitPackage splits a bare specifier into package name and subpath,
// e.g. "@scope/pkg/sub" -> ("@scope/pkg", "/sub").
func splitPackage(spec string) (pkg, sub string) {
	parts := strings.SplitN(spec, "/", 3)
	if strings.HasPrefix(spec, "@") && len(parts) >= 2 {
		pkg = parts[0] + "/" + parts[1]
		if len(parts) == 3 {
			sub = "/" + parts[2]
		}
		return pkg, sub
	}
	pkg = parts[0]
	if i := strings.IndexByte(spec, '/'); i >= 0 {
		sub = spec[i:]
	}
	return pkg, sub
}

func isReactPackage(pkg string) bool {
	return pkg == "react" || pkg == "react-dom"
}

// cdnResolver maps bare specifiers to CDN module URLs.
type cdnResolver struct {
	base          string
	reactVersion  string
	externalReact bool
	pins          map[string]string
}

func newCDNResolver(cfg PreviewConfig, files map[string]string) cdnResolver {
	pins := make(map[string]string, len(cfg.Pins))
	for k, v := range cfg.Pins {
		pins[k] = v
	}
	for k, v := range packageJSONPins(files) {
		pins[k] = v
	}
	return cdnResolver{
		base:          strings.TrimRight(cfg.CDNBaseURL, "/"),
		reactVersion:  cfg.ReactVersion,
		externalReact: cfg.ExternalReact,
		pins:          pins,
	}
}

// URL returns the CDN URL of a bare specifier.
func (c cdnResolver) URL(spec string) string {
	pkg, sub := splitPackage(spec)
	version := c.pins[pkg]
	if isReactPackage(pkg) && c.reactVersion != "" {
		if _, pinned := c.pins[pkg]; !pinned {
			version = c.reactVersion
		}
	}
	var b strings.Builder
	b.WriteString(c.base)
	b.WriteByte('/')
	b.WriteString(pkg)
	if version != "" && version != "*" && version != "latest" {
		b.WriteByte('@')
		b.WriteString(version)
	}
	b.WriteString(sub)
	if c.externalReact && !isReactPackage(pkg) {
		b.WriteString("?external=react,react-dom")
	}
	return b.String()
}

// packageJSONPins reads dependency versions from a root /package.json.
// Malformed manifests are ignored.
func packageJSONPins(files map[string]string) map[string]string {
	raw, ok := files["/package.json"]
	if !ok {
		return nil
	}
	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal([]byte(raw), &manifest); err != nil {
		return nil
	}
	pins := make(map[string]string)
	for k, v := range manifest.DevDependencies {
		pins[k] = strings.TrimSpace(v)
	}
	for k, v := range manifest.Dependencies {
		pins[k] = strings.TrimSpace(v)
	}
	return pins
}

// localKeys returns the import map keys under which the file at p is
// reachable: its path, its alias, the extensionless forms and, for index
// files, the directory itself. Keys another file would win during
// resolution are skipped.
func (r resolver) localKeys(p string) []string {
	keys := []string{p, aliasKey(p)}
	ext := path.Ext(p)
	if ext == "" {
		return keys
	}
	bare := strings.TrimSuffix(p, ext)
	if winner, ok := r.resolve(bare); ok && winner == p {
		if _, exact := r.files[bare]; !exact {
			keys = append(keys, bare, aliasKey(bare))
		}
	}
	if baseName(bare) == "index" {
		dir := parentPath(bare)
		if winner, ok := r.resolve(dir); ok && winner == p && dir != RootPath {
			keys = append(keys, dir, aliasKey(dir))
		}
	}
	return keys
}

// stubModule renders a module exporting a default and the given names.
// body runs first; it may throw.
func stubModule(body string, names []string) string {
	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\nexport default function () { return null; }\n")
	seen := make(map[string]bool)
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	for _, n := range sorted {
		if seen[n] || n == "default" || !isIdentifier(n) {
			continue
		}
		seen[n] = true
		if reservedWords[n] {
			// reserved words cannot be declared, only exported under an alias
			b.WriteString("const __stub_" + n + " = undefined;\nexport { __stub_" + n + " as " + n + " };\n")
			continue
		}
		b.WriteString("export const " + n + " = undefined;\n")
	}
	return b.String()
}

var reservedWords = map[string]bool{
	"await": true, "break": true, "case": true, "catch": true, "class": true,
	"const": true, "continue": true, "debugger": true, "default": true, "delete": true,
	"do": true, "else": true, "enum": true, "export": true, "extends": true,
	"false": true, "finally": true, "for": true, "function": true, "if": true,
	"implements": true, "import": true, "in": true, "instanceof": true, "interface": true,
	"let": true, "new": true, "null": true, "package": true, "private": true,
	"protected": true, "public": true, "return": true, "static": true, "super": true,
	"switch": true, "this": true, "throw": true, "true": true, "try": true,
	"typeof": true, "var": true, "void": true, "while": true, "with": true,
	"yield": true,
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// placeholderModule stands in for a local import that matches no file.
func placeholderModule(target string, names []string) string {
	return stubModule("console.warn("+jsString("Module not found: "+target)+");", names)
}

// errorModule stands in for a file whose transform failed; importing it
// throws, so the error boundary shows the failure.
func errorModule(te *TransformError, names []string) string {
	return stubModule("throw new Error("+jsString("Failed to compile "+te.Error())+");", names)
}
