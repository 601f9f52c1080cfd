package uigen

import (
	"strings"
)

// RootPath is the path of the tree root directory.
const RootPath = "/"

// AliasPrefix is the reserved import prefix that resolves to the tree root.
const AliasPrefix = "@/"

// NormalizePath canonicalizes a virtual path: absolute, "/"-rooted, no "." or
// ".." segments, no duplicate or trailing separators. Backslashes are treated
// as separators. ".." segments that would climb above the root are rejected.
func NormalizePath(input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", pathErrf("normalize", input, ErrInvalidPath, "empty path")
	}
	if strings.IndexByte(input, 0) >= 0 {
		return "", pathErrf("normalize", input, ErrInvalidPath, "path contains NUL byte")
	}

	// Fast path: already canonical (common case for keys coming out of the tree)
	if isCanonical(input) {
		return input, nil
	}

	segments := make([]string, 0, strings.Count(input, "/")+1)
	for _, seg := range strings.FieldsFunc(input, isSeparator) {
		switch seg {
		case ".":
		case "..":
			if len(segments) == 0 {
				return "", pathErrf("normalize", input, ErrInvalidPath, "path escapes root")
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, seg)
		}
	}

	var builder strings.Builder
	builder.Grow(len(input) + 1)
	for _, seg := range segments {
		builder.WriteByte('/')
		builder.WriteString(seg)
	}
	if builder.Len() == 0 {
		return RootPath, nil
	}
	return builder.String(), nil
}

func isSeparator(r rune) bool { return r == '/' || r == '\\' }

// isCanonical reports whether p needs no rewriting at all.
func isCanonical(p string) bool {
	if p == RootPath {
		return true
	}
	if p[0] != '/' || p[len(p)-1] == '/' {
		return false
	}
	start := 1
	for i := 1; i <= len(p); i++ {
		if i < len(p) && p[i] == '\\' {
			return false
		}
		if i == len(p) || p[i] == '/' {
			seg := p[start:i]
			if seg == "" || seg == "." || seg == ".." {
				return false
			}
			start = i + 1
		}
	}
	return true
}

// parentPath returns the directory containing p. The parent of the root is
// the root itself.
func parentPath(p string) string {
	idx := strings.LastIndexByte(p, '/')
	if idx <= 0 {
		return RootPath
	}
	return p[:idx]
}

// baseName returns the last segment of p.
func baseName(p string) string {
	if p == RootPath {
		return ""
	}
	return p[strings.LastIndexByte(p, '/')+1:]
}

// joinPath joins a normalized directory and a child name.
func joinPath(dir, name string) string {
	if dir == RootPath {
		return "/" + name
	}
	return dir + "/" + name
}

// isWithin reports whether p is dir itself or lies inside dir.
func isWithin(p, dir string) bool {
	if dir == RootPath {
		return true
	}
	return p == dir || strings.HasPrefix(p, dir+"/")
}

// ancestors returns every proper ancestor of p from the root down, excluding
// the root.
func ancestors(p string) []string {
	var out []string
	for i := 1; i < len(p); i++ {
		if p[i] == '/' {
			out = append(out, p[:i])
		}
	}
	return out
}
