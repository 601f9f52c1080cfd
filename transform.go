package uigen

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// sourceExts are the component source extensions, in resolution order.
var sourceExts = []string{".jsx", ".tsx", ".js", ".ts", ".mjs"}

// IsComponentSource reports whether p is compiled by the pipeline.
func IsComponentSource(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	for _, e := range sourceExts {
		if ext == e {
			return true
		}
	}
	return false
}

func isStylesheet(p string) bool {
	return strings.EqualFold(path.Ext(stripQuery(p)), ".css")
}

func stripQuery(spec string) string {
	if i := strings.IndexAny(spec, "?#"); i >= 0 {
		return spec[:i]
	}
	return spec
}

func loaderFor(p string) api.Loader {
	switch strings.ToLower(path.Ext(p)) {
	case ".ts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	default:
		// plain .js files routinely carry JSX in generated projects
		return api.LoaderJSX
	}
}

// Transpile compiles one JSX/TSX/JS/TS source file into an ES module using
// the automatic JSX runtime, with an inline source map.
func Transpile(p, source string) (string, *TransformError) {
	result := api.Transform(source, api.TransformOptions{
		Loader:     loaderFor(p),
		JSX:        api.JSXAutomatic,
		Format:     api.FormatESModule,
		Target:     api.ES2020,
		Sourcemap:  api.SourceMapInline,
		Sourcefile: p,
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		te := &TransformError{Path: p, Message: msg.Text}
		if msg.Location != nil {
			te.Line = msg.Location.Line
			te.Column = msg.Location.Column
		}
		if n := len(result.Errors); n > 1 {
			te.Message = fmt.Sprintf("%s (and %d more errors)", te.Message, n-1)
		}
		return "", te
	}
	return string(result.Code), nil
}

// ImportKind distinguishes static import/export declarations from import().
type ImportKind int

const (
	ImportStatic ImportKind = iota
	ImportDynamic
)

// ImportSite is one string-literal module specifier found in compiled code.
// Start and End delimit the specifier text without its quotes; StmtStart and
// StmtEnd delimit the enclosing declaration (static imports only).
type ImportSite struct {
	Specifier string
	Kind      ImportKind
	Start     uint32
	End       uint32
	StmtStart uint32
	StmtEnd   uint32
	// Names lists the named bindings imported or re-exported through this
	// site, excluding default and namespace imports.
	Names []string
}

// ScanImports finds every import declaration, re-export and dynamic import()
// with a string-literal specifier in ES module code. Sites are returned in
// source order.
func ScanImports(ctx context.Context, code string) ([]ImportSite, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(javascript.GetLanguage())

	// a canceled parse leaves the parser's cancel flag set; never hand it a
	// context that ends while the parse may still be watched
	content := []byte(code)
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("scan imports: %w", err)
	}
	defer tree.Close()

	var sites []ImportSite
	walkImports(tree.RootNode(), content, &sites)
	sort.Slice(sites, func(i, j int) bool { return sites[i].Start < sites[j].Start })
	return sites, nil
}

func walkImports(n *sitter.Node, content []byte, sites *[]ImportSite) {
	switch n.Type() {
	case "import_statement", "export_statement":
		if src := n.ChildByFieldName("source"); src != nil {
			if site, ok := stringSite(src, content); ok {
				site.Kind = ImportStatic
				site.StmtStart, site.StmtEnd = n.StartByte(), n.EndByte()
				site.Names = boundNames(n, content)
				*sites = append(*sites, site)
			}
			return
		}
	case "call_expression":
		fn := n.ChildByFieldName("function")
		args := n.ChildByFieldName("arguments")
		if fn != nil && fn.Type() == "import" && args != nil && args.NamedChildCount() > 0 {
			if site, ok := stringSite(args.NamedChild(0), content); ok {
				site.Kind = ImportDynamic
				*sites = append(*sites, site)
			}
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walkImports(n.NamedChild(i), content, sites)
	}
}

func stringSite(n *sitter.Node, content []byte) (ImportSite, bool) {
	if n == nil || n.Type() != "string" {
		return ImportSite{}, false
	}
	start, end := n.StartByte(), n.EndByte()
	if end-start < 2 {
		return ImportSite{}, false
	}
	return ImportSite{
		Specifier: string(content[start+1 : end-1]),
		Start:     start + 1,
		End:       end - 1,
	}, true
}

// boundNames collects the imported names of `import {a, b as c}` and the
// exported names of `export {a} from`.
func boundNames(stmt *sitter.Node, content []byte) []string {
	var names []string
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		switch n.Type() {
		case "import_specifier", "export_specifier":
			if name := n.ChildByFieldName("name"); name != nil {
				text := string(content[name.StartByte():name.EndByte()])
				if text != "default" {
					names = append(names, text)
				}
			}
			return
		case "string":
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(stmt)
	return names
}

// rewrite is the outcome of resolving one import site.
type rewrite struct {
	site ImportSite
	spec string // replacement specifier
	drop bool   // remove the whole declaration
}

// applyRewrites splices replacement specifiers into code, back to front so
// earlier offsets stay valid.
func applyRewrites(code string, rewrites []rewrite) string {
	sort.Slice(rewrites, func(i, j int) bool { return rewrites[i].site.Start > rewrites[j].site.Start })
	out := code
	for _, rw := range rewrites {
		if rw.drop && rw.site.Kind == ImportStatic {
			out = out[:rw.site.StmtStart] + out[rw.site.StmtEnd:]
			continue
		}
		if rw.spec == rw.site.Specifier {
			continue
		}
		out = out[:rw.site.Start] + rw.spec + out[rw.site.End:]
	}
	return out
}
