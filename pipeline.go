package uigen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Preview is the output of one pipeline run.
type Preview struct {
	HTML       string            `json:"html"`
	Entry      string            `json:"entry,omitempty"`
	ImportMap  ImportMap         `json:"importMap"`
	Errors     []*TransformError `json:"errors,omitempty"`
	Modules    map[string]string `json:"modules"` // tree path -> module URL
	Generation uint64            `json:"generation"`
}

// compiled is the cached, tree-independent part of compiling one file.
type compiled struct {
	code  string
	sites []ImportSite
	err   *TransformError
}

// Pipeline turns file trees into preview documents. Compilation results
// are cached by path and content, so rebuilding after a single edit only
// recompiles the edited file. A Pipeline is safe for concurrent use.
type Pipeline struct {
	cfg        PreviewConfig
	workers    int
	liveReload bool
	registry   *ModuleRegistry
	cache      *lru.Cache[string, compiled]
	logger     *zap.Logger
}

// NewPipeline creates a pipeline from cfg. A nil logger disables logging.
func NewPipeline(cfg *Config, logger *zap.Logger) (*Pipeline, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	registry, err := NewModuleRegistry(cfg.Compiler.RegistryEntries, cfg.Preview.ModulePrefix)
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[string, compiled](cfg.Compiler.CacheEntries)
	if err != nil {
		return nil, fmt.Errorf("compile cache: %w", err)
	}
	workers := cfg.Compiler.Workers
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		cfg:        cfg.Preview,
		workers:    workers,
		liveReload: cfg.Server.LiveReload && cfg.Preview.ModulePrefix != "",
		registry:   registry,
		cache:      cache,
		logger:     logger.Named("pipeline"),
	}, nil
}

// Registry returns the registry holding the compiled modules.
func (p *Pipeline) Registry() *ModuleRegistry { return p.registry }

// Build compiles the current state of tree, working on a copy of its files.
func (p *Pipeline) Build(ctx context.Context, tree *Tree) (*Preview, error) {
	return p.BuildFiles(ctx, tree.Files(), tree.Generation())
}

// BuildFiles compiles a set of files keyed by normalized path. Transform
// errors are reported per file in the result; the returned error is only
// set when ctx is done.
func (p *Pipeline) BuildFiles(ctx context.Context, files map[string]string, generation uint64) (*Preview, error) {
	start := time.Now()

	sources := make([]string, 0, len(files))
	for f := range files {
		if IsComponentSource(f) {
			sources = append(sources, f)
		}
	}
	sort.Strings(sources)

	results := make([]compiled, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := p.compile(gctx, src, files[src])
			if err != nil {
				return err
			}
			results[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	preview, err := p.link(files, sources, results)
	if err != nil {
		return nil, err
	}
	preview.Generation = generation

	p.logger.Debug("preview built",
		zap.Uint64("generation", generation),
		zap.Int("modules", len(sources)),
		zap.Int("errors", len(preview.Errors)),
		zap.String("entry", preview.Entry),
		zap.Duration("duration", time.Since(start)))
	return preview, nil
}

func cacheKey(p, content string) string {
	h := sha256.New()
	h.Write([]byte(p))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

func (p *Pipeline) compile(ctx context.Context, src, content string) (compiled, error) {
	key := cacheKey(src, content)
	if c, ok := p.cache.Get(key); ok {
		return c, nil
	}
	code, te := Transpile(src, content)
	if te != nil {
		p.logger.Debug("transform failed", zap.String("path", src), zap.Error(te))
		c := compiled{err: te}
		p.cache.Add(key, c)
		return c, nil
	}
	sites, err := ScanImports(ctx, code)
	if err != nil {
		return compiled{}, err
	}
	c := compiled{code: code, sites: sites}
	p.cache.Add(key, c)
	return c, nil
}

// stub collects what a placeholder or error module has to export.
type stub struct {
	target string
	names  []string
}

// link resolves every import site against the file set, registers the
// modules and renders the document.
func (p *Pipeline) link(files map[string]string, sources []string, results []compiled) (*Preview, error) {
	res := resolver{files: files}
	cdn := newCDNResolver(p.cfg, files)

	imports := make(map[string]string)
	for _, pkg := range reactPackages {
		imports[pkg] = cdn.URL(pkg)
	}

	failed := make(map[string]*stub)
	for i, src := range sources {
		if te := results[i].err; te != nil {
			failed[src] = &stub{target: src}
		}
	}
	missing := make(map[string]*stub)
	dataModules := make(map[string]string)

	type linked struct{ path, code string }
	var modules []linked
	var errs []*TransformError

	for i, src := range sources {
		c := results[i]
		if c.err != nil {
			errs = append(errs, c.err)
			continue
		}
		rewrites := make([]rewrite, 0, len(c.sites))
		for _, site := range c.sites {
			rw := rewrite{site: site, spec: site.Specifier}
			switch classify(site.Specifier) {
			case specLocal:
				p.resolveLocal(&rw, src, res, failed, missing, dataModules)
			case specBare:
				if isStylesheet(site.Specifier) {
					dropStylesheet(&rw, dataModules)
					break
				}
				if _, ok := imports[site.Specifier]; !ok {
					imports[site.Specifier] = cdn.URL(site.Specifier)
				}
			}
			rewrites = append(rewrites, rw)
		}
		modules = append(modules, linked{path: src, code: applyRewrites(c.code, rewrites)})
	}

	out := &Preview{Modules: make(map[string]string)}
	register := func(modPath, code string) {
		url := p.registry.Register(modPath, code)
		out.Modules[modPath] = url
		for _, k := range res.localKeys(modPath) {
			imports[k] = url
		}
	}
	for _, m := range modules {
		register(m.path, m.code)
	}
	for i, src := range sources {
		if te := results[i].err; te != nil {
			register(src, errorModule(te, failed[src].names))
		}
	}
	for modPath, code := range dataModules {
		register(modPath, code)
	}
	for key, s := range missing {
		imports[key] = p.registry.Register(key, placeholderModule(s.target, s.names))
	}

	var styles []string
	for f := range files {
		if isStylesheet(f) {
			styles = append(styles, f)
		}
	}
	sort.Strings(styles)
	for i, f := range styles {
		styles[i] = files[f]
	}

	out.ImportMap = ImportMap{Imports: imports}
	out.Errors = errs
	out.Entry = FindEntry(files)

	data := documentData{
		Title:      p.cfg.Title,
		StylingURL: p.cfg.StylingURL,
		Styles:     styles,
		Errors:     errs,
		Entry:      out.Entry,
		LiveReload: p.liveReload,
	}
	if out.Entry != "" {
		data.EntrySpec = jsString(aliasKey(out.Entry))
	}
	html, err := renderDocument(data, out.ImportMap)
	if err != nil {
		return nil, fmt.Errorf("render preview: %w", err)
	}
	out.HTML = html
	return out, nil
}

// resolveLocal rewrites a relative, absolute or aliased specifier to the
// canonical "@/" form of the file it resolves to, recording placeholders
// for imports that resolve to nothing.
// stylesheetModulePath is the empty module dynamic stylesheet imports
// resolve to; stylesheets themselves are inlined into the document.
const stylesheetModulePath = "/__uigen__/stylesheet.js"

// dropStylesheet removes a static stylesheet import, or points a dynamic one
// at the empty stylesheet module.
func dropStylesheet(rw *rewrite, dataModules map[string]string) {
	if rw.site.Kind == ImportDynamic {
		rw.spec = aliasKey(stylesheetModulePath)
		dataModules[stylesheetModulePath] = "export default \"\";\n"
		return
	}
	rw.drop = true
}

func (p *Pipeline) resolveLocal(rw *rewrite, importer string, res resolver, failed, missing map[string]*stub, dataModules map[string]string) {
	site := rw.site
	addMissing := func(key, target string) {
		s, ok := missing[key]
		if !ok {
			s = &stub{target: target}
			missing[key] = s
		}
		s.names = append(s.names, site.Names...)
		rw.spec = key
	}

	target, err := localTarget(site.Specifier, importer)
	if err != nil {
		addMissing(unresolvedKey(site.Specifier), site.Specifier)
		return
	}
	if isStylesheet(target) {
		dropStylesheet(rw, dataModules)
		return
	}
	resolved, ok := res.resolve(target)
	if !ok {
		addMissing(aliasKey(target), target)
		return
	}
	switch {
	case isStylesheet(resolved):
		dropStylesheet(rw, dataModules)
		return
	case IsComponentSource(resolved):
		if s, ok := failed[resolved]; ok {
			s.names = append(s.names, site.Names...)
		}
	case strings.EqualFold(path.Ext(resolved), ".json") && json.Valid([]byte(res.files[resolved])):
		dataModules[resolved] = "export default " + strings.TrimSpace(res.files[resolved]) + ";\n"
	default:
		addMissing(aliasKey(resolved), resolved)
		return
	}
	rw.spec = aliasKey(resolved)
}
