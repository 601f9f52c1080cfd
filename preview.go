package uigen

import (
	"encoding/json"
	"html"
	"sort"
	"strings"
	"text/template"
)

// entryCandidates are tried in order when choosing the root component.
var entryCandidates = []string{
	"/App.jsx", "/App.tsx", "/App.js", "/App.ts",
	"/index.jsx", "/index.tsx", "/index.js", "/index.ts",
	"/src/App.jsx", "/src/App.tsx", "/src/App.js", "/src/App.ts",
	"/src/index.jsx", "/src/index.tsx", "/src/index.js", "/src/index.ts",
}

// FindEntry picks the entry module among the given file paths: a
// conventional App or index file, else the first component source in path
// order. It returns "" when there is none.
func FindEntry(files map[string]string) string {
	for _, c := range entryCandidates {
		if _, ok := files[c]; ok {
			return c
		}
	}
	paths := make([]string, 0, len(files))
	for p := range files {
		if IsComponentSource(p) {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return ""
	}
	sort.Strings(paths)
	return paths[0]
}

type documentData struct {
	Title      string
	StylingURL string
	ImportMap  string
	Styles     []string
	Errors     []*TransformError
	Entry      string
	EntrySpec  string
	LiveReload bool
}

var documentTemplate = template.Must(template.New("preview").Funcs(template.FuncMap{
	"esc":   html.EscapeString,
	"style": escapeStyle,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{esc .Title}}</title>
{{- if .StylingURL}}
<script src="{{esc .StylingURL}}"></script>
{{- end}}
<script type="importmap">{{.ImportMap}}</script>
{{- range .Styles}}
<style>{{style .}}</style>
{{- end}}
<style>
  #preview-errors { font-family: ui-monospace, monospace; background: #fef2f2; color: #991b1b; padding: 12px; border-bottom: 1px solid #fecaca; }
  #preview-errors pre { white-space: pre-wrap; margin: 4px 0; }
</style>
</head>
<body>
{{- if .Errors}}
<div id="preview-errors" role="alert">
<strong>Transform errors</strong>
{{- range .Errors}}
<pre data-path="{{esc .Path}}">{{esc .Error}}</pre>
{{- end}}
</div>
{{- end}}
<div id="root"{{if .Entry}} data-entry="{{esc .Entry}}"{{end}}></div>
{{- if .EntrySpec}}
<script type="module">
import React from "react";
import { createRoot } from "react-dom/client";

function ErrorPanel({ error }) {
  const text = error && (error.stack || error.message) ? (error.stack || error.message) : String(error);
  return React.createElement("div", { className: "p-4 m-4 rounded border border-red-300 bg-red-50 text-red-800" },
    React.createElement("h2", { className: "font-semibold mb-2" }, "Preview error"),
    React.createElement("pre", { className: "whitespace-pre-wrap text-sm" }, text));
}

class ErrorBoundary extends React.Component {
  constructor(props) {
    super(props);
    this.state = { error: null };
  }
  static getDerivedStateFromError(error) {
    return { error };
  }
  componentDidCatch(error, info) {
    console.error(error, info);
  }
  render() {
    if (this.state.error) {
      return React.createElement(ErrorPanel, { error: this.state.error });
    }
    return this.props.children;
  }
}

const root = createRoot(document.getElementById("root"));
try {
  const mod = await import({{.EntrySpec}});
  const App = mod.default;
  if (typeof App !== "function" && (typeof App !== "object" || App === null)) {
    throw new Error({{.EntrySpec}} + " has no default export to render");
  }
  root.render(React.createElement(ErrorBoundary, null, React.createElement(App)));
} catch (error) {
  root.render(React.createElement(ErrorPanel, { error }));
}
</script>
{{- else}}
<div class="p-4 text-gray-500">No component to preview. Create /App.jsx to get started.</div>
{{- end}}
{{- if .LiveReload}}
<script>
(() => {
  const proto = location.protocol === "https:" ? "wss:" : "ws:";
  const ws = new WebSocket(proto + "//" + location.host + "/ws");
  ws.onmessage = () => location.reload();
})();
</script>
{{- end}}
</body>
</html>
`))

// escapeStyle keeps stylesheet text from closing its <style> element.
func escapeStyle(css string) string {
	return strings.NewReplacer("</style", `<\/style`, "</STYLE", `<\/STYLE`).Replace(css)
}

// renderDocument assembles the preview HTML. The import map is encoded with
// HTML-safe escaping, so it can sit inside a script element.
func renderDocument(data documentData, imports ImportMap) (string, error) {
	raw, err := json.Marshal(imports)
	if err != nil {
		return "", err
	}
	data.ImportMap = string(raw)
	var b strings.Builder
	if err := documentTemplate.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
