package uigen

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// setupBenchmarkTree creates a project-shaped tree for benchmarking
func setupBenchmarkTree(b *testing.B, components int) *Tree {
	tree := NewTree()

	var app strings.Builder
	for i := 0; i < components; i++ {
		fmt.Fprintf(&app, "import C%d from \"./components/C%d\";\n", i, i)
		p := fmt.Sprintf("/components/C%d.jsx", i)
		src := fmt.Sprintf("export default function C%d() { return <div className=\"p-%d\">Component %d</div>; }\n", i, i%8, i)
		if err := tree.CreateFile(p, src); err != nil {
			b.Fatalf("CreateFile failed: %v", err)
		}
	}
	app.WriteString("export default function App() { return <main>")
	for i := 0; i < components; i++ {
		fmt.Fprintf(&app, "<C%d />", i)
	}
	app.WriteString("</main>; }\n")
	if err := tree.CreateFile("/App.jsx", app.String()); err != nil {
		b.Fatalf("CreateFile failed: %v", err)
	}
	if err := tree.CreateFile("/styles.css", "body { margin: 0; }"); err != nil {
		b.Fatalf("CreateFile failed: %v", err)
	}
	return tree
}

// BenchmarkNormalizePath benchmarks path normalization of messy input
func BenchmarkNormalizePath(b *testing.B) {
	paths := []string{
		"/components/ui/Button.jsx",
		"components//ui/./Button.jsx",
		`\src\lib\..\App.tsx`,
		"/a/b/c/d/e/f/g/",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := NormalizePath(paths[i%len(paths)]); err != nil {
			b.Fatalf("NormalizePath failed: %v", err)
		}
	}
}

// BenchmarkCreateFile benchmarks creating files in nested directories
func BenchmarkCreateFile(b *testing.B) {
	tree := NewTree()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := fmt.Sprintf("/dir%d/sub/file%d.jsx", i%50, i)
		if err := tree.CreateFile(p, "export default 1;"); err != nil {
			b.Fatalf("CreateFile failed: %v", err)
		}
	}
}

// BenchmarkDispatchView benchmarks a read-only tool call
func BenchmarkDispatchView(b *testing.B) {
	tree := setupBenchmarkTree(b, 50)
	call := editorCall(ToolArgs{Command: CmdView, Path: "/components/C7.jsx"})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if res := Dispatch(tree, call); !res.Success {
			b.Fatalf("view failed: %s", res.Message)
		}
	}
}

// BenchmarkDispatchStrReplace benchmarks alternating edits of one file
func BenchmarkDispatchStrReplace(b *testing.B) {
	tree := setupBenchmarkTree(b, 10)
	calls := [2]ToolCall{
		editorCall(ToolArgs{Command: CmdStrReplace, Path: "/components/C3.jsx", OldStr: strPtr("Component 3"), NewStr: strPtr("Edited 3")}),
		editorCall(ToolArgs{Command: CmdStrReplace, Path: "/components/C3.jsx", OldStr: strPtr("Edited 3"), NewStr: strPtr("Component 3")}),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if res := Dispatch(tree, calls[i%2]); !res.Success {
			b.Fatalf("str_replace failed: %s", res.Message)
		}
	}
}

// BenchmarkRenameDirectory benchmarks moving a populated subtree back and forth
func BenchmarkRenameDirectory(b *testing.B) {
	tree := setupBenchmarkTree(b, 100)
	dirs := [2]string{"/components", "/widgets"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := tree.Rename(dirs[i%2], dirs[(i+1)%2]); err != nil {
			b.Fatalf("Rename failed: %v", err)
		}
	}
}

// BenchmarkSerialize benchmarks snapshotting and restoring a tree
func BenchmarkSerialize(b *testing.B) {
	tree := setupBenchmarkTree(b, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, err := MarshalSnapshot(tree)
		if err != nil {
			b.Fatalf("MarshalSnapshot failed: %v", err)
		}
		if _, err := UnmarshalSnapshot(data); err != nil {
			b.Fatalf("UnmarshalSnapshot failed: %v", err)
		}
	}
}

// BenchmarkCheckpointRollback benchmarks checkpoint rollback performance
func BenchmarkCheckpointRollback(b *testing.B) {
	ws := NewWorkspace(setupBenchmarkTree(b, 50), nil, nil, nil)
	if _, err := ws.Checkpoint("baseline"); err != nil {
		b.Fatalf("Checkpoint failed: %v", err)
	}
	modify := createCall("/App.jsx", "export default () => null;")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ws.Apply(modify)
		if err := ws.Rollback("baseline"); err != nil {
			b.Fatalf("Rollback failed: %v", err)
		}
	}
}

// BenchmarkTranspile benchmarks compiling a single component
func BenchmarkTranspile(b *testing.B) {
	src := "export default function Card({ title }) { return <section><h2>{title}</h2></section>; }"

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, te := Transpile("/Card.jsx", src); te != nil {
				b.Errorf("Transpile failed: %v", te)
				return
			}
		}
	})
}

// BenchmarkBuildCold benchmarks a full build with an empty compile cache
func BenchmarkBuildCold(b *testing.B) {
	tree := setupBenchmarkTree(b, 20)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		p, err := NewPipeline(DefaultConfig(), nil)
		if err != nil {
			b.Fatalf("NewPipeline failed: %v", err)
		}
		b.StartTimer()
		if _, err := p.Build(context.Background(), tree); err != nil {
			b.Fatalf("Build failed: %v", err)
		}
	}
}

// BenchmarkBuildIncremental benchmarks rebuilding after a single-file edit
func BenchmarkBuildIncremental(b *testing.B) {
	tree := setupBenchmarkTree(b, 20)
	p, err := NewPipeline(DefaultConfig(), nil)
	if err != nil {
		b.Fatalf("NewPipeline failed: %v", err)
	}
	if _, err := p.Build(context.Background(), tree); err != nil {
		b.Fatalf("Build failed: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		content := fmt.Sprintf("export default function C0() { return <div>%d</div>; }\n", i%4)
		if err := tree.UpdateFile("/components/C0.jsx", content); err != nil {
			b.Fatalf("UpdateFile failed: %v", err)
		}
		if _, err := p.Build(context.Background(), tree); err != nil {
			b.Fatalf("Build failed: %v", err)
		}
	}
}

// BenchmarkConcurrentApply benchmarks workspace tool calls from many goroutines
func BenchmarkConcurrentApply(b *testing.B) {
	ws := NewWorkspace(setupBenchmarkTree(b, 10), nil, nil, nil)
	view := editorCall(ToolArgs{Command: CmdView, Path: "/App.jsx"})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if res := ws.Apply(view); !res.Success {
				b.Errorf("view failed: %s", res.Message)
				return
			}
		}
	})
}
