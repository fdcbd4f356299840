package scanner

import (
	"reflect"
	"testing"
)

func jsFile(path string, imports ...string) SourceFile {
	content := ""
	for _, spec := range imports {
		content += "import x from '" + spec + "';\n"
	}
	return SourceFile{Path: path, Content: content}
}

func TestBuildGraph_ResolvesLocalEdgesOnly(t *testing.T) {
	files := []SourceFile{
		jsFile("src/a.js", "./b", "react"),
		jsFile("src/b.js", "../lib/c", "fs"),
		jsFile("lib/c.js"),
	}
	graph := BuildGraph(files)

	if want := []string{"src/b.js"}; !reflect.DeepEqual(graph["src/a.js"], want) {
		t.Errorf("edges(src/a.js) = %v, want %v", graph["src/a.js"], want)
	}
	if want := []string{"lib/c.js"}; !reflect.DeepEqual(graph["src/b.js"], want) {
		t.Errorf("edges(src/b.js) = %v, want %v", graph["src/b.js"], want)
	}
	if graph["lib/c.js"] != nil {
		t.Errorf("edges(lib/c.js) = %v, want nil", graph["lib/c.js"])
	}
}

func TestDetectCycles_SingleCycleAnyRoot(t *testing.T) {
	files := []SourceFile{
		jsFile("a.js", "./b"),
		jsFile("b.js", "./c"),
		jsFile("c.js", "./a"),
	}
	cycles := DetectCycles(BuildGraph(files))
	if len(cycles) != 1 {
		t.Fatalf("got %d cycles %v, want 1", len(cycles), cycles)
	}
	want := Cycle{"a.js", "b.js", "c.js", "a.js"}
	if !reflect.DeepEqual(cycles[0], want) {
		t.Fatalf("cycle = %v, want %v", cycles[0], want)
	}
}

func TestDetectCycles_TwoDisjointCycles(t *testing.T) {
	files := []SourceFile{
		jsFile("a.js", "./b"),
		jsFile("b.js", "./a"),
		jsFile("p/x.js", "./y"),
		jsFile("p/y.js", "./x"),
	}
	cycles := DetectCycles(BuildGraph(files))
	if len(cycles) != 2 {
		t.Fatalf("got %d cycles %v, want 2", len(cycles), cycles)
	}
}

func TestDetectCycles_Acyclic(t *testing.T) {
	files := []SourceFile{
		jsFile("a.js", "./b", "./c"),
		jsFile("b.js", "./c"),
		jsFile("c.js"),
	}
	if cycles := DetectCycles(BuildGraph(files)); len(cycles) != 0 {
		t.Fatalf("got cycles %v in acyclic graph", cycles)
	}
}

func TestDetectCycles_IsolatedCycleIsland(t *testing.T) {
	// The cycle is unreachable from the acyclic part of the graph.
	files := []SourceFile{
		jsFile("main.js", "./util"),
		jsFile("util.js"),
		jsFile("z/p.js", "./q"),
		jsFile("z/q.js", "./p"),
	}
	cycles := DetectCycles(BuildGraph(files))
	if len(cycles) != 1 {
		t.Fatalf("got %d cycles %v, want 1", len(cycles), cycles)
	}
}

func TestDetectCycles_DeduplicationIdempotence(t *testing.T) {
	files := []SourceFile{
		jsFile("a.js", "./b"),
		jsFile("b.js", "./a"),
	}
	graph := BuildGraph(files)
	first := DetectCycles(graph)
	second := DetectCycles(graph)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("DetectCycles not deterministic: %v vs %v", first, second)
	}
	if len(first) != 1 {
		t.Fatalf("got %d cycles, want 1", len(first))
	}
}

func TestDetectCycles_ClosedLoopInvariant(t *testing.T) {
	files := []SourceFile{
		jsFile("m.js", "./n"),
		jsFile("n.js", "./o"),
		jsFile("o.js", "./m"),
	}
	for _, c := range DetectCycles(BuildGraph(files)) {
		if len(c) < 2 || c[0] != c[len(c)-1] {
			t.Fatalf("cycle %v is not a closed loop", c)
		}
	}
}

func TestFindMissingImports(t *testing.T) {
	existing := map[string]struct{}{
		"src/a.js": {}, "src/b.ts": {}, "src/dir/index.js": {},
	}
	targets := []string{"src/a", "src/b", "src/dir", "src/gone", "src/gone"}
	got := FindMissingImports(targets, existing)
	want := []string{"src/gone"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FindMissingImports = %v, want %v", got, want)
	}
}

func TestPackageName(t *testing.T) {
	cases := []struct {
		spec string
		want string
	}{
		{"react", "react"},
		{"react-dom/client", "react-dom"},
		{"@scope/pkg", "@scope/pkg"},
		{"@scope/pkg/deep", "@scope/pkg"},
		{"os.path", "os"},
		{"lodash", "lodash"},
	}
	for _, tc := range cases {
		if got := PackageName(tc.spec); got != tc.want {
			t.Errorf("PackageName(%q) = %q, want %q", tc.spec, got, tc.want)
		}
	}
}

func TestFindMissingPackages(t *testing.T) {
	declared := map[string]struct{}{"react": {}, "lodash": {}}
	specs := []string{"react", "react-dom/client", "lodash", "@scope/pkg/deep"}
	got := FindMissingPackages(specs, declared)
	want := []string{"react-dom", "@scope/pkg"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FindMissingPackages = %v, want %v", got, want)
	}
}
