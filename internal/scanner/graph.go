package scanner

import (
	"sort"
	"strings"
)

// resolutionSuffixes are the extension-completed variants tried when matching
// an import target against the scanned file set.
var resolutionSuffixes = []string{".js", ".ts", ".jsx", ".tsx"}

// candidatePaths lists the file keys an extensionless import target may refer
// to: the path itself, extension-completed variants, and index files.
func candidatePaths(target string) []string {
	out := make([]string, 0, 1+2*len(resolutionSuffixes))
	out = append(out, target)
	for _, suf := range resolutionSuffixes {
		out = append(out, target+suf)
	}
	for _, suf := range resolutionSuffixes {
		out = append(out, target+"/index"+suf)
	}
	return out
}

// resolveExisting maps an import target to the file key it refers to within
// the scanned set, if any variant exists.
func resolveExisting(target string, existing map[string]struct{}) (string, bool) {
	for _, cand := range candidatePaths(target) {
		if _, ok := existing[cand]; ok {
			return cand, true
		}
	}
	return "", false
}

// BuildGraph builds the local import graph: for each file, the resolved,
// locally-existing import targets. External package imports are excluded.
func BuildGraph(files []SourceFile) map[string][]string {
	existing := make(map[string]struct{}, len(files))
	for _, f := range files {
		existing[f.Path] = struct{}{}
	}

	graph := make(map[string][]string, len(files))
	for _, f := range files {
		lang := languageForPath(f.Path)
		if lang == "" {
			continue
		}
		var edges []string
		for _, spec := range ExtractImports(f.Content, lang) {
			if !IsRelativeImport(spec) {
				continue
			}
			target := ResolvePath(f.Path, spec)
			if resolved, ok := resolveExisting(target, existing); ok && resolved != f.Path {
				edges = append(edges, resolved)
			}
		}
		graph[f.Path] = edges
	}
	return graph
}

// DetectCycles finds all import cycles via DFS with a recursion stack. Every
// node is tried as a root so isolated cycle islands are still found. Cycles
// are canonicalized by rotating to their lexicographically smallest node with
// edge order preserved, then deduplicated; the same loop discovered from two
// different roots is reported once, while two edge-distinct loops over the
// same node set stay distinct.
func DetectCycles(graph map[string][]string) []Cycle {
	roots := make([]string, 0, len(graph))
	for n := range graph {
		roots = append(roots, n)
	}
	sort.Strings(roots)

	visited := make(map[string]bool, len(graph))
	onStack := make(map[string]int, len(graph)) // node -> index in path
	var path []string

	seen := make(map[string]struct{})
	var cycles []Cycle

	var dfs func(node string)
	dfs = func(node string) {
		visited[node] = true
		onStack[node] = len(path)
		path = append(path, node)

		for _, next := range graph[node] {
			if idx, ok := onStack[next]; ok {
				loop := append([]string(nil), path[idx:]...)
				canon := canonicalizeCycle(loop)
				key := strings.Join(canon, "\x00")
				if _, dup := seen[key]; !dup {
					seen[key] = struct{}{}
					closed := make(Cycle, 0, len(canon)+1)
					closed = append(closed, canon...)
					closed = append(closed, canon[0])
					cycles = append(cycles, closed)
				}
				continue
			}
			if !visited[next] {
				dfs(next)
			}
		}

		path = path[:len(path)-1]
		delete(onStack, node)
	}

	for _, root := range roots {
		if !visited[root] {
			dfs(root)
		}
	}
	return cycles
}

// canonicalizeCycle rotates an open loop (no closing repeat) so it starts at
// its lexicographically smallest node, keeping edge order.
func canonicalizeCycle(loop []string) []string {
	min := 0
	for i := 1; i < len(loop); i++ {
		if loop[i] < loop[min] {
			min = i
		}
	}
	out := make([]string, 0, len(loop))
	out = append(out, loop[min:]...)
	out = append(out, loop[:min]...)
	return out
}

// FindMissingImports returns the local import targets for which no
// extension-completed variant exists in the file set, in order of first
// appearance.
func FindMissingImports(localTargets []string, existing map[string]struct{}) []string {
	seen := make(map[string]struct{})
	var missing []string
	for _, target := range localTargets {
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		if _, ok := resolveExisting(target, existing); !ok {
			missing = append(missing, target)
		}
	}
	return missing
}

// PackageName reduces an external specifier to its top-level package name.
// Scoped packages keep the @scope/name form.
func PackageName(spec string) string {
	if strings.HasPrefix(spec, "@") {
		parts := strings.SplitN(spec, "/", 3)
		if len(parts) >= 2 {
			return parts[0] + "/" + parts[1]
		}
		return spec
	}
	if i := strings.IndexByte(spec, '/'); i >= 0 {
		return spec[:i]
	}
	// Python dotted modules resolve to their root package.
	if i := strings.IndexByte(spec, '.'); i >= 0 {
		return spec[:i]
	}
	return spec
}

// FindMissingPackages returns external package names that are imported but
// absent from the declared dependency set.
func FindMissingPackages(externalSpecs []string, declared map[string]struct{}) []string {
	seen := make(map[string]struct{})
	var missing []string
	for _, spec := range externalSpecs {
		name := PackageName(spec)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if _, ok := declared[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
