package scanner

import (
	"regexp"
	"strings"
)

// Import extraction is regex-based on purpose: the scanner must stay
// best-effort on arbitrary, possibly broken source text and never reject a
// file a real parser would choke on.

var ecmascriptImportRes = []*regexp.Regexp{
	regexp.MustCompile(`import\s+(?:[\w*{}$,\s]+\s+from\s+)?['"]([^'"]+)['"]`),
	regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`),
	regexp.MustCompile(`import\(\s*['"]([^'"]+)['"]\s*\)`),
	regexp.MustCompile(`export\s+[\w*{}$,\s]+\s+from\s+['"]([^'"]+)['"]`),
}

var pythonImportRes = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*import\s+([\w.]+)`),
	regexp.MustCompile(`(?m)^\s*from\s+([\w.]+)\s+import\b`),
}

// ExtractImports returns the raw module specifiers referenced by content,
// deduplicated in order of first appearance. It does not resolve paths.
func ExtractImports(content, language string) []string {
	var res []*regexp.Regexp
	switch normalizeLanguage(language) {
	case "javascript", "typescript":
		res = ecmascriptImportRes
	case "python":
		res = pythonImportRes
	default:
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	for _, re := range res {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			if len(m) < 2 {
				continue
			}
			spec := strings.TrimSpace(m[1])
			if spec == "" {
				continue
			}
			if _, ok := seen[spec]; ok {
				continue
			}
			seen[spec] = struct{}{}
			out = append(out, spec)
		}
	}
	return out
}

// IsRelativeImport reports whether spec points into the local file tree.
func IsRelativeImport(spec string) bool {
	return strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/")
}

var nodeBuiltins = map[string]struct{}{
	"assert": {}, "buffer": {}, "child_process": {}, "cluster": {},
	"crypto": {}, "dns": {}, "events": {}, "fs": {}, "http": {},
	"https": {}, "net": {}, "os": {}, "path": {}, "querystring": {},
	"readline": {}, "stream": {}, "tls": {}, "url": {}, "util": {},
	"worker_threads": {}, "zlib": {},
}

var pythonBuiltins = map[string]struct{}{
	"abc": {}, "asyncio": {}, "collections": {}, "dataclasses": {},
	"datetime": {}, "enum": {}, "functools": {}, "io": {}, "itertools": {},
	"json": {}, "logging": {}, "math": {}, "os": {}, "pathlib": {},
	"random": {}, "re": {}, "subprocess": {}, "sys": {}, "time": {},
	"typing": {}, "unittest": {}, "uuid": {},
}

// IsBuiltinModule reports whether spec names a standard-library module of the
// given language, so it can be excluded from the external dependency set.
func IsBuiltinModule(spec, language string) bool {
	switch normalizeLanguage(language) {
	case "javascript", "typescript":
		name := strings.TrimPrefix(spec, "node:")
		if i := strings.IndexByte(name, '/'); i >= 0 {
			name = name[:i]
		}
		_, ok := nodeBuiltins[name]
		return ok
	case "python":
		name := spec
		if i := strings.IndexByte(name, '.'); i >= 0 {
			name = name[:i]
		}
		_, ok := pythonBuiltins[name]
		return ok
	}
	return false
}

// ResolvePath resolves a relative specifier against the directory of
// fromPath using pure POSIX segment collapsing. It never consults the
// filesystem. A ".." walking above the root is dropped (the path clamps at
// the root rather than erroring).
func ResolvePath(fromPath, spec string) string {
	var stack []string
	dir := ""
	if i := strings.LastIndexByte(fromPath, '/'); i >= 0 {
		dir = fromPath[:i]
	}
	if dir != "" {
		stack = strings.Split(dir, "/")
	}
	for _, seg := range strings.Split(spec, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, seg)
		}
	}
	return strings.Join(stack, "/")
}

// normalizeLanguage folds language aliases and file extensions into the
// families the extractor understands.
func normalizeLanguage(language string) string {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "javascript", "js", "jsx", ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	case "typescript", "ts", "tsx", ".ts", ".tsx":
		return "typescript"
	case "python", "py", ".py":
		return "python"
	default:
		return strings.ToLower(strings.TrimSpace(language))
	}
}

// languageForPath maps a file path to the extractor language family, or ""
// when the file is not import-scannable.
func languageForPath(path string) string {
	switch {
	case hasAnySuffix(path, ".js", ".jsx", ".mjs", ".cjs"):
		return "javascript"
	case hasAnySuffix(path, ".ts", ".tsx"):
		return "typescript"
	case strings.HasSuffix(path, ".py"):
		return "python"
	}
	return ""
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
