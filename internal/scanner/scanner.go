package scanner

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// State is the scanner lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateScanning State = "scanning"
	StateComplete State = "complete"
	StateFailed   State = "failed"
)

// ProgressFunc receives fixed-milestone progress during a scan.
type ProgressFunc func(percent int, stage string)

// Scanner produces a Diagnosis from a file set. It is pure local analysis:
// no network, no filesystem. A Scanner holds no per-scan state beyond its
// lifecycle flag, so distinct projects can be scanned concurrently with
// distinct Scanner values.
type Scanner struct {
	mu    sync.Mutex
	state State
}

func New() *Scanner {
	return &Scanner{state: StateIdle}
}

func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scanner) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// entryPointNames are basenames treated as application entry points.
var entryPointNames = map[string]struct{}{
	"main.js": {}, "index.js": {}, "app.js": {}, "server.js": {},
	"main.ts": {}, "index.ts": {}, "app.ts": {}, "server.ts": {},
	"main.py": {}, "app.py": {}, "manage.py": {}, "main.go": {},
}

// Scan runs the full deterministic diagnosis. Stages run strictly in order:
// structure, stack, imports, cycles, issues, recommendations, score. An empty
// file set yields the documented sentinel: score 100, empty collections.
func (s *Scanner) Scan(files []SourceFile, onProgress ProgressFunc) *Diagnosis {
	s.setState(StateScanning)
	emit := func(pct int, stage string) {
		if onProgress != nil {
			onProgress(pct, stage)
		}
	}

	if len(files) == 0 {
		d := &Diagnosis{
			Summary:   "no source files scanned",
			Score:     100,
			Languages: map[string]int{},
		}
		emit(100, "complete")
		s.setState(StateComplete)
		return d
	}

	d := &Diagnosis{}

	emit(10, "structure")
	d.Structure = analyzeStructure(files)

	emit(25, "stack")
	d.Languages, d.Frameworks = DetectStack(files)

	emit(40, "imports")
	imports := analyzeImports(files)
	d.Dependencies = imports.dependencies()

	emit(55, "cycles")
	d.CircularDeps = DetectCycles(BuildGraph(files))

	emit(70, "issues")
	d.Issues = scanIssues(files)

	emit(85, "recommendations")
	d.Recommendations = GenerateRecommendations(d)

	emit(95, "score")
	d.Score = CalculateScore(d.Issues, d.CircularDeps, d.Dependencies.Missing, d.Recommendations)
	d.Summary = summarize(d)

	emit(100, "complete")
	s.setState(StateComplete)
	return d
}

func analyzeStructure(files []SourceFile) Structure {
	st := Structure{TotalFiles: len(files)}
	dirSet := make(map[string]struct{})
	for _, f := range files {
		if f.Content != "" {
			st.TotalLines += strings.Count(f.Content, "\n") + 1
		}
		if i := strings.LastIndexByte(f.Path, '/'); i > 0 {
			dirSet[f.Path[:i]] = struct{}{}
		}
		if _, ok := entryPointNames[baseOf(f.Path)]; ok {
			st.EntryPoints = append(st.EntryPoints, f.Path)
		}
	}
	st.Directories = make([]string, 0, len(dirSet))
	for d := range dirSet {
		st.Directories = append(st.Directories, d)
	}
	sort.Strings(st.Directories)
	sort.Strings(st.EntryPoints)
	return st
}

// importAnalysis collects the raw import surface of a file set.
type importAnalysis struct {
	external       []string // external specifiers, first-appearance order
	localTargets   []string // resolved relative targets
	existing       map[string]struct{}
	declared       map[string]struct{}
	externalSet    map[string]struct{}
	declaredOrder  []string
	importedByName map[string]struct{}
}

func analyzeImports(files []SourceFile) *importAnalysis {
	a := &importAnalysis{
		existing:       make(map[string]struct{}, len(files)),
		declared:       make(map[string]struct{}),
		externalSet:    make(map[string]struct{}),
		importedByName: make(map[string]struct{}),
	}
	for _, f := range files {
		a.existing[f.Path] = struct{}{}
	}
	for _, f := range files {
		switch baseOf(f.Path) {
		case "package.json":
			for _, name := range parsePackageJSONDeps(f.Content) {
				if _, dup := a.declared[name]; !dup {
					a.declared[name] = struct{}{}
					a.declaredOrder = append(a.declaredOrder, name)
				}
			}
		case "requirements.txt":
			for _, name := range parseRequirements(f.Content) {
				if _, dup := a.declared[name]; !dup {
					a.declared[name] = struct{}{}
					a.declaredOrder = append(a.declaredOrder, name)
				}
			}
		}
	}
	for _, f := range files {
		lang := languageForPath(f.Path)
		if lang == "" {
			continue
		}
		for _, spec := range ExtractImports(f.Content, lang) {
			if IsRelativeImport(spec) {
				a.localTargets = append(a.localTargets, ResolvePath(f.Path, spec))
				continue
			}
			if IsBuiltinModule(spec, lang) {
				continue
			}
			if _, dup := a.externalSet[spec]; !dup {
				a.externalSet[spec] = struct{}{}
				a.external = append(a.external, spec)
			}
			a.importedByName[PackageName(spec)] = struct{}{}
		}
	}
	return a
}

func (a *importAnalysis) dependencies() Dependencies {
	deps := Dependencies{}
	seen := make(map[string]struct{})
	for _, spec := range a.external {
		name := PackageName(spec)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		deps.External = append(deps.External, name)
	}
	deps.Missing = append(deps.Missing, FindMissingImports(a.localTargets, a.existing)...)
	deps.Missing = append(deps.Missing, FindMissingPackages(a.external, a.declared)...)
	for _, name := range a.declaredOrder {
		if _, used := a.importedByName[name]; !used {
			deps.Unused = append(deps.Unused, name)
		}
	}
	return deps
}

func parsePackageJSONDeps(content string) []string {
	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal([]byte(content), &manifest); err != nil {
		return nil
	}
	var names []string
	for name := range manifest.Dependencies {
		names = append(names, name)
	}
	for name := range manifest.DevDependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func parseRequirements(content string) []string {
	var names []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		name := line
		for _, sep := range []string{"==", ">=", "<=", "~=", ">", "<", "[", ";", " "} {
			if i := strings.Index(name, sep); i >= 0 {
				name = name[:i]
			}
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func scanIssues(files []SourceFile) []Issue {
	var issues []Issue
	for _, f := range files {
		lang := languageForPath(f.Path)
		if lang == "" {
			continue
		}
		issues = append(issues, DetectIssues(f.Content, lang, f.Path)...)
	}
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Severity.Rank() < issues[j].Severity.Rank()
	})
	return issues
}

// GenerateRecommendations derives advice from diagnosis counts. Rules are
// evaluated in fixed order and are independent of one another, so the output
// order is stable for a given Diagnosis.
func GenerateRecommendations(d *Diagnosis) []Recommendation {
	var recs []Recommendation

	countByType := make(map[IssueType]int)
	for _, iss := range d.Issues {
		countByType[iss.Type]++
	}

	if countByType[IssueSecurity] > 0 {
		recs = append(recs, Recommendation{
			Priority:    PriorityCritical,
			Category:    "security",
			Title:       "Fix security vulnerabilities",
			Description: fmt.Sprintf("%d potential security issue(s) were flagged.", countByType[IssueSecurity]),
			Action:      "Review flagged locations; remove hardcoded secrets and dynamic evaluation.",
		})
	}
	if len(d.CircularDeps) > 0 {
		recs = append(recs, Recommendation{
			Priority:    PriorityHigh,
			Category:    "architecture",
			Title:       "Resolve circular dependencies",
			Description: fmt.Sprintf("%d import cycle(s) were detected.", len(d.CircularDeps)),
			Action:      "Break each cycle by extracting shared code into a separate module.",
		})
	}
	if len(d.Dependencies.Missing) > 0 {
		recs = append(recs, Recommendation{
			Priority:    PriorityHigh,
			Category:    "dependencies",
			Title:       "Fix missing dependencies",
			Description: fmt.Sprintf("%d import(s) could not be resolved.", len(d.Dependencies.Missing)),
			Action:      "Add the missing files or declare the missing packages in the manifest.",
		})
	}
	if countByType[IssueErrorHandling] > 0 {
		recs = append(recs, Recommendation{
			Priority:    PriorityMedium,
			Category:    "reliability",
			Title:       "Improve error handling",
			Description: fmt.Sprintf("%d empty error handler(s) were found.", countByType[IssueErrorHandling]),
			Action:      "Handle or propagate errors instead of swallowing them.",
		})
	}
	if countByType[IssueDebug] > 5 {
		recs = append(recs, Recommendation{
			Priority:    PriorityLow,
			Category:    "hygiene",
			Title:       "Remove debug statements",
			Description: fmt.Sprintf("%d debug statement(s) remain in the code.", countByType[IssueDebug]),
			Action:      "Strip debug output or route it through a logger.",
		})
	}
	if !hasTestFramework(d) && d.Structure.TotalFiles > 10 {
		recs = append(recs, Recommendation{
			Priority:    PriorityMedium,
			Category:    "testing",
			Title:       "Add test coverage",
			Description: "No test framework was detected in a non-trivial codebase.",
			Action:      "Introduce a test framework and cover the core paths.",
		})
	}
	if d.Languages["JavaScript"] > 0 && d.Languages["TypeScript"] == 0 && d.Structure.TotalFiles > 20 {
		recs = append(recs, Recommendation{
			Priority:    PriorityLow,
			Category:    "type-safety",
			Title:       "Consider TypeScript",
			Description: "A larger JavaScript codebase has no TypeScript.",
			Action:      "Migrate incrementally, starting with shared modules.",
		})
	}
	return recs
}

func hasTestFramework(d *Diagnosis) bool {
	for _, fw := range d.Frameworks {
		if _, ok := testFrameworks[fw]; ok {
			return true
		}
	}
	return false
}

const scoredIssueLimit = 20

// CalculateScore computes the 0-100 health score. It is a pure function of
// its inputs: issues contribute per-severity penalties for at most the first
// scoredIssueLimit entries in severity order, each cycle costs 8, each missing
// dependency 5, and each critical recommendation 10. The result clamps to
// [0,100].
func CalculateScore(issues []Issue, cycles []Cycle, missing []string, recs []Recommendation) int {
	score := 100
	for i, iss := range issues {
		if i >= scoredIssueLimit {
			break
		}
		switch iss.Severity {
		case SeverityHigh:
			score -= 10
		case SeverityMedium:
			score -= 5
		case SeverityLow:
			score -= 2
		}
	}
	score -= 8 * len(cycles)
	score -= 5 * len(missing)
	for _, r := range recs {
		if r.Priority == PriorityCritical {
			score -= 10
		}
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func summarize(d *Diagnosis) string {
	return fmt.Sprintf(
		"Scanned %d files (%d lines) across %d language(s); found %d issue(s), %d circular dependency cycle(s), %d missing dependency reference(s). Health score %d/100.",
		d.Structure.TotalFiles, d.Structure.TotalLines, len(d.Languages),
		len(d.Issues), len(d.CircularDeps), len(d.Dependencies.Missing), d.Score,
	)
}
