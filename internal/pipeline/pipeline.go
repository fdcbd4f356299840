package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"brainlane/internal/llmclient"
	"brainlane/internal/scanner"
)

// State is the pipeline lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StatePaused    State = "paused"
	StateFailed    State = "failed"
)

// Stage names, in execution order.
const (
	StageUnderstanding = "understanding"
	StageFeatures      = "features"
	StageCompletions   = "completions"
	StagePackaging     = "packaging"
)

var stageOrder = []string{StageUnderstanding, StageFeatures, StageCompletions, StagePackaging}

// Options controls a single pipeline run.
type Options struct {
	// StopAfterStage pauses the run after the named stage completes.
	StopAfterStage string
	// SkipStages omits the named stages entirely.
	SkipStages []string
	// OnProgress receives (stage, percent) as stages begin and finish.
	OnProgress func(stage string, percent int)
}

// Feature is one entry of the stage-2 gap report.
type Feature struct {
	Name          string   `json:"name"`
	Status        string   `json:"status"`
	Priority      string   `json:"priority"`
	Effort        string   `json:"effort"`
	Dependencies  []string `json:"dependencies"`
	AffectedFiles []string `json:"affectedFiles"`
}

// FeatureReport is the parsed stage-2 output plus the local diagnosis it was
// derived from.
type FeatureReport struct {
	Features       []Feature          `json:"features"`
	CriticalPath   []string           `json:"criticalPath"`
	ReadinessScore int                `json:"readinessScore"`
	Diagnosis      *scanner.Diagnosis `json:"diagnosis,omitempty"`
}

// FeatureOutcome records how generation went for one feature in stage 3.
type FeatureOutcome struct {
	Feature string `json:"feature"`
	Status  string `json:"status"` // "ok" or "error"
	Error   string `json:"error,omitempty"`
	Files   int    `json:"files"`
}

// CompletionReport is the stage-3 output: generated files plus the
// per-feature summary, including absorbed failures.
type CompletionReport struct {
	Files   []GeneratedFile  `json:"files"`
	Summary []FeatureOutcome `json:"summary"`
}

// PackagingReport is the stage-4 output: deployment files merged with every
// file generated in stage 3.
type PackagingReport struct {
	Files        []GeneratedFile `json:"files"`
	ReadyToBuild bool            `json:"readyToBuild"`
}

// Result accumulates stage outputs append-only. A failed run surfaces the
// partial object with Error set.
type Result struct {
	Understanding json.RawMessage   `json:"understanding,omitempty"`
	Features      *FeatureReport    `json:"features,omitempty"`
	Completions   *CompletionReport `json:"completions,omitempty"`
	Packaging     *PackagingReport  `json:"packaging,omitempty"`
	Error         string            `json:"error,omitempty"`
}

const (
	representativeFileLimit = 10
	perFileCharLimit        = 3000
	featureBatchLimit       = 5
)

// Pipeline runs the four-stage completion workflow. A Pipeline holds no
// per-run state beyond its lifecycle flag; distinct runs on distinct inputs
// may use distinct Pipeline values concurrently.
type Pipeline struct {
	client llmclient.Client
	now    func() time.Time

	mu    sync.Mutex
	state State
}

func New(client llmclient.Client) *Pipeline {
	return &Pipeline{client: client, now: time.Now, state: StateIdle}
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Run executes the stages in order. Per-feature generation failures in stage
// 3 are absorbed into the completion summary; any other error fails the run,
// sets Result.Error, and is returned alongside the partial result.
func (p *Pipeline) Run(ctx context.Context, files []scanner.SourceFile, opts Options) (*Result, error) {
	p.setState(StateRunning)
	res := &Result{}

	skip := make(map[string]bool, len(opts.SkipStages))
	for _, s := range opts.SkipStages {
		skip[s] = true
	}
	emit := func(stage string, pct int) {
		if opts.OnProgress != nil {
			opts.OnProgress(stage, pct)
		}
	}

	for i, stage := range stageOrder {
		if skip[stage] {
			continue
		}
		emit(stage, i*25)

		var err error
		switch stage {
		case StageUnderstanding:
			err = p.runUnderstanding(ctx, files, res)
		case StageFeatures:
			err = p.runFeatures(ctx, files, res)
		case StageCompletions:
			err = p.runCompletions(ctx, res)
		case StagePackaging:
			err = p.runPackaging(ctx, res)
		}
		if err != nil {
			p.setState(StateFailed)
			res.Error = err.Error()
			return res, err
		}
		emit(stage, (i+1)*25)

		if opts.StopAfterStage == stage {
			p.setState(StatePaused)
			return res, nil
		}
	}

	p.setState(StateCompleted)
	return res, nil
}

// runUnderstanding feeds README/manifest snippets plus a handful of
// representative sources to the model.
func (p *Pipeline) runUnderstanding(ctx context.Context, files []scanner.SourceFile, res *Result) error {
	var b strings.Builder
	for _, f := range selectRepresentative(files) {
		b.WriteString("--- ")
		b.WriteString(f.Path)
		b.WriteString(" ---\n")
		b.WriteString(truncate(f.Content, perFileCharLimit))
		b.WriteString("\n\n")
	}
	raw, err := p.client.GenerateJSON(ctx, understandingPrompt, p.boundInput(understandingPrompt, b.String()))
	if err != nil {
		return fmt.Errorf("understanding: %w", err)
	}
	res.Understanding = raw
	return nil
}

// runFeatures scans locally, then asks the model for the gap report.
func (p *Pipeline) runFeatures(ctx context.Context, files []scanner.SourceFile, res *Result) error {
	diag := scanner.New().Scan(files, nil)
	diagJSON, err := json.Marshal(diag)
	if err != nil {
		return fmt.Errorf("features: marshal diagnosis: %w", err)
	}

	input := fmt.Sprintf(`{"understanding": %s, "diagnosis": %s}`,
		orEmptyObject(res.Understanding), diagJSON)
	raw, err := p.client.GenerateJSON(ctx, featuresPrompt, p.boundInput(featuresPrompt, input))
	if err != nil {
		return fmt.Errorf("features: %w", err)
	}

	report := &FeatureReport{}
	if err := json.Unmarshal(raw, report); err != nil {
		return fmt.Errorf("features: decode report: %w", err)
	}
	report.Diagnosis = diag
	res.Features = report
	return nil
}

// runCompletions generates files for the top incomplete features, one model
// call per feature, sequentially. A single feature's failure is recorded in
// the summary and never aborts the batch.
func (p *Pipeline) runCompletions(ctx context.Context, res *Result) error {
	if res.Features == nil {
		return fmt.Errorf("completions: no feature report (stage skipped?)")
	}

	targets := incompleteByPriority(res.Features.Features)
	if len(targets) > featureBatchLimit {
		targets = targets[:featureBatchLimit]
	}

	report := &CompletionReport{}
	for _, feat := range targets {
		prompt := fmt.Sprintf("Feature: %s\nPriority: %s\nAffected files: %s\nImplement this feature completely.",
			feat.Name, feat.Priority, strings.Join(feat.AffectedFiles, ", "))

		text, err := p.client.GenerateText(ctx, completionPrompt, prompt)
		if err == nil {
			var gen []GeneratedFile
			gen, err = ParseGeneratedFiles(text, p.now())
			if err == nil {
				report.Files = append(report.Files, gen...)
				report.Summary = append(report.Summary, FeatureOutcome{
					Feature: feat.Name, Status: "ok", Files: len(gen),
				})
				continue
			}
		}
		log.Printf("pipeline: feature %q generation failed: %v", feat.Name, err)
		report.Summary = append(report.Summary, FeatureOutcome{
			Feature: feat.Name, Status: "error", Error: err.Error(),
		})
	}

	res.Completions = report
	return nil
}

// runPackaging asks for deployment files and merges them with the stage-3
// output into the final buildable set.
func (p *Pipeline) runPackaging(ctx context.Context, res *Result) error {
	stack := "unknown"
	if res.Features != nil && res.Features.Diagnosis != nil {
		var parts []string
		for lang := range res.Features.Diagnosis.Languages {
			parts = append(parts, lang)
		}
		sort.Strings(parts)
		parts = append(parts, res.Features.Diagnosis.Frameworks...)
		if len(parts) > 0 {
			stack = strings.Join(parts, ", ")
		}
	}

	text, err := p.client.GenerateText(ctx, packagingPrompt, "Stack: "+stack)
	if err != nil {
		return fmt.Errorf("packaging: %w", err)
	}
	gen, err := ParseGeneratedFiles(text, p.now())
	if err != nil {
		return fmt.Errorf("packaging: %w", err)
	}

	report := &PackagingReport{ReadyToBuild: true}
	if res.Completions != nil {
		report.Files = append(report.Files, res.Completions.Files...)
	}
	report.Files = append(report.Files, gen...)
	res.Packaging = report
	return nil
}

var priorityRank = map[string]int{"critical": 0, "high": 1, "medium": 2, "low": 3}

// incompleteByPriority filters out complete features and sorts the rest by
// priority, stable within equal priorities.
func incompleteByPriority(features []Feature) []Feature {
	var out []Feature
	for _, f := range features {
		if f.Status != "complete" {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return rankOf(out[i].Priority) < rankOf(out[j].Priority)
	})
	return out
}

func rankOf(priority string) int {
	if r, ok := priorityRank[priority]; ok {
		return r
	}
	return len(priorityRank)
}

// selectRepresentative picks README/manifest files first, then source files
// up to the representative limit.
func selectRepresentative(files []scanner.SourceFile) []scanner.SourceFile {
	var docs, sources []scanner.SourceFile
	for _, f := range files {
		switch base := strings.ToLower(baseName(f.Path)); base {
		case "readme.md", "readme", "package.json", "requirements.txt", "go.mod":
			docs = append(docs, f)
		default:
			sources = append(sources, f)
		}
	}
	if len(sources) > representativeFileLimit {
		sources = sources[:representativeFileLimit]
	}
	return append(docs, sources...)
}

// boundInput truncates input so the combined call stays inside the client's
// context window. The kept prefix is the largest one that still fits.
func (p *Pipeline) boundInput(system, input string) string {
	budget := p.client.TokenCapacity() - p.client.CountTokens(system)
	if budget <= 0 {
		return ""
	}
	if p.client.CountTokens(input) < budget {
		return input
	}
	lo, hi := 0, len(input)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if p.client.CountTokens(input[:mid]) < budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return input[:lo]
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func orEmptyObject(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return raw
}
