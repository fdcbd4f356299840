// Package analysis runs the one-shot "analyze this project" flow: local
// deterministic scan first, then LLM enrichment behind a retry ladder that
// can always fall back to the scan as a floor.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"brainlane/internal/llm"
	"brainlane/internal/llmclient"
	"brainlane/internal/repository/project"
	"brainlane/internal/scanner"
)

// Report is the structured result requested from the model.
type Report struct {
	Summary         string     `json:"summary"`
	Stack           []string   `json:"stack"`
	Architecture    string     `json:"architecture"`
	Vulnerabilities []string   `json:"vulnerabilities"`
	Smells          []string   `json:"smells"`
	Issues          []string   `json:"issues"`
	TestSuggestions []string   `json:"testSuggestions"`
	Tasks           []TaskSpec `json:"tasks"`
}

// TaskSpec is one backlog entry proposed by the analysis.
type TaskSpec struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// Service orchestrates scan, enrichment, and persistence for one project.
type Service struct {
	invoker llm.Invoker
	store   project.Store
}

func NewService(invoker llm.Invoker, store project.Store) *Service {
	return &Service{invoker: invoker, store: store}
}

// Analyze implements the ladder:
//  1. full prompt;
//  2. on a context-too-large failure, one retry with a reduced prompt;
//  3. if the analysis carries zero tasks, a focused task-only call;
//  4. if still zero, locally synthesized heuristic tasks;
//  5. on any unrecoverable model failure, degrade to the already-persisted
//     scanner baseline with status ready, never error.
//
// The local scan always runs and persists first; only a missing floor (zero
// files) may surface as a user-visible failure.
func (s *Service) Analyze(ctx context.Context, projectID string, files []scanner.SourceFile) (*project.Project, error) {
	if len(files) == 0 {
		err := fmt.Errorf("analysis: no files extracted for project %s", projectID)
		if uerr := s.store.Update(ctx, projectID, func(p *project.Project) {
			p.Status = project.StatusError
			p.Error = err.Error()
		}); uerr != nil {
			return nil, uerr
		}
		return nil, err
	}

	diag := scanner.New().Scan(files, nil)
	if err := s.store.Update(ctx, projectID, func(p *project.Project) {
		p.Status = project.StatusAnalyzing
		p.Diagnosis = diag
		p.Error = ""
	}); err != nil {
		return nil, err
	}

	report, raw, strategy, err := s.enrich(ctx, files, diag)
	if err != nil {
		// Rung 5: the floor is persisted; degrade instead of failing.
		log.Printf("analysis: enrichment failed for %s, degrading to baseline: %v", projectID, err)
		return s.settleBaseline(ctx, projectID, diag)
	}

	tasks := report.Tasks
	if len(tasks) == 0 {
		tasks = s.generateTasks(ctx, raw)
	}
	if len(tasks) == 0 {
		tasks = heuristicTasks(diag)
	}
	for _, t := range tasks {
		if _, err := s.store.CreateTask(ctx, project.Task{
			ProjectID:   projectID,
			Title:       t.Title,
			Description: t.Description,
			Priority:    t.Priority,
		}); err != nil {
			log.Printf("analysis: create task for %s: %v", projectID, err)
		}
	}

	if err := s.store.Update(ctx, projectID, func(p *project.Project) {
		p.Status = project.StatusReady
		p.AnalysisStrategy = strategy
		p.Analysis = raw
	}); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, projectID)
}

// enrich runs rungs 1 and 2 of the ladder.
func (s *Service) enrich(ctx context.Context, files []scanner.SourceFile, diag *scanner.Diagnosis) (*Report, json.RawMessage, string, error) {
	raw, err := s.invoker.Invoke(ctx, llm.InvokeRequest{
		Prompt:       buildPrompt(files, diag, fullBudget),
		SystemPrompt: systemPrompt,
		TaskType:     "analysis",
	})
	strategy := project.StrategyFull
	if err != nil {
		if !llmclient.IsContextTooLarge(err) {
			return nil, nil, "", err
		}
		raw, err = s.invoker.Invoke(ctx, llm.InvokeRequest{
			Prompt:       buildPrompt(files, diag, reducedBudget),
			SystemPrompt: systemPrompt,
			TaskType:     "analysis-reduced",
		})
		if err != nil {
			return nil, nil, "", err
		}
		strategy = project.StrategyFallback
	}

	report := &Report{}
	if err := json.Unmarshal(raw, report); err != nil {
		return nil, nil, "", fmt.Errorf("analysis: decode report: %w", err)
	}
	return report, raw, strategy, nil
}

// generateTasks is rung 3: a focused task-only call seeded with the findings
// already obtained. Its failure is absorbed; rung 4 covers it.
func (s *Service) generateTasks(ctx context.Context, findings json.RawMessage) []TaskSpec {
	raw, err := s.invoker.Invoke(ctx, llm.InvokeRequest{
		Prompt:       string(findings),
		SystemPrompt: taskOnlyPrompt,
		TaskType:     "task-generation",
	})
	if err != nil {
		log.Printf("analysis: task-only call failed: %v", err)
		return nil
	}
	var out struct {
		Tasks []TaskSpec `json:"tasks"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Printf("analysis: decode task-only response: %v", err)
		return nil
	}
	return out.Tasks
}

// settleBaseline finishes a project on scanner data alone.
func (s *Service) settleBaseline(ctx context.Context, projectID string, diag *scanner.Diagnosis) (*project.Project, error) {
	for _, t := range heuristicTasks(diag) {
		if _, err := s.store.CreateTask(ctx, project.Task{
			ProjectID:   projectID,
			Title:       t.Title,
			Description: t.Description,
			Priority:    t.Priority,
		}); err != nil {
			log.Printf("analysis: create baseline task for %s: %v", projectID, err)
		}
	}
	if err := s.store.Update(ctx, projectID, func(p *project.Project) {
		p.Status = project.StatusReady
		p.AnalysisStrategy = project.StrategyBaseline
		p.Analysis = nil
	}); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, projectID)
}

// heuristicTasks is rung 4: a small fixed backlog synthesized from the
// diagnosis so the user never sees an empty list.
func heuristicTasks(diag *scanner.Diagnosis) []TaskSpec {
	var tasks []TaskSpec
	if diag != nil {
		for _, r := range diag.Recommendations {
			tasks = append(tasks, TaskSpec{
				Title:       r.Title,
				Description: r.Description + " " + r.Action,
				Priority:    string(r.Priority),
			})
		}
	}
	if len(tasks) == 0 {
		tasks = []TaskSpec{
			{Title: "Review the project diagnosis", Description: "Walk through the generated health report and confirm its findings.", Priority: "medium"},
			{Title: "Add test coverage for core paths", Description: "Introduce tests around the most-imported modules.", Priority: "medium"},
			{Title: "Document setup and entry points", Description: "Write a README covering install, run, and deploy steps.", Priority: "low"},
		}
	}
	return tasks
}
