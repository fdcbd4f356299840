package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"brainlane/internal/llm"
	"brainlane/internal/repository/project"
	"brainlane/internal/scanner"
)

type scriptedInvoker struct {
	responses []llm.FakeResponse
	requests  []llm.InvokeRequest
}

func (s *scriptedInvoker) Invoke(_ context.Context, req llm.InvokeRequest) (json.RawMessage, error) {
	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return json.RawMessage(`{}`), nil
	}
	r := s.responses[0]
	s.responses = s.responses[1:]
	if r.Err != nil {
		return nil, r.Err
	}
	return r.JSON, nil
}

func newTestProject(t *testing.T, store project.Store) string {
	t.Helper()
	p := &project.Project{Name: "demo", Status: project.StatusUploaded}
	require.NoError(t, store.Create(context.Background(), p))
	return p.ID
}

var sampleFiles = []scanner.SourceFile{
	{Path: "package.json", Content: `{"dependencies":{"express":"^4.0.0"}}`},
	{Path: "src/index.js", Content: "const app = require('express')();\nconsole.log('up');\n"},
}

func TestAnalyze_FullStrategy(t *testing.T) {
	store, err := project.NewFileStore(t.TempDir())
	require.NoError(t, err)
	id := newTestProject(t, store)

	inv := &scriptedInvoker{responses: []llm.FakeResponse{
		{JSON: json.RawMessage(`{"summary":"an express api","tasks":[{"title":"add auth","priority":"high"}]}`)},
	}}
	svc := NewService(inv, store)

	p, err := svc.Analyze(context.Background(), id, sampleFiles)
	require.NoError(t, err)
	require.Equal(t, project.StatusReady, p.Status)
	require.Equal(t, project.StrategyFull, p.AnalysisStrategy)
	require.NotNil(t, p.Diagnosis)
	require.NotEmpty(t, p.Analysis)

	tasks, err := store.ListTasks(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, "add auth", tasks[0].Title)
	require.Len(t, inv.requests, 1)
}

func TestAnalyze_FallbackOnContextTooLarge(t *testing.T) {
	store, err := project.NewFileStore(t.TempDir())
	require.NoError(t, err)
	id := newTestProject(t, store)

	inv := &scriptedInvoker{responses: []llm.FakeResponse{
		{Err: errors.New("request failed: context_length_exceeded")},
		{JSON: json.RawMessage(`{"summary":"reduced pass","tasks":[{"title":"trim deps","priority":"low"}]}`)},
	}}
	svc := NewService(inv, store)

	p, err := svc.Analyze(context.Background(), id, sampleFiles)
	require.NoError(t, err)
	require.Equal(t, project.StatusReady, p.Status)
	require.Equal(t, project.StrategyFallback, p.AnalysisStrategy)

	require.Len(t, inv.requests, 2)
	require.Equal(t, "analysis", inv.requests[0].TaskType)
	require.Equal(t, "analysis-reduced", inv.requests[1].TaskType)
	require.Less(t, len(inv.requests[1].Prompt), len(inv.requests[0].Prompt),
		"fallback prompt must be smaller than the full prompt")
}

func TestAnalyze_TaskOnlyCallWhenZeroTasks(t *testing.T) {
	store, err := project.NewFileStore(t.TempDir())
	require.NoError(t, err)
	id := newTestProject(t, store)

	inv := &scriptedInvoker{responses: []llm.FakeResponse{
		{JSON: json.RawMessage(`{"summary":"fine codebase","tasks":[]}`)},
		{JSON: json.RawMessage(`{"tasks":[{"title":"seeded task","priority":"medium"}]}`)},
	}}
	svc := NewService(inv, store)

	_, err = svc.Analyze(context.Background(), id, sampleFiles)
	require.NoError(t, err)
	require.Len(t, inv.requests, 2)
	require.Equal(t, "task-generation", inv.requests[1].TaskType)

	tasks, err := store.ListTasks(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, "seeded task", tasks[0].Title)
}

func TestAnalyze_HeuristicTasksWhenModelYieldsNone(t *testing.T) {
	store, err := project.NewFileStore(t.TempDir())
	require.NoError(t, err)
	id := newTestProject(t, store)

	inv := &scriptedInvoker{responses: []llm.FakeResponse{
		{JSON: json.RawMessage(`{"summary":"fine","tasks":[]}`)},
		{JSON: json.RawMessage(`{"tasks":[]}`)},
	}}
	svc := NewService(inv, store)

	_, err = svc.Analyze(context.Background(), id, sampleFiles)
	require.NoError(t, err)

	tasks, err := store.ListTasks(context.Background(), id)
	require.NoError(t, err)
	require.NotEmpty(t, tasks, "backlog must never end up empty")
}

func TestAnalyze_BaselineFloorOnTotalFailure(t *testing.T) {
	store, err := project.NewFileStore(t.TempDir())
	require.NoError(t, err)
	id := newTestProject(t, store)

	inv := &scriptedInvoker{responses: []llm.FakeResponse{
		{Err: errors.New("provider is on fire")},
	}}
	svc := NewService(inv, store)

	p, err := svc.Analyze(context.Background(), id, sampleFiles)
	require.NoError(t, err, "model failure must not surface when the scan succeeded")
	require.Equal(t, project.StatusReady, p.Status)
	require.Equal(t, project.StrategyBaseline, p.AnalysisStrategy)
	require.NotNil(t, p.Diagnosis)
	require.Empty(t, p.Analysis)

	tasks, err := store.ListTasks(context.Background(), id)
	require.NoError(t, err)
	require.NotEmpty(t, tasks)
}

func TestAnalyze_ZeroFilesIsUserVisibleFailure(t *testing.T) {
	store, err := project.NewFileStore(t.TempDir())
	require.NoError(t, err)
	id := newTestProject(t, store)

	svc := NewService(&scriptedInvoker{}, store)
	_, err = svc.Analyze(context.Background(), id, nil)
	require.Error(t, err)

	p, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, project.StatusError, p.Status)
	require.NotEmpty(t, p.Error)
}
