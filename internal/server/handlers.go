package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"brainlane/internal/analysis"
	"brainlane/internal/llmclient"
	"brainlane/internal/pipeline"
	"brainlane/internal/realtime"
	"brainlane/internal/repository/artifact"
	"brainlane/internal/repository/project"
	"brainlane/internal/scanner"
	"brainlane/internal/worker"
)

// API owns the HTTP surface and the background pipeline runner.
type API struct {
	store     project.Store
	artifacts artifact.Store
	analyzer  *analysis.Service
	llm       llmclient.Client
	hub       *realtime.Hub
	queue     *worker.Queue
}

func NewAPI(store project.Store, artifacts artifact.Store, analyzer *analysis.Service, client llmclient.Client, hub *realtime.Hub) *API {
	api := &API{
		store:     store,
		artifacts: artifacts,
		analyzer:  analyzer,
		llm:       client,
		hub:       hub,
	}
	api.queue = worker.NewQueue(64, api.runPipelineJob)
	return api
}

func (a *API) Queue() *worker.Queue { return a.queue }

type fileInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type createProjectRequest struct {
	Name  string      `json:"name"`
	Files []fileInput `json:"files"`
}

func (a *API) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var in createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return
	}

	p := &project.Project{Name: in.Name, Status: project.StatusUploaded}
	if err := a.store.Create(r.Context(), p); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, f := range in.Files {
		if err := a.artifacts.Put(r.Context(), p.ID, f.Path, []byte(f.Content)); err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("store %s: %v", f.Path, err))
			return
		}
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, err := a.store.Get(r.Context(), id)
	if errors.Is(err, project.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	tasks, err := a.store.ListTasks(r.Context(), id)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project": p, "tasks": tasks})
}

// handleAnalyze runs the one-shot analysis flow synchronously: local scan
// first, then model enrichment behind the retry ladder.
func (a *API) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := a.store.Get(r.Context(), id); errors.Is(err, project.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "project not found")
		return
	} else if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	files, err := a.loadFiles(r.Context(), id)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	p, err := a.analyzer.Analyze(r.Context(), id, files)
	if err != nil {
		// Only the missing-floor case (zero files) reaches here.
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	a.hub.Publish(realtime.Event{ProjectID: id, Kind: "status", Status: string(p.Status)})
	writeJSON(w, http.StatusOK, p)
}

type runPipelineRequest struct {
	StopAfterStage string   `json:"stopAfterStage"`
	SkipStages     []string `json:"skipStages"`
}

func (a *API) handleRunPipeline(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := a.store.Get(r.Context(), id); errors.Is(err, project.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "project not found")
		return
	} else if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var in runPipelineRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&in)
	}

	job, err := a.queue.Enqueue(id, in)
	if err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"jobId": job.ID, "state": job.State()})
}

func (a *API) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := a.queue.Get(r.PathValue("id"))
	if !ok {
		writeJSONError(w, http.StatusNotFound, "job not found")
		return
	}
	out := map[string]any{"jobId": job.ID, "projectId": job.ProjectID, "state": job.State()}
	if err := job.Err(); err != nil {
		out["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// runPipelineJob executes one background pipeline run, publishing progress
// to the hub and persisting the result. The final status event is published
// only after the job's outcome is persisted, keeping the settle ordered
// after every progress event.
func (a *API) runPipelineJob(ctx context.Context, job *worker.Job) error {
	id := job.ProjectID
	req, _ := job.Payload.(runPipelineRequest)

	files, err := a.loadFiles(ctx, id)
	if err != nil {
		a.settlePipeline(ctx, id, nil, err)
		return err
	}

	p := pipeline.New(a.llm)
	res, runErr := p.Run(ctx, files, pipeline.Options{
		StopAfterStage: req.StopAfterStage,
		SkipStages:     req.SkipStages,
		OnProgress: func(stage string, percent int) {
			a.hub.Publish(realtime.Event{
				ProjectID: id, Kind: "stage", Stage: stage, Percent: percent,
			})
		},
	})

	a.settlePipeline(ctx, id, res, runErr)
	if runErr != nil {
		return runErr
	}
	if p.State() == pipeline.StatePaused {
		return worker.ErrPaused
	}
	return nil
}

func (a *API) settlePipeline(ctx context.Context, id string, res *pipeline.Result, runErr error) {
	status := "pipeline-completed"
	if runErr != nil {
		status = "pipeline-failed"
	}

	if res != nil {
		raw, err := json.Marshal(res)
		if err == nil {
			if uerr := a.store.Update(ctx, id, func(p *project.Project) {
				p.Pipeline = raw
				if runErr != nil {
					p.Error = runErr.Error()
				}
			}); uerr != nil {
				log.Printf("server: persist pipeline result for %s: %v", id, uerr)
			}
		} else {
			log.Printf("server: encode pipeline result for %s: %v", id, err)
		}
	}

	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	a.hub.Publish(realtime.Event{ProjectID: id, Kind: "status", Status: status, Message: msg})
}

// loadFiles reassembles the project's source set from the artifact store.
func (a *API) loadFiles(ctx context.Context, projectID string) ([]scanner.SourceFile, error) {
	paths, err := a.artifacts.List(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	files := make([]scanner.SourceFile, 0, len(paths))
	for _, path := range paths {
		raw, err := a.artifacts.Get(ctx, projectID, path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		files = append(files, scanner.SourceFile{Path: path, Content: string(raw)})
	}
	return files, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
