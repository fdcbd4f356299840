package project

import (
	"encoding/json"
	"time"

	"brainlane/internal/scanner"
)

// Status is the user-visible lifecycle of a project.
type Status string

const (
	StatusUploaded  Status = "uploaded"
	StatusAnalyzing Status = "analyzing"
	StatusReady     Status = "ready"
	StatusError     Status = "error"
)

// Analysis strategies, recorded so the UI can show how the result was
// obtained. "baseline" means scanner output only, no model enrichment.
const (
	StrategyFull     = "full"
	StrategyFallback = "fallback"
	StrategyBaseline = "baseline"
)

// Project is the persisted record for one uploaded codebase.
type Project struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	Status           Status             `json:"status"`
	AnalysisStrategy string             `json:"analysisStrategy,omitempty"`
	Diagnosis        *scanner.Diagnosis `json:"diagnosis,omitempty"`
	Analysis         json.RawMessage    `json:"analysis,omitempty"`
	Pipeline         json.RawMessage    `json:"pipeline,omitempty"`
	Error            string             `json:"error,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// Task is one backlog entry derived from an analysis.
type Task struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}
