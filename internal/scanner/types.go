package scanner

// SourceFile is one file of an uploaded codebase. Path is a POSIX-style
// relative path and is the unique key for the file within a scan.
type SourceFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// IssueType classifies a detected code issue.
type IssueType string

const (
	IssueDebug         IssueType = "debug"
	IssueTodo          IssueType = "todo"
	IssueErrorHandling IssueType = "error-handling"
	IssueSecurity      IssueType = "security"
	IssueLogic         IssueType = "logic"
	IssueUnused        IssueType = "unused"
	IssuePerformance   IssueType = "performance"
	IssueTypeSafety    IssueType = "type-safety"
)

// Severity orders issues for reporting and scoring.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
	SeverityInfo   Severity = "info"
)

// Rank returns the sort rank for a severity (high first).
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	default:
		return 3
	}
}

// Issue is one rule match inside one file.
type Issue struct {
	Type     IssueType `json:"type"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	File     string    `json:"file"`
	Line     int       `json:"line"`
	Match    string    `json:"match"`
}

// Priority orders recommendations.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Recommendation is a derived, regenerable advice entry. It is never persisted
// independently of the Diagnosis it was computed from.
type Recommendation struct {
	Priority    Priority `json:"priority"`
	Category    string   `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Action      string   `json:"action"`
}

// Structure summarizes the file layout of a scanned codebase.
type Structure struct {
	TotalFiles  int      `json:"totalFiles"`
	TotalLines  int      `json:"totalLines"`
	Directories []string `json:"directories"`
	EntryPoints []string `json:"entryPoints"`
}

// Dependencies summarizes the external dependency surface.
type Dependencies struct {
	External []string `json:"external"`
	Missing  []string `json:"missing"`
	Unused   []string `json:"unused"`
}

// Cycle is a closed import loop: first and last path are identical and the
// list always has length >= 2.
type Cycle []string

// Diagnosis is the full deterministic scan result. It is produced once per
// scan and replaced wholesale on re-scan.
type Diagnosis struct {
	Summary         string           `json:"summary"`
	Score           int              `json:"score"`
	Languages       map[string]int   `json:"languages"`
	Frameworks      []string         `json:"frameworks"`
	Structure       Structure        `json:"structure"`
	Dependencies    Dependencies     `json:"dependencies"`
	Issues          []Issue          `json:"issues"`
	CircularDeps    []Cycle          `json:"circularDeps"`
	Recommendations []Recommendation `json:"recommendations"`
}
