package scanner

import (
	"reflect"
	"testing"
)

func TestScan_EmptyFileSet(t *testing.T) {
	s := New()
	var milestones []int
	d := s.Scan(nil, func(pct int, _ string) { milestones = append(milestones, pct) })

	if d.Score != 100 {
		t.Errorf("Score = %d, want 100", d.Score)
	}
	if d.Summary != "no source files scanned" {
		t.Errorf("Summary = %q", d.Summary)
	}
	if len(d.Issues) != 0 || len(d.CircularDeps) != 0 || len(d.Recommendations) != 0 {
		t.Errorf("sentinel diagnosis has non-empty collections: %+v", d)
	}
	if !reflect.DeepEqual(milestones, []int{100}) {
		t.Errorf("milestones = %v, want [100]", milestones)
	}
	if s.State() != StateComplete {
		t.Errorf("State = %s, want %s", s.State(), StateComplete)
	}
}

func TestScan_ProgressMilestones(t *testing.T) {
	files := []SourceFile{{Path: "a.js", Content: "const a = 1;\n"}}
	var milestones []int
	New().Scan(files, func(pct int, _ string) { milestones = append(milestones, pct) })

	want := []int{10, 25, 40, 55, 70, 85, 95, 100}
	if !reflect.DeepEqual(milestones, want) {
		t.Fatalf("milestones = %v, want %v", milestones, want)
	}
}

func TestScan_EndToEndScenario(t *testing.T) {
	files := []SourceFile{
		{Path: "a.js", Content: "import b from './b';\nimport gone from './missing';\nconsole.log('boot');\n"},
		{Path: "b.js", Content: "import a from './a';\n"},
	}
	d := New().Scan(files, nil)

	if d.Structure.TotalFiles != 2 {
		t.Errorf("TotalFiles = %d, want 2", d.Structure.TotalFiles)
	}
	if len(d.CircularDeps) != 1 {
		t.Fatalf("CircularDeps = %v, want 1 cycle", d.CircularDeps)
	}
	if want := (Cycle{"a.js", "b.js", "a.js"}); !reflect.DeepEqual(d.CircularDeps[0], want) {
		t.Errorf("cycle = %v, want %v", d.CircularDeps[0], want)
	}
	if want := []string{"missing"}; !reflect.DeepEqual(d.Dependencies.Missing, want) {
		t.Errorf("Missing = %v, want %v", d.Dependencies.Missing, want)
	}
	if d.Score >= 100 {
		t.Errorf("Score = %d, want < 100", d.Score)
	}
	if d.Summary == "" {
		t.Error("empty summary")
	}
}

func TestCalculateScore_Determinism(t *testing.T) {
	issues := []Issue{
		{Severity: SeverityHigh},
		{Severity: SeverityMedium},
		{Severity: SeverityLow},
	}
	cycles := []Cycle{{"a", "b", "a"}}
	missing := []string{"lost"}
	recs := []Recommendation{{Priority: PriorityCritical}}

	for i := 0; i < 3; i++ {
		if got := CalculateScore(issues, cycles, missing, recs); got != 60 {
			t.Fatalf("score = %d, want 60", got)
		}
	}
}

func TestCalculateScore_Monotonicity(t *testing.T) {
	base := CalculateScore(nil, nil, nil, nil)
	if base != 100 {
		t.Fatalf("empty score = %d, want 100", base)
	}
	withIssue := CalculateScore([]Issue{{Severity: SeverityLow}}, nil, nil, nil)
	if withIssue >= base {
		t.Errorf("adding an issue did not lower score: %d", withIssue)
	}
	withCycle := CalculateScore(nil, []Cycle{{"a", "b", "a"}}, nil, nil)
	if withCycle >= base {
		t.Errorf("adding a cycle did not lower score: %d", withCycle)
	}
}

func TestCalculateScore_ClampAndPenaltyBound(t *testing.T) {
	var highs []Issue
	for i := 0; i < 100; i++ {
		highs = append(highs, Issue{Severity: SeverityHigh})
	}
	if got := CalculateScore(highs, nil, nil, nil); got != 0 {
		t.Errorf("score = %d, want clamp to 0", got)
	}

	var lows []Issue
	for i := 0; i < 20; i++ {
		lows = append(lows, Issue{Severity: SeverityLow})
	}
	twenty := CalculateScore(lows, nil, nil, nil)
	if twenty != 60 {
		t.Errorf("20 low issues = %d, want 60", twenty)
	}
	lows = append(lows, Issue{Severity: SeverityLow})
	if got := CalculateScore(lows, nil, nil, nil); got != twenty {
		t.Errorf("issue beyond the scored limit changed score: %d vs %d", got, twenty)
	}
}

func TestScan_IssuesSortedBySeverity(t *testing.T) {
	files := []SourceFile{
		{Path: "a.js", Content: "// TODO later\nconsole.log('x');\neval(input);\n"},
	}
	d := New().Scan(files, nil)
	for i := 1; i < len(d.Issues); i++ {
		if d.Issues[i-1].Severity.Rank() > d.Issues[i].Severity.Rank() {
			t.Fatalf("issues out of severity order at %d: %v", i, d.Issues)
		}
	}
	if len(d.Issues) == 0 || d.Issues[0].Severity != SeverityHigh {
		t.Fatalf("issues = %v, want eval high severity first", d.Issues)
	}
}

func TestScan_SecurityIssueYieldsCriticalRecommendation(t *testing.T) {
	files := []SourceFile{
		{Path: "cfg.js", Content: `const password = "supersecretvalue";` + "\n"},
	}
	d := New().Scan(files, nil)
	found := false
	for _, r := range d.Recommendations {
		if r.Priority == PriorityCritical && r.Category == "security" {
			found = true
		}
	}
	if !found {
		t.Fatalf("recommendations = %+v, want a critical security entry", d.Recommendations)
	}
}

func TestScan_DeclaredDependencyTracking(t *testing.T) {
	files := []SourceFile{
		{Path: "package.json", Content: `{"dependencies":{"react":"^18.0.0","lodash":"^4.0.0"}}`},
		{Path: "src/app.js", Content: "import React from 'react';\nimport axios from 'axios';\n"},
	}
	d := New().Scan(files, nil)

	if want := []string{"react", "axios"}; !reflect.DeepEqual(d.Dependencies.External, want) {
		t.Errorf("External = %v, want %v", d.Dependencies.External, want)
	}
	if want := []string{"axios"}; !reflect.DeepEqual(d.Dependencies.Missing, want) {
		t.Errorf("Missing = %v, want %v", d.Dependencies.Missing, want)
	}
	if want := []string{"lodash"}; !reflect.DeepEqual(d.Dependencies.Unused, want) {
		t.Errorf("Unused = %v, want %v", d.Dependencies.Unused, want)
	}
}
