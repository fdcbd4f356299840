package scanner

import (
	"strings"
	"testing"
)

func TestDetectIssues_RuleBank(t *testing.T) {
	cases := []struct {
		name     string
		lang     string
		snippet  string
		typ      IssueType
		severity Severity
	}{
		{"js console.log", "javascript", `console.log("hi")`, IssueDebug, SeverityLow},
		{"js console.debug", "javascript", `console.debug(x)`, IssueDebug, SeverityLow},
		{"js todo comment", "javascript", `// TODO handle retries`, IssueTodo, SeverityInfo},
		{"js empty catch", "javascript", `try { f() } catch (e) {}`, IssueErrorHandling, SeverityMedium},
		{"js hardcoded secret", "javascript", `const api_key = "sk-1234567890abcdef"`, IssueSecurity, SeverityHigh},
		{"js eval", "javascript", `eval(userInput)`, IssueSecurity, SeverityHigh},
		{"js loose equality", "javascript", `if (a == b) {`, IssueLogic, SeverityLow},
		{"js underscore var", "javascript", `const _unused = 1`, IssueUnused, SeverityInfo},
		{"ts ignore", "typescript", `// @ts-ignore`, IssueTypeSafety, SeverityMedium},
		{"ts any", "typescript", `function f(x: any) {`, IssueTypeSafety, SeverityLow},
		{"ts non-null assertion", "typescript", `value!.field`, IssueTypeSafety, SeverityInfo},
		{"py print", "python", `print("debug")`, IssueDebug, SeverityLow},
		{"py bare except pass", "python", "try:\n    f()\nexcept Exception:\n    pass\n", IssueErrorHandling, SeverityMedium},
		{"py none equality", "python", `if x == None:`, IssueLogic, SeverityLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			issues := DetectIssues(tc.snippet, tc.lang, "f")
			if len(issues) != 1 {
				t.Fatalf("got %d issues %v, want exactly 1", len(issues), issues)
			}
			got := issues[0]
			if got.Type != tc.typ || got.Severity != tc.severity {
				t.Errorf("issue = %s/%s, want %s/%s", got.Type, got.Severity, tc.typ, tc.severity)
			}
			if got.File != "f" || got.Line != 1 {
				t.Errorf("attribution = %s:%d, want f:1", got.File, got.Line)
			}
		})
	}
}

func TestDetectIssues_LineAttribution(t *testing.T) {
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = "const x" + string(rune('a'+i)) + " = 1;"
	}
	lines[4] = `console.log("here")`
	src := strings.Join(lines, "\n")

	issues := DetectIssues(src, "javascript", "app.js")
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	if issues[0].Line != 5 {
		t.Fatalf("Line = %d, want 5", issues[0].Line)
	}
}

func TestDetectIssues_MultilineMatchUsesStartLine(t *testing.T) {
	src := "f();\ntry { g() } catch (e) {\n}\n"
	issues := DetectIssues(src, "javascript", "x.js")
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	if issues[0].Line != 2 {
		t.Fatalf("Line = %d, want 2 (start of match)", issues[0].Line)
	}
}

func TestDetectIssues_TruncatesMatch(t *testing.T) {
	secret := strings.Repeat("x", 200)
	src := `password = "` + secret + `"`
	issues := DetectIssues(src, "javascript", "cfg.js")
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	if len(issues[0].Match) > matchSnippetLimit {
		t.Fatalf("Match length = %d, want <= %d", len(issues[0].Match), matchSnippetLimit)
	}
}

func TestDetectIssues_StrictEqualityNotFlagged(t *testing.T) {
	issues := DetectIssues(`if (a === b) { return; }`, "javascript", "x.js")
	for _, iss := range issues {
		if iss.Type == IssueLogic {
			t.Fatalf("strict equality flagged as loose: %+v", iss)
		}
	}
}
