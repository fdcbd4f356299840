package scanner

import (
	"log"
	"regexp"
)

// Rule banks are declarative data: one (pattern, type, severity, message) row
// per detectable smell, so each rule is independently table-testable.

const matchSnippetLimit = 50

type ruleSpec struct {
	pattern  string
	typ      IssueType
	severity Severity
	message  string
}

type rule struct {
	re       *regexp.Regexp
	typ      IssueType
	severity Severity
	message  string
}

var ecmascriptRuleSpecs = []ruleSpec{
	{`console\.(log|debug|info)\s*\(`, IssueDebug, SeverityLow, "Debug statement left in code"},
	{`(?://|/\*|\*)\s*(TODO|FIXME)\b`, IssueTodo, SeverityInfo, "Unresolved TODO/FIXME comment"},
	{`catch\s*(\([^)]*\))?\s*\{\s*\}`, IssueErrorHandling, SeverityMedium, "Empty catch block swallows errors"},
	{`(?i)(api_key|apikey|password|secret|token)\s*[:=]\s*['"][^'"]{8,}['"]`, IssueSecurity, SeverityHigh, "Possible hardcoded secret"},
	{`\beval\s*\(`, IssueSecurity, SeverityHigh, "Dynamic evaluation of strings"},
	{`[^=!<>]==[^=]`, IssueLogic, SeverityLow, "Loose equality comparison"},
	{`(?m)^\s*(?:var|let|const)\s+_[A-Za-z]\w*\s*=`, IssueUnused, SeverityInfo, "Variable appears intentionally unused"},
	{`@ts-(ignore|nocheck)\b`, IssueTypeSafety, SeverityMedium, "Suppressed TypeScript error"},
	{`:\s*any\b`, IssueTypeSafety, SeverityLow, "Value typed as any"},
	{`\w!\.`, IssueTypeSafety, SeverityInfo, "Non-null assertion"},
}

var pythonRuleSpecs = []ruleSpec{
	{`(?m)^\s*print\s*\(`, IssueDebug, SeverityLow, "Debug print left in code"},
	{`#\s*(TODO|FIXME)\b`, IssueTodo, SeverityInfo, "Unresolved TODO/FIXME comment"},
	{`except[^:\n]*:\s*\n\s*pass\b`, IssueErrorHandling, SeverityMedium, "Empty except handler swallows errors"},
	{`(?i)(api_key|apikey|password|secret|token)\s*[:=]\s*['"][^'"]{8,}['"]`, IssueSecurity, SeverityHigh, "Possible hardcoded secret"},
	{`\beval\s*\(`, IssueSecurity, SeverityHigh, "Dynamic evaluation of strings"},
	{`==\s*None\b`, IssueLogic, SeverityLow, "Comparison to None with =="},
}

var (
	ecmascriptRules = compileRules(ecmascriptRuleSpecs)
	pythonRules     = compileRules(pythonRuleSpecs)
)

// compileRules builds the rule bank, dropping any row whose pattern fails to
// compile so that a bad rule can never crash a scan.
func compileRules(specs []ruleSpec) []rule {
	out := make([]rule, 0, len(specs))
	for _, s := range specs {
		re, err := regexp.Compile(s.pattern)
		if err != nil {
			log.Printf("scan: dropping rule %q: %v", s.pattern, err)
			continue
		}
		out = append(out, rule{re: re, typ: s.typ, severity: s.severity, message: s.message})
	}
	return out
}

// DetectIssues runs the language's rule bank over content and attributes each
// match to its 1-based line. The matched text is truncated so large secrets
// never leak into reports verbatim.
func DetectIssues(content, language, filePath string) []Issue {
	var bank []rule
	switch normalizeLanguage(language) {
	case "javascript", "typescript":
		bank = ecmascriptRules
	case "python":
		bank = pythonRules
	default:
		return nil
	}

	var issues []Issue
	for _, r := range bank {
		for _, loc := range r.re.FindAllStringIndex(content, -1) {
			snippet := content[loc[0]:loc[1]]
			if len(snippet) > matchSnippetLimit {
				snippet = snippet[:matchSnippetLimit]
			}
			issues = append(issues, Issue{
				Type:     r.typ,
				Severity: r.severity,
				Message:  r.message,
				File:     filePath,
				Line:     lineAt(content, loc[0]),
				Match:    snippet,
			})
		}
	}
	return issues
}

// lineAt returns the 1-based line number of byte offset off. A match spanning
// several lines is attributed to the line its start offset falls on.
func lineAt(content string, off int) int {
	line := 1
	for i := 0; i < off && i < len(content); i++ {
		if content[i] == '\n' {
			line++
		}
	}
	return line
}
