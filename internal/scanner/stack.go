package scanner

import (
	"sort"
	"strings"
)

// languageByExt is the fixed extension table for language counting.
var languageByExt = map[string]string{
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".mjs":   "JavaScript",
	".cjs":   "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".py":    "Python",
	".go":    "Go",
	".rb":    "Ruby",
	".java":  "Java",
	".rs":    "Rust",
	".php":   "PHP",
	".c":     "C",
	".h":     "C",
	".cpp":   "C++",
	".cs":    "C#",
	".swift": "Swift",
	".kt":    "Kotlin",
	".vue":   "Vue",
	".html":  "HTML",
	".css":   "CSS",
	".scss":  "CSS",
	".sql":   "SQL",
	".sh":    "Shell",
}

const (
	markerFileScore    = 10
	contentHitScore    = 1
	frameworkThreshold = 2
)

// frameworkSignal is one row of the framework voting table: marker filenames
// score markerFileScore, content substrings score contentHitScore per file.
type frameworkSignal struct {
	name     string
	files    []string
	patterns []string
}

var frameworkSignals = []frameworkSignal{
	{"React", []string{}, []string{"from 'react'", `from "react"`, "React.createElement", "useState(", "useEffect("}},
	{"Next.js", []string{"next.config.js", "next.config.mjs", "next.config.ts"}, []string{"from 'next/", `from "next/`}},
	{"Vue", []string{"vue.config.js"}, []string{"from 'vue'", `from "vue"`, "createApp("}},
	{"Angular", []string{"angular.json"}, []string{"@angular/", "@Component("}},
	{"Svelte", []string{"svelte.config.js"}, []string{"from 'svelte", `from "svelte`}},
	{"Express", []string{}, []string{"require('express')", `require("express")`, "from 'express'", "express()"}},
	{"Django", []string{"manage.py"}, []string{"from django", "import django"}},
	{"Flask", []string{}, []string{"from flask", "Flask(__name__)"}},
	{"FastAPI", []string{}, []string{"from fastapi", "FastAPI("}},
	{"Tailwind", []string{"tailwind.config.js", "tailwind.config.ts"}, []string{"@tailwind"}},
	{"Jest", []string{"jest.config.js", "jest.config.ts"}, []string{"from '@jest/", "jest.mock("}},
	{"Vitest", []string{"vitest.config.js", "vitest.config.ts"}, []string{"from 'vitest'", `from "vitest"`}},
	{"Mocha", []string{".mocharc.json", ".mocharc.yml"}, []string{"require('mocha')", "from 'mocha'"}},
	{"Pytest", []string{"pytest.ini", "conftest.py"}, []string{"import pytest", "from pytest"}},
}

// testFrameworks are the frameworkSignals entries counted as test tooling.
var testFrameworks = map[string]struct{}{
	"Jest": {}, "Vitest": {}, "Mocha": {}, "Pytest": {},
}

// DetectStack counts languages by extension and votes frameworks by filename
// markers and content substrings. Frameworks reaching the threshold are
// returned sorted by descending score; ties keep the order in which each
// framework first scored.
func DetectStack(files []SourceFile) (map[string]int, []string) {
	languages := make(map[string]int)
	scores := make(map[string]int, len(frameworkSignals))
	firstHit := make(map[string]int, len(frameworkSignals))
	hitSeq := 0

	addScore := func(name string, pts int) {
		if _, ok := firstHit[name]; !ok {
			firstHit[name] = hitSeq
			hitSeq++
		}
		scores[name] += pts
	}

	for _, f := range files {
		if ext := extOf(f.Path); ext != "" {
			if lang, ok := languageByExt[ext]; ok {
				languages[lang]++
			}
		}
		base := baseOf(f.Path)
		for _, sig := range frameworkSignals {
			for _, marker := range sig.files {
				if base == marker {
					addScore(sig.name, markerFileScore)
				}
			}
			for _, pat := range sig.patterns {
				if strings.Contains(f.Content, pat) {
					addScore(sig.name, contentHitScore)
				}
			}
		}
	}

	var frameworks []string
	for name, score := range scores {
		if score >= frameworkThreshold {
			frameworks = append(frameworks, name)
		}
	}
	sort.SliceStable(frameworks, func(i, j int) bool {
		si, sj := scores[frameworks[i]], scores[frameworks[j]]
		if si != sj {
			return si > sj
		}
		return firstHit[frameworks[i]] < firstHit[frameworks[j]]
	})
	return languages, frameworks
}

func extOf(path string) string {
	base := baseOf(path)
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		return strings.ToLower(base[i:])
	}
	return ""
}

func baseOf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
