package artifact

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Confidence signals how much the caller should trust a parsed result.
// Low confidence means every strategy fell through to a fallback
// skeleton; the Orchestrator may choose to treat the stage as failed.
type Confidence int

const (
	ConfidenceHigh Confidence = iota
	ConfidenceLow
)

// Parser recovers structured artifacts from free-form LLM text.
//
// It never panics. When every strategy fails it returns a documented
// fallback skeleton with ConfidenceLow rather than an error — the
// parser never throws.
type Parser struct{}

// NewParser constructs a Parser. It holds no state; strategies are pure
// functions of their input text.
func NewParser() *Parser { return &Parser{} }

// ---------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------

var fencedBlockRegex = regexp.MustCompile("(?s)```(?:\\w+)?\\n?(.*?)```")

// stripFences removes a single pair of leading/trailing markdown code
// fences from text, if present, returning the inner content unchanged
// otherwise.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}
	if m := fencedBlockRegex.FindStringSubmatch(trimmed); m != nil {
		return m[1]
	}
	return text
}

// extractJSONObject locates the first '{' and the last '}' in text and
// returns the substring between them, tolerating surrounding prose or
// markdown fences. Returns ok=false if no brace pair is found.
func extractJSONObject(text string) (string, bool) {
	unwrapped := stripFences(text)
	start := strings.Index(unwrapped, "{")
	end := strings.LastIndex(unwrapped, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return unwrapped[start : end+1], true
}

// ---------------------------------------------------------------------
// Architecture parsing
// ---------------------------------------------------------------------

// wireArchitecture mirrors the JSON shape the Architect's prompt asks
// the LLM for; it's decoded then translated into ArchitecturalPlan so
// that json tag drift in the wire format doesn't leak into the domain
// type.
type wireArchitecture struct {
	Analysis struct {
		Components       []string `json:"components"`
		Dependencies     []string `json:"dependencies"`
		ArchitectureType string   `json:"architecture_type"`
		Complexity       string   `json:"complexity"`
		Summary          string   `json:"summary"`
	} `json:"analysis"`
	FileStructure struct {
		Files            map[string]string `json:"files"`
		EntryPoint       string             `json:"entry_point"`
		ClassDefinitions map[string]string  `json:"class_definitions"`
	} `json:"file_structure"`
	DetailedPlan map[string]FilePlan `json:"detailed_plan"`
}

// ParseArchitecture decodes the Architect's response.
//
// Strategy 1 (structured JSON) is the only strategy this artifact
// supports: the Architect's prompt instructs "return only JSON". On
// failure, returns the documented fallback skeleton: a single
// "main.py" component with Complexity simple.
func (p *Parser) ParseArchitecture(text, requirements string) (*ArchitecturalPlan, Confidence) {
	jsonStr, ok := extractJSONObject(text)
	if !ok {
		return fallbackPlan(requirements), ConfidenceLow
	}

	var wire wireArchitecture
	if err := json.Unmarshal([]byte(jsonStr), &wire); err != nil {
		return fallbackPlan(requirements), ConfidenceLow
	}
	if wire.FileStructure.EntryPoint == "" || len(wire.FileStructure.Files) == 0 {
		return fallbackPlan(requirements), ConfidenceLow
	}

	plan := &ArchitecturalPlan{
		Requirements: requirements,
		Analysis: Analysis{
			Components:       wire.Analysis.Components,
			Dependencies:     wire.Analysis.Dependencies,
			ArchitectureType: ArchitectureType(orDefault(wire.Analysis.ArchitectureType, string(ArchitectureOther))),
			Complexity:       Complexity(orDefault(wire.Analysis.Complexity, string(ComplexitySimple))),
			Summary:          wire.Analysis.Summary,
		},
		FileStructure: FileStructure{
			Files:            wire.FileStructure.Files,
			EntryPoint:       wire.FileStructure.EntryPoint,
			ClassDefinitions: wire.FileStructure.ClassDefinitions,
		},
		DetailedPlan: wire.DetailedPlan,
	}

	if _, present := plan.FileStructure.Files[plan.FileStructure.EntryPoint]; !present {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf(
			"entry_point %q is not a key of file_structure.files; tolerated", plan.FileStructure.EntryPoint))
	}
	if n := len(plan.Analysis.Components); n != 3 {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf("expected exactly 3 components, got %d", n))
	}

	return plan, ConfidenceHigh
}

func fallbackPlan(requirements string) *ArchitecturalPlan {
	return &ArchitecturalPlan{
		Requirements: requirements,
		Analysis: Analysis{
			Components:       []string{"main"},
			ArchitectureType: ArchitectureOther,
			Complexity:       ComplexitySimple,
			Summary:          "fallback plan: architecture response could not be parsed",
		},
		FileStructure: FileStructure{
			Files:      map[string]string{"main.py": "entry point"},
			EntryPoint: "main.py",
		},
		Warnings: []string{"architecture response unparseable; using fallback skeleton"},
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// ---------------------------------------------------------------------
// Code package parsing
// ---------------------------------------------------------------------

// filenameHintRegex matches filename header lines the Coder is known to
// emit ahead of a fenced block: "# foo.py", "## foo.py", "**foo.py**",
// "=== foo.py ===".
var filenameHintRegex = regexp.MustCompile(`(?m)^\s*(?:#{1,2}\s*|\*\*|=== ?)\s*([\w./-]+\.\w+)\s*(?:\*\*|===)?\s*$`)

// ParseCodePackage extracts filename -> source text from free-form
// Coder output, trying each strategy in order until one yields at
// least one file.
func (p *Parser) ParseCodePackage(text string, expectedFilenames []string) (map[string]string, Confidence) {
	// Strategy 1: structured JSON map.
	if jsonStr, ok := extractJSONObject(text); ok {
		var asMap map[string]string
		if err := json.Unmarshal([]byte(jsonStr), &asMap); err == nil && len(asMap) > 0 {
			return dedupeAndClean(asMap), ConfidenceHigh
		}
	}

	// Strategy 3: fenced blocks paired with a preceding filename hint.
	if files := parseFilenameHintedBlocks(text); len(files) > 0 {
		return dedupeAndClean(files), ConfidenceHigh
	}

	// Strategy 4: heuristic fallback over every fenced block.
	files := heuristicExtractFiles(text, expectedFilenames)
	if len(files) > 0 {
		return dedupeAndClean(files), ConfidenceLow
	}

	return map[string]string{}, ConfidenceLow
}

func parseFilenameHintedBlocks(text string) map[string]string {
	files := make(map[string]string)
	hints := filenameHintRegex.FindAllStringSubmatchIndex(text, -1)
	blocks := fencedBlockRegex.FindAllStringSubmatchIndex(text, -1)
	if len(hints) == 0 || len(blocks) == 0 {
		return files
	}
	for _, h := range hints {
		name := text[h[2]:h[3]]
		// Pair with the first fenced block that starts after this hint.
		for _, b := range blocks {
			if b[0] >= h[1] {
				content := text[b[2]:b[3]]
				files[name] = strings.TrimSpace(content)
				break
			}
		}
	}
	return files
}

func heuristicExtractFiles(text string, expectedFilenames []string) map[string]string {
	files := make(map[string]string)
	matches := fencedBlockRegex.FindAllStringSubmatch(text, -1)
	seqIdx := 0
	for _, m := range matches {
		content := strings.TrimSpace(m[1])
		if len(content) < 20 {
			continue // too short to plausibly be a code file
		}
		name := inferFilename(content, expectedFilenames, seqIdx)
		files[name] = content
		seqIdx++
	}
	return files
}

// inferFilename guesses a filename from code content: test files by
// "def test_", the entry point by a main() or __main__ guard, else a
// sequential fallback.
func inferFilename(content string, expectedFilenames []string, seqIdx int) string {
	switch {
	case strings.Contains(content, "def test_"):
		return "test_main.py"
	case strings.Contains(content, "def main(") || strings.Contains(content, "__main__"):
		return "main.py"
	}
	if seqIdx < len(expectedFilenames) {
		return expectedFilenames[seqIdx]
	}
	return fmt.Sprintf("file_%d.py", seqIdx+1)
}

// dedupeAndClean strips residual inline-backtick artifacts from
// filenames and disambiguates any duplicate keys by suffixing `_<index>`.
func dedupeAndClean(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	seen := make(map[string]int)
	for name, content := range in {
		clean := strings.Trim(strings.TrimSpace(name), "`*")
		content = strings.TrimSpace(stripFences(content))
		if _, exists := out[clean]; exists {
			seen[clean]++
			n := seen[clean]
			ext := ""
			if idx := strings.LastIndex(clean, "."); idx != -1 {
				ext = clean[idx:]
				clean = clean[:idx]
			}
			clean = fmt.Sprintf("%s_%d%s", clean, n, ext)
		}
		out[clean] = content
	}
	return out
}

// ---------------------------------------------------------------------
// Debug response parsing (marker-delimited strategy)
// ---------------------------------------------------------------------

var (
	analysisBlockRegex = regexp.MustCompile(`(?s)ANALYSIS_START\s*(.*?)\s*ANALYSIS_END`)
	fileBlockRegex     = regexp.MustCompile(`(?s)FILE[_-]START:?\s*(.+?)\s*\n(.*?)FILE[_-]END`)
)

// DebugParse is the result of parsing one debugger attempt's response.
type DebugParse struct {
	AnalysisSummary string
	FixedFiles      map[string]string
}

// ParseDebugResponse extracts the analysis summary and fixed files from
// a Debugger response using the ANALYSIS_START/END and
// FILE_START/FILE_END marker grammar. Filenames and contents are
// extracted tolerant of whitespace and hyphen/underscore marker
// variants ("FILE_START" vs "FILE-START").
func (p *Parser) ParseDebugResponse(text string) (DebugParse, Confidence) {
	result := DebugParse{FixedFiles: make(map[string]string)}

	if m := analysisBlockRegex.FindStringSubmatch(text); m != nil {
		result.AnalysisSummary = strings.TrimSpace(m[1])
	}

	matches := fileBlockRegex.FindAllStringSubmatch(text, -1)
	for _, m := range matches {
		name := strings.Trim(strings.TrimSpace(m[1]), "`*")
		content := strings.TrimSpace(m[2])
		if len(content) < 20 {
			continue
		}
		result.FixedFiles[name] = content
	}

	if len(result.FixedFiles) == 0 {
		return result, ConfidenceLow
	}
	return result, ConfidenceHigh
}

// ---------------------------------------------------------------------
// Failure analysis parsing
// ---------------------------------------------------------------------

// FailureAnalysis is a lightweight structured summary of why tests failed,
// used when a caller wants just the narrative without full debug markers.
type FailureAnalysis struct {
	Issues  []string
	Summary string
}

var issueLineRegex = regexp.MustCompile(`(?m)^\s*-\s*Issue\s*\d*:?\s*(.+)$`)
var summaryLineRegex = regexp.MustCompile(`(?m)^\s*Summary:\s*(.+)$`)

// ParseFailureAnalysis extracts bullet "- Issue N: ..." lines and a
// trailing "Summary: ..." line from free-form analysis text.
func (p *Parser) ParseFailureAnalysis(text string) FailureAnalysis {
	var fa FailureAnalysis
	for _, m := range issueLineRegex.FindAllStringSubmatch(text, -1) {
		fa.Issues = append(fa.Issues, strings.TrimSpace(m[1]))
	}
	if m := summaryLineRegex.FindStringSubmatch(text); m != nil {
		fa.Summary = strings.TrimSpace(m[1])
	}
	return fa
}
