// Package pyparse parses pytest verbose output into structured
// diagnostics: failing test names, error types, tracebacks, and
// assertion expected/actual values.
package pyparse

import (
	"regexp"
	"strconv"
	"strings"
)

// parserState represents the current parsing context.
type parserState int

const (
	stateIdle parserState = iota
	stateFailures
	stateTestBlock
	stateShortSummary
)

var (
	sectionHeaderRegex    = regexp.MustCompile(`^={3,}\s*(.+?)\s*={3,}$`)
	testBlockHeaderRegex  = regexp.MustCompile(`^_{3,}\s*(.+?)\s*_{3,}$`)
	pythonTracebackRegex  = regexp.MustCompile(`^\s+File "(.+)", line (\d+), in (.+)`)
	tracebackLocationRegex = regexp.MustCompile(`^([^\s].+\.py):(\d+):\s*(\w+(?:Error|Exception|Warning)?)`)
	assertionContextRegex = regexp.MustCompile(`^>\s+(.+)$`)
	assertionErrorRegex   = regexp.MustCompile(`^E\s+(\w+(?:Error|Exception)?):?\s*(.*)$`)
	assertComparisonRegex = regexp.MustCompile(`^E\s+assert\s+(.+?)\s*(==|!=|<|>|<=|>=|in|not in|is|is not)\s+(.+)$`)
	whereClauseRegex      = regexp.MustCompile(`^E\s+where\s+(.+?)\s+=\s+(.+)$`)
	shortSummaryRegex     = regexp.MustCompile(`^FAILED\s+(.+?)::(.+?)\s+-\s+(\w+(?:Error|Exception)?):?\s*(.*)$`)
	shortSummarySimpleRegex = regexp.MustCompile(`^FAILED\s+(.+?)::(.+)$`)

	// Results: pytest always prints failures before passes on its
	// summary line ("1 failed, 4 passed in 0.45s"), so the failed count
	// is mandatory and the passed count optional; a pure-success run
	// never mentions "failed" at all, so it needs its own pattern.
	resultsWithFailuresRegex = regexp.MustCompile(`(\d+)\s+failed(?:.*?(\d+)\s+passed)?.*?in\s+([\d.]+)s`)
	resultsAllPassedRegex    = regexp.MustCompile(`(\d+)\s+passed\s+in\s+([\d.]+)s`)
)

// TracebackFrame is a single frame in a Python traceback.
type TracebackFrame struct {
	FilePath   string
	Line       int
	Function   string
	CodeLine   string
	IsTestFile bool
	Depth      int
}

// AssertionContext captures expected vs actual comparison data.
type AssertionContext struct {
	AssertionLine string
	Expected      string
	Actual        string
	Operator      string
	WhereValues   map[string]string
	ErrorType     string
	ErrorMessage  string
}

// Failure is one failed test with full diagnostic context.
type Failure struct {
	TestFile   string
	TestClass  string
	TestMethod string
	FullName   string

	ErrorType    string
	ErrorMessage string

	Traceback      []TracebackFrame
	RootCauseFrame *TracebackFrame

	AssertionContext AssertionContext

	ShortSummary string
	RawOutput    string
}

// Results is the final tally line pytest prints ("1 failed, 3 passed in 0.42s").
type Results struct {
	Passed     int
	Failed     int
	DurationS  float64
	HasResults bool
}

// parser is a line-by-line state machine over pytest verbose output.
type parser struct {
	state            parserState
	currentTest      *Failure
	currentTraceback []TracebackFrame
	failures         []Failure
	results          Results

	assertionContext string
	whereValues      map[string]string
	rawLines         []string
}

// Parse parses pytest output into structured failures and the final
// results tally.
func Parse(output string) ([]Failure, Results) {
	p := &parser{state: stateIdle, whereValues: make(map[string]string)}
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		p.processLine(line, i, lines)
	}
	p.finalizeCurrentTest()
	return p.failures, p.results
}

func (p *parser) processLine(line string, index int, allLines []string) {
	// Checked before section-header detection: the final results line
	// ("===== 1 failed, 1 passed in 0.12s =====") is itself wrapped in
	// "="-padding and would otherwise be swallowed as a section header.
	if m := resultsWithFailuresRegex.FindStringSubmatch(line); len(m) > 3 {
		p.results.Failed, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			p.results.Passed, _ = strconv.Atoi(m[2])
		}
		p.results.DurationS, _ = strconv.ParseFloat(m[3], 64)
		p.results.HasResults = true
	} else if m := resultsAllPassedRegex.FindStringSubmatch(line); len(m) > 2 {
		p.results.Passed, _ = strconv.Atoi(m[1])
		p.results.DurationS, _ = strconv.ParseFloat(m[2], 64)
		p.results.HasResults = true
	}

	if m := sectionHeaderRegex.FindStringSubmatch(line); len(m) > 1 {
		p.handleSectionChange(m[1])
		return
	}
	if m := testBlockHeaderRegex.FindStringSubmatch(line); len(m) > 1 {
		p.finalizeCurrentTest()
		p.startNewTest(m[1])
		p.state = stateTestBlock
		return
	}

	switch p.state {
	case stateFailures, stateTestBlock:
		p.handleTestBlock(line, index, allLines)
	case stateShortSummary:
		p.handleShortSummary(line)
	}

	if p.currentTest != nil {
		p.rawLines = append(p.rawLines, line)
	}
}

func (p *parser) handleSectionChange(sectionName string) {
	lower := strings.ToLower(sectionName)
	switch {
	case strings.Contains(lower, "failures"), strings.Contains(lower, "errors"):
		p.finalizeCurrentTest()
		p.state = stateFailures
	case strings.Contains(lower, "short test summary"):
		p.finalizeCurrentTest()
		p.state = stateShortSummary
	}
}

func (p *parser) startNewTest(header string) {
	header = strings.TrimSpace(header)
	parts := strings.Split(header, ".")

	p.currentTest = &Failure{FullName: header}
	if len(parts) >= 2 {
		p.currentTest.TestClass = parts[0]
		p.currentTest.TestMethod = parts[len(parts)-1]
	} else {
		p.currentTest.TestMethod = header
	}

	p.currentTraceback = nil
	p.assertionContext = ""
	p.whereValues = make(map[string]string)
	p.rawLines = nil
}

func (p *parser) handleTestBlock(line string, index int, allLines []string) {
	if p.currentTest == nil {
		return
	}

	if m := pythonTracebackRegex.FindStringSubmatch(line); len(m) > 3 {
		lineNum, _ := strconv.Atoi(m[2])
		frame := TracebackFrame{
			FilePath:   m[1],
			Line:       lineNum,
			Function:   m[3],
			IsTestFile: isTestFile(m[1]),
			Depth:      len(p.currentTraceback),
		}
		if index+1 < len(allLines) {
			next := allLines[index+1]
			trimmed := strings.TrimSpace(next)
			if len(next) > 0 && next[0] == ' ' && !strings.HasPrefix(trimmed, "E ") && !strings.HasPrefix(trimmed, ">") {
				frame.CodeLine = trimmed
			}
		}
		p.currentTraceback = append(p.currentTraceback, frame)
		return
	}

	if m := assertionContextRegex.FindStringSubmatch(line); len(m) > 1 {
		p.assertionContext = m[1]
		return
	}

	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "E ") {
		p.handleAssertionLine(trimmed)
		return
	}

	if m := tracebackLocationRegex.FindStringSubmatch(line); len(m) > 3 {
		p.currentTest.ErrorType = m[3]
		lineNum, _ := strconv.Atoi(m[2])
		frame := TracebackFrame{FilePath: m[1], Line: lineNum, IsTestFile: isTestFile(m[1])}
		if !frame.IsTestFile && p.currentTest.RootCauseFrame == nil {
			p.currentTest.RootCauseFrame = &frame
		}
	}
}

func (p *parser) handleAssertionLine(line string) {
	if m := assertionErrorRegex.FindStringSubmatch(line); len(m) > 2 {
		if p.currentTest.ErrorType == "" {
			p.currentTest.ErrorType = m[1]
		}
		if p.currentTest.ErrorMessage == "" {
			p.currentTest.ErrorMessage = strings.TrimSpace(m[2])
		}
	}
	if m := assertComparisonRegex.FindStringSubmatch(line); len(m) > 3 {
		p.currentTest.AssertionContext.Actual = strings.TrimSpace(m[1])
		p.currentTest.AssertionContext.Operator = m[2]
		p.currentTest.AssertionContext.Expected = strings.TrimSpace(m[3])
	}
	if m := whereClauseRegex.FindStringSubmatch(line); len(m) > 2 {
		p.whereValues[m[1]] = m[2]
	}
}

func (p *parser) handleShortSummary(line string) {
	if m := shortSummaryRegex.FindStringSubmatch(line); len(m) > 4 {
		p.updateFailureFromSummary(m[1], m[2], m[3], m[4], line)
		return
	}
	if m := shortSummarySimpleRegex.FindStringSubmatch(line); len(m) > 2 {
		p.updateFailureFromSummary(m[1], m[2], "", "", line)
	}
}

func (p *parser) updateFailureFromSummary(testFile, testName, errorType, errorMsg, line string) {
	fullName := testName
	if strings.Contains(testName, "::") {
		fullName = strings.Join(strings.Split(testName, "::"), ".")
	}

	for i := range p.failures {
		f := &p.failures[i]
		if f.FullName == fullName || f.TestMethod == testName || strings.HasSuffix(f.FullName, testName) {
			f.ShortSummary = line
			f.TestFile = testFile
			if f.ErrorType == "" && errorType != "" {
				f.ErrorType = errorType
			}
			if f.ErrorMessage == "" && errorMsg != "" {
				f.ErrorMessage = errorMsg
			}
			return
		}
	}

	p.failures = append(p.failures, Failure{
		TestFile:     testFile,
		FullName:     fullName,
		TestMethod:   testName,
		ErrorType:    errorType,
		ErrorMessage: errorMsg,
		ShortSummary: line,
	})
}

func (p *parser) finalizeCurrentTest() {
	if p.currentTest == nil {
		return
	}

	p.currentTest.Traceback = p.currentTraceback
	if p.currentTest.RootCauseFrame == nil {
		for i := len(p.currentTraceback) - 1; i >= 0; i-- {
			if !p.currentTraceback[i].IsTestFile {
				frame := p.currentTraceback[i]
				p.currentTest.RootCauseFrame = &frame
				break
			}
		}
	}

	p.currentTest.AssertionContext.AssertionLine = p.assertionContext
	p.currentTest.AssertionContext.WhereValues = p.whereValues
	p.currentTest.AssertionContext.ErrorType = p.currentTest.ErrorType
	p.currentTest.AssertionContext.ErrorMessage = p.currentTest.ErrorMessage
	p.currentTest.RawOutput = strings.Join(p.rawLines, "\n")

	p.failures = append(p.failures, *p.currentTest)

	p.currentTest = nil
	p.currentTraceback = nil
	p.assertionContext = ""
	p.whereValues = make(map[string]string)
	p.rawLines = nil
}

// isTestFile reports whether a path looks like a pytest test file.
func isTestFile(path string) bool {
	path = strings.ReplaceAll(path, "\\", "/")
	parts := strings.Split(path, "/")
	if len(parts) > 0 {
		filename := parts[len(parts)-1]
		if strings.HasPrefix(filename, "test_") || strings.HasSuffix(filename, "_test.py") || filename == "conftest.py" {
			return true
		}
	}
	return strings.Contains(path, "/tests/") || strings.Contains(path, "/test/")
}

// IsPytestOutput detects whether text looks like pytest output, used to
// decide whether to even attempt structured parsing vs. a bare
// exit-code fallback.
func IsPytestOutput(output string) bool {
	return strings.Contains(output, "pytest") ||
		(strings.Contains(output, "===") && strings.Contains(output, "FAILURES")) ||
		(strings.Contains(output, "FAILED") && strings.Contains(output, "::")) ||
		strings.Contains(output, "short test summary info")
}
