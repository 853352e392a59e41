package sandbox

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Pre-flight hang-pattern detection. Regex-based, non-aborting:
// matches are surfaced as hints to the Debugger rather than blocking
// the run, mirroring codeNERD's "warnings don't abort" audit-event
// philosophy, generalized from stale-mock detection to hang-pattern
// detection.
var (
	whileTrueRegex   = regexp.MustCompile(`while\s+True\s*:`)
	breakOrReturn    = regexp.MustCompile(`\b(break|return|raise|sys\.exit)\b`)
	blockingInputRe  = regexp.MustCompile(`\binput\s*\(`)
	sleepCallRe      = regexp.MustCompile(`time\.sleep\s*\(\s*(\d+(\.\d+)?)\s*\)`)
)

// ScanForHangPatterns scans every .py file under projectPath for
// patterns likely to hang a subprocess run: an unconditional `while
// True:` with no exit within a 20-line window, a blocking input()
// call, or a long time.sleep(). Returns one warning string per finding.
func ScanForHangPatterns(projectPath string) []string {
	var warnings []string

	_ = filepath.Walk(projectPath, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !strings.HasSuffix(path, ".py") {
			return nil
		}
		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		rel, _ := filepath.Rel(projectPath, path)
		warnings = append(warnings, scanFileForHangPatterns(rel, string(raw))...)
		return nil
	})

	return warnings
}

func scanFileForHangPatterns(relPath, content string) []string {
	var warnings []string
	lines := strings.Split(content, "\n")

	for i, line := range lines {
		if whileTrueRegex.MatchString(line) {
			window := lines[i:min(i+20, len(lines))]
			if !breakOrReturn.MatchString(strings.Join(window, "\n")) {
				warnings = append(warnings, fmtWarning(relPath, i+1, "while True with no break/return/raise within 20 lines"))
			}
		}
		if blockingInputRe.MatchString(line) {
			warnings = append(warnings, fmtWarning(relPath, i+1, "blocking input() call will hang a non-interactive test run"))
		}
		if m := sleepCallRe.FindStringSubmatch(line); m != nil {
			if seconds := parseSleepSeconds(m[1]); seconds >= 5 {
				warnings = append(warnings, fmtWarning(relPath, i+1, "long time.sleep() may exceed the sandbox timeout"))
			}
		}
	}

	return warnings
}

func parseSleepSeconds(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func fmtWarning(relPath string, line int, msg string) string {
	return relPath + ":" + strconv.Itoa(line) + ": " + msg
}
