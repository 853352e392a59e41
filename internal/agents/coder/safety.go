package coder

import (
	"regexp"
	"strings"
)

// mainGuardRegex matches the conventional Python entry-point guard,
// tolerating single or double quotes and either comparison order.
var mainGuardRegex = regexp.MustCompile(`(?m)^if\s+(?:__name__\s*==\s*["']__main__["']|["']__main__["']\s*==\s*__name__)\s*:\s*$`)

// StripMainGuard removes a top-level "if __name__ == '__main__':" guard
// and dedents its body by one level, so the entry file's functions and
// classes stay importable — the Tester calls into the entry module
// directly rather than shelling out to run it as a script.
func StripMainGuard(source string) string {
	loc := mainGuardRegex.FindStringIndex(source)
	if loc == nil {
		return source
	}

	before := source[:loc[0]]
	rest := source[loc[1]:]

	lines := strings.Split(rest, "\n")
	var out []string
	bodyDone := false
	for _, line := range lines {
		if bodyDone {
			out = append(out, line)
			continue
		}
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			out = append(out, line)
			continue
		}
		indent := len(line) - len(trimmed)
		if indent == 0 {
			bodyDone = true
			out = append(out, line)
			continue
		}
		out = append(out, dedentOnce(line))
	}

	return strings.TrimRight(before, "\n") + "\n" + strings.Join(out, "\n")
}

// dedentOnce removes one level of indentation (up to 4 spaces or 1 tab).
func dedentOnce(line string) string {
	switch {
	case strings.HasPrefix(line, "\t"):
		return line[1:]
	case strings.HasPrefix(line, "    "):
		return line[4:]
	case strings.HasPrefix(line, "  "):
		return line[2:]
	default:
		return strings.TrimLeft(line, " ")
	}
}
