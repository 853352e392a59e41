package coder

import (
	"fmt"
	"strings"

	"agentpipe/internal/artifact"
)

// GenerateDocs renders a short markdown summary of plan for inclusion
// in the CodePackage. It is generated locally rather than by another
// LLM call since its content is fully determined by the plan already
// in hand; it is excluded from TestPackage entirely, since project
// documentation has no executable behavior to verify.
func GenerateDocs(plan *artifact.ArchitecturalPlan) (filename, content string) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", orTitle(plan.Analysis.Summary))
	fmt.Fprintf(&b, "Architecture: %s, complexity: %s.\n\n", plan.Analysis.ArchitectureType, plan.Analysis.Complexity)

	if len(plan.Analysis.Dependencies) > 0 {
		fmt.Fprintf(&b, "## Dependencies\n\n")
		for _, d := range plan.Analysis.Dependencies {
			fmt.Fprintf(&b, "- %s\n", d)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Files\n\n")
	for _, name := range sortedFilenames(plan.FileStructure.Files) {
		fmt.Fprintf(&b, "- `%s`: %s\n", name, plan.FileStructure.Files[name])
	}
	fmt.Fprintf(&b, "\nEntry point: `%s`\n", plan.FileStructure.EntryPoint)

	return "DOCS.md", b.String()
}

func orTitle(summary string) string {
	if summary == "" {
		return "Generated project"
	}
	return summary
}
