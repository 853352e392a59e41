// Package coder turns an ArchitecturalPlan into a CodePackage: one
// source file per plan.FileStructure.Files entry, generated either in
// a single JSON-map call or, on parse failure, file by file.
package coder

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"agentpipe/internal/artifact"
	"agentpipe/internal/agents/role"
	"agentpipe/internal/llmrpc"
	"agentpipe/internal/logging"
)

const systemPrompt = `You are an expert Python developer implementing an architectural plan exactly as specified.

Coordination rules:
- The entry file owns every class definition.
- Helper files only import from the entry file; they never redefine classes.
- Data-holder files only hold data (constants, fixtures), no logic.
- Data/query methods return values; only main() prints.
- Never wrap the entry file's top level in "if __name__ == '__main__':" — it must be importable.

Return a single JSON object mapping each filename to its complete source text, and nothing else.`

// filePrompt is used for the per-file fallback path.
const filePrompt = `You are an expert Python developer. Write the complete contents of %q for the project below.

Project summary: %s
This file's purpose: %s
Classes this file must define: %s
Functions this file must define: %s
Key logic: %s

Coordination rules: the entry file owns all classes; helper files only import and never redefine them; data methods return values, only main() prints; never wrap the entry file in "if __name__ == '__main__':".

Return ONLY the raw source code for this file, no markdown fences, no commentary.`

// Coder holds the LLM client and parser used to generate a project's source.
type Coder struct {
	client llmrpc.Client
	parser *artifact.Parser
}

func New(client llmrpc.Client) *Coder {
	return &Coder{client: client, parser: artifact.NewParser()}
}

func (c *Coder) Name() string { return "coder" }

func (c *Coder) Invoke(ctx context.Context, prompt role.Prompt) (string, error) {
	resp, err := llmrpc.SendWithRetry(ctx, c.client, llmrpc.Request{
		Prompt:        prompt.User,
		SystemContext: prompt.System,
		Temperature:   0.2,
		MaxTokens:     8192,
	})
	if err != nil {
		return "", fmt.Errorf("coder: invoke: %w", err)
	}
	return resp.Text, nil
}

// Generate produces a CodePackage implementing plan. It first attempts
// a single call requesting every file as a JSON map; on parse failure
// it falls back to one call per file, prompted with that file's
// DetailedPlan entry — grounded on the Python original's identical
// "generate_file_by_file" fallback.
func (c *Coder) Generate(ctx context.Context, plan *artifact.ArchitecturalPlan) (*artifact.CodePackage, error) {
	filenames := sortedFilenames(plan.FileStructure.Files)

	text, err := c.Invoke(ctx, role.Prompt{
		System: systemPrompt,
		User:   bulkUserPrompt(plan, filenames),
	})
	if err != nil {
		return nil, err
	}

	files, confidence := c.parser.ParseCodePackage(text, filenames)
	if confidence == artifact.ConfidenceLow || !hasAllFiles(files, filenames) {
		logging.Get(logging.CategoryCoder).Warn("bulk code generation incomplete, falling back to per-file generation")
		files, err = c.generateFileByFile(ctx, plan, filenames)
		if err != nil {
			return nil, err
		}
	}

	entry := plan.FileStructure.EntryPoint
	if src, ok := files[entry]; ok {
		files[entry] = StripMainGuard(src)
	}

	docsName, docs := GenerateDocs(plan)
	files[docsName] = docs

	return &artifact.CodePackage{
		Files:        files,
		Plan:         plan,
		EntryPoint:   entry,
		DocsFilename: docsName,
	}, nil
}

func (c *Coder) generateFileByFile(ctx context.Context, plan *artifact.ArchitecturalPlan, filenames []string) (map[string]string, error) {
	files := make(map[string]string, len(filenames))
	for _, name := range filenames {
		fp := plan.DetailedPlan[name]
		prompt := fmt.Sprintf(filePrompt, name, plan.Analysis.Summary, fp.Purpose,
			strings.Join(fp.Classes, ", "), strings.Join(fp.Functions, ", "), fp.KeyLogic)

		text, err := c.Invoke(ctx, role.Prompt{System: systemPrompt, User: prompt})
		if err != nil {
			return nil, fmt.Errorf("coder: generate %q: %w", name, err)
		}
		files[name] = strings.TrimSpace(stripFencesIfPresent(text))
	}
	return files, nil
}

func bulkUserPrompt(plan *artifact.ArchitecturalPlan, filenames []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project summary: %s\n", plan.Analysis.Summary)
	fmt.Fprintf(&b, "Entry point: %s\n\n", plan.FileStructure.EntryPoint)
	fmt.Fprintln(&b, "Files to generate:")
	for _, name := range filenames {
		fmt.Fprintf(&b, "- %s: %s\n", name, plan.FileStructure.Files[name])
		if fp, ok := plan.DetailedPlan[name]; ok {
			if fp.Purpose != "" {
				fmt.Fprintf(&b, "    purpose: %s\n", fp.Purpose)
			}
			if len(fp.Classes) > 0 {
				fmt.Fprintf(&b, "    classes: %s\n", strings.Join(fp.Classes, ", "))
			}
		}
	}
	return b.String()
}

func sortedFilenames(files map[string]string) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func hasAllFiles(files map[string]string, expected []string) bool {
	for _, name := range expected {
		if _, ok := files[name]; !ok {
			return false
		}
	}
	return true
}

// stripFencesIfPresent removes a leading/trailing markdown code fence,
// used only for the per-file fallback path where a model sometimes
// wraps raw source in ``` despite being asked not to.
func stripFencesIfPresent(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return text
	}
	if strings.HasPrefix(lines[len(lines)-1], "```") {
		lines = lines[1 : len(lines)-1]
	} else {
		lines = lines[1:]
	}
	return strings.Join(lines, "\n")
}
