// Package ui is the pipeline CLI's bubbletea stub: a minimal, static
// view of one orchestrator.RunResult, proving bubbletea/lipgloss/
// glamour are wired without growing a full TUI out of --ui's scope.
// Grounded on the codeNERD cmd/nerd/chat package, which renders
// assistant turns through a glamour renderer with panic recovery
// (view.go's safeRenderMarkdown) styled via cmd/nerd/ui/styles.go's
// lipgloss palette.
package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	tea "github.com/charmbracelet/bubbletea"

	"agentpipe/internal/orchestrator"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	labelStyle  = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))
)

// model is a non-interactive bubbletea program: it renders once and
// quits on the first keypress.
type model struct {
	body string
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(tea.KeyMsg); ok {
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	return m.body + "\n" + labelStyle.Render("(press any key to exit)") + "\n"
}

// Render draws result as a bubbletea program and blocks until the user
// dismisses it. Markdown produced for the view is rendered through
// glamour with panic recovery, same as chat/view.go's safeRenderMarkdown.
func Render(result orchestrator.RunResult) error {
	body := safeRenderMarkdown(toMarkdown(result))
	p := tea.NewProgram(model{body: body})
	_, err := p.Run()
	return err
}

func safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

func toMarkdown(result orchestrator.RunResult) string {
	var sb strings.Builder
	statusWord := string(result.FinalStatus)
	style := okStyle
	if result.FinalStatus != orchestrator.StatusSuccess {
		style = errorStyle
	}

	sb.WriteString(headerStyle.Render(fmt.Sprintf("# Pipeline Run %s", result.RunID)))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("**Status:** %s\n\n", style.Render(statusWord)))

	if result.Plan != nil {
		sb.WriteString(fmt.Sprintf("**Architecture:** %s (%s, %s)\n\n",
			result.Plan.Analysis.Summary, result.Plan.Analysis.ArchitectureType, result.Plan.Analysis.Complexity))
	}
	if result.TestPackage != nil {
		sb.WriteString(fmt.Sprintf("**Tests:** %d passed, %d failed\n\n",
			result.TestPackage.Analysis.PassedCount, result.TestPackage.Analysis.FailedCount))
	}
	if result.DebuggerRan {
		sb.WriteString(fmt.Sprintf("**Debugger:** %d attempt(s), success=%v\n\n",
			len(result.DebugResult.Attempts), result.DebugResult.Success))
	}
	if result.Error != "" {
		sb.WriteString(fmt.Sprintf("**Error:** %s\n\n", result.Error))
	}
	sb.WriteString(fmt.Sprintf("_elapsed %s_\n", result.FinishedAt.Sub(result.StartedAt)))
	return sb.String()
}

// IsInteractive reports whether stdout looks like a terminal, the same
// check codeNERD's chat entry point uses before launching bubbletea
// instead of falling back to plain output.
func IsInteractive() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
