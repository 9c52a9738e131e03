package display

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/maristed/tether/pkg/feed"
	"github.com/maristed/tether/pkg/logger"
	"github.com/maristed/tether/pkg/stream"
	"github.com/maristed/tether/pkg/workflow"
)

var (
	userBadge     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	agentBadge    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorBadge    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	externalBadge = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	toolStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Formatter renders transcript entries and status lines for the follow
// mode. Agent content goes through a markdown renderer when available,
// with a plain-text fallback.
type Formatter struct {
	width      int
	markdown   bool
	showHidden bool
	renderer   *glamour.TermRenderer
	log        *logger.Logger
}

// NewFormatter creates a formatter. Markdown rendering degrades to
// plain text if the renderer cannot be constructed.
func NewFormatter(width int, markdown, showHidden bool) *Formatter {
	f := &Formatter{
		width:      width,
		markdown:   markdown,
		showHidden: showHidden,
		log:        logger.WithComponent("display"),
	}
	if markdown {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			f.log.Warn("Markdown renderer unavailable, using plain text", "error", err)
		} else {
			f.renderer = renderer
		}
	}
	return f
}

// Message renders one transcript entry, or "" when it should be skipped
func (f *Formatter) Message(m feed.AgentMessage) string {
	if m.Hidden() && !f.showHidden {
		return ""
	}

	var b strings.Builder
	b.WriteString(f.badge(m))
	b.WriteString(" ")

	switch m.Type {
	case feed.MessageTypeTool:
		b.WriteString(toolStyle.Render(m.ToolName))
		if m.ToolInput != "" {
			b.WriteString(mutedStyle.Render(" " + truncate(m.ToolInput, f.width)))
		}
		if m.ToolError {
			b.WriteString("\n" + errorBadge.Render("tool error: ") + firstLine(m.ToolResult))
		}
	case feed.MessageTypeCommit:
		for _, commit := range m.Commits {
			if commit == nil {
				continue
			}
			line := fmt.Sprintf("%s %s", shortHash(commit.Hash), commit.Subject)
			if commit.PushedBranch != "" {
				line += mutedStyle.Render(" → " + commit.PushedBranch)
			}
			b.WriteString("\n  " + line)
		}
	case feed.MessageTypeAgent:
		b.WriteString(f.content(m.Content))
	default:
		b.WriteString(strings.TrimRight(m.Content, "\n"))
	}

	for _, call := range m.ToolCalls {
		b.WriteString("\n  " + toolStyle.Render(call.Name))
		if call.ResultMessage != nil {
			b.WriteString(mutedStyle.Render(" ✓"))
		}
	}

	return b.String()
}

// Status renders a connection status line. Reconnection is silent on
// success: the connected line replaces the indicator without an error
// flicker.
func (f *Formatter) Status(update stream.StatusUpdate) string {
	line := "• " + string(update.Status)
	if update.Status == stream.StatusDisconnected && update.Err != "" {
		line += ": " + update.Err
	}
	return statusStyle.Render(line)
}

// Group renders one workflow event group with its latest run states
func (f *Formatter) Group(g workflow.EventGroup) string {
	var b strings.Builder
	header := fmt.Sprintf("%s @ %s", g.Branch, shortHash(g.CommitHash))
	b.WriteString(externalBadge.Render("[ci] ") + header)
	for _, ev := range g.Events {
		if ev.Workflow == nil {
			continue
		}
		line := ev.Workflow.Name + ": " + ev.Workflow.Status
		if ev.Workflow.Conclusion != "" {
			line += " (" + ev.Workflow.Conclusion + ")"
		}
		b.WriteString("\n  " + mutedStyle.Render(line))
	}
	return b.String()
}

// badge picks the role tag for a message
func (f *Formatter) badge(m feed.AgentMessage) string {
	switch m.Type {
	case feed.MessageTypeUser:
		return userBadge.Render("you ›")
	case feed.MessageTypeAgent:
		return agentBadge.Render("agent ›")
	case feed.MessageTypeError, feed.MessageTypeBudget:
		return errorBadge.Render(string(m.Type) + " ›")
	case feed.MessageTypeExternal:
		return externalBadge.Render("external ›")
	default:
		return mutedStyle.Render(string(m.Type) + " ›")
	}
}

// content renders markdown when the renderer is available
func (f *Formatter) content(text string) string {
	if f.renderer == nil {
		return strings.TrimRight(text, "\n")
	}
	rendered, err := f.renderer.Render(text)
	if err != nil {
		f.log.Debug("Markdown render failed, using plain text", "error", err)
		return strings.TrimRight(text, "\n")
	}
	return strings.Trim(rendered, "\n")
}

// StripANSI removes escape sequences; used by plain-output mode
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// truncate cuts on rune boundaries so a multibyte character is never
// split at the limit
func truncate(s string, limit int) string {
	s = firstLine(s)
	if limit <= 3 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
