package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/steveyegge/weft/internal/types"
	"github.com/steveyegge/weft/internal/ui"
)

// formatIssueLine renders one issue for list views:
//
//	☐ wf-a1b2 [high] Fix the parser @agent-1 #area:cli
func formatIssueLine(issue *types.Issue, titleWidth int) string {
	var b strings.Builder
	b.WriteString(ui.StateIcon(issue.State))
	b.WriteString(" ")
	b.WriteString(ui.RenderState(issue.State, issue.ID))
	b.WriteString(" [")
	b.WriteString(ui.RenderPriority(issue.Priority))
	b.WriteString("] ")
	title := issue.Title
	if titleWidth > 0 {
		title = ui.TruncateSimple(title, titleWidth)
	}
	b.WriteString(title)
	if issue.Assignee != "" {
		b.WriteString(" ")
		b.WriteString(ui.RenderAccent("@" + issue.Assignee))
	}
	for _, l := range issue.Labels {
		b.WriteString(" ")
		b.WriteString(ui.RenderMuted("#" + l))
	}
	return b.String()
}

// printIssueList writes issues one per line, or JSON with --json.
func printIssueList(w io.Writer, issues []*types.Issue, emptyMsg string) {
	if jsonOutput {
		if issues == nil {
			issues = []*types.Issue{}
		}
		outputJSON(issues)
		return
	}
	if len(issues) == 0 {
		fmt.Fprintln(w, emptyMsg)
		return
	}
	width := ui.TerminalWidth(0)
	titleWidth := 0
	if width > 40 {
		titleWidth = width / 2
	}
	for _, issue := range issues {
		fmt.Fprintln(w, formatIssueLine(issue, titleWidth))
	}
}

// printIssue reports the result of a mutation on one issue.
func printIssue(verb string, issue *types.Issue) {
	if jsonOutput {
		outputJSON(issue)
		return
	}
	fmt.Printf("%s %s %s: %s (%s)\n", ui.RenderPassIcon(), verb, issue.ID, issue.Title,
		ui.RenderState(issue.State, string(issue.State)))
}

func formatEvent(e *types.Event) string {
	var detail []string
	if e.OldValue != nil && e.NewValue != nil {
		detail = append(detail, *e.OldValue+" -> "+*e.NewValue)
	} else if e.NewValue != nil {
		detail = append(detail, *e.NewValue)
	} else if e.OldValue != nil {
		detail = append(detail, *e.OldValue)
	}
	if e.Comment != nil && *e.Comment != "" {
		detail = append(detail, fmt.Sprintf("%q", *e.Comment))
	}
	line := fmt.Sprintf("%s %s %-18s %s",
		ui.RenderMuted(e.CreatedAt.Local().Format(time.DateTime)),
		e.IssueID, e.EventType, ui.RenderAccent(e.Actor))
	if len(detail) > 0 {
		line += " " + strings.Join(detail, " ")
	}
	return line
}
