package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/weft/internal/gate"
	"github.com/steveyegge/weft/internal/lifecycle"
	"github.com/steveyegge/weft/internal/types"
	"github.com/steveyegge/weft/internal/ui"
)

var showCmd = &cobra.Command{
	Use:     "show <id>...",
	Short:   "Show issue details",
	GroupID: "issues",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		full, _ := cmd.Flags().GetBool("full")

		var all []*lifecycle.Details
		for _, id := range splitIDs(args) {
			d, err := svc.Show(rootCtx, id)
			if err != nil {
				fatal(err)
			}
			all = append(all, d)
		}
		if jsonOutput {
			if len(all) == 1 {
				outputJSON(all[0])
			} else {
				outputJSON(all)
			}
			return
		}
		for i, d := range all {
			if i > 0 {
				fmt.Println()
			}
			displayDetails(os.Stdout, d, full)
		}
	},
}

func displayDetails(w io.Writer, d *lifecycle.Details, full bool) {
	issue := d.Issue
	fmt.Fprintf(w, "%s %s: %s\n", ui.StateIcon(issue.State), ui.RenderState(issue.State, issue.ID), issue.Title)

	meta := []string{
		"State: " + ui.RenderState(issue.State, string(issue.State)),
		"Priority: " + ui.RenderPriority(issue.Priority),
	}
	if issue.IssueType != "" {
		meta = append(meta, "Type: "+string(issue.IssueType))
	}
	if issue.Assignee != "" {
		meta = append(meta, "Assignee: "+issue.Assignee)
	}
	fmt.Fprintln(w, strings.Join(meta, "  "))
	fmt.Fprintln(w, ui.RenderMuted(fmt.Sprintf("Created %s  Updated %s  Revision %d",
		issue.CreatedAt.Local().Format("2006-01-02 15:04"),
		issue.UpdatedAt.Local().Format("2006-01-02 15:04"),
		issue.Revision)))
	if issue.Parent != "" {
		fmt.Fprintf(w, "Parent: %s\n", issue.Parent)
	}
	if d.Blocked {
		fmt.Fprintf(w, "%s blocked\n", ui.RenderWarnIcon())
	}

	if issue.Description != "" {
		desc := ui.WrapText(issue.Description, ui.TerminalWidth(80))
		if !full {
			desc = ui.TruncateLines(desc, ui.DefaultMaxLines, ui.DefaultContextLines)
		}
		fmt.Fprintf(w, "\n%s\n%s\n", ui.RenderCategory("description"), desc)
	}

	if len(issue.Labels) > 0 {
		fmt.Fprintf(w, "\n%s %s\n", ui.RenderCategory("labels:"), strings.Join(issue.Labels, ", "))
	}
	if len(issue.DocRefs) > 0 {
		fmt.Fprintf(w, "\n%s\n", ui.RenderCategory("docs"))
		for _, ref := range issue.DocRefs {
			fmt.Fprintf(w, "  %s\n", ref)
		}
	}

	if len(d.Dependencies) > 0 {
		fmt.Fprintf(w, "\n%s\n", ui.RenderCategory("depends on"))
		for _, dep := range d.Dependencies {
			if dep.Missing {
				fmt.Fprintf(w, "  %s %s\n", ui.RenderFail(dep.ID), ui.RenderMuted("(missing)"))
				continue
			}
			fmt.Fprintf(w, "  %s %s: %s\n", ui.StateIcon(dep.State), ui.RenderState(dep.State, dep.ID), dep.Title)
		}
	}
	if len(d.Dependents) > 0 {
		fmt.Fprintf(w, "\n%s %s\n", ui.RenderCategory("blocks:"), strings.Join(d.Dependents, ", "))
	}

	if len(issue.RequiredGates) > 0 {
		fmt.Fprintf(w, "\n%s\n", ui.RenderCategory("gates"))
		writeEvaluation(w, issue, d.Precheck)
		writeEvaluation(w, issue, d.Postcheck)
		if len(d.Runs) > 0 {
			fmt.Fprintln(w, ui.RenderMuted(fmt.Sprintf("  %d runs recorded (weft gate runs %s)", len(d.Runs), issue.ID)))
		}
	}
}

func writeEvaluation(w io.Writer, issue *types.Issue, e gate.Evaluation) {
	keys := make([]string, 0, len(e.Passed)+len(e.Pending)+len(e.Failed))
	keys = append(keys, e.Passed...)
	keys = append(keys, e.Pending...)
	keys = append(keys, e.Failed...)
	for _, key := range keys {
		status := issue.GateStatus[key]
		if status == "" {
			status = types.GatePending
		}
		fmt.Fprintf(w, "  %-10s %-20s %s\n", e.Stage, key, ui.RenderGateStatus(status))
	}
	for _, key := range e.Undefined {
		fmt.Fprintf(w, "  %-10s %-20s %s\n", e.Stage, key, ui.RenderFail("undefined"))
	}
}

func init() {
	showCmd.Flags().Bool("full", false, "Show the complete description")
	rootCmd.AddCommand(showCmd)
}
