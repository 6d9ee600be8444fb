package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/weft/internal/lifecycle"
	"github.com/steveyegge/weft/internal/types"
	"github.com/steveyegge/weft/internal/ui"
)

var breakdownCmd = &cobra.Command{
	Use:   "breakdown <parent> [title...]",
	Short: "Split an issue into child issues",
	Long: `Split an issue into child issues with IDs <parent>.1, <parent>.2, ...
The parent depends on every child, so it only becomes ready once all of
them are done.

Subtasks come from the arguments or, with --file, one per line (use - for
stdin). A line of the form "title :: description" sets the description.

  weft breakdown wf-a1b2 "Write parser" "Wire CLI" --gates inherit`,
	GroupID: "deps",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		typeStr, _ := cmd.Flags().GetString("type")
		gatesStr, _ := cmd.Flags().GetString("gates")
		file, _ := cmd.Flags().GetString("file")
		prioStr, _ := cmd.Flags().GetString("priority")

		childType, err := parseIssueType(typeStr)
		if err != nil {
			fatal(err)
		}
		opt, err := lifecycle.ParseGateOption(gatesStr)
		if err != nil {
			fatal(err)
		}

		lines := args[1:]
		if file != "" {
			fileLines, err := readSubtaskFile(file)
			if err != nil {
				fatal(err)
			}
			lines = append(lines, fileLines...)
		}
		subtasks := parseSubtasks(lines)
		if len(subtasks) == 0 {
			FatalErrorWithHint("no subtasks given", "Pass titles as arguments or use --file")
		}
		if prioStr != "" {
			p, err := types.ParsePriority(prioStr)
			if err != nil {
				fatal(err)
			}
			for i := range subtasks {
				subtasks[i].Priority = &p
			}
		}

		children, err := svc.BreakdownIssue(rootCtx, args[0], childType, subtasks, opt, getActor())
		if err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(children)
			return
		}
		fmt.Printf("%s Broke %s into %d issues\n", ui.RenderPassIcon(), args[0], len(children))
		for _, c := range children {
			fmt.Println("  " + formatIssueLine(c, 0))
		}
	},
}

func readSubtaskFile(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path) // #nosec G304 - user-supplied subtask list
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// parseSubtasks turns "title :: description" lines into subtasks, skipping
// blank lines and # comments.
func parseSubtasks(lines []string) []lifecycle.Subtask {
	var out []lifecycle.Subtask
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		title, desc, _ := strings.Cut(line, "::")
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		out = append(out, lifecycle.Subtask{Title: title, Description: strings.TrimSpace(desc)})
	}
	return out
}

func init() {
	breakdownCmd.Flags().StringP("type", "t", string(types.TypeTask), "Child issue type")
	breakdownCmd.Flags().String("gates", "none", "Child gates: none, inherit or preset:<name>")
	breakdownCmd.Flags().StringP("file", "f", "", "Read subtasks from a file, one per line (- for stdin)")
	breakdownCmd.Flags().StringP("priority", "p", "", "Child priority (default: the parent's)")
	rootCmd.AddCommand(breakdownCmd)
}
