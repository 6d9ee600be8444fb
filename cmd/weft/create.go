package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/weft/internal/lifecycle"
	"github.com/steveyegge/weft/internal/types"
)

func parseIssueType(s string) (types.IssueType, error) {
	t := types.IssueType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid issue type %q (want bug, feature, task, epic or chore)", s)
	}
	return t, nil
}

var createCmd = &cobra.Command{
	Use:     "create <title>",
	Short:   "Create an issue",
	GroupID: "issues",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		description, _ := cmd.Flags().GetString("description")
		typeStr, _ := cmd.Flags().GetString("type")
		priorityStr, _ := cmd.Flags().GetString("priority")
		labelList, _ := cmd.Flags().GetStringSlice("label")
		depList, _ := cmd.Flags().GetStringSlice("deps")
		gateList, _ := cmd.Flags().GetStringSlice("gate")
		docs, _ := cmd.Flags().GetStringSlice("doc")
		preset, _ := cmd.Flags().GetString("preset")
		id, _ := cmd.Flags().GetString("id")

		issueType, err := parseIssueType(typeStr)
		if err != nil {
			fatal(err)
		}
		priority, err := types.ParsePriority(priorityStr)
		if err != nil {
			fatal(err)
		}

		issue, err := svc.CreateIssue(rootCtx, lifecycle.CreateParams{
			ID:           id,
			Title:        strings.Join(args, " "),
			Description:  description,
			IssueType:    issueType,
			Priority:     priority,
			Labels:       labelList,
			DocRefs:      docs,
			Dependencies: splitIDs(depList),
			Gates:        gateList,
			Preset:       preset,
		}, getActor())
		if err != nil {
			fatal(err)
		}
		printIssue("Created", issue)
	},
}

var updateCmd = &cobra.Command{
	Use:     "update <id>",
	Short:   "Edit the title, description, type, priority or doc refs of an issue",
	GroupID: "issues",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var p lifecycle.UpdateParams
		flags := cmd.Flags()
		if flags.Changed("title") {
			v, _ := flags.GetString("title")
			p.Title = &v
		}
		if flags.Changed("description") {
			v, _ := flags.GetString("description")
			p.Description = &v
		}
		if flags.Changed("type") {
			v, _ := flags.GetString("type")
			t, err := parseIssueType(v)
			if err != nil {
				fatal(err)
			}
			p.IssueType = &t
		}
		if flags.Changed("priority") {
			v, _ := flags.GetString("priority")
			pr, err := types.ParsePriority(v)
			if err != nil {
				fatal(err)
			}
			p.Priority = &pr
		}
		if flags.Changed("doc") {
			v, _ := flags.GetStringSlice("doc")
			p.DocRefs = &v
		}
		if p == (lifecycle.UpdateParams{}) {
			FatalErrorWithHint("nothing to update", "Pass at least one of --title, --description, --type, --priority, --doc")
		}

		issue, err := svc.UpdateIssue(rootCtx, args[0], p, getActor())
		if err != nil {
			fatal(err)
		}
		printIssue("Updated", issue)
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>...",
	Short:   "Delete issues (dependents keep a dangling, blocking reference)",
	GroupID: "issues",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ids := splitIDs(args)
		for _, id := range ids {
			if err := svc.DeleteIssue(rootCtx, id, getActor()); err != nil {
				fatal(err)
			}
		}
		if jsonOutput {
			outputJSON(map[string]any{"deleted": ids})
			return
		}
		for _, id := range ids {
			fmt.Printf("Deleted %s\n", id)
		}
	},
}

func init() {
	createCmd.Flags().StringP("description", "d", "", "Issue description")
	createCmd.Flags().StringP("type", "t", string(types.TypeTask), "Issue type (bug|feature|task|epic|chore)")
	createCmd.Flags().StringP("priority", "p", "normal", "Priority (low|normal|high|critical or P0-P3)")
	createCmd.Flags().StringSliceP("label", "l", nil, "Labels (namespace:value), repeatable")
	createCmd.Flags().StringSlice("deps", nil, "Issues this one depends on")
	createCmd.Flags().StringSlice("gate", nil, "Required gates (must be defined)")
	createCmd.Flags().StringSlice("doc", nil, "Documentation references")
	createCmd.Flags().String("preset", "", "Gate preset to apply")
	createCmd.Flags().String("id", "", "Explicit issue ID")

	updateCmd.Flags().String("title", "", "New title")
	updateCmd.Flags().StringP("description", "d", "", "New description")
	updateCmd.Flags().StringP("type", "t", "", "New issue type")
	updateCmd.Flags().StringP("priority", "p", "", "New priority")
	updateCmd.Flags().StringSlice("doc", nil, "Replace documentation references")

	rootCmd.AddCommand(createCmd, updateCmd, deleteCmd)
}
