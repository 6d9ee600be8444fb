package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/weft/internal/lifecycle"
	"github.com/steveyegge/weft/internal/types"
	"github.com/steveyegge/weft/internal/ui"
)

var claimCmd = &cobra.Command{
	Use:     "claim <id>",
	Short:   "Claim a ready issue and start working on it",
	GroupID: "issues",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		assignee, _ := cmd.Flags().GetString("assignee")
		maxAssigned, _ := cmd.Flags().GetInt("max")

		issue, err := svc.ClaimIssue(rootCtx, args[0], getActor(), lifecycle.ClaimOptions{
			Assignee:    assignee,
			MaxAssigned: maxAssigned,
		})
		if err != nil {
			fatal(err)
		}
		printIssue("Claimed", issue)
	},
}

var releaseCmd = &cobra.Command{
	Use:     "release <id>",
	Short:   "Give an in-progress issue back to the ready pool",
	GroupID: "issues",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reason, _ := cmd.Flags().GetString("reason")
		issue, err := svc.ReleaseIssue(rootCtx, args[0], getActor(), reason)
		if err != nil {
			fatal(err)
		}
		printIssue("Released", issue)
	},
}

var doneCmd = &cobra.Command{
	Use:     "done <id>",
	Aliases: []string{"close", "complete"},
	Short:   "Complete an issue (gated until its postcheck gates pass)",
	GroupID: "issues",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		check, _ := cmd.Flags().GetBool("check")
		if check {
			if _, err := runExecGates(args[0], types.StagePostcheck); err != nil {
				fatal(err)
			}
		}

		issue, err := svc.CompleteIssue(rootCtx, args[0], getActor())
		if errors.Is(err, types.ErrGateValidationFailed) && issue != nil {
			if jsonOutput {
				outputJSONError(err, types.ErrorCode(err))
			}
			fmt.Fprintf(os.Stderr, "%s %s is gated: waiting on postcheck gates %s\n",
				ui.RenderWarnIcon(), issue.ID, strings.Join(pendingPostcheckGates(issue.ID), ", "))
			fmt.Fprintf(os.Stderr, "Hint: pass them with 'weft gate pass %s <gate>' or 'weft gate check %s'\n", issue.ID, issue.ID)
			os.Exit(1)
		}
		if err != nil {
			fatal(err)
		}
		printIssue("Completed", issue)
	},
}

// pendingPostcheckGates lists the postcheck gates that still keep id from
// Done. Precheck gates are left out.
func pendingPostcheckGates(id string) []string {
	d, err := svc.Show(rootCtx, id)
	if err != nil {
		return nil
	}
	return d.Postcheck.Unsatisfied()
}

var reopenCmd = &cobra.Command{
	Use:     "reopen <id>",
	Short:   "Reopen a done issue",
	GroupID: "issues",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reason, _ := cmd.Flags().GetString("reason")
		issue, err := svc.ReopenIssue(rootCtx, args[0], getActor(), reason)
		if err != nil {
			fatal(err)
		}
		printIssue("Reopened", issue)
	},
}

var rejectCmd = &cobra.Command{
	Use:     "reject <id>",
	Short:   "Close an issue as rejected (dependents stay blocked)",
	GroupID: "issues",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reason, _ := cmd.Flags().GetString("reason")
		issue, err := svc.RejectIssue(rootCtx, args[0], getActor(), reason)
		if err != nil {
			fatal(err)
		}
		printIssue("Rejected", issue)
	},
}

func init() {
	claimCmd.Flags().String("assignee", "", "Assign to this worker instead of the actor")
	claimCmd.Flags().Int("max", 0, "Fail if the assignee already holds this many in-progress issues (0 = no cap)")
	releaseCmd.Flags().StringP("reason", "r", "", "Reason recorded in the audit trail")
	doneCmd.Flags().Bool("check", false, "Run pending exec postcheck gates first")
	reopenCmd.Flags().StringP("reason", "r", "", "Reason recorded in the audit trail")
	rejectCmd.Flags().StringP("reason", "r", "", "Reason recorded in the audit trail")

	rootCmd.AddCommand(claimCmd, releaseCmd, doneCmd, reopenCmd, rejectCmd)
}
