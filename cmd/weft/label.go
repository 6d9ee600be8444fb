package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/weft/internal/types"
	"github.com/steveyegge/weft/internal/ui"
)

var labelCmd = &cobra.Command{
	Use:     "label",
	Short:   "Manage issue labels and label namespaces",
	GroupID: "issues",
}

var labelAddCmd = &cobra.Command{
	Use:   "add <issue> <label>...",
	Short: "Add labels to an issue",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		var issue *types.Issue
		for _, l := range args[1:] {
			var err error
			if issue, err = svc.AddLabel(rootCtx, args[0], l, getActor()); err != nil {
				fatal(err)
			}
		}
		printIssue("Labeled", issue)
	},
}

var labelRemoveCmd = &cobra.Command{
	Use:     "rm <issue> <label>...",
	Aliases: []string{"remove"},
	Short:   "Remove labels from an issue",
	Args:    cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		var issue *types.Issue
		for _, l := range args[1:] {
			var err error
			if issue, err = svc.RemoveLabel(rootCtx, args[0], l, getActor()); err != nil {
				fatal(err)
			}
		}
		printIssue("Unlabeled", issue)
	},
}

var labelNamespaceCmd = &cobra.Command{
	Use:   "ns [name]",
	Short: "List label namespaces, or define one",
	Long: `Without arguments, list the label namespaces. With a name, define or
replace that namespace. A unique namespace allows at most one of its labels
per issue; --values restricts the allowed values.

  weft label ns severity --unique --values low,medium,high`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			listNamespaces()
			return
		}
		unique, _ := cmd.Flags().GetBool("unique")
		values, _ := cmd.Flags().GetStringSlice("values")
		desc, _ := cmd.Flags().GetString("description")
		ns := &types.LabelNamespace{
			Name:        args[0],
			Unique:      unique,
			Values:      values,
			Description: desc,
		}
		if err := svc.DefineNamespace(rootCtx, ns, getActor()); err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(ns)
			return
		}
		fmt.Printf("%s Defined label namespace %s\n", ui.RenderPassIcon(), ns.Name)
	},
}

func listNamespaces() {
	nss, err := svc.Namespaces(rootCtx)
	if err != nil {
		fatal(err)
	}
	if jsonOutput {
		if nss == nil {
			nss = []*types.LabelNamespace{}
		}
		outputJSON(nss)
		return
	}
	if len(nss) == 0 {
		fmt.Println("No label namespaces defined")
		return
	}
	for _, ns := range nss {
		line := ui.RenderAccent(ns.Name)
		if ns.Unique {
			line += " (unique)"
		}
		if len(ns.Values) > 0 {
			line += " " + ui.RenderMuted("["+strings.Join(ns.Values, ", ")+"]")
		}
		if ns.Description != "" {
			line += "  " + ns.Description
		}
		fmt.Println(line)
	}
}

func init() {
	labelNamespaceCmd.Flags().Bool("unique", false, "Allow at most one label from this namespace per issue")
	labelNamespaceCmd.Flags().StringSlice("values", nil, "Allowed values (comma-separated)")
	labelNamespaceCmd.Flags().String("description", "", "Namespace description")

	labelCmd.AddCommand(labelAddCmd, labelRemoveCmd, labelNamespaceCmd)
	rootCmd.AddCommand(labelCmd)
}
