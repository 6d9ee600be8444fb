package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/weft/internal/deps"
	"github.com/steveyegge/weft/internal/lifecycle"
	"github.com/steveyegge/weft/internal/types"
	"github.com/steveyegge/weft/internal/ui"
)

var depCmd = &cobra.Command{
	Use:     "dep",
	Short:   "Manage dependencies",
	GroupID: "deps",
}

var depAddCmd = &cobra.Command{
	Use:   "add <issue> <depends-on>...",
	Short: "Make an issue depend on others",
	Long: `Make an issue depend on others. Cycles are rejected. Edges that are already
implied through other dependencies are skipped, and existing edges made
redundant by the new one are pruned.`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		var results []*lifecycle.AddResult
		for _, to := range splitIDs(args[1:]) {
			res, err := svc.AddDependency(rootCtx, args[0], to, getActor())
			if err != nil {
				fatal(err)
			}
			results = append(results, res)
		}
		if jsonOutput {
			outputJSON(results)
			return
		}
		for _, res := range results {
			printAddResult(res)
		}
	},
}

func printAddResult(res *lifecycle.AddResult) {
	switch res.Status {
	case lifecycle.Added:
		fmt.Printf("%s %s now depends on %s\n", ui.RenderPassIcon(), res.From, res.To)
	case lifecycle.AlreadyExists:
		fmt.Printf("%s %s already depends on %s\n", ui.RenderMuted(ui.IconSkip), res.From, res.To)
	case lifecycle.Skipped:
		fmt.Printf("%s %s -> %s skipped: %s\n", ui.RenderMuted(ui.IconSkip), res.From, res.To, res.Reason)
	}
	for id, edges := range res.Pruned {
		fmt.Printf("  pruned %s -> %s (implied)\n", id, strings.Join(edges, ", "))
	}
}

var depRmCmd = &cobra.Command{
	Use:     "rm <issue> <depends-on>...",
	Aliases: []string{"remove"},
	Short:   "Remove dependencies",
	Args:    cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		removed := splitIDs(args[1:])
		for _, to := range removed {
			if err := svc.RemoveDependency(rootCtx, args[0], to, getActor()); err != nil {
				fatal(err)
			}
		}
		if jsonOutput {
			outputJSON(map[string]any{"issue": args[0], "removed": removed})
			return
		}
		for _, to := range removed {
			fmt.Printf("%s %s no longer depends on %s\n", ui.RenderPassIcon(), args[0], to)
		}
	},
}

var depTreeCmd = &cobra.Command{
	Use:   "tree <id>",
	Short: "Show the dependency tree of an issue",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dirStr, _ := cmd.Flags().GetString("direction")
		maxDepth, _ := cmd.Flags().GetInt("max-depth")
		stateStr, _ := cmd.Flags().GetString("state")
		mermaid, _ := cmd.Flags().GetBool("mermaid")

		dir, err := deps.ParseDirection(dirStr)
		if err != nil {
			fatal(err)
		}
		d, err := svc.Show(rootCtx, args[0])
		if err != nil {
			fatal(err)
		}
		g, err := svc.Graph(rootCtx)
		if err != nil {
			fatal(err)
		}
		tree, err := deps.BuildTree(g, d.Issue.ID, dir, maxDepth)
		if err != nil {
			fatal(err)
		}
		if stateStr != "" {
			state, err := types.ParseState(stateStr)
			if err != nil {
				fatal(err)
			}
			tree = deps.FilterTreeByState(tree, state)
		}

		switch {
		case jsonOutput:
			outputJSON(tree)
		case mermaid:
			deps.WriteMermaid(os.Stdout, tree, d.Issue.ID)
		default:
			r := deps.NewTreeRenderer()
			r.MutedFunc = ui.RenderMuted
			r.WarnFunc = ui.RenderWarn
			r.StyleFunc = ui.RenderState
			r.PassStyleBold = func(s string) string { return ui.PassStyle.Bold(true).Render(s) }
			r.RenderTree(os.Stdout, tree)
		}
	},
}

var depDownstreamCmd = &cobra.Command{
	Use:   "downstream <id>",
	Short: "List every issue that transitively depends on an issue",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ids, err := svc.Downstream(rootCtx, args[0])
		if err != nil {
			fatal(err)
		}
		printIDs(ids, "Nothing depends on "+args[0])
	},
}

var depRootsCmd = &cobra.Command{
	Use:   "roots",
	Short: "List issues with no dependencies",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ids, err := svc.Roots(rootCtx)
		if err != nil {
			fatal(err)
		}
		printIDs(ids, "No issues")
	},
}

var depCyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Detect dependency cycles (only possible after manual edits or merges)",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cycles, err := svc.Cycles(rootCtx)
		if err != nil {
			fatal(err)
		}
		if jsonOutput {
			if cycles == nil {
				cycles = [][]string{}
			}
			outputJSON(cycles)
			return
		}
		if len(cycles) == 0 {
			fmt.Printf("%s No dependency cycles\n", ui.RenderPassIcon())
			return
		}
		fmt.Printf("%s %d dependency cycles:\n", ui.RenderFailIcon(), len(cycles))
		for _, c := range cycles {
			fmt.Printf("  %s -> %s\n", strings.Join(c, " -> "), c[0])
		}
		os.Exit(1)
	},
}

func printIDs(ids []string, emptyMsg string) {
	if jsonOutput {
		if ids == nil {
			ids = []string{}
		}
		outputJSON(ids)
		return
	}
	if len(ids) == 0 {
		fmt.Println(emptyMsg)
		return
	}
	for _, id := range ids {
		fmt.Println(id)
	}
}

func init() {
	depTreeCmd.Flags().String("direction", "down", "down (dependencies) or up (dependents)")
	depTreeCmd.Flags().Int("max-depth", 0, "Limit tree depth (0 = unlimited)")
	depTreeCmd.Flags().String("state", "", "Only show branches leading to issues in this state")
	depTreeCmd.Flags().Bool("mermaid", false, "Output a Mermaid.js flowchart")

	depCmd.AddCommand(depAddCmd, depRmCmd, depTreeCmd, depDownstreamCmd, depRootsCmd, depCyclesCmd)
	rootCmd.AddCommand(depCmd)
}
