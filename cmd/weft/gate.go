package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/weft/internal/checker"
	"github.com/steveyegge/weft/internal/config"
	"github.com/steveyegge/weft/internal/gate"
	"github.com/steveyegge/weft/internal/types"
	"github.com/steveyegge/weft/internal/ui"
)

var gateCmd = &cobra.Command{
	Use:     "gate",
	Short:   "Manage quality gates",
	GroupID: "deps",
}

var gateDefineCmd = &cobra.Command{
	Use:   "define <key>",
	Short: "Define or replace a gate",
	Long: `Define or replace a global gate. Gates with --command are checked automatically
by 'weft gate check'; others are passed or failed by hand.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		title, _ := cmd.Flags().GetString("title")
		stage, _ := cmd.Flags().GetString("stage")
		command, _ := cmd.Flags().GetString("command")
		timeout, _ := cmd.Flags().GetString("timeout")
		workdir, _ := cmd.Flags().GetString("workdir")
		envList, _ := cmd.Flags().GetStringSlice("env")

		env, err := parseEnv(envList)
		if err != nil {
			fatal(err)
		}
		def, err := gate.Template{
			Key:     args[0],
			Title:   title,
			Stage:   stage,
			Command: command,
			Timeout: timeout,
			WorkDir: workdir,
			Env:     env,
		}.Gate()
		if err != nil {
			fatal(err)
		}
		if err := svc.DefineGate(rootCtx, def, getActor()); err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(def)
			return
		}
		fmt.Printf("%s Defined %s gate %s (%s)\n", ui.RenderPassIcon(), def.Stage, def.Key, def.Mode)
	},
}

func parseEnv(list []string) (map[string]string, error) {
	if len(list) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(list))
	for _, kv := range list {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --env %q (want KEY=VALUE)", kv)
		}
		env[k] = v
	}
	return env, nil
}

var gateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List gate definitions",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		defs, err := svc.Gates(rootCtx)
		if err != nil {
			fatal(err)
		}
		if jsonOutput {
			if defs == nil {
				defs = []*types.Gate{}
			}
			outputJSON(defs)
			return
		}
		if len(defs) == 0 {
			fmt.Println("No gates defined")
			return
		}
		for _, def := range defs {
			line := fmt.Sprintf("%-20s %-10s %-7s %s", def.Key, def.Stage, def.Mode, def.Title)
			if ec, ok := def.Checker.(types.ExecChecker); ok {
				line += ui.RenderMuted("  $ " + ec.Command)
			}
			fmt.Println(line)
		}
	},
}

var gateAddCmd = &cobra.Command{
	Use:   "add <issue> <key>...",
	Short: "Require gates on an issue",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		var issue *types.Issue
		for _, key := range splitIDs(args[1:]) {
			var err error
			issue, err = svc.AddGate(rootCtx, args[0], key, getActor())
			if err != nil {
				fatal(err)
			}
		}
		printIssue("Gated", issue)
	},
}

func resolveGateCmd(outcome types.GateStatus) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		note, _ := cmd.Flags().GetString("note")
		var run *types.GateRunResult
		if note != "" {
			run = &types.GateRunResult{Output: note}
		}
		resolve := svc.PassGate
		if outcome == types.GateFailed {
			resolve = svc.FailGate
		}
		rec, err := resolve(rootCtx, args[0], args[1], getActor(), run)
		if err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(rec)
			return
		}
		fmt.Printf("%s %s on %s (run %s)\n", ui.RenderGateStatus(rec.Outcome), rec.GateKey, rec.IssueID, rec.RunID)
	}
}

var gatePassCmd = &cobra.Command{
	Use:   "pass <issue> <key>",
	Short: "Mark a gate passed",
	Args:  cobra.ExactArgs(2),
	Run:   resolveGateCmd(types.GatePassed),
}

var gateFailCmd = &cobra.Command{
	Use:   "fail <issue> <key>",
	Short: "Mark a gate failed",
	Args:  cobra.ExactArgs(2),
	Run:   resolveGateCmd(types.GateFailed),
}

var gateCheckCmd = &cobra.Command{
	Use:   "check <issue>",
	Short: "Run the pending exec gates of an issue and record the results",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		stageStr, _ := cmd.Flags().GetString("stage")

		var stages []types.GateStage
		if stageStr == "all" {
			stages = []types.GateStage{types.StagePrecheck, types.StagePostcheck}
		} else {
			stage, err := gate.ParseStage(stageStr)
			if err != nil {
				fatal(err)
			}
			stages = []types.GateStage{stage}
		}

		var results []*types.GateRunResult
		for _, stage := range stages {
			recs, err := runExecGates(args[0], stage)
			if err != nil {
				fatal(err)
			}
			results = append(results, recs...)
		}

		if jsonOutput {
			if results == nil {
				results = []*types.GateRunResult{}
			}
			outputJSON(results)
			return
		}
		if len(results) == 0 {
			fmt.Println("No pending exec gates")
			return
		}
		failed := false
		for _, r := range results {
			fmt.Printf("%s %-20s exit %d in %s\n", ui.RenderGateStatus(r.Outcome), r.GateKey, r.ExitCode, r.Duration.Round(time.Millisecond))
			if r.Outcome == types.GateFailed {
				failed = true
				if out := strings.TrimSpace(r.Output); out != "" {
					fmt.Println(ui.RenderMuted(ui.TruncateLines(out, ui.DefaultMaxLines, ui.DefaultContextLines)))
				}
			}
		}
		if failed {
			os.Exit(1)
		}
	},
}

// runExecGates executes the pending exec gates of issue id at stage and
// records each result. Gates run concurrently, two at a time by default.
func runExecGates(id string, stage types.GateStage) ([]*types.GateRunResult, error) {
	issue, defs, err := svc.PendingExecGates(rootCtx, id, stage)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, nil
	}

	workDir := filepath.Dir(controlDir)
	runner := checker.NewRunner(checker.Options{
		DefaultTimeout: config.GetDuration("gate.default-timeout"),
		WorkDir:        workDir,
		Logger:         logger,
	})
	parallel := config.GetInt("gate.parallel")
	if parallel <= 0 {
		parallel = 2
	}
	runs, err := runner.RunAll(rootCtx, issue, defs, parallel)
	if err != nil {
		return nil, err
	}

	var recorded []*types.GateRunResult
	for _, run := range runs {
		if run == nil {
			continue
		}
		rec, err := svc.RecordGateRun(rootCtx, run, getActor())
		if err != nil {
			return recorded, err
		}
		recorded = append(recorded, rec)
	}
	return recorded, nil
}

var gateRunsCmd = &cobra.Command{
	Use:   "runs <issue>",
	Short: "Show the gate run history of an issue",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runs, err := svc.GateRuns(rootCtx, args[0])
		if err != nil {
			fatal(err)
		}
		if jsonOutput {
			if runs == nil {
				runs = []*types.GateRunResult{}
			}
			outputJSON(runs)
			return
		}
		if len(runs) == 0 {
			fmt.Println("No gate runs recorded")
			return
		}
		for _, r := range runs {
			line := fmt.Sprintf("%s %s %-20s %s %s",
				ui.RenderMuted(r.FinishedAt.Local().Format(time.DateTime)),
				r.RunID, r.GateKey, ui.RenderGateStatus(r.Outcome), ui.RenderAccent(r.Actor))
			if r.Command != "" {
				line += fmt.Sprintf(" exit %d", r.ExitCode)
			}
			fmt.Println(line)
		}
	},
}

var gatePresetCmd = &cobra.Command{
	Use:   "preset [name [issue...]]",
	Short: "List gate presets, or apply one to issues",
	Args:  cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			listPresets()
			return
		}
		if len(args) == 1 {
			FatalErrorWithHint("no issues given", "Usage: weft gate preset <name> <issue>...")
		}
		ids := splitIDs(args[1:])
		added, err := svc.ApplyPreset(rootCtx, args[0], ids, getActor())
		if err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(map[string]any{"preset": args[0], "issues": ids, "added": added})
			return
		}
		fmt.Printf("%s Applied preset %s to %d issues (%d gate requirements added)\n",
			ui.RenderPassIcon(), args[0], len(ids), added)
	},
}

func listPresets() {
	presets := svc.Presets().All()
	if jsonOutput {
		outputJSON(presets)
		return
	}
	for _, p := range presets {
		fmt.Printf("%s  %s\n", ui.RenderAccent(p.Name), p.Description)
		for _, t := range p.Gates {
			fmt.Printf("    %-16s %-10s %s\n", t.Key, t.Stage, t.Title)
		}
	}
}

func init() {
	gateDefineCmd.Flags().String("title", "", "Human readable title")
	gateDefineCmd.Flags().String("stage", string(types.StagePostcheck), "precheck (before work starts) or postcheck (before done)")
	gateDefineCmd.Flags().String("command", "", "Shell command checked automatically; exit 0 passes")
	gateDefineCmd.Flags().String("timeout", "", "Command timeout, e.g. 10m")
	gateDefineCmd.Flags().String("workdir", "", "Command working directory")
	gateDefineCmd.Flags().StringSlice("env", nil, "Extra environment KEY=VALUE, repeatable")

	gatePassCmd.Flags().String("note", "", "Note recorded with the run")
	gateFailCmd.Flags().String("note", "", "Note recorded with the run")
	gateCheckCmd.Flags().String("stage", string(types.StagePostcheck), "precheck, postcheck or all")

	gateCmd.AddCommand(gateDefineCmd, gateListCmd, gateAddCmd, gatePassCmd, gateFailCmd,
		gateCheckCmd, gateRunsCmd, gatePresetCmd)
	rootCmd.AddCommand(gateCmd)
}
