package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/weft/internal/config"
	"github.com/steveyegge/weft/internal/dispatch"
	"github.com/steveyegge/weft/internal/lockfile"
	"github.com/steveyegge/weft/internal/types"
	"github.com/steveyegge/weft/internal/ui"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Assign ready issues to configured workers",
	Long: `Run the dispatcher. Every poll interval it assigns the highest priority
ready, unassigned issues to workers with spare capacity, in the order the
workers are configured. Workers with a command get it launched for each
assignment, with the issue JSON on stdin.

Workers are configured in .weft/config.yaml:

  dispatch:
    poll-interval: 30s
    workers:
      - id: agent-1
        capacity: 2
        command: ./run-agent.sh

Only one dispatcher may run per control directory.`,
	GroupID: "setup",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		once, _ := cmd.Flags().GetBool("once")

		cfg := dispatchConfig()
		lock := acquireDispatchLock(cfg)
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn("release dispatch lock", "error", err)
			}
		}()

		launcher := &dispatch.Launcher{
			Dir:    filepath.Dir(controlDir),
			Logger: logger,
			Output: os.Stderr,
		}
		d := dispatch.New(svc, cfg, dispatch.Options{Logger: logger, OnAssign: launcher.Launch})

		if once {
			n, err := d.RunDispatchCycle(rootCtx)
			launcher.Wait()
			if err != nil {
				fatal(err)
			}
			if jsonOutput {
				outputJSON(map[string]int{"assigned": n})
				return
			}
			fmt.Printf("%s Assigned %d issues\n", ui.RenderPassIcon(), n)
			return
		}

		err := d.Run(rootCtx)
		launcher.Wait()
		if err != nil && !errors.Is(err, context.Canceled) {
			fatal(err)
		}
	},
}

var dispatchAssignCmd = &cobra.Command{
	Use:   "assign <worker> <issue>",
	Short: "Assign one issue to a configured worker",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := dispatchConfig()
		launcher := &dispatch.Launcher{Dir: filepath.Dir(controlDir), Logger: logger, Output: os.Stderr}
		d := dispatch.New(svc, cfg, dispatch.Options{Logger: logger, OnAssign: launcher.Launch})
		issue, err := d.AssignWork(rootCtx, args[0], args[1])
		launcher.Wait()
		if err != nil {
			fatal(err)
		}
		printIssue("Assigned to "+args[0]+":", issue)
	},
}

var dispatchNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the issue the dispatcher would assign next",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		d := dispatch.New(svc, dispatch.Config{}, dispatch.Options{Logger: logger})
		issue, err := d.NextIssueToAssign(rootCtx)
		if err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(issue)
			return
		}
		if issue == nil {
			fmt.Println("No ready, unassigned issues")
			return
		}
		fmt.Println(formatIssueLine(issue, 0))
	},
}

var dispatchStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dispatcher and worker status",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		held, holder, err := lockfile.Status(controlDir)
		if err != nil {
			fatal(err)
		}
		cfg := dispatchConfig()

		type workerStatus struct {
			types.Worker
			Load int `json:"load"`
		}
		workers := make([]workerStatus, 0, len(cfg.Workers))
		for _, w := range cfg.Workers {
			n, err := svc.WorkerLoad(rootCtx, w.ID)
			if err != nil {
				fatal(err)
			}
			workers = append(workers, workerStatus{Worker: w, Load: n})
		}

		if jsonOutput {
			outputJSON(map[string]any{
				"running": held,
				"holder":  holder,
				"workers": workers,
			})
			return
		}
		if held && holder != nil {
			fmt.Printf("Dispatcher running (pid %d, actor %s, since %s)\n",
				holder.PID, holder.Actor, holder.StartedAt.Local().Format(time.DateTime))
		} else if held {
			fmt.Println("Dispatcher running")
		} else {
			fmt.Println(ui.RenderMuted("Dispatcher not running"))
		}
		for _, w := range workers {
			line := fmt.Sprintf("  %-16s %d/%d", w.ID, w.Load, w.Capacity)
			if w.Load >= w.Capacity {
				line = ui.RenderWarn(line + " full")
			}
			fmt.Println(line)
		}
	},
}

func dispatchConfig() dispatch.Config {
	dc, err := config.DispatchConfig()
	if err != nil {
		fatal(err)
	}
	cfg := dispatch.Config{
		Workers:      dc.Workers,
		PollInterval: dc.PollInterval,
		Actor:        config.GetString("dispatch.actor"),
	}
	if err := cfg.Validate(); err != nil {
		FatalErrorWithHint(err.Error(), "Check dispatch.workers in "+filepath.Join(controlDir, "config.yaml"))
	}
	return cfg
}

func acquireDispatchLock(cfg dispatch.Config) *lockfile.Lock {
	ids := make([]string, 0, len(cfg.Workers))
	for _, w := range cfg.Workers {
		ids = append(ids, w.ID)
	}
	lock, err := lockfile.Acquire(controlDir, lockfile.LockInfo{
		PID:       os.Getpid(),
		ParentPID: os.Getppid(),
		Dir:       controlDir,
		Actor:     getActor(),
		Workers:   ids,
		StartedAt: time.Now().UTC(),
	})
	var busy *lockfile.BusyError
	if errors.As(err, &busy) {
		FatalErrorWithHint(busy.Error(), "Stop the running dispatcher or use 'weft dispatch status'")
	}
	if err != nil {
		fatal(err)
	}
	return lock
}

func init() {
	dispatchCmd.Flags().Bool("once", false, "Run a single dispatch cycle and exit")
	dispatchCmd.AddCommand(dispatchAssignCmd, dispatchNextCmd, dispatchStatusCmd)
	rootCmd.AddCommand(dispatchCmd)
}
