package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/steveyegge/weft/internal/storage/jsonl"
	"github.com/steveyegge/weft/internal/types"
)

// listFilter holds the filter flags of `weft list`.
type listFilter struct {
	State      string
	Priority   string
	Assignee   string
	Unassigned bool
	Labels     []string
	Query      string
}

func quoteValue(s string) string {
	if strings.ContainsAny(s, " \t()\"") {
		return strconv.Quote(s)
	}
	return s
}

// expression combines the filters into one query, every part ANDed.
// Empty means no filtering.
func (f listFilter) expression() string {
	var parts []string
	if f.State != "" {
		parts = append(parts, "state:"+f.State)
	}
	if f.Priority != "" {
		parts = append(parts, "priority:"+f.Priority)
	}
	if f.Unassigned {
		parts = append(parts, "unassigned")
	} else if f.Assignee != "" {
		parts = append(parts, "assignee:"+quoteValue(f.Assignee))
	}
	for _, l := range f.Labels {
		ns, value, ok := types.SplitLabel(l)
		if !ok {
			ns, value = l, "*"
		}
		parts = append(parts, "label:"+ns+":"+quoteValue(value))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		if len(parts) == 0 {
			return q
		}
		parts = append(parts, "("+q+")")
	}
	return strings.Join(parts, " AND ")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List issues",
	Long: `List issues, optionally filtered. Filters are combined with AND.

Query syntax (--query):
  state:ready AND unassigned
  (priority:critical OR priority:high) AND NOT blocked
  label:area:* AND NOT label:area:docs`,
	GroupID: "views",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var f listFilter
		f.State, _ = cmd.Flags().GetString("state")
		f.Priority, _ = cmd.Flags().GetString("priority")
		f.Assignee, _ = cmd.Flags().GetString("assignee")
		f.Unassigned, _ = cmd.Flags().GetBool("unassigned")
		f.Labels, _ = cmd.Flags().GetStringSlice("label")
		f.Query, _ = cmd.Flags().GetString("query")
		sortStr, _ := cmd.Flags().GetString("sort")
		watch, _ := cmd.Flags().GetBool("watch")

		sortBy, err := types.ParseSortField(sortStr)
		if err != nil {
			fatal(err)
		}
		expr := f.expression()

		render := func() error {
			var issues []*types.Issue
			var err error
			if expr == "" {
				issues, err = svc.ListIssues(rootCtx)
				types.SortIssues(issues, sortBy, false)
			} else {
				issues, err = svc.Query(rootCtx, expr, sortBy)
			}
			if err != nil {
				return err
			}
			printIssueList(os.Stdout, issues, "No issues found")
			return nil
		}

		if !watch {
			if err := render(); err != nil {
				fatal(err)
			}
			return
		}
		if err := watchControlDir(rootCtx, render); err != nil {
			fatal(err)
		}
	},
}

var readyCmd = &cobra.Command{
	Use:     "ready",
	Short:   "Show ready work in dispatch order",
	GroupID: "views",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		issues, err := svc.QueryReady(rootCtx)
		if err != nil {
			fatal(err)
		}
		printIssueList(os.Stdout, issues, "No ready work")
	},
}

var blockedCmd = &cobra.Command{
	Use:     "blocked",
	Short:   "Show issues held back by dependencies or precheck gates",
	GroupID: "views",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		issues, err := svc.QueryBlocked(rootCtx)
		if err != nil {
			fatal(err)
		}
		printIssueList(os.Stdout, issues, "No blocked issues")
	},
}

// watchDebounce coalesces the bursts of writes one update produces.
const watchDebounce = 300 * time.Millisecond

// watchControlDir calls render once and again after every change to the
// issue files, until ctx is canceled or the user interrupts.
func watchControlDir(ctx context.Context, render func() error) error {
	redraw := func() {
		if !jsonOutput {
			fmt.Print("\033[H\033[2J")
		}
		if err := render(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		fmt.Fprintf(os.Stderr, "\nWatching for changes... (Press Ctrl+C to exit)\n")
	}
	redraw()
	err := onControlDirChange(ctx, redraw)
	fmt.Fprintf(os.Stderr, "\nStopped watching.\n")
	return err
}

// onControlDirChange calls fn after each debounced change to the issue files
// until ctx is canceled or the process is interrupted.
func onControlDirChange(ctx context.Context, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Stores replace files by rename, so watch the directory, not the files.
	if err := watcher.Add(controlDir); err != nil {
		return fmt.Errorf("watching %s: %w", controlDir, err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if isIssueFile(event) {
				debounce = time.After(watchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watcher error: %v\n", err)
		case <-debounce:
			debounce = nil
			fn()
		}
	}
}

func isIssueFile(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	switch filepath.Base(event.Name) {
	case jsonl.IssuesFile, jsonl.GatesFile, jsonl.EventsFile:
		return true
	}
	return false
}

func init() {
	listCmd.Flags().StringP("state", "s", "", "Filter by state")
	listCmd.Flags().StringP("priority", "p", "", "Filter by priority")
	listCmd.Flags().StringP("assignee", "a", "", "Filter by assignee")
	listCmd.Flags().Bool("unassigned", false, "Only unassigned issues")
	listCmd.Flags().StringSliceP("label", "l", nil, "Filter by label (namespace:value or namespace), repeatable")
	listCmd.Flags().StringP("query", "q", "", "Query expression")
	listCmd.Flags().String("sort", string(types.SortFieldCreated), "Sort by dispatch|created|updated|id|title")
	listCmd.Flags().BoolP("watch", "w", false, "Redraw when issues change")

	rootCmd.AddCommand(listCmd, readyCmd, blockedCmd)
}
