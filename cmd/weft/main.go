// Command weft is a dependency-aware issue scheduler for coding agents.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/weft/internal/config"
	"github.com/steveyegge/weft/internal/debug"
	"github.com/steveyegge/weft/internal/events"
	"github.com/steveyegge/weft/internal/gate"
	"github.com/steveyegge/weft/internal/labels"
	"github.com/steveyegge/weft/internal/lifecycle"
	"github.com/steveyegge/weft/internal/storage"
	"github.com/steveyegge/weft/internal/storage/jsonl"
	"github.com/steveyegge/weft/internal/telemetry"
	"github.com/steveyegge/weft/internal/ui"
)

var (
	dirFlag     string
	actorFlag   string
	jsonOutput  bool
	verboseFlag bool
	lockTimeout time.Duration

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc

	controlDir string
	store      storage.Store
	svc        *lifecycle.Service
	publisher  events.Publisher
	logger     *slog.Logger
)

// annotationNoStore marks commands that run without an open control directory.
const annotationNoStore = "weft.nostore"

func init() {
	// Initialize viper configuration
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
	}

	rootCmd.PersistentFlags().StringVar(&dirFlag, "dir", "", "Control directory (default: auto-discover .weft)")
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "Actor name for audit trail (default: $WEFT_ACTOR, git user.name, $USER)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().DurationVar(&lockTimeout, "lock-timeout", jsonl.DefaultLockTimeout, "Maximum wait for the control directory lock")

	rootCmd.PersistentPreRun = rootPersistentPreRun

	rootCmd.AddGroup(&cobra.Group{ID: "issues", Title: "Working With Issues:"})
	rootCmd.AddGroup(&cobra.Group{ID: "views", Title: "Views & Reports:"})
	rootCmd.AddGroup(&cobra.Group{ID: "deps", Title: "Dependencies, Gates & Labels:"})
	rootCmd.AddGroup(&cobra.Group{ID: "setup", Title: "Setup & Dispatch:"})
}

var rootCmd = &cobra.Command{
	Use:           "weft",
	Short:         "weft - DAG issue scheduler for coding agents",
	Long:          `Issues woven together by their dependencies. weft tracks work items, derives which are ready, and hands them to agents under gate and capacity rules.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeStore()
		telemetry.Shutdown(context.Background())
		if rootCancel != nil {
			rootCancel()
		}
	},
}

// rootPersistentPreRun is attached in init to avoid an initialization cycle
// (needsStore refers to rootCmd).
func rootPersistentPreRun(cmd *cobra.Command, args []string) {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	applyConfigOverrides(cmd)
	debug.SetVerbose(verboseFlag)
	if jsonOutput {
		ui.DisableColor()
	}
	logger = newLogger(cmd)

	if err := telemetry.Init(rootCtx, "weft", Version); err != nil {
		WarnError("%v", err)
	}

	if !needsStore(cmd) {
		return
	}
	openStore()
}

// applyConfigOverrides merges flags with config and WEFT_* env values. Flags
// the user set win; otherwise the configured value applies.
func applyConfigOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("json") {
		config.Set("json", jsonOutput)
	} else {
		jsonOutput = config.GetBool("json")
	}
	if !flags.Changed("dir") {
		dirFlag = config.GetString("dir")
	}
	if !flags.Changed("lock-timeout") {
		if d := config.GetDuration("lock-timeout"); d != 0 {
			lockTimeout = d
		}
	}
	if !flags.Changed("verbose") && debug.Enabled() {
		verboseFlag = true
	}
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(config.GetString("log-level"))); err != nil {
		level = slog.LevelInfo
	}
	// One-shot commands only surface warnings; the dispatcher is long-running
	// and logs at the configured level.
	if cmd.Name() != "dispatch" && level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	if verboseFlag {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func needsStore(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationNoStore] == "true" {
			return false
		}
	}
	return cmd.Runnable() && cmd != rootCmd
}

// getActor returns the actor for audit trails.
func getActor() string {
	return config.ResolveActor(actorFlag)
}

// openStore locates the control directory and builds the lifecycle service
// over it.
func openStore() {
	dir, err := config.FindControlDir(dirFlag)
	if err != nil {
		FatalErrorWithHint(err.Error(), "Run 'weft init' to create a control directory")
	}
	controlDir = dir
	debug.Logf("using control directory %s\n", dir)

	js, err := jsonl.Open(dir, jsonl.Options{LockTimeout: lockTimeout})
	if err != nil {
		fatal(err)
	}
	store = telemetry.WrapStore(js)

	presets, err := loadPresets(dir)
	if err != nil {
		fatal(err)
	}
	namespaces, err := labels.ParseNamespaces(filepath.Join(dir, "config.yaml"))
	if err != nil {
		fatal(err)
	}

	local := config.LoadLocalConfigWithEnv(dir)
	prefix := local.IssuePrefix
	if prefix == "" {
		prefix = config.GetString("issue-prefix")
	}
	natsURL := local.NATS.URL
	if natsURL == "" {
		natsURL = config.GetString("nats.url")
	}
	if natsURL != "" {
		p, err := events.NewNATSPublisher(natsURL)
		if err != nil {
			WarnError("event mirroring disabled: %v", err)
		} else {
			publisher = p
		}
	}

	svc = lifecycle.New(store, lifecycle.Options{
		Logger:      logger,
		Publisher:   publisher,
		Presets:     presets,
		Namespaces:  namespaces,
		IssuePrefix: prefix,
	})
}

// loadPresets returns the builtin presets overridden by the presets file.
func loadPresets(dir string) (*gate.Registry, error) {
	reg := gate.NewRegistryWithBuiltins()
	path := config.GetString("gate.presets-file")
	if path == "" {
		return reg, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	presets, err := gate.LoadPresets(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, p := range presets {
		if err := reg.Override(p); err != nil {
			return nil, err
		}
	}
	debug.Logf("loaded %d presets from %s\n", len(presets), path)
	return reg, nil
}

func closeStore() {
	if publisher != nil {
		if p, ok := publisher.(*events.NATSPublisher); ok {
			_ = p.Flush(2 * time.Second)
		}
		_ = publisher.Close()
		publisher = nil
	}
	if store != nil {
		_ = store.Close()
		store = nil
	}
}

// splitIDs accepts space or comma separated issue IDs.
func splitIDs(args []string) []string {
	var out []string
	for _, arg := range args {
		for _, id := range strings.Split(arg, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fatal(err)
	}
}
