package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/steveyegge/weft/internal/config"
	"github.com/steveyegge/weft/internal/lockfile"
	"github.com/steveyegge/weft/internal/storage/jsonl"
	"github.com/steveyegge/weft/internal/ui"
)

const controlGitignore = `# Lock files are per-machine
` + jsonl.LockFile + `
` + lockfile.DispatchLockFile + `
`

var initCmd = &cobra.Command{
	Use:         "init",
	Short:       "Create a .weft control directory",
	GroupID:     "setup",
	Annotations: map[string]string{annotationNoStore: "true"},
	Args:        cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		prefix, _ := cmd.Flags().GetString("prefix")

		dir := dirFlag
		if dir == "" {
			cwd, err := os.Getwd()
			if err != nil {
				fatal(err)
			}
			dir = filepath.Join(cwd, config.ControlDirName)
		}

		if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err == nil {
			fatal(fmt.Errorf("%s is already initialized", dir))
		}

		s, err := jsonl.Init(dir, jsonl.Options{})
		if err != nil {
			fatal(err)
		}
		_ = s.Close()

		cfg := &config.LocalConfig{IssuePrefix: prefix}
		if err := config.WriteLocalConfig(dir, cfg); err != nil {
			fatal(err)
		}
		gitignore := filepath.Join(dir, ".gitignore")
		if err := os.WriteFile(gitignore, []byte(controlGitignore), 0o600); err != nil && !errors.Is(err, os.ErrExist) {
			WarnError("failed to write %s: %v", gitignore, err)
		}

		if jsonOutput {
			outputJSON(map[string]string{"dir": dir, "issue_prefix": prefix})
			return
		}
		fmt.Printf("%s Initialized %s (issue prefix %q)\n", ui.RenderPassIcon(), dir, prefix)
	},
}

func init() {
	initCmd.Flags().String("prefix", "wf", "Prefix for generated issue IDs")
	rootCmd.AddCommand(initCmd)
}
