package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/steveyegge/weft/internal/config"
	"github.com/steveyegge/weft/internal/ui"
)

var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Read and write settings",
	GroupID:     "setup",
	Annotations: map[string]string{annotationNoStore: "true"},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the effective value of a setting",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		value := config.GetString(args[0])
		if jsonOutput {
			outputJSON(map[string]string{"key": args[0], "value": value})
			return
		}
		fmt.Println(value)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a setting to the project config.yaml",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		key, value := args[0], args[1]
		if !config.IsKnownKey(key) {
			FatalErrorWithHint(fmt.Sprintf("unknown setting %q", key), "Run 'weft config list' to see the settings")
		}
		dir, err := config.FindControlDir(dirFlag)
		if err != nil {
			fatal(err)
		}
		if err := config.SetYamlConfig(dir, key, value); err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"key": key, "value": value})
			return
		}
		fmt.Printf("%s Set %s = %s\n", ui.RenderPassIcon(), key, value)
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every setting with its effective value",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		keys := make([]string, 0, len(config.KnownKeys))
		for k := range config.KnownKeys {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		if jsonOutput {
			values := make(map[string]string, len(keys))
			for _, k := range keys {
				values[k] = config.GetString(k)
			}
			outputJSON(values)
			return
		}
		if f := config.ConfigFileUsed(); f != "" {
			fmt.Println(ui.RenderMuted("# " + f))
		}
		for _, k := range keys {
			fmt.Printf("%-24s %s\n", k, config.GetString(k))
		}
	},
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd, configListCmd)
	rootCmd.AddCommand(configCmd)
}
