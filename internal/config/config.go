// Package config wraps viper for weft settings.
//
// Values come from, highest precedence first: explicit Set calls (flags),
// WEFT_* environment variables, the project .weft/config.yaml, the user
// config in $XDG_CONFIG_HOME/weft/config.yaml or ~/.weft/config.yaml, and
// the defaults below.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/steveyegge/weft/internal/types"
)

// ControlDirName is the name of the per-project control directory.
const ControlDirName = ".weft"

// EnvPrefix prefixes every bound environment variable.
const EnvPrefix = "WEFT"

var v *viper.Viper

// Initialize sets up the viper configuration singleton.
// Should be called once at application startup.
func Initialize() error {
	v = viper.New()

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	configFileSet := false
	if path := findProjectConfig(); path != "" {
		v.SetConfigFile(path)
		configFileSet = true
	} else if path := findUserConfig(); path != "" {
		v.SetConfigFile(path)
		configFileSet = true
	}

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("actor", "")
	v.SetDefault("json", false)
	v.SetDefault("dir", "")
	v.SetDefault("lock-timeout", 30*time.Second)
	v.SetDefault("log-level", "info")
	v.SetDefault("issue-prefix", "wf")
	v.SetDefault("dispatch.poll-interval", 30*time.Second)
	v.SetDefault("dispatch.actor", "")
	v.SetDefault("dispatch.workers", []any{})
	v.SetDefault("gate.default-timeout", 5*time.Minute)
	v.SetDefault("gate.presets-file", "presets.toml")
	v.SetDefault("gate.parallel", 2)
	v.SetDefault("nats.url", "")
}

// findProjectConfig walks up from the working directory looking for
// .weft/config.yaml.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		path := filepath.Join(dir, ControlDirName, "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
		if dir == filepath.Dir(dir) {
			return ""
		}
	}
}

func findUserConfig() string {
	var candidates []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "weft", "config.yaml"))
	} else if cfgDir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(cfgDir, "weft", "config.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ControlDirName, "config.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ResetForTesting clears the singleton so tests start from a clean state.
func ResetForTesting() {
	v = nil
}

// ConfigFileUsed returns the path of the loaded config file, or "".
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// GetStringSlice retrieves a string slice configuration value
func GetStringSlice(key string) []string {
	if v == nil {
		return []string{}
	}
	return v.GetStringSlice(key)
}

// Set sets a configuration value, taking precedence over every other source.
func Set(key string, value any) {
	if v != nil {
		v.Set(key, value)
	}
}

// AllSettings returns all configuration settings as a map
func AllSettings() map[string]any {
	if v == nil {
		return map[string]any{}
	}
	return v.AllSettings()
}

// Dispatch is the dispatcher section of the configuration.
type Dispatch struct {
	PollInterval time.Duration  `mapstructure:"poll-interval"`
	Workers      []types.Worker `mapstructure:"workers"`
}

// DispatchConfig decodes the dispatch section:
//
//	dispatch:
//	  poll-interval: 30s
//	  workers:
//	    - id: agent-1
//	      capacity: 2
//	      command: ./run-agent.sh
func DispatchConfig() (*Dispatch, error) {
	d := &Dispatch{PollInterval: GetDuration("dispatch.poll-interval")}
	if v == nil {
		return d, nil
	}
	if err := v.UnmarshalKey("dispatch.workers", &d.Workers); err != nil {
		return nil, fmt.Errorf("dispatch.workers: %w", err)
	}
	return d, nil
}

// ResolveActor picks the actor recorded on mutations: the flag value, then
// WEFT_ACTOR or config actor, then git user.name, then $USER.
func ResolveActor(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if actor := GetString("actor"); actor != "" {
		return actor
	}
	if out, err := exec.Command("git", "config", "user.name").Output(); err == nil {
		if name := strings.TrimSpace(string(out)); name != "" {
			return name
		}
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}

// FindControlDir returns the control directory: the explicit dir when set,
// otherwise the nearest .weft walking up from the working directory.
func FindControlDir(explicit string) (string, error) {
	if explicit != "" {
		return filepath.Abs(explicit)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, ControlDirName)
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return candidate, nil
		}
		if dir == filepath.Dir(dir) {
			return "", fmt.Errorf("no %s directory found (run 'weft init' first)", ControlDirName)
		}
	}
}
