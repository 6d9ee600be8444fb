package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalConfig is the subset of config.yaml read directly from a control
// directory rather than through the viper singleton, e.g. by `weft init`
// before any config is loaded, or for a directory other than the current one.
type LocalConfig struct {
	IssuePrefix string `yaml:"issue-prefix,omitempty"`
	Actor       string `yaml:"actor,omitempty"`
	NATS        struct {
		URL string `yaml:"url,omitempty"`
	} `yaml:"nats,omitempty"`
}

// LoadLocalConfig reads and parses config.yaml from the control directory.
// Returns an empty LocalConfig (not nil) if the file doesn't exist or can't be parsed.
func LoadLocalConfig(dir string) *LocalConfig {
	configPath := filepath.Join(dir, "config.yaml")
	data, err := os.ReadFile(configPath) // #nosec G304 - config file path from control dir
	if err != nil {
		return &LocalConfig{}
	}

	var cfg LocalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return &LocalConfig{}
	}

	return &cfg
}

// LoadLocalConfigWithEnv reads config.yaml and applies WEFT_ISSUE_PREFIX,
// WEFT_ACTOR and WEFT_NATS_URL overrides.
func LoadLocalConfigWithEnv(dir string) *LocalConfig {
	cfg := LoadLocalConfig(dir)
	if prefix := os.Getenv("WEFT_ISSUE_PREFIX"); prefix != "" {
		cfg.IssuePrefix = prefix
	}
	if actor := os.Getenv("WEFT_ACTOR"); actor != "" {
		cfg.Actor = actor
	}
	if url := os.Getenv("WEFT_NATS_URL"); url != "" {
		cfg.NATS.URL = url
	}
	return cfg
}

// WriteLocalConfig writes cfg as config.yaml in dir, refusing to replace an
// existing file.
func WriteLocalConfig(dir string, cfg *LocalConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	header := "# weft configuration. Keys can also be set with WEFT_* environment variables.\n"
	path := filepath.Join(dir, "config.yaml")
	// #nosec G304 - config file path from control dir
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.WriteString(header + string(data)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
