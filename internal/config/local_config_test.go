package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadLocalConfig(t *testing.T) {
	tests := []struct {
		name       string
		configYAML string
		wantPrefix string
		wantActor  string
		wantNATS   string
	}{
		{
			name:       "empty config",
			configYAML: "",
		},
		{
			name:       "prefix only",
			configYAML: "issue-prefix: job\n",
			wantPrefix: "job",
		},
		{
			name:       "commented key should not match",
			configYAML: "# actor: ghost\nissue-prefix: test\n",
			wantPrefix: "test",
		},
		{
			name:       "quoted values",
			configYAML: `actor: "Ada Lovelace"` + "\n" + `issue-prefix: 'q'` + "\n",
			wantPrefix: "q",
			wantActor:  "Ada Lovelace",
		},
		{
			name:       "nested nats section",
			configYAML: "nats:\n  url: nats://127.0.0.1:4222\n",
			wantNATS:   "nats://127.0.0.1:4222",
		},
		{
			name:       "prefix nested under another section is ignored",
			configYAML: "settings:\n  issue-prefix: nested\n",
		},
		{
			name:       "invalid yaml yields empty config",
			configYAML: "issue-prefix: [oops\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			if tt.configYAML != "" {
				configPath := filepath.Join(tmpDir, "config.yaml")
				if err := os.WriteFile(configPath, []byte(tt.configYAML), 0600); err != nil {
					t.Fatalf("Failed to write config.yaml: %v", err)
				}
			}

			cfg := LoadLocalConfig(tmpDir)

			if cfg.IssuePrefix != tt.wantPrefix {
				t.Errorf("IssuePrefix = %q, want %q", cfg.IssuePrefix, tt.wantPrefix)
			}
			if cfg.Actor != tt.wantActor {
				t.Errorf("Actor = %q, want %q", cfg.Actor, tt.wantActor)
			}
			if cfg.NATS.URL != tt.wantNATS {
				t.Errorf("NATS.URL = %q, want %q", cfg.NATS.URL, tt.wantNATS)
			}
		})
	}
}

func TestLoadLocalConfigWithEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("issue-prefix: cfg\n"), 0600); err != nil {
		t.Fatalf("Failed to write config.yaml: %v", err)
	}

	t.Run("env var overrides config file", func(t *testing.T) {
		t.Setenv("WEFT_ISSUE_PREFIX", "env")

		cfg := LoadLocalConfigWithEnv(tmpDir)
		if cfg.IssuePrefix != "env" {
			t.Errorf("IssuePrefix = %q, want %q (env var should override)", cfg.IssuePrefix, "env")
		}
	})

	t.Run("no env var uses config file", func(t *testing.T) {
		cfg := LoadLocalConfigWithEnv(tmpDir)
		if cfg.IssuePrefix != "cfg" {
			t.Errorf("IssuePrefix = %q, want %q", cfg.IssuePrefix, "cfg")
		}
	})
}

func TestWriteLocalConfig(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &LocalConfig{IssuePrefix: "job", Actor: "ci"}

	if err := WriteLocalConfig(tmpDir, cfg); err != nil {
		t.Fatalf("WriteLocalConfig() returned error: %v", err)
	}

	got := LoadLocalConfig(tmpDir)
	if got.IssuePrefix != "job" || got.Actor != "ci" {
		t.Errorf("round trip = %+v, want prefix job and actor ci", got)
	}

	if err := WriteLocalConfig(tmpDir, cfg); err == nil {
		t.Error("expected WriteLocalConfig to refuse overwriting")
	}
}
