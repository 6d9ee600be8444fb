package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsKnownKey(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"actor", true},
		{"json", true},
		{"lock-timeout", true},
		{"dispatch.poll-interval", true},
		{"nats.url", true},
		{"dispatch.workers", false},
		{"no-daemon", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := IsKnownKey(tt.key); got != tt.expected {
				t.Errorf("IsKnownKey(%q) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestUpdateYamlKey(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		key      string
		value    string
		expected string
	}{
		{
			name:     "update existing key",
			content:  "actor: old\njson: false\n",
			key:      "actor",
			value:    "new",
			expected: "actor: new\njson: false\n",
		},
		{
			name:     "uncomment key",
			content:  "# lock-timeout: 30s\nactor: me\n",
			key:      "lock-timeout",
			value:    "1m",
			expected: "lock-timeout: 1m\nactor: me\n",
		},
		{
			name:     "append missing key",
			content:  "actor: me\n",
			key:      "json",
			value:    "TRUE",
			expected: "actor: me\n\njson: true\n",
		},
		{
			name:     "empty file",
			content:  "",
			key:      "issue-prefix",
			value:    "job",
			expected: "issue-prefix: job\n",
		},
		{
			name:     "quote special characters",
			content:  "",
			key:      "nats.url",
			value:    "nats://localhost:4222",
			expected: "nats.url: \"nats://localhost:4222\"\n",
		},
		{
			name:     "nested key is not touched",
			content:  "gate:\n  actor: keep\n",
			key:      "actor",
			value:    "top",
			expected: "gate:\n  actor: keep\n\nactor: top\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := updateYamlKey(tt.content, tt.key, tt.value)
			if got != tt.expected {
				t.Errorf("updateYamlKey() =\n%q\nwant:\n%q", got, tt.expected)
			}
		})
	}
}

func TestFormatYamlValue(t *testing.T) {
	tests := []struct {
		value    string
		expected string
	}{
		{"true", "true"},
		{"False", "false"},
		{"42", "42"},
		{"-1.5", "-1.5"},
		{"30s", "30s"},
		{"1h30m", "1h30m"},
		{"plain", "plain"},
		{"", `""`},
		{" padded", `" padded"`},
		{"a#b", `"a#b"`},
	}
	for _, tt := range tests {
		if got := formatYamlValue(tt.value); got != tt.expected {
			t.Errorf("formatYamlValue(%q) = %s, want %s", tt.value, got, tt.expected)
		}
	}
}

func TestSetYamlConfig(t *testing.T) {
	dir := t.TempDir()

	if err := SetYamlConfig(dir, "actor", "ci-bot"); err != nil {
		t.Fatalf("SetYamlConfig() returned error: %v", err)
	}
	if err := SetYamlConfig(dir, "lock-timeout", "45s"); err != nil {
		t.Fatalf("SetYamlConfig() returned error: %v", err)
	}
	if err := SetYamlConfig(dir, "bogus", "x"); err == nil {
		t.Error("expected error for unknown key")
	}

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "actor: ci-bot") || !strings.Contains(string(data), "lock-timeout: 45s") {
		t.Errorf("unexpected config.yaml:\n%s", data)
	}
	if cfg := LoadLocalConfig(dir); cfg.Actor != "ci-bot" {
		t.Errorf("LoadLocalConfig().Actor = %q, want ci-bot", cfg.Actor)
	}
}
