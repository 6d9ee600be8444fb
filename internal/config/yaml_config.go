package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// KnownKeys lists the settings `weft config set` accepts.
var KnownKeys = map[string]bool{
	"actor":                  true,
	"json":                   true,
	"dir":                    true,
	"lock-timeout":           true,
	"log-level":              true,
	"issue-prefix":           true,
	"dispatch.poll-interval": true,
	"dispatch.actor":         true,
	"gate.default-timeout":   true,
	"gate.presets-file":      true,
	"gate.parallel":          true,
	"nats.url":               true,
}

// IsKnownKey reports whether key is a scalar setting that SetYamlConfig may write.
func IsKnownKey(key string) bool {
	return KnownKeys[key]
}

// SetYamlConfig sets key in dir/config.yaml, updating a present (possibly
// commented out) line in place and appending otherwise. Dotted keys are
// written in flat form ("nats.url: ..."), which viper reads as nested.
func SetYamlConfig(dir, key, value string) error {
	if !IsKnownKey(key) {
		return fmt.Errorf("unknown config key %q", key)
	}
	configPath := filepath.Join(dir, "config.yaml")
	content, err := os.ReadFile(configPath) // #nosec G304 - config file path from control dir
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read config.yaml: %w", err)
	}

	newContent := updateYamlKey(string(content), key, value)
	if err := os.WriteFile(configPath, []byte(newContent), 0o600); err != nil {
		return fmt.Errorf("failed to write config.yaml: %w", err)
	}
	return nil
}

// updateYamlKey updates a top-level key in yaml content, handling
// commented-out keys. Keys that don't exist are appended at the end.
func updateYamlKey(content, key, value string) string {
	newLine := fmt.Sprintf("%s: %s", key, formatYamlValue(value))

	// Matches "key: value" or "# key: value" at the start of a line.
	keyPattern := regexp.MustCompile(`^(#\s*)?` + regexp.QuoteMeta(key) + `\s*:`)

	found := false
	var result []string
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if !found && keyPattern.MatchString(line) {
			result = append(result, newLine)
			found = true
			continue
		}
		result = append(result, line)
	}

	if !found {
		if len(result) > 0 && result[len(result)-1] != "" {
			result = append(result, "")
		}
		result = append(result, newLine)
	}
	return strings.Join(result, "\n") + "\n"
}

// formatYamlValue quotes value unless it reads back as the same bool,
// number, duration or plain string.
func formatYamlValue(value string) string {
	lower := strings.ToLower(value)
	if lower == "true" || lower == "false" {
		return lower
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return value
	}
	if _, err := time.ParseDuration(value); err == nil {
		return value
	}
	if value == "" || strings.TrimSpace(value) != value || strings.ContainsAny(value, ":#[]{},&*!|>'\"%@`") {
		return strconv.Quote(value)
	}
	return value
}
