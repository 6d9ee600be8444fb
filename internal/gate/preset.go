package gate

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/steveyegge/weft/internal/types"
)

// Template describes one gate inside a preset. Auto-mode templates carry the
// exec checker spec inline.
type Template struct {
	Key     string            `toml:"key"`
	Title   string            `toml:"title"`
	Stage   string            `toml:"stage"`
	Mode    string            `toml:"mode"`
	Command string            `toml:"command"`
	Timeout string            `toml:"timeout"`
	WorkDir string            `toml:"workdir"`
	Env     map[string]string `toml:"env"`
}

// Gate converts the template into a validated gate definition.
func (t Template) Gate() (*types.Gate, error) {
	stage, err := ParseStage(t.Stage)
	if err != nil {
		return nil, fmt.Errorf("gate %s: %w", t.Key, err)
	}
	g := &types.Gate{Key: t.Key, Title: t.Title, Stage: stage}

	mode := types.GateMode(strings.ToLower(t.Mode))
	if mode == "" {
		mode = types.GateModeManual
		if t.Command != "" {
			mode = types.GateModeAuto
		}
	}
	g.Mode = mode

	switch mode {
	case types.GateModeManual:
		g.Checker = types.ManualChecker{}
	case types.GateModeAuto:
		ec := types.ExecChecker{Command: t.Command, WorkDir: t.WorkDir, Env: t.Env}
		if t.Timeout != "" {
			d, err := time.ParseDuration(t.Timeout)
			if err != nil {
				return nil, fmt.Errorf("gate %s: invalid timeout %q: %w", t.Key, t.Timeout, err)
			}
			ec.Timeout = d
		}
		g.Checker = ec
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Preset is a named bundle of gate templates applied in bulk.
type Preset struct {
	Name        string     `toml:"name"`
	Description string     `toml:"description"`
	Gates       []Template `toml:"gate"`
}

// Definitions converts every template, failing on the first invalid one.
func (p *Preset) Definitions() ([]*types.Gate, error) {
	defs := make([]*types.Gate, 0, len(p.Gates))
	seen := make(map[string]bool)
	for _, t := range p.Gates {
		if seen[t.Key] {
			return nil, fmt.Errorf("preset %s: gate %q listed twice", p.Name, t.Key)
		}
		seen[t.Key] = true
		g, err := t.Gate()
		if err != nil {
			return nil, fmt.Errorf("preset %s: %w", p.Name, err)
		}
		defs = append(defs, g)
	}
	return defs, nil
}

type presetFile struct {
	Presets []*Preset `toml:"preset"`
}

// LoadPresets reads presets from a TOML file:
//
//	[[preset]]
//	name = "ship"
//	[[preset.gate]]
//	key = "tests"
//	stage = "postcheck"
//	command = "make test"
//	timeout = "10m"
//
// A missing file yields no presets.
func LoadPresets(path string) ([]*Preset, error) {
	data, err := os.ReadFile(path) // #nosec G304 - presets file from control directory
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ParsePresets(string(data))
}

// ParsePresets decodes and validates presets from TOML text.
func ParsePresets(data string) ([]*Preset, error) {
	var f presetFile
	md, err := toml.Decode(data, &f)
	if err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse presets: unknown keys %v", undecoded)
	}
	for _, p := range f.Presets {
		if p.Name == "" {
			return nil, fmt.Errorf("parse presets: preset without a name")
		}
		if _, err := p.Definitions(); err != nil {
			return nil, err
		}
	}
	return f.Presets, nil
}

// Builtins returns the presets available without a presets file.
func Builtins() []*Preset {
	return []*Preset{
		{
			Name:        "review",
			Description: "Manual code review before completion",
			Gates: []Template{
				{Key: "review", Title: "Code reviewed", Stage: "postcheck", Mode: "manual"},
			},
		},
		{
			Name:        "ci",
			Description: "Test suite must pass before completion",
			Gates: []Template{
				{Key: "tests", Title: "Tests pass", Stage: "postcheck", Mode: "auto", Command: "make test", Timeout: "10m"},
			},
		},
		{
			Name:        "design",
			Description: "Design sign-off before work starts",
			Gates: []Template{
				{Key: "design", Title: "Design approved", Stage: "precheck", Mode: "manual"},
			},
		},
	}
}
