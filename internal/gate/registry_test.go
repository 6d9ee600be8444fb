package gate

import (
	"testing"
)

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry()

	p := &Preset{Name: "review", Gates: []Template{{Key: "review", Stage: "postcheck"}}}
	if err := reg.Register(p); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if reg.Count() != 1 {
		t.Errorf("expected 1 preset, got %d", reg.Count())
	}
}

func TestRegistryDuplicateReject(t *testing.T) {
	reg := NewRegistry()

	p := &Preset{Name: "dup"}
	if err := reg.Register(p); err != nil {
		t.Fatal(err)
	}

	if err := reg.Register(p); err == nil {
		t.Error("expected error for duplicate registration")
	}
}

func TestRegistryRejectsInvalidPreset(t *testing.T) {
	reg := NewRegistry()
	p := &Preset{Name: "bad", Gates: []Template{{Key: "a", Stage: "sometime"}}}
	if err := reg.Register(p); err == nil {
		t.Error("expected validation error")
	}
	if reg.Count() != 0 {
		t.Error("invalid preset should not be registered")
	}
}

func TestRegistryGet(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register(&Preset{Name: "test-preset"}); err != nil {
		t.Fatal(err)
	}

	got := reg.Get("test-preset")
	if got == nil {
		t.Fatal("Get returned nil for registered preset")
	}
	if got.Name != "test-preset" {
		t.Errorf("expected name %q, got %q", "test-preset", got.Name)
	}

	if reg.Get("nonexistent") != nil {
		t.Error("Get should return nil for unregistered preset")
	}
}

func TestRegistryOverrideAndUnregister(t *testing.T) {
	reg := NewRegistryWithBuiltins()
	if reg.Count() != len(Builtins()) {
		t.Fatalf("expected %d builtins, got %d", len(Builtins()), reg.Count())
	}

	custom := &Preset{Name: "ci", Gates: []Template{{Key: "lint", Stage: "postcheck", Command: "make lint"}}}
	if err := reg.Override(custom); err != nil {
		t.Fatal(err)
	}
	if got := reg.Get("ci"); got.Gates[0].Key != "lint" {
		t.Errorf("override not applied: %+v", got)
	}

	reg.Unregister("ci")
	if reg.Get("ci") != nil {
		t.Error("ci should be gone")
	}
}

func TestRegistryAllSorted(t *testing.T) {
	reg := NewRegistryWithBuiltins()
	all := reg.All()
	for i := 1; i < len(all); i++ {
		if all[i-1].Name >= all[i].Name {
			t.Errorf("All() not sorted: %s before %s", all[i-1].Name, all[i].Name)
		}
	}
}

func TestBuiltinsValid(t *testing.T) {
	for _, p := range Builtins() {
		if _, err := p.Definitions(); err != nil {
			t.Errorf("builtin %s: %v", p.Name, err)
		}
	}
}
