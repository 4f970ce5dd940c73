package camera

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("Default config should be valid, got %v", errs)
	}
	if cfg.Width != 380 || cfg.Height != 320 {
		t.Errorf("Expected 380x320 capture, got %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.DisplayWidth != 240 || cfg.DisplayHeight != 200 {
		t.Errorf("Expected 240x200 display, got %dx%d", cfg.DisplayWidth, cfg.DisplayHeight)
	}
}

func TestPresetsValid(t *testing.T) {
	names := PresetNames()
	if len(names) != 4 || names[0] != PresetDefault {
		t.Errorf("Unexpected presets %v", names)
	}

	for _, name := range names {
		cfg, ok := Preset(name)
		if !ok {
			t.Errorf("Preset %q missing", name)
			continue
		}
		if errs := cfg.Validate(); len(errs) != 0 {
			t.Errorf("Preset %q invalid: %v", name, errs)
		}
	}

	if _, ok := Preset("nope"); ok {
		t.Error("Unknown preset should not be found")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"negative device", func(c *Config) { c.Device = -1 }},
		{"tiny width", func(c *Config) { c.Width = 10 }},
		{"huge height", func(c *Config) { c.Height = 5000 }},
		{"zero framerate", func(c *Config) { c.Framerate = 0 }},
		{"display wider than capture", func(c *Config) { c.DisplayWidth = c.Width + 1 }},
		{"quality out of range", func(c *Config) { c.Quality = 101 }},
		{"facing mode", func(c *Config) { c.FacingMode = "sideways" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if errs := cfg.Validate(); len(errs) == 0 {
				t.Error("Expected validation errors")
			}
		})
	}
}

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }
func boolp(v bool) *bool    { return &v }

func TestManagerUpdate(t *testing.T) {
	m := NewManager(DefaultConfig())

	var applied Config
	m.OnChange(func(cfg Config) error {
		applied = cfg
		return nil
	})

	got, err := m.Update(Patch{Framerate: intp(15), Mirror: boolp(false)})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if got.Framerate != 15 || m.Config().Framerate != 15 {
		t.Errorf("Expected framerate 15, got %d", m.Config().Framerate)
	}
	if m.Config().Mirror {
		t.Error("Expected mirror false")
	}
	if applied.Framerate != 15 {
		t.Error("Change hook not called with new config")
	}
	if m.Version() != 1 {
		t.Errorf("Expected version 1, got %d", m.Version())
	}
}

func TestManagerPresetThenOverride(t *testing.T) {
	m := NewManager(DefaultConfig())

	if _, err := m.Update(Patch{Preset: strp(PresetVGA), Quality: intp(50)}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got := m.Config()
	if got.Width != 640 || got.Quality != 50 {
		t.Errorf("Expected vga with quality 50, got %dx%d q%d", got.Width, got.Height, got.Quality)
	}
}

func TestManagerRejectsInvalid(t *testing.T) {
	m := NewManager(DefaultConfig())

	_, err := m.Update(Patch{Width: intp(1)})
	var invalid *InvalidConfigError
	if !errors.As(err, &invalid) || len(invalid.Problems) == 0 {
		t.Errorf("Expected InvalidConfigError, got %v", err)
	}
	if m.Config().Width != 380 {
		t.Error("Invalid update should not be stored")
	}

	if _, err := m.Update(Patch{Preset: strp("nope")}); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("Expected ErrUnknownPreset, got %v", err)
	}
	if m.Version() != 0 {
		t.Error("Rejected updates should not bump the version")
	}
}

func TestManagerHookErrorKeepsOldConfig(t *testing.T) {
	m := NewManager(DefaultConfig())
	applyErr := errors.New("device busy")
	m.OnChange(func(Config) error { return applyErr })

	if _, err := m.Update(Patch{Quality: intp(40)}); !errors.Is(err, applyErr) {
		t.Errorf("Expected wrapped hook error, got %v", err)
	}
	if m.Config().Quality != 80 {
		t.Errorf("Failed apply should keep old quality, got %d", m.Config().Quality)
	}
}

func TestPatchJSON(t *testing.T) {
	var p Patch
	if err := json.Unmarshal([]byte(`{"preset":"rear","width":640}`), &p); err != nil {
		t.Fatal(err)
	}

	cfg, err := p.Apply(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FacingMode != "environment" || cfg.Width != 640 || cfg.Height != 320 {
		t.Errorf("Unexpected config %+v", cfg)
	}
}

func TestFrameEmpty(t *testing.T) {
	if !(Frame{}).Empty() {
		t.Error("Zero frame should be empty")
	}
	if (Frame{Data: []byte{0xff}}).Empty() {
		t.Error("Frame with data should not be empty")
	}
}
