package camera

import "sort"

// Preset names accepted by Patch.Preset.
const (
	PresetDefault  = "default"
	PresetVGA      = "vga"
	PresetLowPower = "lowpower"
	PresetRear     = "rear"
)

var presets = map[string]func() Config{
	PresetDefault: DefaultConfig,

	// Larger capture for models trained on bigger crops
	PresetVGA: func() Config {
		cfg := DefaultConfig()
		cfg.Width, cfg.Height = 640, 480
		return cfg
	},

	// Fanless boards
	PresetLowPower: func() Config {
		cfg := DefaultConfig()
		cfg.Framerate = 15
		cfg.Quality = 60
		return cfg
	},

	// Camera looking into the drop slot; nobody sees it, so no mirroring
	PresetRear: func() Config {
		cfg := DefaultConfig()
		cfg.FacingMode = "environment"
		cfg.Mirror = false
		return cfg
	},
}

// Preset returns the named preset.
func Preset(name string) (Config, bool) {
	build, ok := presets[name]
	if !ok {
		return Config{}, false
	}
	return build(), true
}

// PresetNames returns the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
