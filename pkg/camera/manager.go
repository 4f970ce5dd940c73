package camera

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrUnknownPreset is returned when a patch names a preset that does
// not exist.
var ErrUnknownPreset = errors.New("camera: unknown preset")

// InvalidConfigError lists every problem Validate found.
type InvalidConfigError struct {
	Problems []string
}

func (e *InvalidConfigError) Error() string {
	return "camera: invalid config: " + strings.Join(e.Problems, "; ")
}

// Patch is a partial update as posted to the camera API. A preset, if
// named, replaces the whole config first; the other fields then
// override it. Nil fields are left alone.
type Patch struct {
	Preset        *string `json:"preset,omitempty"`
	Device        *int    `json:"device,omitempty"`
	Width         *int    `json:"width,omitempty"`
	Height        *int    `json:"height,omitempty"`
	Framerate     *int    `json:"framerate,omitempty"`
	DisplayWidth  *int    `json:"display_width,omitempty"`
	DisplayHeight *int    `json:"display_height,omitempty"`
	Quality       *int    `json:"quality,omitempty"`
	FacingMode    *string `json:"facing_mode,omitempty"`
	Mirror        *bool   `json:"mirror,omitempty"`
}

// Apply returns cfg with the patch applied. It does not validate.
func (p Patch) Apply(cfg Config) (Config, error) {
	if p.Preset != nil {
		preset, ok := Preset(*p.Preset)
		if !ok {
			return cfg, fmt.Errorf("%w: %s", ErrUnknownPreset, *p.Preset)
		}
		cfg = preset
	}

	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setInt(&cfg.Device, p.Device)
	setInt(&cfg.Width, p.Width)
	setInt(&cfg.Height, p.Height)
	setInt(&cfg.Framerate, p.Framerate)
	setInt(&cfg.DisplayWidth, p.DisplayWidth)
	setInt(&cfg.DisplayHeight, p.DisplayHeight)
	setInt(&cfg.Quality, p.Quality)

	if p.FacingMode != nil {
		cfg.FacingMode = *p.FacingMode
	}
	if p.Mirror != nil {
		cfg.Mirror = *p.Mirror
	}
	return cfg, nil
}

// Manager owns the live camera settings. Changes are validated and
// handed to the change hook before they are committed, so a device that
// refuses the new settings keeps the old ones.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	onChange func(Config) error
	version  uint64
}

// NewManager starts from cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// OnChange registers the hook that applies new settings to the device.
func (m *Manager) OnChange(f func(Config) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = f
}

// Config returns the current settings.
func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Version counts committed changes.
func (m *Manager) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// Set validates cfg, applies it through the change hook and commits it.
func (m *Manager) Set(cfg Config) error {
	if problems := cfg.Validate(); len(problems) > 0 {
		return &InvalidConfigError{Problems: problems}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.onChange != nil {
		if err := m.onChange(cfg); err != nil {
			return fmt.Errorf("camera: apply config: %w", err)
		}
	}
	m.cfg = cfg
	m.version++
	return nil
}

// Update applies p to the current settings and commits the result.
func (m *Manager) Update(p Patch) (Config, error) {
	next, err := p.Apply(m.Config())
	if err != nil {
		return m.Config(), err
	}
	if err := m.Set(next); err != nil {
		return m.Config(), err
	}
	return next, nil
}
