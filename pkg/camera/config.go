// Package camera describes the kiosk video source: frames, the Source
// contract, and runtime-configurable capture settings.
package camera

// Config holds all camera configuration parameters.
// These can be modified via the camera API at runtime.
type Config struct {
	// === Device ===
	Device int `json:"device" yaml:"device"` // Capture device index

	// === Capture resolution ===
	Width     int `json:"width" yaml:"width"`         // Requested capture width in pixels
	Height    int `json:"height" yaml:"height"`       // Requested capture height in pixels
	Framerate int `json:"framerate" yaml:"framerate"` // Requested FPS

	// === Display ===
	// The kiosk shows the feed in a small window; frames sent to the
	// page and the overlay are drawn at this size.
	DisplayWidth  int `json:"display_width" yaml:"display_width"`
	DisplayHeight int `json:"display_height" yaml:"display_height"`
	Quality       int `json:"quality" yaml:"quality"` // JPEG quality 1-100

	// FacingMode mirrors the browser constraint.
	// Values: "user", "environment"
	FacingMode string `json:"facing_mode" yaml:"facing_mode"`

	// Mirror flips frames horizontally, which is what a user-facing
	// camera normally shows.
	Mirror bool `json:"mirror" yaml:"mirror"`
}

// Capture limits for USB webcams used on the kiosk.
const (
	MaxWidth     = 1920
	MaxHeight    = 1080
	MaxFramerate = 60
)

// DefaultConfig returns the kiosk configuration: a 380x320 user-facing
// capture shown at 240x200, no audio.
func DefaultConfig() Config {
	return Config{
		Device:    0,
		Width:     380,
		Height:    320,
		Framerate: 30,

		DisplayWidth:  240,
		DisplayHeight: 200,
		Quality:       80,

		FacingMode: "user",
		Mirror:     true,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device < 0 {
		errors = append(errors, "device must be >= 0")
	}

	// Resolution
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 1920")
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 1080")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 60")
	}

	// Display
	if c.DisplayWidth < 1 || c.DisplayWidth > c.Width {
		errors = append(errors, "display_width must be between 1 and width")
	}
	if c.DisplayHeight < 1 || c.DisplayHeight > c.Height {
		errors = append(errors, "display_height must be between 1 and height")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	validFacing := map[string]bool{"user": true, "environment": true}
	if c.FacingMode != "" && !validFacing[c.FacingMode] {
		errors = append(errors, "facing_mode must be user or environment")
	}

	return errors
}
