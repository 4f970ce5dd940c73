package selection

import (
	"errors"
	"fmt"
	"time"
)

// Config is the policy's fixed transition table inputs.
type Config struct {
	// Categories are the labels allowed to start a selection cycle.
	Categories []string `yaml:"categories" json:"categories"`

	// Threshold gates the trigger. Confidence must be strictly greater.
	Threshold float64 `yaml:"threshold" json:"threshold"`

	// ScanDwell is the time from Scanning to Confirmed.
	ScanDwell time.Duration `yaml:"scan_dwell" json:"scan_dwell"`

	// ConfirmDwell is the time from Confirmed back to Idle.
	ConfirmDwell time.Duration `yaml:"confirm_dwell" json:"confirm_dwell"`

	// Signals maps a category label to the presentation flag raised
	// while that category is confirmed.
	Signals map[string]string `yaml:"signals" json:"signals"`
}

// Default flag names understood by the kiosk animation.
const (
	SignalScanning     = "scanning"
	SignalPetSelected  = "isPetSelected"
	SignalAlumSelected = "isAluminumSelected"
)

// DefaultConfig returns the kiosk defaults: PET, Aluminum and PP are
// accepted above 0.9 confidence, with 2s scan and 2s confirm dwell.
// PP has no dedicated flag and is reported through Signals.Confirmed.
func DefaultConfig() Config {
	return Config{
		Categories:   []string{"PET", "Aluminum", "PP"},
		Threshold:    0.9,
		ScanDwell:    2 * time.Second,
		ConfirmDwell: 2 * time.Second,
		Signals: map[string]string{
			"PET":      SignalPetSelected,
			"Aluminum": SignalAlumSelected,
		},
	}
}

// Validate checks the config and returns every problem found.
func (c Config) Validate() error {
	var errs []error

	if len(c.Categories) == 0 {
		errs = append(errs, errors.New("categories must not be empty"))
	}
	seen := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if cat == "" {
			errs = append(errs, errors.New("category must not be empty"))
			continue
		}
		if seen[cat] {
			errs = append(errs, fmt.Errorf("duplicate category %q", cat))
		}
		seen[cat] = true
	}

	if c.Threshold < 0 || c.Threshold >= 1 {
		errs = append(errs, fmt.Errorf("threshold must be in [0,1), got %v", c.Threshold))
	}
	if c.ScanDwell <= 0 {
		errs = append(errs, fmt.Errorf("scan_dwell must be positive, got %v", c.ScanDwell))
	}
	if c.ConfirmDwell <= 0 {
		errs = append(errs, fmt.Errorf("confirm_dwell must be positive, got %v", c.ConfirmDwell))
	}

	for label, flag := range c.Signals {
		if !seen[label] {
			errs = append(errs, fmt.Errorf("signal for unknown category %q", label))
		}
		if flag == "" || flag == SignalScanning {
			errs = append(errs, fmt.Errorf("invalid signal name %q for %q", flag, label))
		}
	}

	return errors.Join(errs...)
}
