package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/teslashibe/go-smartbin/pkg/camera"
	"github.com/teslashibe/go-smartbin/pkg/metrics"
	"github.com/teslashibe/go-smartbin/pkg/selection"
	"gopkg.in/yaml.v3"
)

// Classifier backends.
const (
	BackendONNX = "onnx"
	BackendRKNN = "rknn"
	BackendMock = "mock"
)

// Classifier configures the model backend.
type Classifier struct {
	Backend     string        `yaml:"backend"`
	Model       string        `yaml:"model"`
	Labels      string        `yaml:"labels"`
	InputWidth  int           `yaml:"input_width"`
	InputHeight int           `yaml:"input_height"`
	Softmax     bool          `yaml:"softmax"`
	Timeout     time.Duration `yaml:"timeout"`

	// MockLabel and MockConfidence drive the mock backend.
	MockLabel      string  `yaml:"mock_label"`
	MockConfidence float64 `yaml:"mock_confidence"`
}

// Web configures the HTTP server.
type Web struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// Loop configures the observation loop.
type Loop struct {
	Rate float64 `yaml:"rate"` // iterations per second, 0 = unpaced
}

// Kiosk is the complete runtime configuration.
type Kiosk struct {
	LogLevel   string           `yaml:"log_level"`
	Selection  selection.Config `yaml:"selection"`
	Camera     camera.Config    `yaml:"camera"`
	Classifier Classifier       `yaml:"classifier"`
	Loop       Loop             `yaml:"loop"`
	Web        Web              `yaml:"web"`
	Metrics    metrics.Config   `yaml:"metrics"`
}

// Default returns the kiosk defaults.
func Default() Kiosk {
	return Kiosk{
		LogLevel:  "info",
		Selection: selection.DefaultConfig(),
		Camera:    camera.DefaultConfig(),
		Classifier: Classifier{
			Backend:     BackendONNX,
			Model:       "models/model.onnx",
			Labels:      "models/metadata.json",
			InputWidth:  224,
			InputHeight: 224,
			Timeout:     2 * time.Second,
		},
		Loop: Loop{Rate: 60},
		Web: Web{
			Addr:      ":8080",
			StaticDir: "./web",
		},
		Metrics: metrics.DefaultConfig(),
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults.
func Load(path string) (Kiosk, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Kiosk{}, fmt.Errorf("config: %w", err)
	}

	k, err := Parse(bytes.NewReader(data))
	if err != nil {
		return Kiosk{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return k, nil
}

// Parse decodes YAML from r over the defaults. Unknown fields are
// rejected. A signals map in the input replaces the default mapping
// rather than merging into it.
func Parse(r io.Reader) (Kiosk, error) {
	k := Default()
	defSignals := k.Selection.Signals
	k.Selection.Signals = nil

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&k); err != nil && !errors.Is(err, io.EOF) {
		return Kiosk{}, err
	}

	if k.Selection.Signals == nil {
		k.Selection.Signals = defSignals
	}
	return k, nil
}

// Validate checks every section and returns all problems joined.
func (k Kiosk) Validate() error {
	var errs []error

	if err := k.Selection.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("selection: %w", err))
	}
	if camErrs := k.Camera.Validate(); len(camErrs) > 0 {
		errs = append(errs, fmt.Errorf("camera: %s", strings.Join(camErrs, "; ")))
	}

	switch k.Classifier.Backend {
	case BackendONNX, BackendRKNN:
		if k.Classifier.Model == "" {
			errs = append(errs, errors.New("classifier: model is required"))
		}
		if k.Classifier.Labels == "" {
			errs = append(errs, errors.New("classifier: labels is required"))
		}
		if k.Classifier.InputWidth <= 0 || k.Classifier.InputHeight <= 0 {
			errs = append(errs, errors.New("classifier: input size must be positive"))
		}
	case BackendMock:
	default:
		errs = append(errs, fmt.Errorf("classifier: unknown backend %q", k.Classifier.Backend))
	}
	if k.Classifier.Timeout < 0 {
		errs = append(errs, errors.New("classifier: timeout must not be negative"))
	}

	if k.Loop.Rate < 0 {
		errs = append(errs, errors.New("loop: rate must not be negative"))
	}
	if k.Web.Addr == "" {
		errs = append(errs, errors.New("web: addr is required"))
	}

	return errors.Join(errs...)
}
