// Package config loads kiosk configuration from a YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables understood by the kiosk.
const (
	EnvAddr         = "SMARTBIN_ADDR"
	EnvConfig       = "SMARTBIN_CONFIG"
	EnvLogLevel     = "SMARTBIN_LOG_LEVEL"
	EnvCameraDevice = "SMARTBIN_CAMERA_DEVICE"
	EnvBackend      = "SMARTBIN_BACKEND"
	EnvModel        = "SMARTBIN_MODEL"
	EnvLabels       = "SMARTBIN_LABELS"
	EnvOTLPEndpoint = "SMARTBIN_OTLP_ENDPOINT"
)

// Env returns the value of key, or def if it is unset or empty.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvInt returns key parsed as an int, or def if it is unset.
func EnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// Path returns the config file path from SMARTBIN_CONFIG.
// Empty means no file.
func Path() string {
	return os.Getenv(EnvConfig)
}

// ApplyEnv overrides k with any SMARTBIN_* variables that are set.
func ApplyEnv(k *Kiosk) error {
	k.Web.Addr = Env(EnvAddr, k.Web.Addr)
	k.LogLevel = Env(EnvLogLevel, k.LogLevel)
	k.Classifier.Backend = Env(EnvBackend, k.Classifier.Backend)
	k.Classifier.Model = Env(EnvModel, k.Classifier.Model)
	k.Classifier.Labels = Env(EnvLabels, k.Classifier.Labels)
	k.Metrics.Endpoint = Env(EnvOTLPEndpoint, k.Metrics.Endpoint)

	dev, err := EnvInt(EnvCameraDevice, k.Camera.Device)
	if err != nil {
		return err
	}
	k.Camera.Device = dev
	return nil
}
