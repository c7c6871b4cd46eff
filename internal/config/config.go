// Package config holds runtime settings for the workbench.
//
// Settings come from three layers, applied in order: DefaultConfig, an
// optional JSON file read by Load, and IMAGE_WORKBENCH_* environment
// variables applied by ApplyEnv. Command-line flags are applied last by the
// caller.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ironsheep/image-workbench/internal/imaging"
	"github.com/ironsheep/image-workbench/internal/state"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "IMAGE_WORKBENCH_"

// Config holds runtime configuration for the workbench.
type Config struct {
	LogLevel string `json:"log_level"`

	// Camera polling
	CameraURL         string `json:"camera_url"`
	CaptureIntervalMS int    `json:"capture_interval_ms"`

	// Display box used for thumbnails returned to clients
	DisplayWidth  int `json:"display_width"`
	DisplayHeight int `json:"display_height"`

	// Annotation style
	AnnotationColor  string `json:"annotation_color"`
	AnnotationStroke int    `json:"annotation_stroke"`

	HTTPBind        string `json:"http_bind"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:          "info",
		CaptureIntervalMS: 30,
		DisplayWidth:      imaging.DisplayWidth,
		DisplayHeight:     imaging.DisplayHeight,
		AnnotationColor:   "#0000FF",
		AnnotationStroke:  imaging.AnnotationStroke,
		CacheTTLSeconds:   int(imaging.DefaultCacheTTL / time.Second),
	}
}

// Validate clamps values to safe ranges. It returns an error only for values
// that cannot be repaired, such as an unparsable color or log level.
func (c *Config) Validate() error {
	if c.CaptureIntervalMS <= 0 {
		c.CaptureIntervalMS = 30
	}
	if c.DisplayWidth <= 0 {
		c.DisplayWidth = imaging.DisplayWidth
	}
	if c.DisplayHeight <= 0 {
		c.DisplayHeight = imaging.DisplayHeight
	}
	if c.AnnotationStroke <= 0 {
		c.AnnotationStroke = imaging.AnnotationStroke
	}
	if c.CacheTTLSeconds <= 0 {
		c.CacheTTLSeconds = int(imaging.DefaultCacheTTL / time.Second)
	}
	if c.AnnotationColor == "" {
		c.AnnotationColor = "#0000FF"
	}
	if _, err := imaging.ParseHexColor(c.AnnotationColor); err != nil {
		return fmt.Errorf("annotation_color: %w", err)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Load reads configuration from the JSON file at path. A missing file yields
// DefaultConfig. On a decode error the defaults are returned with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Save writes the configuration to path as indented JSON.
func (c *Config) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

// ApplyEnv overrides fields from IMAGE_WORKBENCH_* variables. lookup is
// normally os.LookupEnv. Malformed numbers are reported and leave the field
// unchanged.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []string
	num := func(name string, dst *int) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s%s=%q", EnvPrefix, name, v))
			return
		}
		*dst = n
	}

	str("LOG_LEVEL", &c.LogLevel)
	str("CAMERA_URL", &c.CameraURL)
	str("ANNOTATION_COLOR", &c.AnnotationColor)
	str("HTTP_BIND", &c.HTTPBind)
	num("CAPTURE_INTERVAL_MS", &c.CaptureIntervalMS)
	num("DISPLAY_WIDTH", &c.DisplayWidth)
	num("DISPLAY_HEIGHT", &c.DisplayHeight)
	num("ANNOTATION_STROKE", &c.AnnotationStroke)
	num("CACHE_TTL_SECONDS", &c.CacheTTLSeconds)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, ", "))
	}
	return nil
}

// CaptureInterval is the camera polling period.
func (c *Config) CaptureInterval() time.Duration {
	return time.Duration(c.CaptureIntervalMS) * time.Millisecond
}

// CacheTTL is how long decoded files stay cached.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Level returns the logrus level, falling back to info.
func (c *Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// StateOptions builds the annotation style for the image state.
func (c *Config) StateOptions() (state.Options, error) {
	col, err := imaging.ParseHexColor(c.AnnotationColor)
	if err != nil {
		return state.Options{}, fmt.Errorf("annotation_color: %w", err)
	}
	return state.Options{
		AnnotationColor:  col,
		AnnotationStroke: c.AnnotationStroke,
	}, nil
}
