package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	log "github.com/sirupsen/logrus"
)

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("missing file should yield defaults (-want +got):\n%s", diff)
	}
}

func TestLoad_OverridesAndClamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	body := `{"camera_url":"http://cam/stream","capture_interval_ms":-5,"annotation_stroke":5,"display_width":0}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := DefaultConfig()
	want.CameraURL = "http://cam/stream"
	want.AnnotationStroke = 5
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if cfg == nil || cfg.CaptureIntervalMS != 30 {
		t.Error("defaults should be returned alongside the error")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	cfg := DefaultConfig()
	cfg.HTTPBind = "127.0.0.1:8090"
	cfg.AnnotationColor = "#ff8800"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad color", func(c *Config) { c.AnnotationColor = "blue" }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"IMAGE_WORKBENCH_LOG_LEVEL":           "debug",
		"IMAGE_WORKBENCH_CAMERA_URL":          " http://cam/mjpg ",
		"IMAGE_WORKBENCH_CAPTURE_INTERVAL_MS": "50",
		"IMAGE_WORKBENCH_HTTP_BIND":           ":9000",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Level() != log.DebugLevel {
		t.Errorf("Level: got %v, want debug", cfg.Level())
	}
	if cfg.CameraURL != "http://cam/mjpg" {
		t.Errorf("CameraURL: got %q", cfg.CameraURL)
	}
	if cfg.CaptureInterval() != 50*time.Millisecond {
		t.Errorf("CaptureInterval: got %v", cfg.CaptureInterval())
	}
	if cfg.HTTPBind != ":9000" {
		t.Errorf("HTTPBind: got %q", cfg.HTTPBind)
	}
}

func TestApplyEnv_BadNumber(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		if k == "IMAGE_WORKBENCH_DISPLAY_WIDTH" {
			return "wide", true
		}
		return "", false
	})
	if err == nil {
		t.Fatal("expected error for non-numeric value")
	}
	if cfg.DisplayWidth != 800 {
		t.Errorf("DisplayWidth changed to %d", cfg.DisplayWidth)
	}
}

func TestStateOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AnnotationColor = "#FF0000"
	cfg.AnnotationStroke = 2

	opts, err := cfg.StateOptions()
	if err != nil {
		t.Fatalf("StateOptions: %v", err)
	}
	if opts.AnnotationColor != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("color: got %v", opts.AnnotationColor)
	}
	if opts.AnnotationStroke != 2 {
		t.Errorf("stroke: got %d", opts.AnnotationStroke)
	}
}
