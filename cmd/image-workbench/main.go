package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/profile"
	log "github.com/sirupsen/logrus"

	"github.com/ironsheep/image-workbench/internal/config"
	"github.com/ironsheep/image-workbench/internal/preview"
	"github.com/ironsheep/image-workbench/internal/server"
	"github.com/ironsheep/image-workbench/internal/session"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath = flag.String("config", "image-workbench.json", "Path to the JSON config file.")
	httpBind   = flag.String("http", "", "Serve the HTTP preview on this address (e.g. 127.0.0.1:8090).")
	cameraURL  = flag.String("camera", "", "Default camera source: MJPEG URL or image file.")
	profileDir = flag.String("profile", "", "Write a CPU profile into this directory.")
)

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "image-workbench - image state workbench over MCP")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage: image-workbench [options]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Options:")
	fmt.Fprintln(out, "  --version, -v    Print version information")
	fmt.Fprintln(out, "  --help, -h       Print this help message")
	flag.PrintDefaults()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Environment variables:")
	fmt.Fprintln(out, "  IMAGE_WORKBENCH_LOG_LEVEL=debug       Log level (overrides config)")
	fmt.Fprintln(out, "  IMAGE_WORKBENCH_CAMERA_URL=...        Default camera source")
	fmt.Fprintln(out, "  IMAGE_WORKBENCH_HTTP_BIND=...         HTTP preview address")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "This server communicates via MCP protocol over stdin/stdout.")
}

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("image-workbench %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		}
	}
	flag.Usage = usage
	flag.Parse()

	// Configure logging to stderr (stdout is for MCP protocol)
	customFormatter := new(log.TextFormatter)
	customFormatter.TimestampFormat = "2006-01-02 15:04:05"
	customFormatter.FullTimestamp = true
	log.SetFormatter(customFormatter)
	log.SetOutput(os.Stderr)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Unable to load config: %v", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		log.Fatalf("Unable to apply environment: %v", err)
	}
	if *httpBind != "" {
		cfg.HTTPBind = *httpBind
	}
	if *cameraURL != "" {
		cfg.CameraURL = *cameraURL
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.SetLevel(cfg.Level())
	log.Debugf("Image workbench v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("Effective config:\n%s", spew.Sdump(cfg))
	}

	if *profileDir != "" {
		defer profile.Start(profile.ProfilePath(*profileDir), profile.NoShutdownHook, profile.Quiet).Stop()
	}

	stateOpts, err := cfg.StateOptions()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	sess := session.New(session.Options{
		State:           stateOpts,
		CacheTTL:        cfg.CacheTTL(),
		CaptureInterval: cfg.CaptureInterval(),
	})
	defer sess.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var web *preview.Server
	if cfg.HTTPBind != "" {
		web = preview.New(cfg.HTTPBind, sess, cfg.DisplayWidth, cfg.DisplayHeight)
		go func() {
			log.Infof("Hosting preview on %s", cfg.HTTPBind)
			if err := web.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("Preview server exited: %v", err)
			}
		}()
	}

	srv := server.New(sess, server.Options{
		DisplayWidth:  cfg.DisplayWidth,
		DisplayHeight: cfg.DisplayHeight,
		CameraURL:     cfg.CameraURL,
		Version:       Version,
	})

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-done:
		if err != nil {
			log.Errorf("Server error: %v", err)
		}
	case s := <-sig:
		log.Warningf("Caught signal %v", s)
	}

	cancel()
	if web != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = web.Shutdown(shutdownCtx)
	}
}
