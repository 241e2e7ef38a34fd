package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/paulinet/qmcgraph/internal/server"
	"github.com/paulinet/qmcgraph/pkg/config"
	"github.com/paulinet/qmcgraph/pkg/molecule"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file (defaults are used when empty)")
	httpAddr := flag.String("http-addr", "", "HTTP listen address, overrides http_addr (e.g. :9094)")
	warmupSteps := flag.Int("warmup-steps", -1, "Warm-up steps before serving, overrides warmup.steps")
	listPresets := flag.Bool("list-presets", false, "Print the built-in molecule presets and exit")
	flag.Parse()

	if *listPresets {
		for _, name := range molecule.PresetNames() {
			os.Stdout.WriteString(name + "\n")
		}
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *warmupSteps >= 0 {
		cfg.Warmup.Steps = *warmupSteps
	}
	setupLogger(cfg)

	srv, err := server.NewServer(cfg)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Warmup.Steps > 0 {
		start := time.Now()
		err := srv.Warmup(ctx, cfg.Warmup, func(step int) {
			if step%100 == 0 {
				slog.Debug("warm-up progress", "step", step, "of", cfg.Warmup.Steps)
			}
		})
		if err != nil {
			slog.Warn("warm-up interrupted", "error", err)
		} else {
			slog.Info("warm-up completed", "steps", cfg.Warmup.Steps, "duration", time.Since(start).String(), "limits", srv.Limits())
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			slog.Error("server stopped", "error", err)
			srv.Shutdown()
			os.Exit(1)
		}
	}

	srv.Shutdown()
}

// setupLogger installs the default slog handler chosen by the configuration.
func setupLogger(cfg config.Config) {
	level, _ := cfg.SlogLevel() // validated by LoadConfig
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}
