// SPDX-License-Identifier: MIT

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

	"github.com/dschwenke/clippy/internal/api"
	"github.com/dschwenke/clippy/internal/bus"
	"github.com/dschwenke/clippy/internal/caption"
	"github.com/dschwenke/clippy/internal/config"
	"github.com/dschwenke/clippy/internal/fetch"
	"github.com/dschwenke/clippy/internal/job"
	clog "github.com/dschwenke/clippy/internal/log"
	"github.com/dschwenke/clippy/internal/media"
	"github.com/dschwenke/clippy/internal/planner"
	"github.com/dschwenke/clippy/internal/registry"
	"github.com/dschwenke/clippy/internal/transcribe"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	clog.Configure(clog.Config{Level: cfg.LogLevel, Service: "clippy"})
	logger := clog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.EnsureDirs(); err != nil {
		logger.Fatal().Err(err).Msg("prepare data directories")
	}

	runner := media.NewRunner(cfg.Media.FFmpegPath, cfg.Media.FFprobePath)
	runner.VideoBitrate = cfg.Media.VideoBitrate

	store, err := registry.Open(cfg.RegistryDir())
	if err != nil {
		logger.Fatal().Err(err).Msg("open clip registry")
	}
	defer store.Close()

	transcriber, err := buildTranscriber(cfg, runner)
	if err != nil {
		logger.Fatal().Err(err).Msg("configure transcription")
	}

	progress := bus.NewMemoryBus()
	orch := job.New(job.Deps{
		Acquirer:        fetch.NewAcquirer(cfg.DownloadsDir(), nil),
		Planner:         planner.New(nil, runner.SampleFrames, cfg.WorkDir()),
		Transcriber:     transcriber,
		Renderer:        runner,
		Engine:          caption.NewEngine(runner),
		Registry:        store,
		Bus:             progress,
		ClipsDir:        cfg.ClipsDir(),
		AnonTTL:         cfg.Clips.AnonTTL,
		DefaultDuration: cfg.Clips.DefaultDuration,
		MaxDuration:     cfg.Clips.MaxDuration,
	})

	server := api.New(api.Deps{
		Jobs:            orch,
		Clips:           store,
		Bus:             progress,
		ClipsDir:        cfg.ClipsDir(),
		CreateRateLimit: cfg.Server.CreateRateLimit,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go runSweeper(ctx, cfg.Clips.SweepInterval, store, orch)

	go func() {
		logger.Info().Str("listen", cfg.Server.Listen).Str("version", version).Msg("serving")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown incomplete")
	}
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("workers still running at shutdown")
	}
	logger.Info().Msg("bye")
}

// buildTranscriber wires the whisper backend, or a no-op stand-in when
// no API key is configured so clips still render without captions.
func buildTranscriber(cfg config.Config, runner *media.Runner) (transcribe.Transcriber, error) {
	if cfg.AI.APIKey == "" {
		clog.WithComponent("daemon").Warn().Msg("no transcription API key configured, clips will have no captions")
		return transcribe.Func(func(context.Context, string, float64, float64, bool) ([]transcribe.Segment, error) {
			return nil, nil
		}), nil
	}

	var opts []transcribe.WhisperOption
	if cfg.AI.BaseURL != "" {
		opts = append(opts, transcribe.WithBaseURL(cfg.AI.BaseURL))
	}
	if cfg.AI.Model != "" {
		opts = append(opts, transcribe.WithModel(cfg.AI.Model))
	}
	return transcribe.NewWhisper(cfg.AI.APIKey, runner.ExtractAudio, cfg.WorkDir(), opts...)
}

// runSweeper retires expired anonymous clips on a fixed cadence.
func runSweeper(ctx context.Context, interval time.Duration, store *registry.Store, orch *job.Orchestrator) {
	logger := clog.WithComponent("sweeper")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			removed, err := store.Sweep(ctx, now)
			if err != nil {
				logger.Warn().Err(err).Msg("registry sweep failed")
			}
			pruned := orch.PruneExpired(now)
			if removed > 0 || pruned > 0 {
				logger.Info().Int("registry", removed).Int("memory", pruned).Msg("swept expired clips")
			}
		}
	}
}
