package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/telecare/consult/internal/adapters/asr"
	router "github.com/telecare/consult/internal/adapters/http"
	"github.com/telecare/consult/internal/adapters/landmark"
	signaladapter "github.com/telecare/consult/internal/adapters/signal"
	"github.com/telecare/consult/internal/analysis/speech"
	"github.com/telecare/consult/internal/analysis/vision"
	"github.com/telecare/consult/internal/app"
	"github.com/telecare/consult/internal/config"
	"github.com/telecare/consult/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	registry := app.NewRegistry()
	rooms := core.NewRoomManager()

	pool := app.NewAnalysisPool(cfg.AnalysisWorkers, cfg.AnalysisQueue, cfg.AnalysisTimeout)
	defer pool.Close()

	var face vision.FaceMesh
	var pose vision.PoseDetector
	if cfg.LandmarkAddr != "" {
		lm := landmark.NewClient(cfg.LandmarkAddr, cfg.AnalysisTimeout)
		face, pose = lm, lm
		log.Info().Str("addr", cfg.LandmarkAddr).Msg("landmark service configured")
	} else {
		log.Warn().Msg("no landmark service configured, frame analysis limited to skin heuristics")
	}

	var engine speech.Engine
	if cfg.ASRAddr != "" {
		engine = asr.NewClient(cfg.ASRAddr, cfg.AnalysisTimeout)
		log.Info().Str("addr", cfg.ASRAddr).Msg("transcription service configured")
	} else {
		log.Warn().Msg("no transcription service configured, transcripts will carry the unavailable sentinel")
	}

	ctl := &signaladapter.Controller{
		Registry:   registry,
		Rooms:      rooms,
		Jobs:       pool,
		Vision:     vision.NewAnalyzer(face, pose),
		Speech:     speech.NewTranscriber(engine),
		Limiter:    signaladapter.NewMediaRateLimiter(cfg.MediaRateLimit, cfg.MediaRateWindow),
		ICEServers: cfg.ICEServers(),
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
	}

	r := router.SetupRouter(ctx, cfg, ctl, registry)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Consult server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
