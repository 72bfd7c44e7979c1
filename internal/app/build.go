package app

import (
	"context"
	"fmt"

	"github.com/leadline-ai/leadline/internal/config"
	"github.com/leadline-ai/leadline/internal/httpapi"
	"github.com/leadline-ai/leadline/internal/memory"
	"github.com/leadline-ai/leadline/internal/observability"
	"github.com/leadline-ai/leadline/internal/session"
)

type VoiceInfo struct {
	Provider       string
	Detail         string
	DefaultVoiceID string
}

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Sessions *session.Manager
	Runner   *Runner
	Archive  memory.Store
	Metrics  *observability.Metrics
	Voice    VoiceInfo

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	archive, err := memory.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("memory store init failed: %w", err)
	}

	setup, err := resolveVoiceProviders(cfg)
	if err != nil {
		_ = archive.Close()
		return nil, err
	}

	// Ensure API handlers know which backend is active (e.g. voices list).
	cfg.VoiceProvider = setup.resolvedProvider

	sessions := session.NewManager(cfg.SessionInactivityTimeout, cfg.ErrorGrace)
	sessions.SetExpireHook(func(_ *session.Handle) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	runner := NewRunner(cfg, sessions, setup, archive, metrics)
	api := httpapi.New(cfg, sessions, runner, setup.tts, archive, metrics)

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Sessions: sessions,
		Runner:   runner,
		Archive:  archive,
		Metrics:  metrics,
		Voice: VoiceInfo{
			Provider:       setup.resolvedProvider,
			Detail:         setup.detail,
			DefaultVoiceID: setup.defaultVoiceID,
		},
		Cleanup: archive.Close,
	}, nil
}
