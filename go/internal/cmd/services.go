package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mcdev12/quizbattle/go/internal/battle/gateway"
	"github.com/mcdev12/quizbattle/go/internal/battle/history"
	"github.com/mcdev12/quizbattle/go/internal/battle/questionbank"
	"github.com/mcdev12/quizbattle/go/internal/battle/registry"
	"github.com/mcdev12/quizbattle/go/internal/battle/relay"
	"github.com/mcdev12/quizbattle/go/internal/config"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Registry       *registry.Registry
	Gateway        *gateway.Service
	Relay          *relay.Relay
	Counters       *relay.Counters
	Recorder       *history.Recorder
	HistoryHandler *history.Handler

	closePublisher func() error
}

func setupServices(ctx context.Context, cfg *config.Config, database *sql.DB) (*Services, error) {
	// Wire up dependency injection chain
	// Question source → Registry → hooks (gateway, relay, history)

	source, err := setupQuestionSource(cfg, database)
	if err != nil {
		return nil, err
	}
	reg := registry.New(cfg.EngineConfig(), source, cfg.Server.MaxBattles)

	// Gateway
	gw := gateway.NewService(gateway.DefaultConfig(), reg)
	reg.OnCreate(gw.Attach)

	// Relay
	publisher, closePublisher, err := setupPublisher(ctx, cfg)
	if err != nil {
		return nil, err
	}
	counters := relay.NewCounters()
	rl := relay.New(publisher, relay.Config{
		BufferSize:   cfg.Relay.BufferSize,
		MaxRetries:   cfg.Relay.MaxRetries,
		RetryDelay:   cfg.Relay.RetryDelay,
		FlushTimeout: relay.DefaultConfig().FlushTimeout,
	}, relay.WithMetrics(counters))
	reg.OnCreate(rl.Attach)

	services := &Services{
		Registry:       reg,
		Gateway:        gw,
		Relay:          rl,
		Counters:       counters,
		closePublisher: closePublisher,
	}

	// History
	if cfg.History.Enabled {
		repo := history.NewRepository(database)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		services.Recorder = history.NewRecorder(repo, cfg.History.SaveTimeout)
		services.HistoryHandler = history.NewHandler(repo)
		reg.OnCreate(services.Recorder.Attach)
	}

	go gw.Start(ctx)
	// The relay outlives ctx so events raised during shutdown are still flushed by Close.
	if err := rl.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to start relay: %w", err)
	}
	return services, nil
}

func setupQuestionSource(cfg *config.Config, database *sql.DB) (questionbank.Source, error) {
	switch cfg.Questions.Source {
	case config.SourceFile:
		return questionbank.NewFileSource(cfg.Questions.Path), nil
	case config.SourceHTTP:
		src := questionbank.NewHTTPSource(cfg.Questions.URL)
		src.SetTimeout(cfg.Questions.Timeout)
		return src, nil
	case config.SourcePostgres:
		return questionbank.NewSQLSource(database), nil
	default:
		return nil, fmt.Errorf("unknown question source %q", cfg.Questions.Source)
	}
}

func setupPublisher(ctx context.Context, cfg *config.Config) (relay.Publisher, func() error, error) {
	if cfg.Relay.NATSURL == "" {
		log.Info().Msg("no NATS URL configured, battle events go to the log")
		return &relay.LogPublisher{Prefix: cfg.Relay.SubjectPrefix}, func() error { return nil }, nil
	}

	jsCfg := relay.DefaultJetStreamConfig()
	jsCfg.URL = cfg.Relay.NATSURL
	jsCfg.StreamName = cfg.Relay.StreamName
	jsCfg.SubjectPrefix = cfg.Relay.SubjectPrefix

	publisher, err := relay.NewJetStreamPublisher(ctx, jsCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up JetStream publisher: %w", err)
	}
	log.Info().
		Str("url", jsCfg.URL).
		Str("stream", jsCfg.StreamName).
		Msg("publishing battle events to JetStream")
	return publisher, publisher.Close, nil
}

// Close removes every battle, then stops the relay so the final events are flushed.
func (s *Services) Close() {
	s.Registry.Close()
	if err := s.Relay.Stop(); err != nil {
		log.Warn().Err(err).Msg("relay stop")
	}
	if s.Recorder != nil {
		s.Recorder.Wait()
	}
	if err := s.closePublisher(); err != nil {
		log.Warn().Err(err).Msg("failed to close event publisher")
	}
}
