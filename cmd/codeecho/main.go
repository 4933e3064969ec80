// Package main wires together the website analysis service binary.
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

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/codeecho/codeecho/internal/analysis"
	"github.com/codeecho/codeecho/internal/analyzer"
	"github.com/codeecho/codeecho/internal/api"
	"github.com/codeecho/codeecho/internal/clock/system"
	"github.com/codeecho/codeecho/internal/config"
	"github.com/codeecho/codeecho/internal/fetcher"
	headlessfetcher "github.com/codeecho/codeecho/internal/fetcher/headless"
	"github.com/codeecho/codeecho/internal/fetcher/httpget"
	"github.com/codeecho/codeecho/internal/hash/sha256"
	"github.com/codeecho/codeecho/internal/id/uuid"
	"github.com/codeecho/codeecho/internal/llm"
	"github.com/codeecho/codeecho/internal/logging"
	"github.com/codeecho/codeecho/internal/metrics"
	"github.com/codeecho/codeecho/internal/orchestrator"
	"github.com/codeecho/codeecho/internal/pipeline"
	"github.com/codeecho/codeecho/internal/policy/ratelimit"
	"github.com/codeecho/codeecho/internal/policy/simple"
	"github.com/codeecho/codeecho/internal/progress"
	"github.com/codeecho/codeecho/internal/progress/sinks"
	pubsubpublisher "github.com/codeecho/codeecho/internal/publisher/pubsub"
	sessionmemory "github.com/codeecho/codeecho/internal/session/memory"
	sessionpostgres "github.com/codeecho/codeecho/internal/session/postgres"
	gcsstorage "github.com/codeecho/codeecho/internal/storage/gcs"
	memorystorage "github.com/codeecho/codeecho/internal/storage/memory"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	idGen := uuid.New()

	plainFetcher := httpget.New(httpget.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
	})
	var render analysis.Fetcher
	if cfg.Headless.Enabled {
		headlessFetcher, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Fetch.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
			SettleDelay:       time.Duration(cfg.Headless.SettleDelayMs) * time.Millisecond,
		})
		if err != nil {
			logger.Warn("headless fetcher init failed", zap.Error(err))
		} else {
			render = headlessFetcher
		}
	}
	fetch := fetcher.New(render, plainFetcher, fetcher.Options{
		Policy: simple.New(simple.Config{
			AllowPrivateHosts: cfg.Fetch.AllowPrivateHosts,
			DenyHosts:         cfg.Fetch.DenyHosts,
		}),
		Limiter: ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.Fetch.RateLimitRPS,
			DefaultBurst: cfg.Fetch.RateLimitBurst,
		}),
	}, logger.Named("fetcher"))

	backends, order, err := buildBackends(cfg, logger)
	if err != nil {
		logger.Fatal("backend init failed", zap.Error(err))
	}
	orch, err := orchestrator.New(orchestrator.Config{
		AttemptTimeout: time.Duration(cfg.Generate.AttemptTimeoutSec) * time.Second,
		DefaultOrder:   order,
	}, backends, logger.Named("orchestrator"))
	if err != nil {
		logger.Fatal("orchestrator init failed", zap.Error(err))
	}

	sessions, closeSessions, err := buildSessionStore(ctx, cfg)
	if err != nil {
		logger.Fatal("session store init failed", zap.Error(err))
	}
	defer closeSessions()

	blobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal("blob store init failed", zap.Error(err))
	}

	events, closeEvents, err := buildPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}
	defer closeEvents()

	hub, err := buildProgressHub(cfg, logger)
	if err != nil {
		logger.Fatal("progress hub init failed", zap.Error(err))
	}
	defer func() {
		if hub == nil {
			return
		}
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
	}()
	var emitter progress.Emitter
	if hub != nil {
		emitter = hub
	}

	runner, err := pipeline.New(pipeline.Config{RunTimeout: cfg.RunTimeout()}, pipeline.Deps{
		Fetcher:  fetch,
		Analyzer: analyzer.New(analyzerConfig(cfg)),
		Orch:     orch,
		Sessions: sessions,
		Blobs:    blobs,
		Events:   events,
		Hasher:   sha256.New(),
		Progress: emitter,
		Clock:    clock,
		IDs:      idGen,
		Logger:   logger.Named("pipeline"),
	})
	if err != nil {
		logger.Fatal("pipeline init failed", zap.Error(err))
	}

	apiServer := api.NewServer(runner, sessions, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func analyzerConfig(cfg config.Config) analyzer.Config {
	return analyzer.Config{
		NavComplexItems:      cfg.Analyzer.NavComplexItems,
		ComplexityHighScore:  cfg.Analyzer.ComplexityHighScore,
		ComplexityMedScore:   cfg.Analyzer.ComplexityMedScore,
		VibrantColorCount:    cfg.Analyzer.VibrantColorCount,
		MonochromeColorCount: cfg.Analyzer.MonochromeColorCount,
	}
}

// buildBackends converts configured backends in declaration order; that
// order is also the fallback chain.
func buildBackends(cfg config.Config, logger *zap.Logger) ([]analysis.Backend, []string, error) {
	backends := make([]analysis.Backend, 0, len(cfg.Backends))
	order := make([]string, 0, len(cfg.Backends))
	for _, bc := range cfg.Backends {
		var temperature *float64
		if bc.Temperature > 0 {
			temperature = &bc.Temperature
		}
		backend, err := llm.NewBackend(llm.Config{
			Name:        bc.Name,
			Provider:    bc.Provider,
			BaseURL:     bc.BaseURL,
			Model:       bc.Model,
			APIKeyEnv:   bc.APIKeyEnv,
			MaxTokens:   bc.MaxTokens,
			Temperature: temperature,
			Timeout:     time.Duration(bc.TimeoutSec) * time.Second,
		}, nil, logger.Named("llm"))
		if err != nil {
			return nil, nil, fmt.Errorf("backend %q: %w", bc.Name, err)
		}
		backends = append(backends, backend)
		order = append(order, bc.Name)
	}
	return backends, order, nil
}

func buildSessionStore(ctx context.Context, cfg config.Config) (analysis.SessionStore, func(), error) {
	switch cfg.Sessions.Store {
	case "postgres":
		store, err := sessionpostgres.New(ctx, sessionpostgres.Config{
			DSN:             cfg.Sessions.DSN,
			Table:           cfg.Sessions.Table,
			MaxConns:        cfg.Sessions.MaxConns,
			MinConns:        cfg.Sessions.MinConns,
			MaxConnLifetime: time.Duration(cfg.Sessions.MaxConnLifetime) * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return sessionmemory.New(), func() {}, nil
	}
}

func buildBlobStore(ctx context.Context, cfg config.Config) (analysis.BlobStore, error) {
	switch cfg.Storage.Provider {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return gcsstorage.New(client, gcsstorage.Config{
			Bucket: cfg.Storage.GCSBucket,
			Prefix: cfg.Storage.Prefix,
		})
	default:
		return memorystorage.NewBlobStore(), nil
	}
}

func buildProgressHub(cfg config.Config, logger *zap.Logger) (*progress.Hub, error) {
	if !cfg.Progress.Enabled {
		return nil, nil
	}
	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		return nil, err
	}
	return progress.NewHub(progress.Config{
		BufferSize:    cfg.Progress.BufferSize,
		MaxBatch:      cfg.Progress.MaxBatch,
		FlushInterval: time.Duration(cfg.Progress.FlushIntervalMs) * time.Millisecond,
		Logger:        logger.Named("progress"),
	}, sinks.NewLogSink(logger.Named("progress")), promSink), nil
}

func buildPublisher(ctx context.Context, cfg config.Config) (analysis.Publisher, func(), error) {
	if !cfg.PubSub.Enabled {
		return nil, func() {}, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(cfg.PubSub.TopicName)
	closeFn := func() {
		topic.Stop()
		if err := client.Close(); err != nil {
			zap.L().Warn("pubsub client close failed", zap.Error(err))
		}
	}
	return pubsubpublisher.New(topic), closeFn, nil
}
