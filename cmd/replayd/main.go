package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	app "github.com/replaykit/replay"
	"github.com/replaykit/replay/internal/artifact"
	"github.com/replaykit/replay/internal/config"
	"github.com/replaykit/replay/internal/flow"
	"github.com/replaykit/replay/internal/ingest"
	"github.com/replaykit/replay/internal/repo"
	"github.com/replaykit/replay/internal/runner"
	"github.com/replaykit/replay/internal/scenario"
	"github.com/replaykit/replay/internal/server"
	"github.com/replaykit/replay/pkg/log"
)

type replayd struct {
	cfg        *config.Config
	store      repo.Store
	artifacts  *artifact.Store
	ingest     *ingest.Service
	exec       *scenario.Service
	flows      *flow.Service
	apiServer  *server.Server
	httpServer *http.Server
	quit       chan os.Signal
}

var (
	ErrConnectRedis      = errors.New("failed to connect to redis")
	ErrOpenArtifactStore = errors.New("failed to open artifact store")
)

func main() {
	cfg := config.NewDefaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			slog.Error("Invalid configuration file", log.Error(err))
			os.Exit(1)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	s := &replayd{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func (s *replayd) run() error {
	if err := s.initializeStores(); err != nil {
		return err
	}
	if err := s.initializeServices(); err != nil {
		return err
	}
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *replayd) setupLogging() {
	level := log.Level(s.cfg.LogLevel)

	env := os.Getenv("ENV")
	logger := log.NewWithLevel(app.Name, env, app.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Replay control plane starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("redis_addr", s.cfg.Redis.Addr),
		slog.Int("redis_db", s.cfg.Redis.DB),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort))
}

func (s *replayd) initializeStores() error {
	store := repo.NewRedis(&redis.Options{
		Addr:     s.cfg.Redis.Addr,
		Password: s.cfg.Redis.Password,
		DB:       s.cfg.Redis.DB,
	})
	if err := store.Ping(context.Background()); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectRedis, err)
	}
	s.store = store

	if s.cfg.ArtifactBucketURL == "" {
		return nil
	}
	artifacts, err := artifact.NewStore(
		context.Background(),
		s.cfg.ArtifactBucketURL, s.cfg.ArtifactPrefix,
	)
	if err != nil {
		_ = s.store.Close()
		return fmt.Errorf("%w: %w", ErrOpenArtifactStore, err)
	}
	s.artifacts = artifacts
	return nil
}

func (s *replayd) initializeServices() error {
	ing, err := ingest.NewService(s.store.Sessions(), s.store.Scenarios())
	if err != nil {
		return err
	}
	s.ingest = ing

	s.exec = scenario.NewService(s.store.Scenarios(), driverFactory())
	s.flows = flow.NewService(
		s.store.Flows(), flow.NewEngine(s.exec),
	)
	return nil
}

func (s *replayd) startServer() {
	s.apiServer = server.NewServer(server.Dependencies{
		Store:       s.store,
		Ingest:      s.ingest,
		Executor:    s.exec,
		Flows:       s.flows,
		Artifacts:   s.artifacts,
		MaxFlowTime: s.cfg.MaxFlowTime,
	})
	mux := s.apiServer.SetupRoutes()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: mux,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
}

func (s *replayd) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	s.apiServer.CloseWebSockets()

	if s.artifacts != nil {
		if err := s.artifacts.Close(); err != nil {
			slog.Error("Artifact store close failed", log.Error(err))
		}
	}
	if err := s.store.Close(); err != nil {
		slog.Error("Store close failed", log.Error(err))
	}

	slog.Info("Server exited")
}

// driverFactory resolves the browser driver. The real driver lives in a
// separate process or package; a deployment without one can still
// record and compose, it just cannot replay
func driverFactory() runner.Factory {
	return nil
}
