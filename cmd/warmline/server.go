package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warmline/warmline/api/handlers"
	"github.com/warmline/warmline/broker"
	"github.com/warmline/warmline/config"
	"github.com/warmline/warmline/history"
	"github.com/warmline/warmline/internal/metrics"
	"github.com/warmline/warmline/internal/server"
	"github.com/warmline/warmline/internal/telemetry"
	"github.com/warmline/warmline/relocate"
	"github.com/warmline/warmline/rooms"
	"github.com/warmline/warmline/session"
	"github.com/warmline/warmline/speech"
	"github.com/warmline/warmline/summary"
	"github.com/warmline/warmline/transfer"
	"github.com/warmline/warmline/types"
)

// Server wires the orchestrator, its collaborators, and the two HTTP
// listeners (API and metrics) together.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	collector     *metrics.Collector
	otelProviders *telemetry.Providers
	redisClient   *redis.Client
	historyStore  *history.Store
	orchestrator  *transfer.Orchestrator
	healthHandler *handlers.HealthHandler
	rateLimitStop context.CancelFunc
}

// NewServer creates an unstarted server.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// Start builds the dependency graph and brings up both listeners.
func (s *Server) Start() error {
	s.collector = metrics.NewCollector("warmline", s.logger)

	otelProviders, err := telemetry.Init(s.cfg.Telemetry, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	s.otelProviders = otelProviders

	mux, err := s.buildRoutes()
	if err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}

	if err := s.startHTTPServer(mux); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

// meteredBroker counts every minted credential under one role label.
type meteredBroker struct {
	inner     broker.Broker
	collector *metrics.Collector
	role      string
}

func (b meteredBroker) Issue(ctx context.Context, identity, room string) (types.Credential, error) {
	cred, err := b.inner.Issue(ctx, identity, room)
	if err == nil {
		b.collector.RecordCredentialIssued(b.role)
	}
	return cred, err
}

func (s *Server) buildRoutes() (*http.ServeMux, error) {
	creds := broker.NewJWTBroker(broker.JWTBrokerOptions{
		APIKey:     s.cfg.Media.APIKey,
		APISecret:  s.cfg.Media.APISecret,
		Endpoint:   s.cfg.Media.URL,
		TokenTTL:   s.cfg.Media.TokenTTL,
		IssueRPS:   s.cfg.Media.IssueRPS,
		IssueBurst: s.cfg.Media.IssueBurst,
	}, s.logger)

	// Room admin API shares the signing secret with the broker: a minted
	// wildcard credential authorizes the REST calls.
	adminCred, err := creds.Issue(context.Background(), "warmline-admin", "*")
	if err != nil {
		return nil, fmt.Errorf("failed to mint room admin credential: %w", err)
	}
	roomClient := rooms.NewClient(s.cfg.Media.URL, adminCred.Token, 10*time.Second, s.logger)

	s.redisClient = redis.NewClient(&redis.Options{
		Addr:     s.cfg.Redis.Addr,
		Password: s.cfg.Redis.Password,
		DB:       s.cfg.Redis.DB,
		PoolSize: s.cfg.Redis.PoolSize,
	})
	relocChannel := relocate.NewRedisChannel(s.redisClient, "warmline", s.logger)
	relocator := relocate.NewCoordinator(
		meteredBroker{inner: creds, collector: s.collector, role: "caller"},
		relocChannel, s.cfg.Transfer.RelocateTimeout, s.logger)

	var producer summary.Producer
	switch s.cfg.Summary.Mode {
	case "remote":
		producer = summary.NewRemoteProducer(s.cfg.Summary.URL, s.cfg.Summary.Timeout, s.logger)
	default:
		producer = summary.NewHeuristicProducer(s.logger)
	}

	provider := session.NewWSProvider(s.cfg.Media.ConnectTimeout, s.logger)

	opts := transfer.Options{
		Broker:    meteredBroker{inner: creds, collector: s.collector, role: "agent"},
		Summaries: producer,
		Relocator: relocator,
		NewSession: func() transfer.Session {
			return session.NewHandle(provider, s.logger)
		},
		NewSpeaker: func(sink speech.Sink) speech.Speaker {
			return speech.NewDelivery(speech.NewPacedSynthesizer(0, 0, 0), sink, s.logger)
		},
		EnsureRoom: func(ctx context.Context, name string) error {
			_, err := roomClient.Create(ctx, name)
			return err
		},
		Metrics:     s.collector,
		SpeakDelay:  s.cfg.Transfer.SpeakDelay,
		SettleDelay: s.cfg.Transfer.SettleDelay,
		Logger:      s.logger,
	}

	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewPingCheck("redis", func(ctx context.Context) error {
		return s.redisClient.Ping(ctx).Err()
	}))

	if s.cfg.History.Enabled {
		store, err := history.Open(s.cfg.History.Path, s.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
		s.historyStore = store
		opts.Archive = store
		s.healthHandler.RegisterCheck(handlers.NewPingCheck("history", store.Ping))
	}

	orch, err := transfer.New(opts)
	if err != nil {
		return nil, err
	}
	s.orchestrator = orch

	dial := handlers.NewObserverDialer(
		meteredBroker{inner: creds, collector: s.collector, role: "observer"},
		provider, "", s.logger)

	transferHandler := handlers.NewTransferHandler(orch, dial, s.logger)
	tokenHandler := handlers.NewTokenHandler(
		meteredBroker{inner: creds, collector: s.collector, role: "client"}, s.logger)
	roomHandler := handlers.NewRoomHandler(roomClient, s.logger)
	summaryHandler := handlers.NewSummaryHandler(producer, s.logger)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("/api/v1/token", tokenHandler.HandleIssue)
	mux.HandleFunc("/api/v1/rooms", roomHandler.HandleRooms)
	mux.HandleFunc("/api/v1/summary", summaryHandler.HandleGenerate)

	mux.HandleFunc("/api/v1/transfers", transferHandler.HandleTransfers)
	mux.HandleFunc("/api/v1/transfers/{id}", transferHandler.HandleStatus)
	mux.HandleFunc("/api/v1/transfers/{id}/relocate", transferHandler.HandleRelocate)
	mux.HandleFunc("/api/v1/transfers/{id}/complete-legacy", transferHandler.HandleCompleteLegacy)
	mux.HandleFunc("/api/v1/transfers/{id}/cancel", transferHandler.HandleCancel)

	if s.historyStore != nil {
		historyHandler := handlers.NewHistoryHandler(s.historyStore, s.logger)
		mux.HandleFunc("/api/v1/history", historyHandler.HandleList)
		mux.HandleFunc("/api/v1/history/{id}", historyHandler.HandleGet)
	}

	s.logger.Info("Handlers initialized")
	return mux, nil
}

func (s *Server) startHTTPServer(mux *http.ServeMux) error {
	rateCtx, rateCancel := context.WithCancel(context.Background())
	s.rateLimitStop = rateCancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		RateLimiter(rateCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
	}
	if s.cfg.Telemetry.Enabled {
		middlewares = append(middlewares, OTelTracing())
	}
	handler := Chain(mux, middlewares...)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// WaitForShutdown blocks until a termination signal arrives, then shuts
// everything down in order.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown tears the service down gracefully: stop accepting requests, drain
// in-flight transfers, then close the backends.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.rateLimitStop != nil {
		s.rateLimitStop()
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	if s.orchestrator != nil {
		if err := s.orchestrator.Shutdown(ctx); err != nil {
			s.logger.Error("Orchestrator shutdown error", zap.Error(err))
		}
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Redis client close error", zap.Error(err))
		}
	}

	if s.otelProviders != nil {
		if err := s.otelProviders.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
