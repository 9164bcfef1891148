package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/itstheanurag/judgexec/internal/api"
	"github.com/itstheanurag/judgexec/internal/config"
	"github.com/itstheanurag/judgexec/internal/database"
	"github.com/itstheanurag/judgexec/internal/events"
	"github.com/itstheanurag/judgexec/internal/executor"
	"github.com/itstheanurag/judgexec/internal/languages"
	"github.com/itstheanurag/judgexec/internal/limiter"
	"github.com/itstheanurag/judgexec/internal/queue"
	"github.com/itstheanurag/judgexec/internal/records"
	"github.com/itstheanurag/judgexec/internal/sandbox"
	"github.com/itstheanurag/judgexec/internal/worker"
)

const clientIdleTimeout = 5 * time.Minute

type Server struct {
	conf        *config.Config
	logger      *zerolog.Logger
	httpServer  *http.Server
	db          *database.Database
	publisher   *events.Publisher
	sandbox     *sandbox.DockerSandbox
	queue       *queue.Manager
	workers     []*worker.Worker
	rateLimiter *limiter.RateLimiter

	cancelFunc  context.CancelFunc
	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func New(
	conf *config.Config,
	logger *zerolog.Logger,
) (*Server, error) {
	sb, err := sandbox.NewDockerSandbox(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sb.Ping(pingCtx); err != nil {
		_ = sb.Close()
		return nil, err
	}

	s := &Server{
		conf:        conf,
		logger:      logger,
		sandbox:     sb,
		stopCleanup: make(chan struct{}),
	}

	sinks, err := s.openSinks()
	if err != nil {
		s.closeBackends()
		return nil, err
	}

	exec := executor.NewExecutor(conf.Sandbox, sb, logger)
	s.queue = queue.NewManager(conf.Records.QueueSize)
	s.rateLimiter = limiter.NewRateLimiter(
		conf.Limits.GlobalRPS,
		conf.Limits.ClientRPS,
		conf.Limits.ClientBurst,
		conf.Limits.MaxConcurrent,
	)
	s.rateLimiter.TrustProxies(conf.Limits.TrustedProxies)

	var recorder api.Recorder
	if len(sinks) > 0 {
		recorder = s.queue
		for i := 0; i < max(1, conf.Records.Workers); i++ {
			s.workers = append(s.workers, worker.NewWorker(i, s.queue, sinks, logger))
		}
	}
	var feed api.Feed
	if s.publisher != nil {
		feed = s.publisher
	}

	router := mux.NewRouter()

	// health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	maxBody := int64(conf.Sandbox.MaxSourceBytes)*4 + 8<<20
	api.NewHandler(exec, recorder, feed, maxBody, logger).RegisterRoutes(router, s.rateLimiter)

	s.httpServer = &http.Server{
		Addr:         ":" + conf.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(conf.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(conf.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(conf.Server.IdleTimeout) * time.Second,
	}

	return s, nil
}

// openSinks connects the optional record stores; an unset address leaves the
// sink out.
func (s *Server) openSinks() ([]records.Sink, error) {
	var sinks []records.Sink

	if s.conf.Db.Enabled() {
		db, err := database.New(s.conf, s.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
		s.db = db

		store := database.NewStore(db)
		ctx, cancel := context.WithTimeout(context.Background(), database.DatabasePingTimeout*time.Second)
		defer cancel()
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, store)
	}

	if s.conf.Redis.Enabled() {
		pub, err := events.NewPublisher(s.conf.Redis, s.logger)
		if err != nil {
			return nil, err
		}
		s.publisher = pub
		sinks = append(sinks, pub)
	}

	return sinks, nil
}

func (s *Server) Start() error {
	s.logger.Info().
		Str("port", s.conf.Server.Port).
		Int("record_workers", len(s.workers)).
		Msg("starting HTTP server")

	if s.conf.Sandbox.PullImages {
		if err := s.ensureImages(context.Background()); err != nil {
			return fmt.Errorf("failed to ensure docker images: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelFunc = cancel

	for _, w := range s.workers {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			w.Start(ctx)
		}()
	}
	s.rateLimiter.StartCleanup(clientIdleTimeout, s.stopCleanup)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}

	return nil
}

func (s *Server) ensureImages(ctx context.Context) error {
	for _, img := range languages.Images() {
		if err := s.sandbox.EnsureImage(ctx, img); err != nil {
			return err
		}
	}
	return nil
}

// Stop drains in-flight requests first so their records still reach the
// workers, then stops the workers and closes the backends.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	err := s.httpServer.Shutdown(ctx)

	close(s.stopCleanup)
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.wg.Wait()
	s.closeBackends()

	if err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func (s *Server) closeBackends() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if s.sandbox != nil {
		if err := s.sandbox.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close docker client")
		}
	}
}
