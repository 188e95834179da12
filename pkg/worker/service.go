package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // pprof is intentionally exposed when pprofAddr is configured
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/toxicrawl/toxicrawl/pkg/chanapi"
	"github.com/toxicrawl/toxicrawl/pkg/observability"
	"github.com/toxicrawl/toxicrawl/pkg/perspective"
	r "github.com/toxicrawl/toxicrawl/pkg/redis"
	"github.com/toxicrawl/toxicrawl/pkg/redditapi"
	"github.com/toxicrawl/toxicrawl/pkg/scoring"
	"github.com/toxicrawl/toxicrawl/pkg/storage"
	"github.com/toxicrawl/toxicrawl/pkg/tasks"
)

// Service defines the public interface for the worker service
type Service interface {
	// Start initializes and starts the worker service
	Start(ctx context.Context) error

	// Stop gracefully shuts down the worker service
	Stop() error
}

// service encapsulates the worker application logic
type service struct {
	config *Config
	log    logrus.FieldLogger

	done chan struct{}  // Signal shutdown
	wg   sync.WaitGroup // Track goroutines

	db           *sqlx.DB
	queueManager *tasks.QueueManager
	server       *asynq.Server
	healthServer *http.Server
	pprofServer  *http.Server
}

// NewService creates a new worker service
func NewService(log logrus.FieldLogger, cfg *Config) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &service{
		log:    log.WithField("service", "worker"),
		config: cfg,
		done:   make(chan struct{}),
	}, nil
}

// Start initializes and starts the worker service
func (s *service) Start(ctx context.Context) error {
	observability.StartMetricsServer(s.config.MetricsAddr)
	s.log.WithField("addr", s.config.MetricsAddr).Info("Started metrics server")

	if s.config.HealthCheckAddr != "" {
		s.startHealthCheck()
	}

	if s.config.PProfAddr != "" {
		s.startPProf()
	}

	db, err := storage.NewPostgres(&s.config.Storage)
	if err != nil {
		return fmt.Errorf("connect storage: %w", err)
	}

	if err := storage.Migrate(ctx, db); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	s.db = db

	redisOpt := r.NewAsynqRedisOptions(&redis.Options{Addr: s.config.Redis.Address})
	s.queueManager = tasks.NewQueueManager(redisOpt)

	handler, err := s.buildHandler()
	if err != nil {
		return err
	}

	queues := s.queuePriorities()

	s.log.WithFields(logrus.Fields{
		"boards":     s.config.Boards,
		"subreddits": s.config.Subreddits,
		"queues":     len(queues),
	}).Info("Starting worker service")

	srv := asynq.NewServer(*redisOpt, asynq.Config{
		Concurrency: s.config.Concurrency,
		Queues:      queues,
	})

	mux := asynq.NewServeMux()
	for taskType, handlerFunc := range handler.Routes() {
		mux.HandleFunc(taskType, handlerFunc)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		if runErr := srv.Run(mux); runErr != nil {
			s.log.WithError(runErr).Error("Worker server stopped with error")
		}
	}()

	s.server = srv

	s.log.Info("Worker service started successfully")

	return nil
}

// Stop gracefully shuts down the worker service
func (s *service) Stop() error {
	close(s.done)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.healthServer != nil {
		if err := s.healthServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Error("Failed to shutdown health check server")
		}
	}

	if s.pprofServer != nil {
		if err := s.pprofServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Error("Failed to shutdown pprof server")
		}
	}

	if s.server != nil {
		s.server.Shutdown()
	}

	if s.queueManager != nil {
		if err := s.queueManager.Close(); err != nil {
			s.log.WithError(err).Error("Failed to close queue manager")
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.WithError(err).Error("Failed to close storage")
		}
	}

	s.wg.Wait()

	s.log.Info("Worker service stopped successfully")

	return nil
}

func (s *service) buildHandler() (*Handler, error) {
	stores := Stores{
		Boards:            storage.NewBoardRepository(s.db),
		Threads:           storage.NewThreadRepository(s.db),
		Posts:             storage.NewPostRepository(s.db),
		SubredditPosts:    storage.NewSubredditPostRepository(s.db),
		SubredditComments: storage.NewSubredditCommentRepository(s.db),
	}

	var pipeline ScoringPipeline

	if s.config.ScoreToxicity {
		scorer, err := perspective.NewClient(s.log, &s.config.Perspective)
		if err != nil {
			return nil, fmt.Errorf("create scoring client: %w", err)
		}

		pipeline = scoring.NewPipeline(s.log, scorer, storage.NewToxicityRepository(s.db))
	} else {
		pipeline = noScoring{}
	}

	return NewHandler(
		s.log,
		s.config,
		chanapi.NewClient(s.log, &s.config.Chan),
		redditapi.NewClient(s.log, &s.config.Reddit),
		stores,
		s.queueManager,
		pipeline,
	), nil
}

// queuePriorities assigns one queue per collection. Thread fanout gets more
// weight than the catalog loops that feed it so bursts drain quickly, and
// scoring runs at modest priority behind ingestion.
func (s *service) queuePriorities() map[string]int {
	queues := map[string]int{
		tasks.QueueBoardList: 1,
	}

	for _, board := range s.config.Boards {
		queues[tasks.QueueCatalog(board)] = 1
		queues[tasks.QueueThreads(board)] = 5

		if s.config.ScoreToxicity {
			queues[tasks.QueueToxicity(board)] = 2
		}
	}

	for _, sub := range s.config.Subreddits {
		queues[tasks.QueueSubredditPosts(sub)] = 1
		queues[tasks.QueueSubredditComments(sub)] = 1

		if s.config.ScoreToxicity {
			queues[tasks.QueueToxicity(sub)] = 2
		}
	}

	return queues
}

func (s *service) startHealthCheck() {
	s.log.WithField("addr", s.config.HealthCheckAddr).Info("Starting health check server")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		if s.server != nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("READY"))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT READY"))
		}
	})

	s.healthServer = &http.Server{
		Addr:              s.config.HealthCheckAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		if err := s.healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Health check server failed")
		}
	}()
}

func (s *service) startPProf() {
	s.log.WithField("addr", s.config.PProfAddr).Info("Starting pprof server")

	s.pprofServer = &http.Server{
		Addr:              s.config.PProfAddr,
		ReadHeaderTimeout: 120 * time.Second,
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		if err := s.pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Pprof server failed")
		}
	}()
}

// noScoring satisfies ScoringPipeline when scoring is disabled; handlers
// never enqueue scoring jobs in that case, so this only runs for jobs left
// over from a previous configuration.
type noScoring struct{}

func (noScoring) ScoreBatch(_ context.Context, items []scoring.Item) (scoring.Stats, error) {
	return scoring.Stats{Skipped: len(items)}, nil
}

// Ensure service implements the interface
var _ Service = (*service)(nil)
