package assetworker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"assetprocessor/internal/apiclient"
	"assetprocessor/internal/config"
	"assetprocessor/internal/coordinator"
	"assetprocessor/internal/db"
	"assetprocessor/internal/lock"
	"assetprocessor/internal/media"
	"assetprocessor/internal/message_broker"
	"assetprocessor/internal/metrics"
	"assetprocessor/internal/models"
	"assetprocessor/internal/processor"
	"assetprocessor/internal/store"
	"assetprocessor/internal/store/postgres"
	redisstore "assetprocessor/internal/store/redis"
	"assetprocessor/internal/tokenizer"
	"assetprocessor/internal/transcribe"
)

// Store is the remote job/asset API shared by the poller, workers and pipeline.
type Store interface {
	JobLister
	processor.Store
}

// Service is the wired worker process: one poller, one worker pool and the
// scratch janitor around a shared coordinator and dispatch queue.
type Service struct {
	cfg     *config.WorkerConfig
	logger  *slog.Logger
	coord   *coordinator.Coordinator
	queue   chan models.Job
	poller  *Poller
	pool    *WorkerPool
	janitor *Janitor
	closers []func() error
}

// NewService wires the runtime around an already built store and processor.
func NewService(cfg *config.WorkerConfig, api Store, jobProcessor JobProcessor, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	coord := coordinator.New()
	queue := make(chan models.Job, cfg.DispatchQueueSize)

	return &Service{
		cfg:     cfg,
		logger:  logger,
		coord:   coord,
		queue:   queue,
		poller:  NewPoller(api, coord, queue, cfg.PollInterval, cfg.StuckJobThreshold, cfg.MaxJobAttempts, logger, m),
		pool:    NewWorkerPool(queue, coord, api, jobProcessor, cfg.WorkerCount, cfg.HeartbeatInterval, logger, m),
		janitor: NewJanitor(cfg.ScratchDir, cfg.JanitorSchedule, cfg.ScratchMaxAge, logger),
	}
}

// Setup builds every dependency from cfg, including the optional attempt
// ledger and outcome events.
func Setup(ctx context.Context, cfg *config.WorkerConfig, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := ValidateSchedule(cfg.JanitorSchedule); err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", cfg.JanitorSchedule, err)
	}

	mp, err := metrics.NewMeterProvider(ctx, cfg.Metrics.Exporter, cfg.Metrics.OTLPEndpoint, cfg.Metrics.ExportInterval, nil)
	if err != nil {
		return nil, err
	}
	m := metrics.NewNoop()
	if mp != nil {
		m = metrics.New(mp)
	}
	closeProvider := func() error {
		if mp == nil {
			return nil
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), finalWriteTimeout)
		defer cancel()
		return mp.Shutdown(shutdownCtx)
	}

	counter := tokenizer.NewTiktoken(cfg.TokenizerEncoding)
	if err := counter.Load(); err != nil {
		closeProvider()
		return nil, err
	}

	api := apiclient.NewClient(cfg.APIBaseURL, cfg.ServerAPIKey, nil)
	engine := media.NewFFmpeg(cfg.Media.FFmpegPath, cfg.Media.FFprobePath)
	chunker := media.NewChunker(engine, cfg.ScratchDir, logger)
	backend := transcribe.NewOpenAIBackend(cfg.Transcription, nil)
	fanOut := transcribe.NewFanOut(backend, cfg.MaxConcurrentTranscriptions, cfg.ScratchDir, logger, m)
	pipeline := processor.NewPipeline(api, chunker, fanOut, counter, cfg.MaxChunkSizeBytes, logger, m)

	svc := NewService(cfg, api, pipeline, logger, m)
	svc.closers = append(svc.closers, closeProvider)
	if mp != nil {
		logger.Info("Metrics export enabled", "exporter", cfg.Metrics.Exporter, "interval", cfg.Metrics.ExportInterval)
	}

	if cfg.LedgerEnabled() {
		if err := svc.setupLedger(ctx); err != nil {
			svc.Close()
			return nil, err
		}
	}
	if cfg.EventsEnabled() {
		if err := svc.setupEvents(); err != nil {
			svc.Close()
			return nil, err
		}
	}
	return svc, nil
}

func (s *Service) setupLedger(ctx context.Context) error {
	var ledger store.AttemptStore
	switch s.cfg.LedgerDriver {
	case config.Postgres:
		sqlDB, err := db.Open(ctx, s.cfg.PostgresConfig.ConnectionUrl)
		if err != nil {
			return err
		}
		if err := db.Init(ctx, sqlDB, lock.NewPostgresDistributedLockManager(sqlDB), s.logger); err != nil {
			sqlDB.Close()
			return fmt.Errorf("init attempt ledger: %w", err)
		}
		ledger = postgres.NewPostgresAttemptStore(sqlDB)
	case config.Redis:
		rdb, err := db.OpenRedis(ctx, s.cfg.RedisConfig)
		if err != nil {
			return err
		}
		ledger = redisstore.NewRedisAttemptStore(rdb)
	default:
		return fmt.Errorf("unsupported ledger driver %s", s.cfg.LedgerDriver)
	}

	s.pool.WithLedger(ledger)
	s.closers = append(s.closers, ledger.Close)
	s.logger.Info("Attempt ledger enabled", "driver", s.cfg.LedgerDriver)
	return nil
}

func (s *Service) setupEvents() error {
	rc := s.cfg.RabbitMQConfig
	broker, err := message_broker.NewRabbitMQ(rc.URL, rc.Exchange, rc.Queue, rc.RoutingKey)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}

	publisher := message_broker.NewOutcomePublisher(broker)
	s.pool.WithEvents(publisher)
	s.closers = append(s.closers, publisher.Close)
	s.logger.Info("Job outcome events enabled", "exchange", rc.Exchange, "routing_key", rc.RoutingKey)
	return nil
}

// Run blocks until ctx is done and every worker has finished its current job.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("Starting asset processor",
		"workers", s.cfg.WorkerCount,
		"poll_interval", s.cfg.PollInterval,
		"max_attempts", s.cfg.MaxJobAttempts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.poller.Run(gctx) })
	g.Go(func() error {
		s.pool.Run(gctx)
		return nil
	})
	g.Go(func() error { return s.janitor.Run(gctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Close flushes metrics and releases the ledger and the broker connection.
func (s *Service) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn("Error during shutdown", "error", err)
		}
	}
	s.closers = nil
}

// Run sets up the service, runs it until ctx is done and tears it down.
func Run(ctx context.Context, cfg *config.WorkerConfig, logger *slog.Logger) error {
	svc, err := Setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()
	return svc.Run(ctx)
}
