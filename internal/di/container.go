package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pep299/econ-news-digest/internal/config"
	"github.com/pep299/econ-news-digest/internal/delivery"
	"github.com/pep299/econ-news-digest/internal/gemini"
	"github.com/pep299/econ-news-digest/internal/handlers"
	"github.com/pep299/econ-news-digest/internal/lock"
	"github.com/pep299/econ-news-digest/internal/metrics"
	"github.com/pep299/econ-news-digest/internal/news"
	"github.com/pep299/econ-news-digest/internal/ollama"
	"github.com/pep299/econ-news-digest/internal/pipeline"
	"github.com/pep299/econ-news-digest/internal/report"
	"github.com/pep299/econ-news-digest/internal/slack"
	"github.com/pep299/econ-news-digest/internal/summary"
)

// Container holds all dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics
	NewsClient *news.Client
	Summarizer *summary.Summarizer
	Renderer   *report.Renderer
	Delivery   *delivery.Fanout
	Guard      lock.Guard
	Runner     *pipeline.Runner

	storage *delivery.StorageStore
	redis   *redis.Client
}

// NewContainer creates a new dependency container
func NewContainer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	c := &Container{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.Metrics = metrics.New(c.Registry)

	c.NewsClient = news.NewClient(news.Options{
		APIKey:   cfg.NewsAPIKey,
		Endpoint: cfg.NewsAPIEndpoint,
		Language: cfg.NewsLanguage,
		PageSize: cfg.NewsPageSize,
		Delay:    cfg.NewsDelay,
	}, logger.Named("news"))

	generator, err := newGenerator(cfg)
	if err != nil {
		return nil, err
	}
	c.Summarizer = summary.New(generator, summary.Options{
		BatchSize: cfg.BatchSize,
		Delay:     cfg.BatchDelay,
		Attempts:  cfg.BatchAttempts,
		Backoff:   cfg.BatchBackoff,
		Language:  cfg.SummaryLanguage,
		Market:    cfg.SummaryMarket,
	}, logger.Named("summary"), c.Metrics)

	c.Renderer = report.NewRenderer(report.Options{
		Dir:      cfg.ReportDir,
		FontPath: cfg.FontPath,
		FontURL:  cfg.FontURL,
		Compress: true,
	}, logger.Named("report"))

	transports, err := c.newTransports(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	var notifier delivery.Notifier
	if cfg.SlackChannel != "" {
		notifier = slack.NewClient(cfg.SlackBotToken, cfg.SlackChannel)
	}
	c.Delivery = delivery.NewFanout(transports, notifier, logger.Named("delivery"), c.Metrics)

	if err := c.newGuard(ctx); err != nil {
		c.Close()
		return nil, err
	}

	c.Runner = pipeline.NewRunner(pipeline.Deps{
		Guard:      c.Guard,
		Fetcher:    c.NewsClient,
		Summarizer: c.Summarizer,
		Renderer:   c.Renderer,
		Deliverer:  c.Delivery,
	}, cfg.Keywords, logger.Named("pipeline"), c.Metrics)

	return c, nil
}

func newGenerator(cfg *config.Config) (summary.Generator, error) {
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		client, err := ollama.NewClient(cfg.OllamaModel)
		if err != nil {
			return nil, fmt.Errorf("creating ollama client: %w", err)
		}
		return client, nil
	default:
		return gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel), nil
	}
}

func (c *Container) newTransports(ctx context.Context) ([]delivery.Transport, error) {
	cfg := c.Config
	retry := delivery.RetryPolicy{Attempts: cfg.DeliveryAttempts, Backoff: cfg.DeliveryBackoff}

	var transports []delivery.Transport
	for _, target := range cfg.DeliveryTargets {
		switch target {
		case config.TargetEmail:
			transports = append(transports, delivery.NewResend(delivery.ResendOptions{
				APIKey:   cfg.ResendAPIKey,
				Endpoint: cfg.ResendAPIURL,
				From:     cfg.EmailSender,
				To:       cfg.EmailReceivers,
				Retry:    retry,
			}, c.Logger.Named("resend")))
		case config.TargetGCS:
			store, err := delivery.NewStorageStore(ctx, cfg.GCSCredentialsFile)
			if err != nil {
				return nil, err
			}
			c.storage = store
			transports = append(transports, delivery.NewGCS(store, delivery.GCSOptions{
				Bucket:     cfg.GCSBucket,
				Folder:     cfg.GCSFolder,
				PublicRead: cfg.GCSPublicRead,
				Retry:      retry,
			}, c.Logger.Named("gcs")))
		}
	}
	return transports, nil
}

func (c *Container) newGuard(ctx context.Context) error {
	if c.Config.RedisAddr == "" {
		c.Guard = lock.NewLocal()
		return nil
	}

	c.redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.RedisAddr,
		Password: c.Config.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.redis.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("connecting to redis %s: %w", c.Config.RedisAddr, err)
	}
	c.Guard = lock.NewRedis(c.redis, c.Config.LockKey, c.Config.LockTTL, c.Logger.Named("lock"))
	return nil
}

// Server builds the HTTP control surface. schedule may be nil.
func (c *Container) Server(schedule handlers.Schedule, version string) *handlers.Server {
	return handlers.NewServer(c.Runner, schedule, handlers.Options{
		TriggerToken: c.Config.TriggerToken,
		Gatherer:     c.Registry,
		Version:      version,
	}, c.Logger.Named("http"))
}

// Close cleans up resources
func (c *Container) Close() error {
	var errs []error
	if c.storage != nil {
		errs = append(errs, c.storage.Close())
	}
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	return errors.Join(errs...)
}
