package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"trivia-quiz/internal/app"
	"trivia-quiz/internal/config"
	"trivia-quiz/internal/infra/emailjs"
	"trivia-quiz/internal/infra/memory"
	"trivia-quiz/internal/infra/opentdb"
	pgstore "trivia-quiz/internal/infra/postgres"
	redisstore "trivia-quiz/internal/infra/redis"
)

// components is the shared object graph behind every quiz session.
type components struct {
	kv            app.KeyValueStore
	cache         *app.CacheStore
	tokens        *app.TokenManager
	fetcher       *app.Fetcher
	reporter      *app.ScoreReporter
	controllerCfg app.ControllerConfig
	closers       []func() error
}

func (c *components) newController(sessionID string) *app.Controller {
	return app.NewController(sessionID, c.fetcher, c.cache, c.reporter, c.controllerCfg)
}

func (c *components) Close() error {
	var result error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

func buildComponents(ctx context.Context, cfg config.Config) (*components, error) {
	c := &components{}

	kv, err := c.openStore(ctx, cfg)
	if err != nil {
		return nil, multierror.Append(err, c.Close()).ErrorOrNil()
	}
	c.kv = kv

	trivia := opentdb.NewClient(cfg.Trivia.BaseURL, config.TTLDuration(cfg.Trivia.RequestTimeout, 10*time.Second))
	c.cache = app.NewCacheStore(kv)
	c.tokens = app.NewTokenManager(kv, trivia)
	c.fetcher = app.NewFetcher(c.cache, c.tokens, trivia, fetcherConfig(cfg))

	settings := app.EmailSettings{
		PublicKey:  cfg.Email.PublicKey,
		ServiceID:  cfg.Email.ServiceID,
		TemplateID: cfg.Email.TemplateID,
		ToEmail:    cfg.Email.ToEmail,
	}
	var sender app.ReportSender
	if len(settings.Missing()) == 0 {
		sender = emailjs.NewClient(emailjs.Config{
			BaseURL:    cfg.Email.BaseURL,
			ServiceID:  settings.ServiceID,
			TemplateID: settings.TemplateID,
			PublicKey:  settings.PublicKey,
			Timeout:    config.TTLDuration(cfg.Email.Timeout, 10*time.Second),
		})
	}
	c.reporter = app.NewScoreReporter(sender, kv, settings)

	c.controllerCfg = app.ControllerConfig{
		QuestionTime: config.TTLDuration(cfg.Quiz.QuestionTime, 20*time.Second),
		GraceDelay:   config.TTLDuration(cfg.Quiz.GraceDelay, 2*time.Second),
	}
	return c, nil
}

func (c *components) openStore(ctx context.Context, cfg config.Config) (app.KeyValueStore, error) {
	switch driver := cfg.StoreDriver(); driver {
	case "memory":
		return memory.NewKVStore(), nil
	case "redis":
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis addr not configured")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.closers = append(c.closers, client.Close)
		return redisstore.NewKVStore(client, cfg.Redis.KeyPrefix, config.TTLDuration(cfg.Redis.TTL, 0)), nil
	case "postgres":
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() error {
			pool.Close()
			return nil
		})
		return pgstore.NewKVStore(pool), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
}

func fetcherConfig(cfg config.Config) app.FetcherConfig {
	fc := app.DefaultFetcherConfig()
	if cfg.Trivia.Amount > 0 {
		fc.Query.Amount = cfg.Trivia.Amount
	}
	if cfg.Trivia.Category > 0 {
		fc.Query.Category = cfg.Trivia.Category
	}
	if cfg.Trivia.Difficulty != "" {
		fc.Query.Difficulty = cfg.Trivia.Difficulty
	}
	if cfg.Trivia.Type != "" {
		fc.Query.Type = cfg.Trivia.Type
	}
	if cfg.Trivia.MaxRetries != nil {
		fc.MaxRetries = *cfg.Trivia.MaxRetries
	}
	fc.CacheDuration = config.TTLDuration(cfg.Trivia.CacheDuration, fc.CacheDuration)
	fc.RetryBaseDelay = config.TTLDuration(cfg.Trivia.RetryBaseDelay, fc.RetryBaseDelay)
	return fc
}
