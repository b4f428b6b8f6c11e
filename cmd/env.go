package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/provider-directory/internal/db"
	"github.com/sells-group/provider-directory/internal/entity"
	"github.com/sells-group/provider-directory/internal/lock"
	"github.com/sells-group/provider-directory/internal/pipeline"
	"github.com/sells-group/provider-directory/internal/search"
	"github.com/sells-group/provider-directory/internal/store"
	anthropicpkg "github.com/sells-group/provider-directory/pkg/anthropic"
	"github.com/sells-group/provider-directory/pkg/embed"
	"github.com/sells-group/provider-directory/pkg/extract"
	"github.com/sells-group/provider-directory/pkg/geocode"
)

// ingestEnv holds the shared pool, clients, and orchestrator used by the
// ingest/sweep/intervene/backfill commands.
type ingestEnv struct {
	Pool         *pgxpool.Pool
	Redis        *redis.Client
	Records      store.RecordStore
	Orchestrator *pipeline.Orchestrator
}

// Close releases resources held by the environment.
func (e *ingestEnv) Close() {
	if e.Redis != nil {
		_ = e.Redis.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
}

// connectPool opens the shared pgx pool and applies pending migrations.
func connectPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// initEnv wires the stores, lease manager, and collaborator clients into
// an orchestrator. Callers should defer env.Close().
func initEnv(ctx context.Context) (*ingestEnv, error) {
	pool, err := connectPool(ctx)
	if err != nil {
		return nil, err
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(redisOpts)

	records := store.NewPostgres(pool)
	entities := entity.NewPostgresStore(pool)
	locks := pipeline.NewRedisLocker(lock.NewManager(rdb, cfg.Ingest.LockLease))

	ai := anthropicpkg.NewClient(cfg.Extract.Key)
	extractor := extract.New(ai, extract.Config{
		Model:     cfg.Extract.Model,
		MaxTokens: cfg.Extract.MaxTokens,
		Timeout:   time.Duration(cfg.Extract.TimeoutSecs) * time.Second,
	})

	geoOpts := []geocode.Option{geocode.WithRateLimit(cfg.Geocode.RateRPS)}
	if cfg.Geocode.GoogleKey != "" {
		geoOpts = append(geoOpts, geocode.WithGoogleAPIKey(cfg.Geocode.GoogleKey))
	}
	geocoder := geocode.NewClient(geoOpts...)

	embedder := newEmbedder()

	orch := pipeline.New(
		cfg,
		records,
		entities,
		pipeline.NewTxRunner(pool),
		locks,
		extractor,
		geocoder,
		embedder,
	)

	return &ingestEnv{
		Pool:         pool,
		Redis:        rdb,
		Records:      records,
		Orchestrator: orch,
	}, nil
}

func newEmbedder() embed.Client {
	opts := []embed.Option{
		embed.WithModel(cfg.Embed.Model),
		embed.WithDimensions(cfg.Embed.Dimensions),
	}
	if cfg.Embed.BaseURL != "" {
		opts = append(opts, embed.WithBaseURL(cfg.Embed.BaseURL))
	}
	return embed.NewClient(cfg.Embed.Key, opts...)
}

// initSearcher wires the read-only search path: pool plus embedder, no
// Redis and no extraction clients.
func initSearcher(ctx context.Context) (*pgxpool.Pool, *search.Searcher, error) {
	pool, err := connectPool(ctx)
	if err != nil {
		return nil, nil, err
	}
	return pool, search.New(pool, newEmbedder(), cfg.Search), nil
}
