// Command indexer is the process entrypoint: it wires config, the
// Postgres repository, the RPC pool, every source adapter, the producer,
// a pool of worker goroutines, the grouper, and the health endpoint, then
// blocks until SIGINT/SIGTERM.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"governance-indexer/internal/adapter"
	"governance-indexer/internal/adapter/discourse"
	"governance-indexer/internal/adapter/evm"
	"governance-indexer/internal/adapter/snapshot"
	"governance-indexer/internal/cache"
	"governance-indexer/internal/config"
	"governance-indexer/internal/grouper"
	"governance-indexer/internal/httpapi"
	"governance-indexer/internal/models"
	"governance-indexer/internal/producer"
	"governance-indexer/internal/repository"
	"governance-indexer/internal/rpcpool"
	"governance-indexer/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	repo, err := repository.NewRepository(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer repo.Close()

	pool := rpcpool.NewRegistry()
	defer pool.Close()

	registry := buildAdapterRegistry(pool)

	// Redis keyword cache is entirely optional (spec.md §6): absence or a
	// failed connection must not stop the indexer from running, it only
	// costs the grouper some repeated tokenization work.
	var keywordCache *cache.KeywordCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		kc, err := cache.New(redisURL, envDuration("REDIS_KEYWORD_TTL", cache.DefaultTTL))
		if err != nil {
			log.Printf("redis keyword cache DISABLED, connection failed: %v", err)
		} else {
			keywordCache = kc
			defer keywordCache.Close()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup

	// Health endpoint — stays up even with zero enabled indexers.
	healthSrv := httpapi.NewHealthServer(":" + strconv.Itoa(cfg.HealthPort))
	go func() {
		log.Printf("health endpoint listening on %s", healthSrv.Addr)
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("health server failed: %v", err)
		}
	}()

	// Producer: regular + backtrack schedulers.
	prod := producer.New(repo)
	prod.Start(ctx)

	// Worker pool: each goroutine polls the job queue independently, relying
	// on FOR UPDATE SKIP LOCKED so they never double-claim a row.
	w := worker.New(repo, registry)
	workerCount := envInt("WORKER_CONCURRENCY", 4)
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runWorkerLoop(ctx, w, repo, id)
		}(i)
	}

	// Grouper: one reconciliation pass per DAO on its own ticker, disabled
	// entirely if no discourse base URL is configured (external collaborator
	// per spec's non-goals).
	if baseURL := os.Getenv("DISCOURSE_BASE_URL"); baseURL != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runGrouperLoop(ctx, repo, cfg, baseURL, keywordCache)
		}()
	} else {
		log.Println("Grouper is DISABLED (DISCOURSE_BASE_URL not set)")
	}

	<-sigChan
	log.Println("shutting down...")
	healthSrv.Shutdown(ctx)
	cancel()
	wg.Wait()
}

// buildAdapterRegistry constructs the fixed set of source adapters this
// deployment knows about. Each is gated by its own env vars so an operator
// can disable a variant without a code change, following the same
// ENABLE_*-style conditional-start convention used for the other
// background services below.
func buildAdapterRegistry(pool *rpcpool.Registry) *adapter.Registry {
	var adapters []adapter.SourceAdapter

	if addr := os.Getenv("COMPOUND_GOVERNOR_ADDRESS"); addr != "" {
		a, err := evm.New(evm.Config{
			Variant:      "CompoundMainnet",
			Chain:        "ethereum",
			ContractAddr: addr,
			ChoiceScheme: evm.SchemeCompound,
			Kind:         models.KindBoth,
		}, pool)
		if err != nil {
			log.Fatalf("construct CompoundMainnet adapter: %v", err)
		}
		adapters = append(adapters, a)
	}

	if addr := os.Getenv("MAKER_GOVERNOR_ADDRESS"); addr != "" {
		a, err := evm.New(evm.Config{
			Variant:      "MakerPollMainnet",
			Chain:        "ethereum",
			ContractAddr: addr,
			ChoiceScheme: evm.SchemeMaker,
			Kind:         models.KindVotes,
		}, pool)
		if err != nil {
			log.Fatalf("construct MakerPollMainnet adapter: %v", err)
		}
		adapters = append(adapters, a)
	}

	if addr := os.Getenv("AAVE_GOVERNOR_ADDRESS"); addr != "" {
		a, err := evm.New(evm.Config{
			Variant:      "AaveV3Mainnet",
			Chain:        "ethereum",
			ContractAddr: addr,
			ChoiceScheme: evm.SchemeBinary,
			Kind:         models.KindBoth,
		}, pool)
		if err != nil {
			log.Fatalf("construct AaveV3Mainnet adapter: %v", err)
		}
		adapters = append(adapters, a)
	}

	if space := os.Getenv("SNAPSHOT_SPACE"); space != "" {
		endpoint := os.Getenv("SNAPSHOT_ENDPOINT")
		if endpoint == "" {
			endpoint = "https://hub.snapshot.org/graphql"
		}
		adapters = append(adapters, snapshot.New(snapshot.Config{
			Variant:  "SnapshotProposals",
			Endpoint: endpoint,
			Space:    space,
			Kind:     models.KindBoth,
		}))
	}

	return adapter.NewRegistry(adapters...)
}

// runWorkerLoop polls the job queue until ctx is canceled. An empty queue
// backs off briefly instead of busy-looping.
func runWorkerLoop(ctx context.Context, w *worker.Worker, repo *repository.Repository, id int) {
	idleDelay := 2 * time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, ok, err := repo.ClaimNext(ctx, models.JobProposals, models.JobVotes)
		if err != nil {
			log.Printf("[worker %d] claim failed: %v", id, err)
			time.Sleep(idleDelay)
			continue
		}
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleDelay):
			}
			continue
		}

		if err := w.RunOnce(ctx, job); err != nil {
			log.Printf("[worker %d] job %d failed: %v", id, job.ID, err)
		}
	}
}

// runGrouperLoop runs one reconciliation pass per known DAO every interval,
// pulling fresh forum topics from Discourse immediately beforehand.
// keywordCache is nil whenever REDIS_URL is unconfigured or unreachable;
// grouper.Grouper treats a nil cache as "always recompute", never as a
// failure.
func runGrouperLoop(ctx context.Context, repo *repository.Repository, cfg *config.Config, baseURL string, keywordCache *cache.KeywordCache) {
	interval := 15 * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Assigned to grouper.KeywordCache only when non-nil, so the interface
	// itself stays nil rather than boxing a nil *cache.KeywordCache.
	var groupCache grouper.KeywordCache
	if keywordCache != nil {
		groupCache = keywordCache
	}

	tick := func() {
		daos, err := repo.ListDaos(ctx)
		if err != nil {
			log.Printf("[grouper] list daos: %v", err)
			return
		}
		for _, dao := range daos {
			whitelist := cfg.DaoCategoryFilters[dao.Slug]
			client := discourse.New(baseURL, whitelist)
			topics, err := client.FetchTopics(ctx, 10)
			if err != nil {
				log.Printf("[grouper] fetch topics for %s: %v", dao.Slug, err)
			}
			for _, t := range topics {
				if err := repo.UpsertDiscourseTopic(ctx, dao.ID, t); err != nil {
					log.Printf("[grouper] upsert topic %s for %s: %v", t.ID, dao.Slug, err)
				}
			}

			g := grouper.New(repo, grouper.Config{
				EmbeddingThreshold: cfg.SemanticSimilarityThreshold,
				CategoryWhitelist:  whitelist,
				Cache:              groupCache,
			})
			if err := g.Run(ctx, dao.ID, dao.ID); err != nil {
				log.Printf("[grouper] run for dao %s: %v", dao.Slug, err)
			}
		}
	}

	tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return def
}
