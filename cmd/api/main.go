package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"askpurposely/internal/bridge"
	"askpurposely/internal/config"
	"askpurposely/internal/generator"
	"askpurposely/internal/queue"
	"askpurposely/internal/scenario"
	"askpurposely/internal/seed"
	"askpurposely/internal/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	pool := buildPool(ctx, cfg)
	gen := buildGenerator(ctx, cfg)
	store := buildSnapshotStore(cfg)

	queueCfg := queue.Config{
		MinQueue:        cfg.Queue.MinQueue,
		SeedBatch:       cfg.Queue.SeedBatch,
		SeenCapacity:    cfg.Queue.SeenCapacity,
		GenerateTimeout: time.Duration(cfg.Queue.GenerateTimeout),
	}
	registry := bridge.NewRegistry(func(ctx context.Context, userID string) *queue.Service {
		return queue.New(ctx, userID, pool, gen, store, queueCfg)
	}, time.Duration(cfg.Queue.Debounce))
	defer registry.CloseAll()

	mux := http.NewServeMux()
	bridge.NewHandler(registry).Register(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	h := withCORS(mux)
	log.Printf("Starting ask server on %s (env=%s)", cfg.Port, cfg.Env)
	log.Fatal(http.ListenAndServe(cfg.Port, h2c.NewHandler(h, &http2.Server{})))
}

// buildPool picks Postgres when a DSN is configured, in-memory otherwise, and
// preloads the seed file when one is given.
func buildPool(ctx context.Context, cfg *config.Config) seed.Source {
	var preload []func(context.Context)
	var source seed.Source

	if cfg.DatabaseURL != "" {
		pg, err := seed.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("seed pool: %v", err)
		}
		source = pg
		if cfg.SeedFile != "" {
			preload = append(preload, func(ctx context.Context) {
				items, err := loadSeedFile(cfg.SeedFile)
				if err != nil {
					log.Printf("seed pool: %v", err)
					return
				}
				if err := pg.Add(ctx, items); err != nil {
					log.Printf("seed pool: preload: %v", err)
					return
				}
				log.Printf("seed pool: preloaded %d scenarios from %s", len(items), cfg.SeedFile)
			})
		}
	} else {
		mem := seed.NewMemoryStore()
		source = mem
		if cfg.SeedFile != "" {
			preload = append(preload, func(context.Context) {
				raws, err := seed.LoadFile(cfg.SeedFile)
				if err != nil {
					log.Printf("seed pool: %v", err)
					return
				}
				mem.Push(raws...)
				log.Printf("seed pool: preloaded %d scenarios from %s", len(raws), cfg.SeedFile)
			})
		}
		log.Printf("seed pool: no DATABASE_URL, using in-memory pool")
	}

	for _, fn := range preload {
		loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		fn(loadCtx)
		cancel()
	}
	return source
}

// loadSeedFile reads the YAML pool file and drops entries that fail
// validation instead of aborting startup.
func loadSeedFile(path string) ([]scenario.Scenario, error) {
	raws, err := seed.LoadFile(path)
	if err != nil {
		return nil, err
	}
	items := make([]scenario.Scenario, 0, len(raws))
	for _, raw := range raws {
		sc, err := scenario.Normalize(raw)
		if err != nil {
			log.Printf("seed pool: drop invalid entry: %v", err)
			continue
		}
		items = append(items, sc)
	}
	return items, nil
}

func buildGenerator(ctx context.Context, cfg *config.Config) generator.Generator {
	if !config.GeminiEnabled() {
		log.Printf("generator: no GEMINI_API_KEY, using canned fake")
		return generator.NewFake()
	}
	gem, err := generator.NewGemini(ctx, generator.GeminiConfig{
		Model: cfg.Generator.Model,
		RPS:   cfg.Generator.RPS,
		Burst: cfg.Generator.Burst,
	})
	if err != nil {
		log.Fatalf("generator: %v", err)
	}
	return gem
}

func buildSnapshotStore(cfg *config.Config) snapshot.Store {
	switch cfg.Snapshot.Backend {
	case "s3":
		store, err := snapshot.NewS3Store(snapshot.S3Config{
			Endpoint:  cfg.Snapshot.S3.Endpoint,
			Region:    cfg.Snapshot.S3.Region,
			AccessKey: cfg.Snapshot.S3.AccessKey,
			SecretKey: cfg.Snapshot.S3.SecretKey,
			Bucket:    cfg.Snapshot.S3.Bucket,
			UseSSL:    cfg.Snapshot.S3.UseSSL,
		})
		if err != nil {
			log.Fatalf("snapshot store: %v", err)
		}
		return store
	case "sqlite":
		store, err := snapshot.NewSQLiteStore(cfg.Snapshot.SQLitePath)
		if err != nil {
			log.Fatalf("snapshot store: %v", err)
		}
		return store
	case "none":
		return nil
	default:
		store, err := snapshot.NewFileStore(cfg.Snapshot.Dir)
		if err != nil {
			log.Fatalf("snapshot store: %v", err)
		}
		return store
	}
}

// withCORS mirrors what the frontend dev server needs; OPTIONS short-circuits.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
