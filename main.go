package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealwatch/config"
	"dealwatch/httputil"
	"dealwatch/logging"
	"dealwatch/scheduler"
	"dealwatch/scraper"
	"dealwatch/server"
	"dealwatch/services"
	"dealwatch/storage"
	"dealwatch/workers"
)

var (
	scrapeNow = flag.Bool("scrape", false, "Run one ingest cycle and exit")
	exportNow = flag.Bool("export", false, "Export CSV snapshots to S3 and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("dealwatch.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting dealwatch...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Loaded %d search configs", len(cfg.Searches))
	for id, search := range cfg.Searches {
		log.Printf("  - %s (%s)", search.Name, id)
	}

	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	clients := httputil.NewClients()

	var sources []services.Source
	for _, search := range cfg.Searches {
		sources = append(sources, scraper.NewHandler(search, cfg.Scraper, clients))
	}

	market := services.NewMarketEngine(store)
	pipeline := services.NewPipeline(store, market, sources, cfg.FilterKeywords)
	query := services.NewQueryService(store)

	var exporter *services.Exporter
	if cfg.Export.Bucket != "" {
		uploader, err := storage.NewSnapshotUploader(ctx, storage.S3Config{
			Bucket:          cfg.Export.Bucket,
			Region:          cfg.Export.Region,
			Endpoint:        cfg.Export.Endpoint,
			AccessKeyID:     cfg.Export.AccessKeyID,
			SecretAccessKey: cfg.Export.SecretAccessKey,
			Prefix:          cfg.Export.Prefix,
		})
		if err != nil {
			log.Fatalf("Failed to set up snapshot uploader: %v", err)
		}
		exporter = services.NewExporter(store, uploader)
	}

	// One-shot commands
	if *scrapeNow {
		log.Println("Running ingest cycle...")
		res, err := pipeline.Run(ctx)
		if err != nil {
			log.Fatalf("Ingest failed: %v", err)
		}
		log.Printf("Ingest complete: admitted=%d persisted=%d", res.Admitted, res.Persisted)
		return
	}
	if *exportNow {
		if exporter == nil {
			log.Fatal("Export requested but S3_BUCKET is not configured")
		}
		keys, err := exporter.Export(ctx)
		if err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		log.Printf("Export complete: %v", keys)
		return
	}

	// Daemon mode
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg, pipeline, exporter)

	kbbWorker := workers.NewKBBLinkWorker(store)
	go kbbWorker.Run(ctx, cfg.KBB.BatchSize, cfg.KBB.Interval)
	sched.SetKBBWorker(kbbWorker)
	log.Println("KBB link worker started")

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	api := server.New(cfg, query, pipeline, market, store)
	api.Start()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	log.Println("Goodbye!")
}

// openStore picks Postgres when DATABASE_URL is set, SQLite otherwise.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.DatabaseURL != "" {
		store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DatabaseURL))
		return store, nil
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	log.Printf("SQLite database: %s", cfg.DBPath)
	return store, nil
}

// maskConnectionString masks the password in a DSN for logging.
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
