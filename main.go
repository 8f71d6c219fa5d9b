package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"carwatch/config"
	"carwatch/httputil"
	"carwatch/logging"
	"carwatch/notify"
	"carwatch/processor"
	"carwatch/scheduler"
	"carwatch/scraper"
	"carwatch/services"
	"carwatch/storage"
	"carwatch/workers"
)

var (
	scrapeNow = flag.Bool("scrape", false, "Run scrape once and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("carwatch.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting carwatch...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	log.Printf("Loaded %d site configs", len(cfg.Sites))
	for id, site := range cfg.Sites {
		log.Printf("  - %s (%s)", site.Name, id)
	}

	clients := httputil.NewClients()
	ctx := context.Background()

	pgStore, err := storage.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Database.URL))

	journal, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open run journal: %v", err)
	}
	defer journal.Close()
	log.Printf("Run journal: %s", cfg.DBPath)

	fetcher := scraper.NewFetcher(clients.Scraping, cfg.Scraper.FetchMaxAttempts)
	proc := processor.New(pgStore)
	persister := services.NewPersister(pgStore, cfg.Scraper.BatchSize)
	matcher := services.NewMatcher(pgStore)

	telegram := notify.NewTelegram(clients.API, cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if telegram.Enabled() {
		log.Println("Telegram notifications enabled")
	} else {
		log.Println("Telegram not configured, notifications disabled")
	}
	reporter := services.NewReporter(telegram)

	orchestrator := scraper.NewOrchestrator(cfg, journal, pgStore, fetcher, proc, persister, matcher, reporter)

	if *scrapeNow {
		log.Println("Running scrape...")
		if err := orchestrator.RunAll(ctx); err != nil {
			log.Printf("Scrape failed: %v", err)
			os.Exit(1)
		}
		log.Println("Scrape complete!")
		return
	}

	// Daemon mode
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg, orchestrator)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	checker := workers.NewCheckerWorker(cfg.Checker, pgStore, fetcher, matcher)
	go checker.Run(ctx)
	log.Println("Checker worker started")

	log.Println("Daemon running. SIGHUP triggers a run, Ctrl+C stops.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigCh {
		if sig != syscall.SIGHUP {
			break
		}
		log.Println("SIGHUP received, triggering scrape and checker")
		go func() {
			if err := sched.TriggerNow(ctx); err != nil {
				log.Printf("Manual run: %v", err)
			}
		}()
		checker.Trigger()
	}

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
	log.Println("Goodbye!")
}

// maskConnectionString hides the password portion of a database URL.
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
