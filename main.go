package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/KeldrickD/deal-genie-sub000/config"
	"github.com/KeldrickD/deal-genie-sub000/httputil"
	"github.com/KeldrickD/deal-genie-sub000/logging"
	"github.com/KeldrickD/deal-genie-sub000/pipeline"
	"github.com/KeldrickD/deal-genie-sub000/scheduler"
	"github.com/KeldrickD/deal-genie-sub000/services"
	"github.com/KeldrickD/deal-genie-sub000/storage"
	"github.com/KeldrickD/deal-genie-sub000/workers"
)

var (
	acquireLocation = flag.String("acquire", "", "Run one acquisition for \"City, ST\" and exit")
	acquireKeywords = flag.String("keywords", "", "Comma-separated keywords for -acquire")
	acquireType     = flag.String("type", "both", "Listing type for -acquire: fsbo, agent, both")
	acquireRetries  = flag.Int("retries", 0, "Max retries for -acquire (0 = config default)")
	recentLocation  = flag.String("recent", "", "Print recent backend leads for \"City, ST\" and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("acquire.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting lead acquisition engine...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Loaded %d saved searches", len(cfg.Searches))
	for id, search := range cfg.Searches {
		log.Printf("  - %s (%s, %s)", id, search.City, search.State)
	}

	ctx := context.Background()

	clients := httputil.NewClients(cfg.Pipeline.RequestTimeout)
	pipe := pipeline.New(cfg.Pipeline, clients)

	if cfg.Archive.Enabled() {
		archiver, err := storage.NewS3Archiver(ctx, cfg.Archive)
		if err != nil {
			log.Printf("Warning: archive disabled: %v", err)
		} else {
			pipe.SetArchiver(archiver)
			log.Printf("Raw payload archive: %s", cfg.Archive.Bucket)
		}
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer store.Close()
	log.Printf("Local database: %s", cfg.DBPath)

	service := services.NewAcquisitionService(pipe, store)

	// Prefer the direct Postgres connection; fall back to REST.
	var sink workers.LeadSink
	var pgStore *storage.PostgresStore
	if cfg.Supabase.DBURL != "" {
		pgStore, err = storage.NewPostgresStore(ctx, cfg.Supabase.DBURL)
		if err != nil {
			log.Printf("Warning: Postgres unavailable: %v", err)
			pgStore = nil
		} else {
			defer pgStore.Close()
			sink = pgStore
			service.SetRunRecorder(pgStore)
			log.Println("Backend sink: Postgres")
		}
	}
	if sink == nil {
		supa := storage.NewSupabaseStore(&cfg.Supabase, clients.API)
		if supa.Enabled() {
			sink = supa
			log.Println("Backend sink: Supabase REST")
		}
	}

	if *recentLocation != "" {
		printRecent(ctx, pgStore, *recentLocation)
		return
	}

	if *acquireLocation != "" {
		runOnce(ctx, service, cfg, *acquireLocation)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if sink != nil {
		syncWorker := workers.NewSyncWorker(store, sink)
		service.SetSyncWorker(syncWorker)
		go syncWorker.Run(ctx, 50, 2*time.Minute)
		log.Println("Sync worker started")
	}

	sched := scheduler.New(cfg, service)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

// runOnce handles the -acquire one-shot mode.
func runOnce(ctx context.Context, service *services.AcquisitionService, cfg *config.Config, location string) {
	city, state := splitLocation(location)
	if city == "" || state == "" {
		log.Fatalf("Invalid -acquire location %q, expected \"City, ST\"", location)
	}

	var keywords []string
	for _, kw := range strings.Split(*acquireKeywords, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	retries := *acquireRetries
	if retries <= 0 {
		retries = cfg.Pipeline.MaxRetries
	}

	search := &config.SearchConfig{
		ID:          "adhoc",
		Name:        "Ad-hoc acquisition",
		City:        city,
		State:       state,
		Keywords:    keywords,
		ListingType: *acquireType,
		MaxRetries:  retries,
	}

	if err := service.RunSearch(ctx, search); err != nil {
		log.Fatalf("Acquisition failed: %v", err)
	}
	log.Println("Acquisition complete!")
}

// printRecent handles the -recent one-shot mode.
func printRecent(ctx context.Context, pgStore *storage.PostgresStore, location string) {
	if pgStore == nil {
		log.Fatalf("-recent needs a Postgres backend (set SUPABASE_DB_URL)")
	}
	city, state := splitLocation(location)
	if city == "" || state == "" {
		log.Fatalf("Invalid -recent location %q, expected \"City, ST\"", location)
	}

	leads, err := pgStore.RecentLeads(ctx, city, state, 20)
	if err != nil {
		log.Fatalf("Failed to fetch recent leads: %v", err)
	}
	if len(leads) == 0 {
		log.Printf("No leads for %s, %s yet", city, state)
		return
	}
	for _, lead := range leads {
		log.Printf("  $%.0f  %-40s  %s", lead.Price, lead.Address, lead.ListingURL)
	}
}

func splitLocation(location string) (string, string) {
	parts := strings.SplitN(location, ",", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
