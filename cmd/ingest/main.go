package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/marcusw/jobtrack/internal/config"
	"github.com/marcusw/jobtrack/internal/ingest"
	"github.com/marcusw/jobtrack/internal/logger"
	"github.com/marcusw/jobtrack/internal/repository"
	"github.com/marcusw/jobtrack/internal/scheduler"
	"github.com/marcusw/jobtrack/internal/source"
	"github.com/marcusw/jobtrack/internal/source/static"
	"github.com/marcusw/jobtrack/internal/source/workday"
	"github.com/marcusw/jobtrack/internal/taxonomy"
)

// boardRequestsPerSec keeps per-host traffic polite; career boards throttle
// aggressively above roughly one request per second.
const (
	boardRequestsPerSec = 1.0
	boardBurst          = 2
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Parse command line flags
	sourceName := flag.String("source", "", "Run a single source by name, then exit")
	once := flag.Bool("once", false, "Run one full pass over all sources, then exit")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	postingRepo := repository.NewPostingRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	runRepo := repository.NewRunRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	// Initialize the classifier and warm it from persisted roles so
	// vocabulary growth survives restarts.
	classifier := taxonomy.NewClassifier(roleRepo, appLogger)
	if err := classifier.Warm(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to warm role taxonomy")
	}

	// Initialize the ingestion pipeline
	stats := ingest.NewCycleStats()
	engine := ingest.NewUpsertEngine(postingRepo, appLogger, cfg.Ingest.RetryCount)
	lifecycle := ingest.NewLifecycleManager(postingRepo, appLogger)
	coordinator := ingest.NewCoordinator(runRepo, classifier, engine, lifecycle, stats, appLogger)

	jobs := buildSources(cfg, appLogger)
	if len(jobs) == 0 {
		appLogger.Fatal("No enabled sources configured")
	}

	pipeline := ingest.NewPipeline(coordinator, postingRepo, stats, jobs,
		cfg.Ingest.LookbackDays, appLogger)

	// One-shot modes
	if *sourceName != "" {
		if err := pipeline.RunOne(ctx, *sourceName); err != nil {
			appLogger.WithError(err).WithField("source", *sourceName).
				Fatal("Source cycle failed")
		}
		return
	}
	if *once || !cfg.Scheduler.Enabled {
		pipeline.Run(ctx)
		return
	}

	// Daemon mode: business-hours passes plus the daily audit
	sched := scheduler.New(cfg.Scheduler, pipeline, appLogger)
	if err := sched.Start(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to start scheduler")
	}

	<-ctx.Done()
	sched.Stop()
	appLogger.Info("Ingest daemon exited")
}

// buildSources turns the configured source list into adapter jobs. Unknown
// types are skipped with a warning so one bad entry never blocks the rest.
func buildSources(cfg *config.Config, log *logger.Logger) []ingest.SourceJob {
	limiter := source.NewHostLimiter(boardRequestsPerSec, boardBurst)

	var jobs []ingest.SourceJob
	for _, src := range cfg.Sources {
		if !src.Enabled {
			continue
		}

		var adapter source.Adapter
		switch src.Type {
		case "workday":
			adapter = workday.New(workday.Config{
				Name:    src.Name,
				Company: src.Company,
				BaseURL: src.BaseURL,
				Tenant:  src.Tenant,
				Site:    src.Site,
			}, limiter, log)
		case "static":
			adapter = static.New(src.Name, src.Company, src.ManifestPath)
		default:
			log.WithFields(logger.Fields{
				"source": src.Name,
				"type":   src.Type,
			}).Warn("Unknown source type, skipping")
			continue
		}

		jobs = append(jobs, ingest.SourceJob{
			Adapter:     adapter,
			RoleQueries: cfg.RoleQueriesFor(src),
		})
	}
	return jobs
}
