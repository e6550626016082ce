package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jobforge/orchestrator/internal/backup"
	"github.com/jobforge/orchestrator/internal/browser"
	"github.com/jobforge/orchestrator/internal/common"
	"github.com/jobforge/orchestrator/internal/events"
	"github.com/jobforge/orchestrator/internal/formfill"
	"github.com/jobforge/orchestrator/internal/jobs"
	"github.com/jobforge/orchestrator/internal/models"
	"github.com/jobforge/orchestrator/internal/quota"
	"github.com/jobforge/orchestrator/internal/ratelimit"
	"github.com/jobforge/orchestrator/internal/queue"
	"github.com/jobforge/orchestrator/internal/storage/badger"
)

// configPaths is a custom flag type allowing multiple -config flags, later
// files overriding earlier ones.
type configPaths []string

func (c *configPaths) String() string { return fmt.Sprintf("%v", *c) }
func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles configPaths
	showVersion = flag.Bool("version", false, "Print version information")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("jobforge version %s\n", common.GetVersion())
		os.Exit(0)
	}

	if len(configFiles) == 0 {
		if _, err := os.Stat("jobforge.toml"); err == nil {
			configFiles = append(configFiles, "jobforge.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arborFallback := common.GetLogger()
		arborFallback.Fatal().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}

	logger := common.SetupLogger(config)
	common.PrintBanner(config, logger)
	defer common.Stop()

	db, err := badger.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open badger store")
	}
	kv := badger.NewStore(db, logger)
	defer kv.Close()

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	sweepInterval := common.ParseDurationOr(config.Storage.Badger.SweepInterval, 30*time.Second)
	kv.StartExpirySweeper(rootCtx, sweepInterval)

	limits, err := ratelimit.New(kv, logger, config.RateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize rate limiter")
	}

	geminiKey, err := common.ResolveAPIKey(config.Gemini.APIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("gemini API key not configured, LLM-backed components will fail at call time")
	}
	config.Gemini.APIKey = geminiKey
	geminiManager, err := quota.NewManager(kv, logger, config.Gemini)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize gemini quota manager")
	}

	browserPool := browser.New(config.Browser, logger, 1, 2)

	orchestrator := formfill.NewOrchestrator(
		formfill.NewChromedpDetector(logger),
		formfill.NewChromedpExtractor(logger),
		formfill.NewDeterministicMapper(),
		formfill.NewLearnedMapper(kv, logger),
		formfill.NewLLMFieldMapper(geminiManager, logger),
		formfill.NewInteractor(logger, browserPool.ActionTimeout()),
		logger,
	)

	audit := jobs.NewAuditor(kv, logger)
	profiles := &storeProfiles{s: kv}
	credentials := &storeCredentials{s: kv}
	projects := &storeProjects{s: kv}

	handlers := map[models.JobType]queue.Handler{
		models.JobTypeResumeTailoring: jobs.NewResumeTailoringHandler(limits, geminiManager, audit, unavailableTailoringService{}, credentials, logger),
		models.JobTypeJobApplication:  jobs.NewJobApplicationHandler(limits, audit, browserPool, orchestrator, profiles, logger),
		models.JobTypeJobSearch:       jobs.NewJobSearchHandler(limits, audit, unavailableJobBoard{}, logger),
		models.JobTypeProjectAnalysis: jobs.NewProjectAnalysisHandler(audit, projects, credentials, unavailableQAService{}, logger),
	}

	jobQueue := queue.New(kv, logger, config.Queue)
	workerPool := queue.NewWorkerPool(jobQueue, kv, logger, handlers, config.Queue)
	eventHub := events.NewHub(logger)
	workerPool.SetEventHub(eventHub)
	workerPool.Start(rootCtx)
	defer workerPool.Stop()

	backupManager, err := backup.New(config.Backup, kv, kv, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize backup manager")
	}
	if err := backupManager.Start(rootCtx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start backup scheduler")
	}

	logger.Info().
		Int("queue_workers", config.Queue.WorkerCount).
		Str("badger_path", config.Storage.Badger.Path).
		Msg("jobforge ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	common.PrintShutdownBanner(logger)
	rootCancel()
	time.Sleep(500 * time.Millisecond)
}
