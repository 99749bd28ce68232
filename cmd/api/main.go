package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/txengine/internal/analytics"
	"github.com/dvloznov/txengine/internal/api"
	"github.com/dvloznov/txengine/internal/api/handlers"
	"github.com/dvloznov/txengine/internal/behaviour"
	"github.com/dvloznov/txengine/internal/categorise"
	"github.com/dvloznov/txengine/internal/config"
	"github.com/dvloznov/txengine/internal/ingest"
	"github.com/dvloznov/txengine/internal/jobs"
	jobsinmemory "github.com/dvloznov/txengine/internal/jobs/inmemory"
	"github.com/dvloznov/txengine/internal/logger"
	"github.com/dvloznov/txengine/internal/pipeline"
	"github.com/dvloznov/txengine/internal/store/inmemory"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()

	// Rule set, with an optional YAML override.
	rules := categorise.DefaultRules()
	if cfg.Rules.RulesFile != "" {
		rules, err = categorise.LoadRulesYAML(cfg.Rules.RulesFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.Rules.RulesFile).Msg("Failed to load rules")
		}
		log.Info().Int("rules", rules.Len()).Str("file", cfg.Rules.RulesFile).Msg("Loaded rule overrides")
	}

	// Optional AI classifier.
	var classifier categorise.Classifier
	if cfg.AI.Enabled && cfg.AI.APIKey != "" {
		gemini, err := categorise.NewGeminiClassifier(ctx, cfg.AI.Model)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create AI classifier")
		}
		classifier = gemini
		log.Info().Str("model", cfg.AI.Model).Msg("AI classifier enabled")
	}

	// Stores. Swap these for database-backed implementations without
	// touching the engines.
	mappings := inmemory.NewMappingStore()
	recurring := inmemory.NewRecurringStore()
	transactions := inmemory.NewTransactionStore()

	normaliser := ingest.NewNormaliser()
	if cfg.Rules.AliasesFile != "" {
		aliases, err := ingest.LoadAliasesYAML(cfg.Rules.AliasesFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.Rules.AliasesFile).Msg("Failed to load merchant aliases")
		}
		normaliser = ingest.NewNormaliserWithAliases(aliases)
		log.Info().Int("aliases", len(aliases)).Str("file", cfg.Rules.AliasesFile).Msg("Loaded merchant alias overrides")
	}
	engine := categorise.NewEngine(mappings, rules, classifier, logger.ForComponent(log, "categorise"))
	detector := behaviour.NewRecurrenceDetector(cfg.Behaviour, recurring, logger.ForComponent(log, "recurrence"))
	scanner := behaviour.NewAnomalyScanner(cfg.Behaviour, logger.ForComponent(log, "anomaly"))
	analyticsSvc := analytics.NewService(cfg.Analytics, logger.ForComponent(log, "analytics"))

	importPipeline := pipeline.New(logger.ForComponent(log, "pipeline"), pipeline.ImportSteps(pipeline.ImportDeps{
		Importer:     ingest.NewCSVImporter(normaliser),
		Engine:       engine,
		Detector:     detector,
		Scanner:      scanner,
		Transactions: transactions,
	})...)

	// Job infrastructure for async imports.
	jobStore := jobsinmemory.NewStore()
	jobQueue := jobsinmemory.NewQueue(cfg.Server.JobQueueSize, cfg.Server.JobWorkers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, jobs.NewImportHandler(importPipeline, logger.ForComponent(log, "worker"))); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}
	log.Info().Int("workers", cfg.Server.JobWorkers).Msg("Job workers started")

	router := api.NewRouter(handlers.New(handlers.Deps{
		Pipeline:     importPipeline,
		Engine:       engine,
		Analytics:    analyticsSvc,
		Transactions: transactions,
		Recurring:    recurring,
		Publisher:    jobQueue,
		JobStore:     jobStore,
		Log:          logger.ForComponent(log, "http"),
	}), log)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	cancelWorker()
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Job queue shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
