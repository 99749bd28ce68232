package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txengine/internal/analytics"
	"github.com/dvloznov/txengine/internal/behaviour"
	"github.com/dvloznov/txengine/internal/categorise"
	"github.com/dvloznov/txengine/internal/config"
	"github.com/dvloznov/txengine/internal/ingest"
	"github.com/dvloznov/txengine/internal/logger"
	"github.com/dvloznov/txengine/internal/pipeline"
	"github.com/dvloznov/txengine/internal/store/inmemory"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "import":
		runImport(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Transaction Engine CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  import    Import a CSV of transactions and print the analysis")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// runImport ingests one CSV through the full pipeline and prints the batch
// result, detected recurring payments and the spending profile as JSON.
func runImport(log zerolog.Logger) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	file := fs.String("file", "", "Path to the CSV file")
	userID := fs.String("user", "cli", "User ID to import as")
	accountID := fs.String("account", "", "Account ID for the imported rows")
	showProfile := fs.Bool("profile", true, "Print the spending profile after import")
	fs.Parse(os.Args[2:])

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Error: -file is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to open CSV")
	}
	defer f.Close()

	recurring := inmemory.NewRecurringStore()
	transactions := inmemory.NewTransactionStore()
	engine := categorise.NewEngine(inmemory.NewMappingStore(), categorise.DefaultRules(), nil, log)

	p := pipeline.New(log, pipeline.ImportSteps(pipeline.ImportDeps{
		Importer:     ingest.NewCSVImporter(ingest.NewNormaliser()),
		Engine:       engine,
		Detector:     behaviour.NewRecurrenceDetector(cfg.Behaviour, recurring, log),
		Scanner:      behaviour.NewAnomalyScanner(cfg.Behaviour, log),
		Transactions: transactions,
	})...)

	ctx := context.Background()
	state := &pipeline.PipelineState{UserID: *userID, AccountID: *accountID, CSV: f}
	if err := p.Run(ctx, state); err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	printJSON("result", map[string]interface{}{
		"batch_id":   state.Result.BatchID,
		"total_rows": state.Result.TotalRows,
		"imported":   state.Result.Imported,
		"duplicates": state.Result.Duplicates,
		"errors":     state.Result.Errors,
	})
	if len(state.Result.ErrorDetails) > 0 {
		printJSON("row_errors", state.Result.ErrorDetails)
	}
	if len(state.Recurring) > 0 {
		printJSON("recurring", state.Recurring)
	}

	if *showProfile {
		svc := analytics.NewService(cfg.Analytics, log)
		history, err := transactions.ListForUser(ctx, *userID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load imported transactions")
		}
		printJSON("profile", svc.Profile(*userID, history))
		printJSON("forecast", svc.Forecast(history))
	}
}

func printJSON(label string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding %s: %v\n", label, err)
		return
	}
	fmt.Printf("%s:\n%s\n", label, data)
}
