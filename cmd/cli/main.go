package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvolkov/homeledger/internal/cache"
	"github.com/dvolkov/homeledger/internal/config"
	"github.com/dvolkov/homeledger/internal/gcs"
	"github.com/dvolkov/homeledger/internal/logger"
	bqstore "github.com/dvolkov/homeledger/internal/remote/bigquery"
	"github.com/dvolkov/homeledger/internal/rules"
	"github.com/dvolkov/homeledger/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "sync":
		runSync(log, cfg)
	case "import":
		runImport(log, cfg)
	case "balance":
		runBalance(log, cfg)
	case "rules":
		runRules(log, cfg)
	case "reset":
		runReset(log, cfg)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("homeledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  homeledger <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  sync      Pull the newest ledger pages from the remote store")
	fmt.Println("  import    Import a CSV bank statement (local file or gs:// URI)")
	fmt.Println("  balance   Show the derived balance of every account")
	fmt.Println("  rules     Apply a categorization rule across the ledger")
	fmt.Println("  reset     Drop local state and cached snapshots")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'homeledger <command> -h' for more information on a command.")
}

// newEngine wires the BigQuery store and the local cache into an initialized
// engine for the configured user.
func newEngine(ctx context.Context, log zerolog.Logger, cfg config.Config) (*sync.Engine, func(), error) {
	if cfg.User == "" {
		return nil, nil, fmt.Errorf("no user configured (set HOMELEDGER_USER)")
	}
	if cfg.BigQuery.ProjectID == "" {
		return nil, nil, fmt.Errorf("no BigQuery project configured (set HOMELEDGER_BIGQUERY_PROJECT_ID)")
	}

	store, err := bqstore.New(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.DatasetID)
	if err != nil {
		return nil, nil, err
	}
	c, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	cleanup := func() {
		c.Close()
		store.Close()
	}

	eng := sync.New(store, c, log, sync.Config{
		PageSize:    cfg.Sync.PageSize,
		PagePadding: cfg.Sync.PagePadding,
		BatchLimit:  cfg.Sync.BatchLimit,
		Staleness:   cfg.Sync.Staleness,
	})
	if os.Getenv(cfg.LLM.APIKeyEnv) != "" {
		eng.SetSuggester(rules.NewGeminiSuggester(cfg.LLM.Model))
	}
	if err := eng.Init(ctx, cfg.User); err != nil {
		cleanup()
		return nil, nil, err
	}
	return eng, cleanup, nil
}

func runSync(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	pages := fs.Int("pages", 1, "additional pages to fetch beyond the first")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	eng, cleanup, err := newEngine(ctx, log, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Engine startup failed")
	}
	defer cleanup()

	for i := 0; i < *pages && eng.HasMore(); i++ {
		if _, err := eng.LoadMore(ctx); err != nil {
			log.Fatal().Err(err).Msg("Page fetch failed")
		}
	}

	txs := eng.Transactions()
	fmt.Printf("Synced %d transactions", len(txs))
	if eng.HasMore() {
		fmt.Print(" (more available)")
	}
	fmt.Println()
}

func runImport(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	source := fs.String("source", "", "CSV path or gs:// URI")
	account := fs.String("account", "", "account id to import into")
	confirm := fs.Bool("confirm", false, "write the rows instead of only scanning for duplicates")
	fs.Parse(os.Args[2:])

	if *source == "" || *account == "" {
		log.Fatal().Msg("Usage: homeledger import -source PATH -account ID [-confirm]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var data []byte
	var err error
	if strings.HasPrefix(*source, "gs://") {
		data, err = gcs.Fetch(ctx, *source)
	} else {
		data, err = os.ReadFile(*source)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Statement read failed")
	}

	rows, err := sync.ParseStatementCSV(bytes.NewReader(data))
	if err != nil {
		log.Fatal().Err(err).Msg("Statement parse failed")
	}

	eng, cleanup, err := newEngine(ctx, log, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Engine startup failed")
	}
	defer cleanup()

	plan, err := eng.PrepareImport(*account, rows)
	if err != nil {
		log.Fatal().Err(err).Msg("Import preparation failed")
	}
	fmt.Printf("%d new rows, %d duplicate candidates\n", len(plan.New), len(plan.Duplicates))
	for _, d := range plan.Duplicates {
		fmt.Printf("  line %d: %s %s %s\n", d.Line, d.Date, d.Amount, d.Description)
	}
	if !*confirm {
		fmt.Println("Re-run with -confirm to write the new rows.")
		return
	}

	n, err := eng.CommitImport(ctx, plan)
	if err != nil {
		log.Fatal().Err(err).Int("written", n).Msg("Import failed")
	}
	fmt.Printf("Imported %d transactions.\n", n)
}

func runBalance(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	eng, cleanup, err := newEngine(ctx, log, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Engine startup failed")
	}
	defer cleanup()

	for _, acc := range eng.Accounts() {
		bal, err := eng.Balance(acc.ID)
		if err != nil {
			log.Fatal().Err(err).Str("account", acc.ID).Msg("Balance derivation failed")
		}
		fmt.Printf("%-20s %12s  %s\n", acc.ID, bal, acc.Name)
	}
}

func runRules(log zerolog.Logger, cfg config.Config) {
	if len(os.Args) < 3 || os.Args[2] != "apply" {
		fmt.Fprintln(os.Stderr, "Usage: homeledger rules apply -rule ID")
		os.Exit(1)
	}
	fs := flag.NewFlagSet("rules apply", flag.ExitOnError)
	ruleID := fs.String("rule", "", "rule id to apply across the ledger")
	fs.Parse(os.Args[3:])

	if *ruleID == "" {
		log.Fatal().Msg("Error: -rule is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	eng, cleanup, err := newEngine(ctx, log, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Engine startup failed")
	}
	defer cleanup()

	n, err := eng.ApplyRuleBulk(ctx, *ruleID)
	if err != nil {
		log.Fatal().Err(err).Msg("Rule application failed")
	}
	fmt.Printf("Recategorized %d transactions.\n", n)
}

func runReset(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	eng, cleanup, err := newEngine(ctx, log, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Engine startup failed")
	}
	defer cleanup()

	if err := eng.Reset(); err != nil {
		log.Fatal().Err(err).Msg("Reset failed")
	}
	fmt.Println("Local state cleared.")
}
