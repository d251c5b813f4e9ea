package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/budget-tracker/internal/app"
	"github.com/dvloznov/budget-tracker/internal/config"
	"github.com/dvloznov/budget-tracker/internal/domain"
	infraBQ "github.com/dvloznov/budget-tracker/internal/infra/bigquery"
	"github.com/dvloznov/budget-tracker/internal/jobs"
	"github.com/dvloznov/budget-tracker/internal/logger"
	"github.com/dvloznov/budget-tracker/internal/predictor"
)

type command func(ctx context.Context, a *app.App, args []string, out io.Writer) error

var commands = map[string]command{
	"import":    runImport,
	"train":     runTrain,
	"predict":   runPredict,
	"budgets":   runBudgets,
	"export":    runExport,
	"export-bq": runExportBQ,
	"migrate":   runMigrate,
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	name := os.Args[1]
	switch name {
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage(os.Stderr)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Options{})
		fallback.Fatal().Err(err).Msg("Failed to load config")
	}
	log, err := app.NewLogger(cfg, "cli")
	if err != nil {
		fallback := logger.New(logger.Options{})
		fallback.Fatal().Err(err).Msg("Invalid LOG_LEVEL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open services")
	}

	err = cmd(ctx, a, os.Args[2:], os.Stdout)
	if cerr := a.Close(ctx); cerr != nil {
		log.Error().Err(cerr).Msg("Error closing services")
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", name).Msg("Command failed")
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Budget Tracker CLI")
	fmt.Fprintln(w, "\nUsage:")
	fmt.Fprintln(w, "  cli <command> [options]")
	fmt.Fprintln(w, "\nCommands:")
	fmt.Fprintln(w, "  import     Import transactions from a CSV file")
	fmt.Fprintln(w, "  train      Train the spending predictor")
	fmt.Fprintln(w, "  predict    Predict a spending amount")
	fmt.Fprintln(w, "  budgets    List budgets with spend and expiry")
	fmt.Fprintln(w, "  export     Write all transactions as CSV")
	fmt.Fprintln(w, "  export-bq  Export new transactions to BigQuery")
	fmt.Fprintln(w, "  migrate    Create indexes or tables for the record store")
	fmt.Fprintln(w, "  help       Show this help message")
	fmt.Fprintln(w, "\nRun 'cli <command> -h' for more information on a command.")
}

func runImport(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	path := fs.String("file", "", "Path to a CSV file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errors.New("usage: cli import -file PATH")
	}

	f, err := os.Open(*path)
	if err != nil {
		return fmt.Errorf("open %s: %w", *path, err)
	}
	defer f.Close()

	res, err := a.Importer.Import(ctx, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Inserted %d transactions from %s\n", res.Inserted, *path)
	return nil
}

func runTrain(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	job := &jobs.TrainModelJob{
		JobID:     uuid.New().String(),
		Trigger:   jobs.TriggerCLI,
		Status:    jobs.JobStatusRunning,
		CreatedAt: time.Now().UTC(),
	}
	err := a.Predictor.HandleTrainJob(ctx, job)
	if errors.Is(err, predictor.ErrNoData) {
		fmt.Fprintln(out, "No data in database")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Model trained successfully on %d rows\n", job.Rows)
	return nil
}

func runPredict(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	category := fs.String("category", "", "Spending category")
	date := fs.String("date", "", "Date to derive day, month and weekend from (YYYY-MM-DD)")
	dow := fs.Int("day-of-week", -1, "Day of week, Monday = 0")
	month := fs.Int("month", 0, "Month, 1-12")
	weekend := fs.Bool("weekend", false, "Weekend flag when -date is not given")
	festival := fs.Bool("festival", false, "Festival flag")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *category == "" {
		return errors.New("usage: cli predict -category NAME (-date YYYY-MM-DD | -day-of-week N -month N)")
	}

	var f predictor.Features
	if *date != "" {
		ts, ok := domain.ParseISOTime(*date)
		if !ok {
			return fmt.Errorf("invalid -date %q", *date)
		}
		f = predictor.FeaturesAt(*category, ts, *festival)
	} else {
		if *dow < 0 || *dow > 6 || *month < 1 || *month > 12 {
			return errors.New("-day-of-week must be 0-6 and -month 1-12")
		}
		f = predictor.Features{
			Category:   *category,
			DayOfWeek:  *dow,
			Month:      *month,
			IsWeekend:  *weekend || *dow >= 5,
			IsFestival: *festival,
		}
	}

	amount, err := a.Predictor.Predict(ctx, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Predicted amount: %.2f\n", amount)
	return nil
}

func runBudgets(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("budgets", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "Print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return err
	}

	views, err := a.Ledger.ListBudgets(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}

	fmt.Fprintf(out, "\n=== Budgets (%d) ===\n", len(views))
	for i, v := range views {
		fmt.Fprintf(out, "\n%d. %s (%s)\n", i+1, v.Category, v.Type)
		fmt.Fprintf(out, "   Budget:  %.2f\n", v.Budget)
		fmt.Fprintf(out, "   Spent:   %.2f\n", v.Spent)
		if v.ValidTill != nil {
			fmt.Fprintf(out, "   Until:   %s\n", *v.ValidTill)
		}
		fmt.Fprintf(out, "   Expired: %t\n", v.Expired)
	}
	fmt.Fprintln(out)
	return nil
}

func runExport(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	path := fs.String("file", "", "Output CSV path (stdout when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *path == "" {
		_, err := a.Ledger.ExportCSV(ctx, out)
		return err
	}

	f, err := os.Create(*path)
	if err != nil {
		return fmt.Errorf("create %s: %w", *path, err)
	}
	n, err := a.Ledger.ExportCSV(ctx, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Exported %d transactions to %s\n", n, *path)
	return nil
}

func runExportBQ(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	bq := a.Config.BigQuery
	fs := flag.NewFlagSet("export-bq", flag.ContinueOnError)
	project := fs.String("project", bq.Project, "GCP project ID (or set BQ_PROJECT)")
	dataset := fs.String("dataset", bq.Dataset, "BigQuery dataset")
	table := fs.String("table", bq.Table, "BigQuery table")
	if err := fs.Parse(args); err != nil {
		return err
	}

	exp, err := infraBQ.NewExporter(ctx, *project, *dataset, *table, a.Log)
	if err != nil {
		return err
	}
	defer exp.Close()

	txns, err := a.Store.ListTransactions(ctx)
	if err != nil {
		return err
	}
	res, err := exp.Export(ctx, txns)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Exported %d transactions to %s.%s.%s (%d already present)\n",
		res.Exported, *project, *dataset, *table, res.Skipped)
	return nil
}

func runMigrate(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if err := a.Store.Migrate(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Record store is up to date.")
	return nil
}
