package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/sales-analytics/internal/app"
	"github.com/dvloznov/sales-analytics/internal/config"
	"github.com/dvloznov/sales-analytics/internal/gcsuploader"
	"github.com/dvloznov/sales-analytics/internal/jobs"
	"github.com/dvloznov/sales-analytics/internal/logger"
	"github.com/dvloznov/sales-analytics/internal/reportexport"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "seed":
		runSeed(log)
	case "generate":
		runGenerate(log)
	case "restock":
		runRestock(log)
	case "pipeline":
		runPipeline(log)
	case "inventory":
		runInventory(log)
	case "dashboard":
		runDashboard(log)
	case "export":
		runExport(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Sales Analytics CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  seed       Seed an empty sales table with synthetic history")
	fmt.Println("  generate   Write a single synthetic transaction")
	fmt.Println("  restock    Append a restock entry for a product")
	fmt.Println("  pipeline   Show or switch the generator (on|off|status)")
	fmt.Println("  inventory  Print remaining stock per product")
	fmt.Println("  dashboard  Print the dashboard as JSON")
	fmt.Println("  export     Export the dashboard to a file or a GCS bucket")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nThe store is chosen by the config file (-config or SALES_CONFIG) and SALES_* variables.")
	fmt.Println("Run 'cli <command> -h' for more information on a command.")
}

// openApp parses the subcommand flags and wires the services.
func openApp(ctx context.Context, log zerolog.Logger, fs *flag.FlagSet) *app.App {
	configPath := fs.String("config", os.Getenv("SALES_CONFIG"), "Path to a YAML config file")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	return a
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode output: %v\n", err)
		os.Exit(1)
	}
}

func runSeed(log zerolog.Logger) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	count := fs.Int("count", -1, "Records to seed (defaults to generator.seed_count)")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	a := openApp(ctx, log, fs)
	defer a.Close()

	n := a.Config.Generator.SeedCount
	if *count >= 0 {
		n = *count
	}

	written, err := a.Generator.Seed(ctx, n)
	if err != nil {
		log.Fatal().Err(err).Int("written", written).Msg("Seeding failed")
	}
	if written == 0 {
		fmt.Println("Sales table already has data, nothing seeded.")
		return
	}
	fmt.Printf("Seeded %d transactions.\n", written)
}

func runGenerate(log zerolog.Logger) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a := openApp(ctx, log, fs)
	defer a.Close()

	tx, err := a.Generator.Step(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to write transaction")
	}
	printJSON(tx)
}

func runRestock(log zerolog.Logger) {
	fs := flag.NewFlagSet("restock", flag.ExitOnError)
	product := fs.String("product", "", "Catalog product name")
	quantity := fs.Int64("quantity", 0, "Units to add")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a := openApp(ctx, log, fs)
	defer a.Close()

	entry, err := a.Inventory.AddRestock(ctx, *product, *quantity)
	if err != nil {
		log.Fatal().Err(err).Msg("Restock rejected")
	}
	fmt.Printf("Restocked %d x %s at %s\n", entry.Quantity, entry.ProductID, entry.Timestamp.Format(time.RFC3339))
}

func runPipeline(log zerolog.Logger) {
	fs := flag.NewFlagSet("pipeline", flag.ExitOnError)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a := openApp(ctx, log, fs)
	defer a.Close()

	action := "status"
	if fs.NArg() > 0 {
		action = fs.Arg(0)
	}

	switch action {
	case "on", "off":
		status, err := a.Flag.Set(ctx, action == "on")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to update pipeline status")
		}
		printJSON(status)
	case "status":
		status, found := a.Flag.Status(ctx)
		if !found {
			fmt.Println("Pipeline status never set (generator runs by default).")
			return
		}
		printJSON(status)
	default:
		log.Fatal().Str("action", action).Msg("Usage: cli pipeline [on|off|status]")
	}
}

func runInventory(log zerolog.Logger) {
	fs := flag.NewFlagSet("inventory", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Print JSON instead of a table")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a := openApp(ctx, log, fs)
	defer a.Close()

	rows := a.Reports.Inventory(ctx)
	if *asJSON {
		printJSON(rows)
		return
	}
	if len(rows) == 0 {
		fmt.Println("No data available.")
		return
	}

	fmt.Printf("\n=== Inventory (%d products) ===\n", len(rows))
	for _, r := range rows {
		fmt.Printf("%-28s sold %5d  added %5d  remaining %5d  %s\n", r.Name, r.Sold, r.Added, r.Remaining, r.Status)
	}
	fmt.Println()
}

func runDashboard(log zerolog.Logger) {
	fs := flag.NewFlagSet("dashboard", flag.ExitOnError)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a := openApp(ctx, log, fs)
	defer a.Close()

	d, err := a.Reports.Dashboard(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build dashboard")
	}
	printJSON(d)
}

func runExport(log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "", "Write the report to this file")
	bucket := fs.String("bucket", "", "Upload the report to this GCS bucket (defaults to reports.bucket)")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a := openApp(ctx, log, fs)
	defer a.Close()

	if *out != "" {
		d, err := a.Reports.Dashboard(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to build dashboard")
		}
		data, err := json.MarshalIndent(reportexport.Report{
			JobID:      uuid.NewString(),
			ExportedAt: time.Now(),
			Dashboard:  d,
		}, "", "  ")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to encode report")
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			log.Fatal().Err(err).Msg("Failed to write report")
		}
		fmt.Printf("Report written to %s\n", *out)
		return
	}

	if *bucket == "" {
		*bucket = a.Config.Reports.Bucket
	}
	if *bucket == "" {
		log.Fatal().Msg("Usage: cli export -out FILE | -bucket NAME")
	}

	gcs, err := gcsuploader.NewClient(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer gcs.Close()

	exporter := reportexport.NewExporter(a.Reports, gcs, a.Config.Reports.Prefix, nil, log)
	job := &jobs.ExportReportJob{
		JobID:       uuid.NewString(),
		RequestedBy: "cli",
		Bucket:      *bucket,
		CreatedAt:   time.Now(),
	}
	if err := exporter.Handle(ctx, job); err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}
	fmt.Printf("Report uploaded to %s\n", job.GCSURI)
}
