package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/sales-analytics/internal/logger"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

// Migration is a single numbered SQL file.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

type options struct {
	projectID     string
	datasetID     string
	appliedBy     string
	migrationsDir string
	dryRun        bool
}

func main() {
	var opts options
	flag.StringVar(&opts.projectID, "project", os.Getenv("SALES_STORE_BIGQUERY_PROJECT_ID"), "GCP project ID (required)")
	flag.StringVar(&opts.datasetID, "dataset", "sales", "BigQuery dataset ID")
	flag.StringVar(&opts.appliedBy, "applied-by", "migrate-cli", "Name of the tool applying migrations")
	flag.StringVar(&opts.migrationsDir, "migrations", "migrations/bigquery", "Path to migrations directory")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "List pending migrations without applying them")
	flag.Parse()

	log := logger.New()
	ctx := context.Background()

	if opts.projectID == "" {
		log.Fatal().Msg("-project flag is required")
	}

	client, err := bigquery.NewClient(ctx, opts.projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", opts.projectID).Str("dataset", opts.datasetID).Msg("Connected to BigQuery")

	if err := run(ctx, client, opts, log); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}

func run(ctx context.Context, client *bigquery.Client, opts options, log zerolog.Logger) error {
	if err := ensureSchemaMigrationsTable(ctx, client, opts); err != nil {
		return fmt.Errorf("ensuring schema_migrations: %w", err)
	}

	dir, err := resolveDir(opts.migrationsDir)
	if err != nil {
		return err
	}

	migrations, err := readMigrations(dir, opts.projectID, opts.datasetID, log)
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	applied, err := getAppliedMigrations(ctx, client, opts)
	if err != nil {
		return fmt.Errorf("reading applied migrations: %w", err)
	}

	pending := pendingMigrations(migrations, applied, log)
	if opts.dryRun {
		for _, m := range pending {
			log.Info().Str("migration", m.Filename).Msg("Pending")
		}
		return nil
	}

	for _, m := range pending {
		log.Info().Str("migration", m.Filename).Msg("Applying")
		if err := executeQuery(ctx, client.Query(m.SQL)); err != nil {
			return fmt.Errorf("executing %s: %w", m.Filename, err)
		}
		if err := recordMigration(ctx, client, opts, m); err != nil {
			return fmt.Errorf("recording %s: %w", m.Filename, err)
		}
	}

	if len(pending) == 0 {
		log.Info().Msg("No new migrations to apply, dataset is up to date")
	} else {
		log.Info().Int("applied", len(pending)).Msg("Migrations applied")
	}
	return nil
}

// parseMigrationFilename splits 0001_name.sql into its version and name.
func parseMigrationFilename(filename string) (int, string, bool) {
	matches := migrationPattern.FindStringSubmatch(filename)
	if matches == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, "", false
	}
	return version, matches[2], true
}

// resolveDir also accepts the path relative to the repository root when the
// tool runs from cmd/migrate.
func resolveDir(dir string) (string, error) {
	if _, err := os.Stat(dir); err == nil {
		return dir, nil
	}
	alt := filepath.Join("..", "..", dir)
	if _, err := os.Stat(alt); err == nil {
		return alt, nil
	}
	return "", fmt.Errorf("migrations directory not found: %s", dir)
}

// readMigrations loads and renders every migration in dir, ordered by version.
// The checksum covers the file before placeholder substitution.
func readMigrations(dir, projectID, datasetID string, log zerolog.Logger) ([]Migration, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		version, name, ok := parseMigrationFilename(file.Name())
		if !ok {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid name")
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: file.Name(),
			SQL:      renderSQL(string(content), projectID, datasetID),
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

func renderSQL(sql, projectID, datasetID string) string {
	sql = strings.ReplaceAll(sql, "{{PROJECT_ID}}", projectID)
	return strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)
}

// pendingMigrations drops the applied versions. A changed checksum is logged
// but the migration is not re-run.
func pendingMigrations(all []Migration, applied []AppliedMigration, log zerolog.Logger) []Migration {
	done := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		done[am.Version] = am
	}

	var pending []Migration
	for _, m := range all {
		am, ok := done[m.Version]
		if !ok {
			pending = append(pending, m)
			continue
		}
		if am.Checksum != "" && am.Checksum != m.Checksum {
			log.Warn().Str("migration", m.Filename).Msg("Applied migration has changed on disk")
		}
	}
	return pending
}

func migrationsTable(opts options) string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", opts.projectID, opts.datasetID)
}

func ensureSchemaMigrationsTable(ctx context.Context, client *bigquery.Client, opts options) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, migrationsTable(opts))

	return executeQuery(ctx, client.Query(sql))
}

func getAppliedMigrations(ctx context.Context, client *bigquery.Client, opts options) ([]AppliedMigration, error) {
	sql := fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, migrationsTable(opts))

	it, err := client.Query(sql).Read(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "Not found") {
			return []AppliedMigration{}, nil
		}
		return nil, fmt.Errorf("query read: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}

	return applied, nil
}

func recordMigration(ctx context.Context, client *bigquery.Client, opts options, m Migration) error {
	sql := fmt.Sprintf(`
		INSERT INTO %s
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, migrationsTable(opts))

	query := client.Query(sql)
	query.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: opts.appliedBy},
	}

	return executeQuery(ctx, query)
}

func executeQuery(ctx context.Context, query *bigquery.Query) error {
	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}
