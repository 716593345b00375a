// cmd/ingest/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"

	"github.com/jjckrbbt/tenant-guidance/internal/config"
	"github.com/jjckrbbt/tenant-guidance/internal/connections"
	"github.com/jjckrbbt/tenant-guidance/internal/genai"
	"github.com/jjckrbbt/tenant-guidance/internal/ingestion"
	"github.com/jjckrbbt/tenant-guidance/internal/logger"
	"github.com/jjckrbbt/tenant-guidance/internal/store"
)

var (
	appCfg *config.Config

	inputDir  string
	outputDir string
	gcsPrefix string
)

func main() {
	root := &cobra.Command{
		Use:   "ingest",
		Short: "Prepare and load the tenant guidance corpus",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadToolConfig()
			if err != nil {
				return err
			}
			appCfg = cfg
			logger.InitLogger(cfg.AppEnv)
			return nil
		},
		SilenceUsage: true,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the documents table and match_documents function",
		RunE:  runMigrate,
	}

	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Clean scraped articles with the language model",
		RunE:  runClean,
	}
	cleanCmd.Flags().StringVar(&inputDir, "input", "input_files", "directory of scraped .txt files")
	cleanCmd.Flags().StringVar(&outputDir, "output", "output_files", "directory for cleaned files")
	cleanCmd.Flags().StringVar(&gcsPrefix, "gcs-prefix", "", "read input from GCS_BUCKET_NAME under this prefix instead of --input")

	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Embed cleaned articles and insert them into the documents table",
		RunE:  runLoad,
	}
	loadCmd.Flags().StringVar(&inputDir, "input", "output_files", "directory of cleaned .txt files")
	loadCmd.Flags().StringVar(&gcsPrefix, "gcs-prefix", "", "read input from GCS_BUCKET_NAME under this prefix instead of --input")

	root.AddCommand(migrateCmd, cleanCmd, loadCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func requireAPIKey() (*config.Config, error) {
	if err := appCfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	return appCfg, nil
}

func connectDB(cfg *config.Config) (*connections.Client, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("FATAL: DATABASE_URL environment variable not set")
	}
	return connections.ConnectDB(cfg.DatabaseURL, logger.L().With("component", "database_connector"))
}

func openSource(ctx context.Context, cfg *config.Config) (ingestion.Source, func(), error) {
	if gcsPrefix == "" {
		return ingestion.DirSource{Dir: inputDir}, func() {}, nil
	}
	if cfg.GCSBucketName == "" {
		return nil, nil, fmt.Errorf("FATAL: GCS_BUCKET_NAME environment variable not set")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	logger.L().Info("GCS client initialized.", "bucket", cfg.GCSBucketName, "prefix", gcsPrefix)
	return ingestion.GCSSource{Client: client, Bucket: cfg.GCSBucketName, Prefix: gcsPrefix}, func() { client.Close() }, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := connectDB(appCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	sqlDB := db.SQLDB()
	defer sqlDB.Close()
	if err := store.Migrate(cmd.Context(), sqlDB); err != nil {
		return err
	}
	logger.L().Info("Migrations applied.")
	return nil
}

func runClean(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := requireAPIKey()
	if err != nil {
		return err
	}

	src, closeSrc, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	gen, emb := genai.NewClients(cfg, logger.L())
	svc := ingestion.NewService(gen, emb, nil, logger.L())

	stats, err := svc.Clean(ctx, src, outputDir)
	if err != nil {
		return err
	}
	logger.L().Info("All files processed.", "processed", stats.Processed, "skipped", stats.Skipped)
	return nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := requireAPIKey()
	if err != nil {
		return err
	}

	db, err := connectDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	src, closeSrc, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	gen, emb := genai.NewClients(cfg, logger.L())
	svc := ingestion.NewService(gen, emb, store.NewPostgresStore(db.Pool, logger.L()), logger.L())

	n, err := svc.Load(ctx, src)
	if err != nil {
		logger.L().Error("Load stopped", "loaded", n, slog.Any("error", err))
		return err
	}
	logger.L().Info("Corpus loaded.", "documents", n)
	return nil
}
