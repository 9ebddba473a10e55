package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/lighting-importer/internal/config"
	"github.com/maltedev/lighting-importer/internal/database"
	"github.com/maltedev/lighting-importer/internal/importer"
	"github.com/maltedev/lighting-importer/internal/models"
)

func main() {
	var (
		file    = flag.String("file", "", "file with one product URL per line")
		dryRun  = flag.Bool("dry-run", false, "print assembled records instead of storing them")
		workers = flag.Int("workers", 0, "concurrent URLs (default IMPORT_WORKERS)")
		noLLM   = flag.Bool("no-llm", false, "skip LLM enhancement even when configured")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.Logging.NewLogger()

	urls := flag.Args()
	if *file != "" {
		fromFile, err := readURLs(*file)
		if err != nil {
			logger.Error("failed to read url file", "file", *file, "error", err)
			os.Exit(1)
		}
		urls = append(urls, fromFile...)
	}
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "usage: import-urls [-dry-run] [-no-llm] [-workers n] [-file urls.txt] [url ...]")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *noLLM {
		cfg.LLM.Enabled = false
	}
	var opts []importer.Option
	if *workers > 0 {
		opts = append(opts, importer.WithWorkers(*workers))
	}

	if *dryRun {
		service, err := importer.NewServiceFromConfig(cfg, logger, opts...)
		if err != nil {
			logger.Error("failed to configure importer", "error", err)
			os.Exit(1)
		}
		os.Exit(preview(ctx, service, urls, os.Stdout, logger))
	}

	if cfg.Database.URL == "" {
		logger.Error("DATABASE_URL is required unless -dry-run is set")
		os.Exit(1)
	}

	db, err := database.New(ctx, database.Config{URL: cfg.Database.URL, MaxConns: cfg.Database.MaxConns})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	opts = append(opts, importer.WithStore(database.NewProductStore(db)))
	service, err := importer.NewServiceFromConfig(cfg, logger, opts...)
	if err != nil {
		logger.Error("failed to configure importer", "error", err)
		os.Exit(1)
	}

	result, err := service.Import(ctx, urls, importer.RunOptions{})
	if err != nil {
		logger.Error("import failed", "error", err)
		os.Exit(1)
	}

	if cfg.Relay.Enabled {
		publishEvents(ctx, cfg, db, logger)
	}

	if err := writeJSON(os.Stdout, result); err != nil {
		logger.Error("failed to write result", "error", err)
	}
	if result.Failed > 0 {
		db.Close()
		os.Exit(3)
	}
}

// preview extracts every URL without storing anything and writes the
// records as a JSON array. It returns the process exit code.
func preview(ctx context.Context, service *importer.Service, urls []string, w io.Writer, logger *slog.Logger) int {
	records := make([]*models.ProductRecord, 0, len(urls))
	code := 0
	for _, u := range urls {
		record, err := service.Extract(ctx, u, importer.RunOptions{})
		if err != nil {
			logger.Warn("preview failed", "url", u, "error", err)
			code = 3
			continue
		}
		records = append(records, record)
	}

	if err := writeJSON(w, records); err != nil {
		logger.Error("failed to write records", "error", err)
		return 1
	}
	return code
}

// publishEvents pushes the batch's PRODUCT_IMPORTED events to Redis right
// away instead of waiting for the service relay to pick them up.
func publishEvents(ctx context.Context, cfg *config.Config, db *database.DB, logger *slog.Logger) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	relay := database.NewRelay(db, client, logger, database.RelayConfig{
		BatchSize:    cfg.Relay.BatchSize,
		StreamMaxLen: cfg.Relay.StreamMaxLen,
	})
	published, err := relay.Drain(ctx)
	if err != nil {
		logger.Error("failed to publish import events", "published", published, "error", err)
		return
	}
	logger.Info("import events published", "count", published)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readURLs(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}
