package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/localshop/internal/domain/product"
	"github.com/xenking/localshop/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000

	// maxLine bounds a single JSONL record.
	maxLine = 1 << 20
)

// productRecord is one line of a catalog dump.
type productRecord struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Category           string          `json:"category"`
	Description        string          `json:"description"`
	Price              decimal.Decimal `json:"price"`
	Quantity           int             `json:"quantity"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz catalog dumps")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "glob data dir")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz files in %s", dataDir)
	}
	sort.Strings(files)

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewProductRepository(pool)

	// Readers decompress and parse files in parallel; a single writer owns
	// the dedup filter and the database connection ordering. Earlier files
	// win when the same id shows up in several dumps; a rare bloom false
	// positive skips an upsert and the next run converges.
	records := make(chan productRecord, 1024)

	g, ctx := errgroup.WithContext(ctx)
	readers, readCtx := errgroup.WithContext(ctx)
	for i, f := range files {
		readers.Go(streamDump(readCtx, i, f, records))
	}
	g.Go(func() error {
		defer close(records)
		return readers.Wait()
	})
	g.Go(func() error {
		return writeProducts(ctx, repo, records)
	})

	return g.Wait()
}

// streamDump parses one gzipped JSONL dump and forwards its records.
func streamDump(ctx context.Context, idx int, path string, out chan<- productRecord) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		defer func() { _ = f.Close() }()

		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()

		scanner := bufio.NewScanner(gz)
		scanner.Buffer(make([]byte, 64*1024), maxLine)

		var count uint64
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var rec productRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return errors.Wrapf(err, "parse record in %s", path)
			}
			if rec.ID == "" {
				continue
			}

			select {
			case out <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("ingest progress", slog.Int("file", idx+1), slog.Uint64("records", count))
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan %s", path)
		}

		slog.Info("file complete", slog.Int("file", idx+1), slog.Uint64("records", count))
		return nil
	}
}

// writeProducts drains the record channel, skipping ids already written.
func writeProducts(ctx context.Context, repo *postgres.ProductRepository, records <-chan productRecord) error {
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	var written, skipped int

	for rec := range records {
		if filter.TestAndAddString(rec.ID) {
			skipped++
			continue
		}

		p := &product.Product{
			ID:                 rec.ID,
			Name:               rec.Name,
			Category:           rec.Category,
			Description:        rec.Description,
			Price:              rec.Price,
			Quantity:           rec.Quantity,
			DiscountPercentage: rec.DiscountPercentage,
		}
		if err := repo.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", rec.ID)
		}
		written++

		if written%progressEvery == 0 {
			slog.Info("write progress", slog.Int("written", written), slog.Int("skipped", skipped))
		}
	}

	slog.Info("write complete", slog.Int("written", written), slog.Int("skipped", skipped))
	return nil
}
