// Package main is the biomatchd server binary: it wires the configured
// store, extractor, and archive backends into the matching engine and serves
// the REST API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"

	"github.com/hupe1980/biomatch"
	"github.com/hupe1980/biomatch/blobstore"
	blobminio "github.com/hupe1980/biomatch/blobstore/minio"
	blobs3 "github.com/hupe1980/biomatch/blobstore/s3"
	"github.com/hupe1980/biomatch/config"
	"github.com/hupe1980/biomatch/extractor"
	"github.com/hupe1980/biomatch/internal/httpapi"
	"github.com/hupe1980/biomatch/internal/telemetry"
	"github.com/hupe1980/biomatch/journal"
	"github.com/hupe1980/biomatch/model"
	"github.com/hupe1980/biomatch/resource"
	"github.com/hupe1980/biomatch/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:           "biomatchd",
		Short:         "Biometric identity matching server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()

			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			if addr != "" {
				cfg.Server.Addr = addr
			}

			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address override")

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := biomatch.NewTextLogger(slog.LevelInfo)
	if cfg.Server.LogJSON {
		logger = biomatch.NewJSONLogger(slog.LevelInfo)
	}

	dims, thresholdOpts := typeOptions(cfg)

	st, err := buildStore(ctx, cfg, dims)
	if err != nil {
		return err
	}

	engineOpts := append(thresholdOpts,
		biomatch.WithLogger(logger),
		biomatch.WithMetricsCollector(telemetry.Collector{}),
		biomatch.WithDimensions(dims),
		biomatch.WithResourceController(resource.NewController(resource.Config{
			MaxConcurrentExtractions: cfg.Limits.MaxConcurrentExtractions,
			ExtractionsPerSecond:     cfg.Limits.ExtractionsPerSecond,
			ExtractionBurst:          cfg.Limits.ExtractionBurst,
		})),
	)

	if cfg.Journal.Dir != "" && cfg.Store.Backend == config.StoreMemory {
		j, err := journal.Open(cfg.Journal.Dir, func(o *journal.Options) {
			o.SyncEach = cfg.Journal.SyncEach
		})
		if err != nil {
			return err
		}

		snap, replayed, err := biomatch.RestoreStore(ctx, st, cfg.Journal.Dir, j)
		logger.LogRecovery(ctx, snap, replayed, err)
		if err != nil {
			return err
		}

		engineOpts = append(engineOpts, biomatch.WithJournal(j))
	}

	archive, err := buildArchive(ctx, cfg)
	if err != nil {
		return err
	}
	if archive != nil {
		engineOpts = append(engineOpts, biomatch.WithSampleArchive(archive))
	}

	engine, err := biomatch.New(buildExtractor(cfg, dims), st, engineOpts...)
	if err != nil {
		return err
	}
	defer engine.Close()

	srv := httpapi.NewServer(engine, httpapi.Options{
		APIKey:  cfg.Server.APIKey,
		LogJSON: cfg.Server.LogJSON,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(cfg.Server.Addr)
	}()

	logger.Info("biomatchd listening", "addr", cfg.Server.Addr, "store", cfg.Store.Backend)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	if err := srv.Shutdown(); err != nil {
		logger.Error("shutdown", "error", err)
	}

	// Fold the journal into a snapshot so the next start replays less.
	if err := engine.Checkpoint(context.Background()); err != nil {
		logger.Error("checkpoint on shutdown", "error", err)
	}

	return nil
}

func typeOptions(cfg *config.Config) (store.Dimensions, []biomatch.Option) {
	dims := store.Dimensions{}

	var opts []biomatch.Option

	for name, spec := range cfg.Types {
		t, err := model.ParseType(name)
		if err != nil {
			continue // Validate already rejected unknown types
		}

		dims[t] = spec.Dimensions
		opts = append(opts, biomatch.WithThresholds(t, biomatch.Thresholds{
			Dedup: spec.DedupThreshold,
			Match: spec.MatchThreshold,
		}))
	}

	return dims, opts
}

func buildStore(ctx context.Context, cfg *config.Config, dims store.Dimensions) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		return store.NewMemoryStore(dims), nil

	case config.StoreBadger:
		return store.NewBadgerStore(func(o *store.BadgerOptions) {
			o.Path = cfg.Store.Path
			o.Dimensions = dims
		})

	case config.StoreDynamoDB:
		var awsOpts []func(*awsconfig.LoadOptions) error
		if cfg.Store.Region != "" {
			awsOpts = append(awsOpts, awsconfig.WithRegion(cfg.Store.Region))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}

		return store.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.Store.Table, dims, nil), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func buildArchive(ctx context.Context, cfg *config.Config) (blobstore.BlobStore, error) {
	switch cfg.Archive.Backend {
	case config.ArchiveNone:
		return nil, nil

	case config.ArchiveLocal:
		return blobstore.NewLocalStore(cfg.Archive.Root)

	case config.ArchiveMinIO:
		client, err := minio.New(cfg.Archive.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.Archive.AccessKey, cfg.Archive.SecretKey, ""),
			Secure: cfg.Archive.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}

		return blobminio.NewStore(client, cfg.Archive.Bucket, cfg.Archive.Prefix), nil

	case config.ArchiveS3:
		var awsOpts []func(*awsconfig.LoadOptions) error
		if cfg.Archive.Region != "" {
			awsOpts = append(awsOpts, awsconfig.WithRegion(cfg.Archive.Region))
		}

		return blobs3.New(ctx, cfg.Archive.Bucket, cfg.Archive.Prefix, awsOpts...)

	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
	}
}

func buildExtractor(cfg *config.Config, dims store.Dimensions) extractor.Extractor {
	if cfg.Extractor.Backend == config.ExtractorRemote {
		return extractor.NewClient(cfg.Extractor.URL, func(o *extractor.ClientOptions) {
			o.APIKey = cfg.Extractor.APIKey
		})
	}

	return extractor.NewStatic(dims)
}
