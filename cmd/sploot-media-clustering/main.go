package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rclong1221/sploot-media-clustering/pkg/api"
	"github.com/rclong1221/sploot-media-clustering/pkg/broker"
	"github.com/rclong1221/sploot-media-clustering/pkg/cache"
	"github.com/rclong1221/sploot-media-clustering/pkg/cluster"
	"github.com/rclong1221/sploot-media-clustering/pkg/config"
	"github.com/rclong1221/sploot-media-clustering/pkg/log"
	"github.com/rclong1221/sploot-media-clustering/pkg/metrics"
	"github.com/rclong1221/sploot-media-clustering/pkg/strategy"
	"github.com/rclong1221/sploot-media-clustering/pkg/types"
	"github.com/rclong1221/sploot-media-clustering/pkg/worker"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// shutdownGrace bounds the drain of HTTP and workers on stop.
const shutdownGrace = 15 * time.Second

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sploot-media-clustering",
	Short: "Per-pet image clustering pipeline",
	Long: `sploot-media-clustering maintains per-pet image cluster state.

Jobs arrive on a redis stream, a worker fleet derives deterministic cluster
descriptors from them, and an authenticated internal HTTP surface serves the
cached results.`,
	Version: Version,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"sploot-media-clustering version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(enqueueCmd)
}

// bootstrap loads settings, initializes logging, and wires the shared
// broker pool plus the service built on it.
func bootstrap() (*config.Settings, *cluster.Service, *broker.StreamClient, *cache.RedisStore, func() error, error) {
	settings, err := config.FromEnv()
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	log.Init(log.Config{
		Level:      log.Level(settings.LogLevel),
		JSONOutput: settings.LogJSON,
	})

	rdb, err := broker.NewClient(settings)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	stream := broker.NewStreamClient(rdb, broker.StreamConfig{
		Stream:          settings.ClusterStreamKey,
		Group:           settings.ClusterConsumerGroup,
		DeadLetter:      settings.ClusterDeadLetterStream,
		MaxLen:          settings.ClusterStreamMaxLen,
		ApproximateTrim: settings.ClusterStreamApproximateTrim,
	})
	store := cache.NewRedisStore(rdb, settings.Namespace)
	service := cluster.NewService(stream, store, rdb)

	return settings, service, stream, store, rdb.Close, nil
}

func workerConfig(settings *config.Settings) worker.Config {
	return worker.Config{
		Consumer:    settings.ClusterWorkerConsumerName,
		ReadCount:   settings.ClusterReadCount,
		ReadBlock:   settings.ClusterReadTimeout,
		RetryIdle:   settings.ClusterRetryIdle,
		MaxAttempts: settings.ClusterMaxAttempts,
		MaxPending:  settings.ClusterMaxPendingPerWorker,
		CacheTTL:    settings.ClusterTTL,
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP surface and the worker pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, service, stream, store, closePool, err := bootstrap()
		if err != nil {
			return err
		}
		defer closePool()

		ctx := context.Background()
		if err := service.EnsureGroup(ctx); err != nil {
			return fmt.Errorf("prepare consumer group: %w", err)
		}

		strat := strategy.NewHeuristic(strategy.Params{MaxClusterSize: settings.MaxClusterSize})
		pool := worker.NewPool(stream, store, strat, workerConfig(settings), settings.ClusterWorkerCount)

		server := api.NewServer(service, api.Config{
			ListenAddr:     settings.HTTPListenAddr,
			InternalToken:  settings.InternalToken,
			RequestTimeout: settings.HTTPRequestTimeout,
		})

		var metricsServer *metrics.Server
		if settings.WorkerMetricsEnabled {
			metricsServer = metrics.NewServer(settings.MetricsListenAddr())
			metricsServer.Start()
		}

		workerCtx, stopWorkers := context.WithCancel(ctx)
		defer stopWorkers()

		errCh := make(chan error, 2)
		go func() {
			if err := server.Start(); err != nil {
				errCh <- fmt.Errorf("http surface: %w", err)
			}
		}()
		go func() {
			if err := pool.Run(workerCtx); err != nil {
				errCh <- err
			}
		}()

		mainLog := log.WithComponent("main")
		mainLog.Info().
			Str("app", settings.AppName).
			Str("environment", settings.Environment).
			Int("workers", settings.ClusterWorkerCount).
			Msg("service started")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		var runErr error
		select {
		case <-sigCh:
			log.Info("shutdown signal received")
		case runErr = <-errCh:
			log.Errorf("component failed", runErr)
		}

		// Teardown order: HTTP surface, workers, metrics, broker pool.
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownGrace)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			log.Errorf("http shutdown failed", err)
		}
		stopWorkers()
		if metricsServer != nil {
			_ = metricsServer.Stop(shutdownCtx)
		}

		return runErr
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the worker pool without the HTTP surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, service, stream, store, closePool, err := bootstrap()
		if err != nil {
			return err
		}
		defer closePool()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := service.EnsureGroup(ctx); err != nil {
			return fmt.Errorf("prepare consumer group: %w", err)
		}

		var metricsServer *metrics.Server
		if settings.WorkerMetricsEnabled {
			metricsServer = metrics.NewServer(settings.MetricsListenAddr())
			metricsServer.Start()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()
				_ = metricsServer.Stop(shutdownCtx)
			}()
		}

		strat := strategy.NewHeuristic(strategy.Params{MaxClusterSize: settings.MaxClusterSize})
		pool := worker.NewPool(stream, store, strat, workerConfig(settings), settings.ClusterWorkerCount)

		mainLog := log.WithComponent("main")
		mainLog.Info().
			Int("workers", settings.ClusterWorkerCount).
			Str("group", settings.ClusterConsumerGroup).
			Msg("worker pool started")

		if err := pool.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue PET_ID",
	Short: "Append one cluster job to the stream",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, service, _, _, closePool, err := bootstrap()
		if err != nil {
			return err
		}
		defer closePool()

		reason, _ := cmd.Flags().GetString("reason")
		force, _ := cmd.Flags().GetBool("force")
		images, _ := cmd.Flags().GetStringSlice("image")
		labels, _ := cmd.Flags().GetStringSlice("label")
		quality, _ := cmd.Flags().GetFloat64("quality")

		ctx := context.Background()
		if err := service.EnsureGroup(ctx); err != nil {
			return fmt.Errorf("prepare consumer group: %w", err)
		}

		job, messageID, err := service.EnqueueJob(ctx, types.Job{
			PetID:  args[0],
			Reason: reason,
			Force:  force,
			Payload: types.JobPayload{
				ImageIDs:     images,
				Labels:       labels,
				QualityScore: quality,
			},
			Metadata: map[string]string{"producer": "cli"},
		})
		if err != nil {
			return err
		}

		fmt.Printf("Job enqueued\n")
		fmt.Printf("  Job ID: %s\n", job.JobID)
		fmt.Printf("  Message ID: %s\n", messageID)
		return nil
	},
}

func init() {
	enqueueCmd.Flags().String("reason", "cli", "Free-form reason tag carried on the job")
	enqueueCmd.Flags().Bool("force", false, "Bypass no-change short-circuits")
	enqueueCmd.Flags().StringSlice("image", nil, "Image id to cluster (repeatable)")
	enqueueCmd.Flags().StringSlice("label", nil, "Group label (repeatable)")
	enqueueCmd.Flags().Float64("quality", 0.8, "Payload quality score in [0,1]")
}
