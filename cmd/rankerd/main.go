// Command rankerd runs the validator ranking pipeline on a fixed
// schedule, persisting each generation's results to a relational store.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"vrankerd/internal/chainrpc"
	"vrankerd/internal/config"
	"vrankerd/internal/obslog"
	"vrankerd/internal/obsmetrics"
	"vrankerd/internal/obstelemetry"
	"vrankerd/internal/rank"
	"vrankerd/internal/scheduler"
	"vrankerd/internal/store"
	"vrankerd/internal/thousandvalidators"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the rankerd configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("RANKERD_ENV"))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := obslog.Setup("rankerd", env, cfg.LogFile)

	shutdownTelemetry, err := obstelemetry.Init(context.Background(), obstelemetry.Config{
		ServiceName: "rankerd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     cfg.Telemetry.Headers,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		logger.Error("init telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := obsmetrics.Pipeline()

	dialCtx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	client, err := chainrpc.Dial(dialCtx, cfg.WSProviderURL, chainrpc.WithRateLimit(20, 40), chainrpc.WithMetrics(metrics))
	cancel()
	if err != nil {
		logger.Error("dial chain RPC", "error", err)
		os.Exit(1)
	}
	defer func() { _ = client.Close() }()

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	if err := store.Migrate(db); err != nil {
		logger.Error("migrate database", "error", err)
		os.Exit(1)
	}

	ageResolver := rank.NewAccountAgeResolver(db)
	candidates := thousandvalidators.New(cfg.ThousandValidators.Endpoint, logger)
	writer := store.NewRankingWriter(db, logger)

	pipeline := &rank.Pipeline{
		Client:      client,
		AgeResolver: ageResolver,
		Stashes:     candidates,
		Scoring: rank.ScoringConfig{
			HistorySize:                      cfg.HistorySize,
			ErasPerDay:                       cfg.ErasPerDay,
			TokenDecimals:                    cfg.TokenDecimals,
			MaxNominatorRewardedPerValidator: cfg.MaxNominatorRewardedPerValidator,
		},
		Metrics: metrics,
		Logger:  logger,
	}

	runFn := func(ctx context.Context) error {
		runID := uuid.New()
		startedAt := time.Now().UTC()

		snap, ranked, stashes, err := pipeline.RunOnce(ctx)
		if err != nil {
			metrics.RecordRunError("pipeline")
			writer.WriteFailure(ctx, runID, startedAt, err)
			return err
		}

		var currentEra rank.Era
		if n := len(snap.EraIndexes); n > 0 {
			currentEra = snap.EraIndexes[n-1]
		}

		writeStart := time.Now()
		if err := writer.Write(ctx, runID, startedAt, snap.BlockHeight, currentEra, ranked, stashes); err != nil {
			metrics.RecordRunError("write")
			return err
		}
		metrics.ObserveWrite(time.Since(writeStart))
		return nil
	}

	sched := scheduler.New(runFn, cfg.StartDelay, cfg.PollingTime, logger)
	sched.Run(rootCtx)

	logger.Info("rankerd shut down")
}
