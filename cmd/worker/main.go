package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshu-sajeev/jobtracker/internal/config"
	"github.com/joshu-sajeev/jobtracker/internal/live"
	"github.com/joshu-sajeev/jobtracker/internal/pool"
	"github.com/joshu-sajeev/jobtracker/internal/queue"
	"github.com/joshu-sajeev/jobtracker/internal/storage/postgres"
	"github.com/joshu-sajeev/jobtracker/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("worker exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	app, err := config.LoadAppFromEnv(ctx)
	if err != nil {
		return err
	}
	logger := config.NewLogger(app)
	slog.SetDefault(logger)

	logger.Info("starting worker")

	db, err := postgres.ConnectDB(ctx, nil)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	qcfg, err := queue.LoadConfigFromEnv(ctx)
	if err != nil {
		return err
	}
	rdb, err := queue.Connect(ctx, qcfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	repo := postgres.NewJobRepository(db)
	q := queue.New(rdb, qcfg.Name, append(qcfg.Options(), queue.WithLogger(logger))...)

	processor := worker.NewProcessor(repo,
		worker.NewSimulatedExecutor(app.ExecLatency, app.ExecFailureRate, logger),
		worker.WithPublisher(live.NewRedisPublisher(rdb, live.DefaultChannel, logger)),
		worker.WithLogger(logger),
	)

	workerPool := pool.NewWorkerPool(pool.Config{
		Workers:         app.WorkerConcurrency,
		PollInterval:    app.PollInterval,
		JanitorInterval: app.JanitorInterval,
	}, q, processor, logger)

	// leases left behind by a previous run
	if err := workerPool.Recover(ctx); err != nil {
		logger.Warn("initial lease recovery", slog.String("error", err.Error()))
	}

	workerPool.Start()
	logger.Info("worker pool active, press Ctrl+C to stop", slog.String("queue", q.Name()))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()
	if err := workerPool.Stop(shutdownCtx); err != nil {
		logger.Warn("shutdown deadline reached, in-flight attempts canceled")
	}

	logger.Info("shutdown complete")
	return nil
}
