package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshu-sajeev/jobtracker/internal/cli"
	"github.com/joshu-sajeev/jobtracker/internal/config"
	"github.com/joshu-sajeev/jobtracker/internal/job"
	"github.com/joshu-sajeev/jobtracker/internal/live"
	"github.com/joshu-sajeev/jobtracker/internal/queue"
	"github.com/joshu-sajeev/jobtracker/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(open).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func open(ctx context.Context) (*cli.Backend, error) {
	app, err := config.LoadAppFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	logger := config.NewLogger(app)
	slog.SetDefault(logger)

	db, err := postgres.ConnectDB(ctx, nil)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	qcfg, err := queue.LoadConfigFromEnv(ctx)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	rdb, err := queue.Connect(ctx, qcfg)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	q := queue.New(rdb, qcfg.Name, append(qcfg.Options(), queue.WithLogger(logger))...)
	svc := job.NewJobService(postgres.NewJobRepository(db), q,
		job.WithPublisher(live.NewRedisPublisher(rdb, live.DefaultChannel, logger)),
		job.WithLogger(logger),
	)

	return &cli.Backend{
		Service: svc,
		Migrate: func(ctx context.Context) error { return postgres.Migrate(ctx, db) },
		Close: func() {
			rdb.Close()
			sqlDB.Close()
		},
	}, nil
}
