package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/jobtracker/internal/config"
	"github.com/joshu-sajeev/jobtracker/internal/job"
	"github.com/joshu-sajeev/jobtracker/internal/live"
	"github.com/joshu-sajeev/jobtracker/internal/queue"
	"github.com/joshu-sajeev/jobtracker/internal/server"
	"github.com/joshu-sajeev/jobtracker/internal/storage/postgres"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("api exited", slog.String("error", err.Error()))
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
	gin.SetMode(gin.ReleaseMode)

	logger.Info("starting api")

	db, err := postgres.ConnectDB(ctx, nil)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
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

	hub := live.NewHub(logger)
	relay := live.NewRelay(rdb, live.DefaultChannel, hub, logger)
	pub := live.NewRedisPublisher(rdb, live.DefaultChannel, logger)

	svc := job.NewJobService(repo, q, job.WithPublisher(pub), job.WithLogger(logger))
	router := server.NewRouter(server.Deps{
		Handler:        job.NewJobHandler(svc),
		Hub:            hub,
		Logger:         logger,
		RequestTimeout: app.RequestTimeout,
		AllowedOrigins: app.CORSOrigins,
		Checks: map[string]server.Pinger{
			"database": repo,
			"redis":    q,
		},
	})

	srv := &http.Server{Addr: app.HTTPAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", app.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down api")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), app.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
