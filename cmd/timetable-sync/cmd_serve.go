package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-timetable-sync/internal/handler"
	"github.com/noah-isme/sma-timetable-sync/internal/service"
	"github.com/noah-isme/sma-timetable-sync/pkg/config"
	"github.com/noah-isme/sma-timetable-sync/pkg/jobs"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled syncs and the ops HTTP endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	logr := a.logger

	worker := service.NewSyncWorker(a.syncJobs, a.sync, logr)
	queue := jobs.NewQueue("timetable-sync", worker.Handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 4,
		MaxRetries: 0,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	jobSvc := service.NewSyncJobService(a.syncJobs, queue, logr)
	jobSvc.RecoverPending(ctx)

	scheduler, err := newScheduler(a.cfg.Sync.Cron, jobSvc, logr)
	if err != nil {
		return err
	}
	if scheduler != nil {
		scheduler.Start()
		defer scheduler.Stop()
	}

	if a.cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(handler.RouterConfig{
		Logger:         logr,
		Metrics:        a.metrics,
		Health:         handler.NewHealthHandler(a.db, a.timetable, a.metrics),
		SyncJobs:       handler.NewSyncJobHandler(jobSvc),
		AllowedOrigins: a.cfg.CORS.AllowedOrigins,
		EnableDocs:     a.cfg.Env != config.EnvProduction,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", a.cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logr.Sugar().Infow("server shutting down")
	return srv.Shutdown(shutdownCtx)
}
