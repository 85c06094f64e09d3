package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskboard/api/internal/app"
	"taskboard/api/internal/config"
	"taskboard/api/internal/notify"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
)

func newServeCommand(cfg *config.Config) *cobra.Command {
	var opts struct {
		SkipMigrations bool
		NoWorker       bool
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API.

Pending migrations are applied first unless --skip-migrations is given.
When REDIS_URL is set, notifications are queued in Redis and delivered by
an in-process worker (disable with --no-worker and run "worker" separately).
Without Redis, notifications are delivered inline after each comment.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, opts.SkipMigrations, !opts.NoWorker)
		},
	}

	cmd.Flags().BoolVar(&opts.SkipMigrations, "skip-migrations", false, "Do not apply pending migrations on startup")
	cmd.Flags().BoolVar(&opts.NoWorker, "no-worker", false, "Do not run the notification worker in this process")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, skipMigrations, runWorker bool) error {
	db, dataStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if !skipMigrations {
		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			return err
		}
	}

	pgfts := search.NewPgFTS(db)
	var index search.Index
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
		index = meiliClient
	}
	searchService := search.NewService(index, pgfts, dataStore)
	go searchService.ReindexAllFromPG(ctx)

	var publisher notify.Publisher
	if redisConfigured(cfg) {
		log.Printf("notify: queueing notifications in Redis")
		queue, err := notify.NewQueue(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer queue.Close()
		publisher = queue
		if runWorker {
			worker := notify.NewWorker(queue, newDispatcher(cfg, dataStore, queue.Client()), cfg.NotifyMaxAttempts)
			workerCtx, stopWorker := context.WithCancel(ctx)
			var workers sync.WaitGroup
			workers.Add(1)
			go func() {
				defer workers.Done()
				if err := worker.Run(workerCtx); err != nil {
					log.Printf("notify: worker stopped: %v", err)
				}
			}()
			// Runs before the queue and database are closed.
			defer func() {
				stopWorker()
				workers.Wait()
			}()
		}
	} else {
		log.Printf("notify: REDIS_URL not set, delivering notifications inline")
		publisher = newDispatcher(cfg, dataStore, nil)
	}

	service := app.NewService(*cfg, dataStore, publisher, searchService)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Taskboard API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	return nil
}
