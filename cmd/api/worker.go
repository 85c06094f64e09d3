package main

import (
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"taskboard/api/internal/config"
	"taskboard/api/internal/notify"
)

func newWorkerCommand(cfg *config.Config) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Deliver queued notifications",
		Long: `Deliver notifications queued in Redis by "serve".

By default the worker blocks on the queue until interrupted. With --once it
processes whatever is queued and exits. Requires REDIS_URL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !redisConfigured(cfg) {
				return errors.New("worker requires REDIS_URL")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, dataStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			queue, err := notify.NewQueue(cfg.RedisURL)
			if err != nil {
				return err
			}
			defer queue.Close()

			worker := notify.NewWorker(queue, newDispatcher(cfg, dataStore, queue.Client()), cfg.NotifyMaxAttempts)
			if once {
				handled, err := worker.Drain(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "handled %d queued notifications\n", handled)
				return err
			}
			log.Printf("notify: worker started")
			return worker.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Drain the queue and exit")
	return cmd
}
