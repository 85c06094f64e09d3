package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"taskboard/api/internal/config"
	"taskboard/api/internal/email"
	"taskboard/api/internal/notify"
	"taskboard/api/internal/store"
)

func newRootCommand() *cobra.Command {
	cfg := &config.Config{}

	root := &cobra.Command{
		Use:           "taskboard-api",
		Short:         "Task comment and notification service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Resolve()
			if err != nil {
				return err
			}
			*cfg = loaded
			return nil
		},
	}

	root.AddCommand(
		newServeCommand(cfg),
		newMigrateCommand(cfg),
		newWorkerCommand(cfg),
		newTokenCommand(cfg),
	)
	return root
}

func openStore(ctx context.Context, cfg *config.Config) (*sql.DB, *store.PostgresStore, error) {
	db, err := store.Open(ctx, cfg.DatabaseURL, store.DefaultPoolConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	return db, store.NewPostgresStore(db), nil
}

// newDispatcher builds the delivery chain. redisClient may be nil, in which
// case realtime pub/sub is skipped.
func newDispatcher(cfg *config.Config, dataStore *store.PostgresStore, redisClient *redis.Client) *notify.Dispatcher {
	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if !mailer.IsConfigured() {
		log.Printf("notify: SMTP not configured, email notifications disabled")
	}

	senders := []notify.Sender{
		notify.NewStoreSender(dataStore),
		notify.NewEmailSender(dataStore, mailer, cfg.AppURL),
	}
	if redisClient != nil {
		senders = append(senders, notify.NewPubSubSender(redisClient))
	}
	return notify.NewDispatcher(senders...)
}

func redisConfigured(cfg *config.Config) bool {
	return strings.TrimSpace(cfg.RedisURL) != ""
}
