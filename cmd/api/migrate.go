package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"taskboard/api/internal/config"
	"taskboard/api/internal/store"
)

func newMigrateCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}
	cmd.AddCommand(
		newMigrateUpCommand(cfg),
		newMigrateDownCommand(cfg),
		newMigrateStatusCommand(cfg),
	)
	return cmd
}

func newMigrateUpCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, _, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newMigrateDownCommand(cfg *config.Config) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Revert applied migrations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 1 {
				return errors.New("--steps must be at least 1")
			}
			ctx := cmd.Context()
			db, _, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			reverted, err := store.RollbackMigrations(ctx, db, cfg.MigrationsDir, steps)
			for _, version := range reverted {
				fmt.Fprintf(cmd.OutOrStdout(), "reverted %s\n", version)
			}
			return err
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to revert")
	return cmd
}

func newMigrateStatusCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, _, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			states, err := store.MigrationStatus(ctx, db, cfg.MigrationsDir)
			if err != nil {
				return err
			}
			for _, state := range states {
				mark := "pending"
				if state.Applied {
					mark = "applied"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", mark, state.Version)
			}
			return nil
		},
	}
}
