// Package main provides farmerctl, the command-line front end to the bulk
// farmer import: template download, offline checks, imports and directory
// maintenance.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/JonMunkholm/farmerimport/internal/core"
	"github.com/JonMunkholm/farmerimport/internal/logging"
	"github.com/JonMunkholm/farmerimport/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// databaseURL is set by --database-url; DATABASE_URL is the fallback.
	databaseURL string

	logLevel  string
	logFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "farmerctl",
	Short: "Bulk farmer onboarding from spreadsheets",
	Long: `farmerctl reads farmer spreadsheets (xlsx or csv with a "Farmers" sheet and an
optional "Farms" sheet), validates every row and commits the valid farmers.

Without a database the directory is empty, so district and organization names
are not checked.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		// stdout carries command output; logs go to stderr.
		slog.SetDefault(logging.New(os.Stderr, logLevel, logFormat))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string (default: $DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(directoryCmd)
}

// backend is what the commands need from a store. Both the Postgres and the
// in-memory store satisfy it.
type backend interface {
	core.Store
	core.ImportRecorder
	AddDistrict(ctx context.Context, name string) (core.Ref, error)
	AddOrganization(ctx context.Context, name, kind string) (core.Ref, error)
}

var errNoDatabase = errors.New("this command needs a database: set --database-url or DATABASE_URL")

// openBackend connects to the configured database. With no database
// configured it returns an empty in-memory store, or errNoDatabase when
// required is set.
func openBackend(ctx context.Context, required bool) (backend, func(), error) {
	url := databaseURL
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		if required {
			return nil, nil, errNoDatabase
		}
		slog.Info("no database configured, using an empty directory")
		return store.NewMemory(core.ReferenceData{}), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	pg := store.NewPostgres(pool)
	if err := pg.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	return pg, pool.Close, nil
}
