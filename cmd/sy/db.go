package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchyard/internal/config"
	"github.com/zulandar/switchyard/internal/db"
	"github.com/zulandar/switchyard/internal/reorder"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	cmd.AddCommand(newDBCompactCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Switchyard database",
		Long:  "Creates the database if needed (MySQL) and migrates all tables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchyard.yaml", "path to Switchyard config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded config from %s (driver %s)\n", configPath, cfg.Database.Driver)

	if err := ensureDatabase(cmd, cfg.Database); err != nil {
		return err
	}

	if _, err := openStore(cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	fmt.Fprintln(out, "\nSwitchyard database initialized successfully.")
	return nil
}

// ensureDatabase creates the MySQL database. SQLite creates its file on open.
func ensureDatabase(cmd *cobra.Command, cfg config.DatabaseConfig) error {
	if cfg.Driver != "mysql" {
		return nil
	}
	adminDB, err := db.ConnectAdmin(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Connected to MySQL at %s:%d\n", cfg.Host, cfg.Port)
	if err := db.CreateDatabase(adminDB, cfg.Name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Database %s ready\n", cfg.Name)
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the Switchyard database",
		Long: `Drops every board, list, card and user, then re-creates the empty schema.

For MySQL the database is dropped and re-created; for SQLite the database
file is removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchyard.yaml", "path to Switchyard config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	target := cfg.Database.Path
	if cfg.Database.Driver == "mysql" {
		target = cfg.Database.Name
	}
	if !skipConfirm && !confirmReset(cmd, target) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	switch cfg.Database.Driver {
	case "mysql":
		adminDB, err := db.ConnectAdmin(cfg.Database)
		if err != nil {
			return err
		}
		if err := db.DropDatabase(adminDB, cfg.Database.Name); err != nil {
			return err
		}
	default:
		// WAL mode keeps two sidecar files next to the database.
		for _, suffix := range []string{"", "-wal", "-shm"} {
			path := cfg.Database.Path + suffix
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("remove %s: %w", path, err)
			}
		}
	}
	fmt.Fprintf(out, "Dropped database %s\n", target)

	if err := ensureDatabase(cmd, cfg.Database); err != nil {
		return err
	}
	if _, err := openStore(cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	fmt.Fprintln(out, "\nDatabase reset successfully.")
	return nil
}

func confirmReset(cmd *cobra.Command, dbName string) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	fmt.Fprintf(out, "WARNING: This will permanently delete all data in database %q.\n", dbName)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}

func newDBCompactCmd() *cobra.Command {
	var (
		configPath string
		boardID    string
	)

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Close position gaps left by deletes",
		Long:  "Renumbers every list and card so positions within each container run 0..n-1.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBCompact(cmd, configPath, boardID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchyard.yaml", "path to Switchyard config file")
	cmd.Flags().StringVar(&boardID, "board", "", "compact a single board")
	return cmd
}

func runDBCompact(cmd *cobra.Command, configPath, boardID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gormDB, err := openStore(cfg)
	if err != nil {
		return err
	}

	engine := reorder.New(gormDB)
	var stats reorder.CompactStats
	if boardID != "" {
		stats, err = engine.CompactBoard(context.Background(), boardID)
	} else {
		stats, err = engine.CompactAll(context.Background())
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Compacted %d containers, renumbered %d items\n", stats.Containers, stats.Renumbered)
	return nil
}
