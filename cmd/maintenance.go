package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"intelplatform/store"
)

// seedFiles are the CSV exports setup loads from data_dir, keyed by table.
var seedFiles = []struct {
	schema store.Schema
	file   string
}{
	{store.IncidentSchema, "cyber_incidents.csv"},
	{store.TicketSchema, "it_tickets.csv"},
	{store.DatasetSchema, "datasets_metadata.csv"},
}

func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create the schema and load the bundled data",
		Long: `Create the database schema, import legacy users from users_file and
replace the contents of each domain table with its CSV from data_dir when
that file exists. Prints the resulting row counts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			printHeader(cmd, "Setting up "+a.cfg.DBPath)

			n, err := store.ImportLegacyUsers(ctx, a.conn, a.cfg.UsersFile)
			if err != nil {
				return err
			}
			printf(cmd, infoColor, "users: %d imported from %s\n", n, a.cfg.UsersFile)

			for _, seed := range seedFiles {
				path := filepath.Join(a.cfg.DataDir, seed.file)
				if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
					printf(cmd, warningColor, "%s: %s not found, skipped\n", seed.schema.Table, path)
					continue
				}
				rows, err := loadFile(ctx, a.conn, seed.schema, path, true)
				if err != nil {
					return err
				}
				printf(cmd, infoColor, "%s: %d rows loaded from %s\n", seed.schema.Table, rows, path)
			}

			return printCounts(ctx, cmd, a.conn)
		},
	}
}

func newImportUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-users [file]",
		Short: "Import users from a username,password_hash,role file",
		Long: `Import users from a legacy users file. Existing usernames are left
untouched and plain-text passwords are hashed. The file is never modified.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			path := a.cfg.UsersFile
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("users file: %w", err)
			}
			n, err := store.ImportLegacyUsers(ctx, a.conn, path)
			if err != nil {
				return err
			}
			printf(cmd, successColor, "✓ Imported %d users from %s\n", n, path)
			return nil
		},
	}
}

func newLoadCSVCmd() *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "load-csv <table> <file>",
		Short: "Load a CSV file into cyber_incidents, it_tickets or datasets_metadata",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, ok := store.SchemaFor(args[0])
			if !ok {
				return fmt.Errorf("unknown table %q", args[0])
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := loadFile(ctx, a.conn, schema, args[1], replace)
			if err != nil {
				return err
			}
			printf(cmd, successColor, "✓ Loaded %d rows into %s\n", n, schema.Table)
			return nil
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "Delete existing rows before loading")
	return cmd
}

func newCreateUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-user <username> <password> <role>",
		Short: "Register a user (roles: cyber, it, data, admin)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			strength, err := a.auth.Register(ctx, args[0], args[1], args[2])
			if err != nil {
				return fmt.Errorf("create user %s: %w", args[0], err)
			}
			printf(cmd, successColor, "✓ User %s created with role %s (password strength: %s)\n", args[0], args[2], strength)
			return nil
		},
	}
}

func loadFile(ctx context.Context, conn *sql.DB, schema store.Schema, path string, replace bool) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := store.ImportCSV(ctx, conn, schema, f, store.ImportOptions{Replace: replace})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

func printCounts(ctx context.Context, cmd *cobra.Command, conn *sql.DB) error {
	printHeader(cmd, "Row counts")
	for _, table := range []string{"users", store.IncidentSchema.Table, store.TicketSchema.Table, store.DatasetSchema.Table} {
		var n int
		if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return fmt.Errorf("count %s: %w", table, err)
		}
		plainf(cmd, "  %-20s %d\n", table, n)
	}
	return nil
}
