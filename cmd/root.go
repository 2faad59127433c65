// Package cmd provides the command-line interface: the web server and the
// database maintenance commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"intelplatform/config"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags
var (
	configFile string
	noColor    bool
)

const (
	defaultConfigFile = "config.json"
	defaultTimeout    = 5 * time.Minute
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "intelplatform",
		Short:         "Multi-domain intelligence platform",
		Long:          "Role-based dashboards for cyber incidents, IT tickets and datasets, with a data-grounded assistant.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				color.NoColor = true
			}
			return loadConfig(cmd)
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", defaultConfigFile, "Config file path")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	root.AddCommand(newServeCmd())
	root.AddCommand(newSetupCmd())
	root.AddCommand(newImportUsersCmd())
	root.AddCommand(newLoadCSVCmd())
	root.AddCommand(newCreateUserCmd())
	return root
}

// loadConfig reads --config. A missing default file means defaults and
// environment only; a missing file named explicitly is an error.
func loadConfig(cmd *cobra.Command) error {
	path := configFile
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		path = ""
	}
	return config.LoadConfig(path)
}

func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// commandContext bounds a maintenance command.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, defaultTimeout)
}

func printHeader(cmd *cobra.Command, title string) {
	headerColor.Fprintln(cmd.OutOrStdout(), title)
}

func printf(cmd *cobra.Command, c *color.Color, format string, args ...any) {
	c.Fprintf(cmd.OutOrStdout(), format, args...)
}

func plainf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
