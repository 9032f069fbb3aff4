// Package commands implements the CLI commands for the fordonctl client.
package commands

import (
	"context"
	"io"

	"github.com/plateworks/fordon/internal/core/vehicle"
	"github.com/plateworks/fordon/internal/shell/lookup"
	"github.com/spf13/cobra"
)

// CLI represents the command line interface for fordonctl.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
}

// Application represents the lookup operations the commands invoke.
type Application interface {
	Vehicle(ctx context.Context, regnr string, opts lookup.Options) (*vehicle.Vehicle, error)
	OwnerByRegnr(ctx context.Context, regnr string, opts lookup.Options) (*vehicle.OwnerLookup, error)
	OwnerProfile(ctx context.Context, profileID string, opts lookup.Options) (*vehicle.OwnerProfile, error)
	AddressVehicles(ctx context.Context, regnr string, opts lookup.Options) (*vehicle.AddressVehicles, error)
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "fordonctl",
		Short:         "Look up Swedish vehicle registry records",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}

	rootCmd.PersistentFlags().StringP("output", "o", "json", "Output format: json or yaml")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Bypass the lookup cache and fetch fresh data")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Overall timeout for the lookup (0 means no limit)")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newVehicleCmd())
	rootCmd.AddCommand(c.newOwnerCmd())
	rootCmd.AddCommand(c.newProfileCmd())
	rootCmd.AddCommand(c.newAddressCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// lookupOptions derives lookup options from the persistent flags.
func lookupOptions(cmd *cobra.Command) lookup.Options {
	noCache, _ := cmd.Flags().GetBool("no-cache")
	return lookup.Options{BypassCache: noCache}
}

// commandContext applies the --timeout flag to the command context.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		return cmd.Context(), func() {}
	}
	return context.WithTimeout(cmd.Context(), timeout)
}
