package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newVehicleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vehicle <regnr>",
		Short: "Look up a vehicle by registration number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			v, err := c.app.Vehicle(ctx, args[0], lookupOptions(cmd))
			if err != nil {
				return err
			}
			return render(cmd, v)
		},
	}
}
