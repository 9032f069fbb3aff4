package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newAddressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address <regnr>",
		Short: "List vehicles registered at the owner's address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			av, err := c.app.AddressVehicles(ctx, args[0], lookupOptions(cmd))
			if err != nil {
				return err
			}
			return render(cmd, av)
		},
	}
}
