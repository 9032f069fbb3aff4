package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newOwnerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "owner <regnr>",
		Short: "Look up the current owner of a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			o, err := c.app.OwnerByRegnr(ctx, args[0], lookupOptions(cmd))
			if err != nil {
				return err
			}
			return render(cmd, o)
		},
	}
}
