package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <id>",
		Short: "Look up an owner profile by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			p, err := c.app.OwnerProfile(ctx, args[0], lookupOptions(cmd))
			if err != nil {
				return err
			}
			return render(cmd, p)
		},
	}
}
