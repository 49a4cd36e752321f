package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func newCartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cart",
		Short: "Show the current cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			snap, err := rt.api.Cart(context.Background())
			if err != nil {
				return err
			}
			printCart(snap)
			return nil
		},
	}
}
