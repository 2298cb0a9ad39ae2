package cli

import (
	"github.com/spf13/cobra"
)

// ChargeOptions holds flags for the charge command.
type ChargeOptions struct {
	*RootOptions
	Amount int64
}

// NewChargeCommand creates the charge command.
func NewChargeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChargeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "charge",
		Short: "Debit the balance once",
		Long: `Send a single charge. Without --amount the server applies its default charge.

Example:
  chargectl charge
  chargectl charge --amount 30`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.client().Charge(cmd.Context(), opts.Amount)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().Int64Var(&opts.Amount, "amount", 0, "amount to charge (0 uses the server default)")

	return cmd
}
