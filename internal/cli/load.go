package cli

import (
	"fmt"

	"balance-guard/internal/loadgen"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	loadgen.Options
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts, Options: loadgen.DefaultOptions()}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Hammer the balance with concurrent charges",
		Long: `Reset the balance and fire concurrent charges, repeatedly.

Each round must authorize exactly balance/amount charges (capped at
--concurrency) and no response may report a negative balance. The balance
is the one returned by reset. --expect overrides the derived count. With
the default server settings 21 charges of 5 race for 100, so 20 succeed.

Example:
  chargectl load
  chargectl load --iterations 1000 --concurrency 41 --amount 10`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Iterations <= 0 || opts.Concurrency <= 0 {
				return fmt.Errorf("--iterations and --concurrency must be positive")
			}
			if opts.ExpectAuthorized < 0 {
				return fmt.Errorf("--expect must not be negative")
			}
			if opts.ExpectAuthorized > opts.Concurrency {
				return fmt.Errorf("--expect %d exceeds --concurrency %d", opts.ExpectAuthorized, opts.Concurrency)
			}
			rep, err := loadgen.Run(cmd.Context(), opts.client(), opts.Options)
			if err != nil {
				return err
			}
			log.Info().Int("iterations", opts.Iterations).Msg("load test passed")
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"iterations":  opts.Iterations,
				"concurrency": opts.Concurrency,
				"authorized":  rep.Authorized,
				"passed":      true,
			})
		},
	}

	cmd.Flags().IntVar(&opts.Iterations, "iterations", opts.Iterations, "number of rounds")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", opts.Concurrency, "simultaneous charges per round")
	cmd.Flags().Int64Var(&opts.Amount, "amount", 0, "amount per charge (0 uses the server default)")
	cmd.Flags().IntVar(&opts.ExpectAuthorized, "expect", opts.ExpectAuthorized, "authorized charges required per round (0 derives balance/amount)")

	return cmd
}
