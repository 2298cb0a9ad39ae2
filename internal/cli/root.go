// Package cli implements chargectl, a client for the balance endpoints.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"balance-guard/internal/loadgen"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	URL     string
	Timeout time.Duration
	Verbose bool
}

func (o *RootOptions) client() *loadgen.Client {
	return loadgen.NewClient(o.URL, o.Timeout)
}

// NewRootCommand creates the chargectl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "chargectl",
		Short: "Drive a balance-guard server",
		Long:  "Charge, reset and load-test the debit-if-sufficient balance exposed by chargeserver.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.URL == "" {
				return fmt.Errorf("--url must not be empty")
			}
			level := zerolog.InfoLevel
			if opts.Verbose {
				level = zerolog.DebugLevel
			}
			log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
				Level(level).With().Timestamp().Logger()
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.URL, "url", envOr("CHARGE_URL", "http://localhost:8080"), "chargeserver base URL")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "per-request timeout")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewChargeCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))

	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
