package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the invoicectl command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "invoicectl",
		Short: "Render and check invoice documents offline",
		Long: `invoicectl works on invoice documents stored as JSON files, the same
shape the web app archives. It renders them with any of the layouts and
prints their totals without starting the server.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("in", "", "invoice document JSON file (- for stdin)")
	rootCmd.PersistentFlags().Float64("tax-rate", 0, "tax rate applied when recomputing totals (default from TAX_RATE or 0.18)")
	rootCmd.PersistentFlags().String("currency", "", "currency symbol (default from CURRENCY_SYMBOL or ₹)")

	rootCmd.AddCommand(newRenderCmd())
	rootCmd.AddCommand(newTotalsCmd())
	return rootCmd
}

// Execute runs invoicectl with os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}
