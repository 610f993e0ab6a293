package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for linkcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkcrawl",
		Short: "Depth-bounded link collector",
		Long: `linkcrawl starts from one or more seed URLs, follows links up to a fixed
depth, and reports every URL that passed the configured filters together with
the page it was found on.

Results can be archived in a local history database and compared between
runs to see which links appeared or disappeared.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCollectCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
