package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lendctl",
		Short:         "Operator tooling for the proplend ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newUnitsCmd(),
		newAddressCmd(),
		newTokenCmd(),
		newAdminCmd(),
		newExportCmd(),
	)
	return root
}
