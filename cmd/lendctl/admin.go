package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"proplend/config"
)

func newAdminCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Print the bootstrap admin address held in the keystore",
		Long: "Loads the ledger configuration, creating it together with a fresh admin keystore when\n" +
			"missing, and prints the admin address. The keystore passphrase is read from\n" +
			"PROPLEND_KEYSTORE_PASSPHRASE.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			key, err := cfg.AdminKey()
			if err != nil {
				return fmt.Errorf("load admin key: %w", err)
			}
			addr, err := key.Address()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "ledger.toml", "Path to the ledger TOML configuration")
	return cmd
}
