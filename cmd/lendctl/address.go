package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"proplend/crypto"
)

func newAddressCmd() *cobra.Command {
	var (
		hexInput string
		module   string
	)
	cmd := &cobra.Command{
		Use:   "address [bech32]",
		Short: "Encode or decode ledger addresses",
		Example: "  lendctl address --hex 0x00112233445566778899aabbccddeeff00112233\n" +
			"  lendctl address --module module/lending\n" +
			"  lendctl address plend1...",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch {
			case strings.TrimSpace(hexInput) != "":
				raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(hexInput), "0x"))
				if err != nil {
					return fmt.Errorf("decode hex: %w", err)
				}
				addr, err := crypto.BytesToAddress(raw)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, addr.String())
			case strings.TrimSpace(module) != "":
				fmt.Fprintln(out, crypto.ModuleAddress(strings.TrimSpace(module)).String())
			case len(args) == 1:
				addr, err := crypto.DecodeAddress(strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintln(out, addr.Hex())
			default:
				return fmt.Errorf("one of --hex, --module or a bech32 address is required")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&hexInput, "hex", "", "20-byte hex address to encode as bech32")
	cmd.Flags().StringVar(&module, "module", "", "Module account name to derive, e.g. module/lending")
	return cmd
}
