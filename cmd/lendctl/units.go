package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/spf13/cobra"

	nativecommon "proplend/native/common"
)

func newUnitsCmd() *cobra.Command {
	var reverse bool
	cmd := &cobra.Command{
		Use:   "units <amount>",
		Short: "Convert a decimal amount into base units",
		Example: "  lendctl units 12.5\n" +
			"  lendctl units --reverse 12500000",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if reverse {
				base, ok := new(big.Int).SetString(strings.TrimSpace(args[0]), 10)
				if !ok || base.Sign() < 0 {
					return fmt.Errorf("invalid base-unit amount %q", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), nativecommon.FormatUnits(base))
				return nil
			}
			base, err := nativecommon.ParseUnits(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), base.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&reverse, "reverse", false, "Convert base units back into a decimal amount")
	return cmd
}
