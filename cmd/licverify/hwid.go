package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"winsbygroup.com/licverify/pkg/client"
)

var hwidCmd = &cobra.Command{
	Use:   "hwid",
	Short: "Print this machine's hardware identifier",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), client.MachineHWID())
		return err
	},
}

func init() {
	rootCmd.AddCommand(hwidCmd)
}
