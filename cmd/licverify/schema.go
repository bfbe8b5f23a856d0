package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"winsbygroup.com/licverify/internal/sqlite"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the SQLite schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprint(cmd.OutOrStdout(), sqlite.Schema())
		return err
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
