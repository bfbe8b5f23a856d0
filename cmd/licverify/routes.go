package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"winsbygroup.com/licverify/internal/server"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the registered HTTP routes and exit",
	Args:  cobra.NoArgs,
	RunE:  routesCmdRun,
}

func init() {
	rootCmd.AddCommand(routesCmd)
}

func routesCmdRun(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	srv, err := server.Build(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}
	defer srv.Close(context.Background())

	for _, r := range srv.Routes() {
		fmt.Fprintln(cmd.OutOrStdout(), r)
	}
	return nil
}
