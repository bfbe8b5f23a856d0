package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"winsbygroup.com/licverify/internal/logger"
	"winsbygroup.com/licverify/internal/version"
	"winsbygroup.com/licverify/pkg/client"
)

var checkCmd = &cobra.Command{
	Use:   "check LICENSE_KEY",
	Short: "Verify a license for this machine against a server",
	Long: `Verify a license for this machine against a licverify server.

A successful online check is cached locally. When the server cannot be
reached the cached result is used instead.`,
	Example: `  licverify check XYZ1 --server https://licenses.example.com`,
	Args:    cobra.ExactArgs(1),
	RunE:    checkCmdRun,
}

type checkFlags struct {
	server    string
	cacheFile string
	hwid      string
	timeout   time.Duration
	retries   int
}

var checkArgs checkFlags

// errNotAuthorized makes the command exit non-zero for a negative answer.
var errNotAuthorized = errors.New("license not authorized for this machine")

func init() {
	checkCmd.Flags().StringVar(&checkArgs.server, "server", "http://localhost:8080",
		"base URL of the licverify server")
	checkCmd.Flags().StringVar(&checkArgs.cacheFile, "cache", client.DefaultCacheFile,
		"offline license cache file")
	checkCmd.Flags().StringVar(&checkArgs.hwid, "hwid", "",
		"hardware id to check (defaults to this machine)")
	checkCmd.Flags().DurationVar(&checkArgs.timeout, "timeout", 5*time.Second,
		"per-attempt request timeout")
	checkCmd.Flags().IntVar(&checkArgs.retries, "retries", 2,
		"retries on unavailable or conflicting responses")
	rootCmd.AddCommand(checkCmd)
}

func checkCmdRun(cmd *cobra.Command, args []string) error {
	log := logger.Get()

	c := client.New(checkArgs.server,
		client.WithTimeout(checkArgs.timeout),
		client.WithRetryMax(checkArgs.retries),
		client.WithLogger(log),
		client.WithUserAgent(version.UserAgent()),
	)
	opts := []client.ValidatorOption{client.WithValidatorLogger(log)}
	if checkArgs.hwid != "" {
		opts = append(opts, client.WithHWID(checkArgs.hwid))
	}
	v := client.NewValidator(c, client.NewOfflineCache(checkArgs.cacheFile), opts...)

	ctx, cancel := context.WithTimeout(cmd.Context(), checkArgs.timeout*time.Duration(checkArgs.retries+2))
	defer cancel()

	d, err := v.Validate(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "hwid:       %s\n", v.HWID())
	fmt.Fprintf(out, "source:     %s\n", d.Source)
	fmt.Fprintf(out, "authorized: %v\n", d.Authorized)
	if d.ProductType != "" {
		fmt.Fprintf(out, "product:    %s\n", d.ProductType)
	}
	if d.Result != nil && d.Result.Message != "" {
		fmt.Fprintf(out, "message:    %s\n", d.Result.Message)
	} else if d.Result != nil && d.Result.Valid && !d.Result.HWIDMatch {
		fmt.Fprintln(out, "message:    license is bound to another device")
	}

	if !d.Authorized {
		return errNotAuthorized
	}
	return nil
}
