package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/givy-go/allocator/internal/xlog"
)

var (
	verbose bool
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "allocbench",
	Short: "Exercise the NUMA-aware allocator from the command line",
	Long: `allocbench initializes one allocator process from the environment
(GIVYGO_BYTES_PER_NODE, GIVYGO_NODE_COUNT, GIVYGO_LOCAL_NODE, ...) and drives
allocate/deallocate workloads against it: single-goroutine sanity runs,
multi-goroutine remote-free stress, and post-run bookkeeping inspection.`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		xlog.Default()
		switch {
		case quiet:
			xlog.SetLogger(xlog.L().Level(zerolog.ErrorLevel))
		case verbose:
			xlog.SetLogger(xlog.L().Level(zerolog.DebugLevel))
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "log errors only")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
