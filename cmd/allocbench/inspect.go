package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/givy-go/allocator/allocator"
	"github.com/givy-go/allocator/config"
)

var inspectSizes []int

func init() {
	cmd := newInspectCmd()
	cmd.Flags().IntSliceVar(&inspectSizes, "sizes", []int{32, 256, 4096, 65536}, "sizes to allocate before dumping state")
	rootCmd.AddCommand(cmd)
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Allocate a fixed set of sizes and print the resulting bookkeeping",
		Long: `inspect initializes an Allocator, allocates one block of each size in
--sizes without freeing any of them, then prints the GAS layout and the
Heap's owned-superpage-block/active-list state. Build with -tags safe for
the per-size-class active list breakdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return doInspect(inspectSizes)
		},
	}
}

func doInspect(sizes []int) error {
	cfg, err := config.FromEnviron()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	alloc, err := allocator.Init(cfg)
	if err != nil {
		return fmt.Errorf("init allocator: %w", err)
	}

	fmt.Fprintln(os.Stdout, alloc.Layout().String())

	h := alloc.NewHeap()
	defer h.Close()

	for _, size := range sizes {
		ptr, actual := h.Allocate(size, 0)
		fmt.Fprintf(os.Stdout, "  allocate(%d) -> %#x, actualSize=%d\n", size, ptr, actual)
	}

	h.Dump(os.Stdout)
	return nil
}
