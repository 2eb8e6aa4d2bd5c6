package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/givy-go/allocator/allocator"
	"github.com/givy-go/allocator/config"
)

var runCount int

func init() {
	cmd := newRunCmd()
	cmd.Flags().IntVar(&runCount, "count", 10_000, "number of allocate/deallocate pairs to issue")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Single-goroutine allocate/deallocate sanity run",
		Long: `run initializes one Allocator and one Heap, then issues --count
allocate/deallocate pairs across a mix of small, medium and huge sizes,
freeing each block before moving on. It is the single-threaded baseline: no
Heap ever crosses a goroutine boundary, so the remote-free path never fires.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return doRun(runCount)
		},
	}
}

// sampleSize draws from the same three size regimes the allocator itself
// distinguishes, weighted toward small cells the way most workloads are.
func sampleSize(rng *rand.Rand) int {
	switch roll := rng.Intn(100); {
	case roll < 70:
		return 1 + rng.Intn(4096) // small
	case roll < 95:
		return 4096 + rng.Intn(64*1024) // medium
	default:
		return 2*1024*1024 + rng.Intn(4*1024*1024) // huge
	}
}

func doRun(count int) error {
	cfg, err := config.FromEnviron()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	alloc, err := allocator.Init(cfg)
	if err != nil {
		return fmt.Errorf("init allocator: %w", err)
	}

	h := alloc.NewHeap()
	defer h.Close()

	rng := rand.New(rand.NewSource(1))
	var totalRequested, totalActual uint64
	for i := 0; i < count; i++ {
		size := sampleSize(rng)
		ptr, actual := h.Allocate(size, 0)
		totalRequested += uint64(size)
		totalActual += uint64(actual)
		h.Deallocate(ptr)
	}

	fmt.Fprintf(os.Stdout, "run: %d allocate/deallocate pairs, %s requested, %s actually served\n",
		count, humanize.Bytes(totalRequested), humanize.Bytes(totalActual))
	h.Dump(os.Stdout)
	return nil
}
