package main

import (
	"fmt"
	"math/rand"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/givy-go/allocator/allocator"
	"github.com/givy-go/allocator/config"
)

var (
	stressWorkers   int
	stressPerWorker int
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().IntVar(&stressWorkers, "workers", 4, "number of goroutines, each with its own Heap")
	cmd.Flags().IntVar(&stressPerWorker, "per-worker", 5_000, "allocations issued by each worker")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stress",
		Short: "Cross-goroutine remote-free stress run",
		Long: `stress mints one Heap per worker goroutine, has every worker allocate
a batch of small and medium blocks, then hands each pointer to the *next*
worker in a ring to free. Every free is issued from a Heap other than the
one that allocated the block: while the allocating Heap is still open it
goes through the remote-free protocol (RemoteInbox push/take-all); once
that Heap has been closed, the freeing Heap adopts the orphaned superpage
block and frees locally.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return doStress(stressWorkers, stressPerWorker)
		},
	}
}

func doStress(workers, perWorker int) error {
	if workers < 2 {
		return fmt.Errorf("stress: need at least 2 workers to cross Heap boundaries, got %d", workers)
	}

	cfg, err := config.FromEnviron()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	alloc, err := allocator.Init(cfg)
	if err != nil {
		return fmt.Errorf("init allocator: %w", err)
	}

	ptrChans := make([]chan uintptr, workers)
	for i := range ptrChans {
		ptrChans[i] = make(chan uintptr, perWorker)
	}

	var wg sync.WaitGroup
	var totalFreed uint64
	var totalMu sync.Mutex

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			h := alloc.NewHeap()
			defer h.Close()

			rng := rand.New(rand.NewSource(int64(id) + 1))
			next := ptrChans[(id+1)%workers]
			mine := ptrChans[id]

			for i := 0; i < perWorker; i++ {
				size := 16 + rng.Intn(32*1024)
				ptr, _ := h.Allocate(size, 0)
				next <- ptr
			}
			close(next)

			freed := 0
			for ptr := range mine {
				h.Deallocate(ptr)
				freed++
			}

			totalMu.Lock()
			totalFreed += uint64(freed)
			totalMu.Unlock()
		}(w)
	}
	wg.Wait()

	fmt.Fprintf(os.Stdout, "stress: %d workers, %s cross-Heap frees processed\n",
		workers, humanize.Comma(int64(totalFreed)))
	return nil
}
