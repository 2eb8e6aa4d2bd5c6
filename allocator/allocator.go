// Package allocator is the top-level façade (§6 "Public API"): it wires
// gas.Layout, the superpage tracker, the OS mapper/bootstrap arena and the
// heap package's Shared state together into the one object an embedder
// initializes once per process.
package allocator

import (
	"errors"
	"fmt"

	"github.com/givy-go/allocator/config"
	"github.com/givy-go/allocator/gas"
	"github.com/givy-go/allocator/heap"
	"github.com/givy-go/allocator/internal/xlog"
	"github.com/givy-go/allocator/tracker"
	"github.com/givy-go/allocator/vmem"
)

// Sentinel errors for recoverable failures during Init. Hot-path
// allocate/deallocate errors are never of this kind — those are fatal
// per spec.md §7 and panic through internal/fault.
var (
	ErrInvalidLayout = errors.New("allocator: invalid layout")
	ErrReserveArena  = errors.New("allocator: failed to reserve GAS arena")
)

// Allocator is the process-wide shared allocator state for one node. It
// has no exported allocate/deallocate methods itself — those live on the
// Heap handles it mints via NewHeap, one per goroutine that allocates
// (§4.4; see DESIGN.md "explicit Heap handles").
type Allocator struct {
	layout  gas.Layout
	tracker *tracker.Tracker
	mapper  vmem.Mapper
	shared  *heap.Shared
}

// Init builds the GAS layout, reserves its backing arena, and constructs
// the superpage tracker, per the layout config (§6 "Initialization takes a
// layout"). Call it once per process.
func Init(cfg config.Layout) (*Allocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}

	if cfg.StartAddress != 0 {
		// Fixed-address placement would need MAP_FIXED, which the Go
		// mmap wrapper does not expose safely (it could clobber existing
		// mappings the Go runtime itself depends on). The OS mapping
		// collaborator always picks its own base; see vmem.NewArena.
		xlog.L().Warn().Uint64("requested", uint64(cfg.StartAddress)).
			Msg("allocator: GIVYGO_GAS_START is ignored; the OS mapper always chooses its own base")
	}

	totalBytes := uintptr(cfg.BytesPerNode) * uintptr(cfg.NodeCount)
	mapper, base, err := vmem.NewArena(totalBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReserveArena, err)
	}

	layout, err := gas.New(base, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}

	var bootstrap vmem.Bootstrap
	trk := tracker.New(&bootstrap, layout.TotalSuperpages())

	xlog.L().Info().Str("layout", layout.String()).Msg("allocator initialized")

	return &Allocator{
		layout:  layout,
		tracker: trk,
		mapper:  mapper,
		shared:  heap.NewShared(layout, trk, mapper),
	}, nil
}

// NewHeap mints a fresh Thread-Local Heap. The caller owns the returned
// handle exclusively until it calls Close on it.
func (a *Allocator) NewHeap() *heap.Heap { return a.shared.NewHeap() }

// Layout exposes the GAS layout this allocator was initialized with.
func (a *Allocator) Layout() gas.Layout { return a.layout }
