// Package config loads the allocator's GAS layout from the environment,
// following the struct-tag-driven binding style used throughout the wider
// example pack's CLI-capable services rather than hand-rolled os.Getenv
// calls.
package config

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/caarlos0/env/v10"
)

// Defaults for an unconfigured single-node deployment.
const (
	DefaultSuperpageSize   = 2 * 1024 * 1024 // 2 MiB
	DefaultPageSize        = 4096
	DefaultBytesPerNode    = 4 * 1024 * 1024 * 1024 // 4 GiB
	DefaultTrackerWordBits = 64
)

// Layout mirrors the fields spec.md §3 names as the GAS layout: a start
// address, bytes per node, node count, and the local node id.
type Layout struct {
	// StartAddress is a hexadecimal ("0x" prefix) or decimal virtual
	// address. allocator.Init does not place the GAS there: it logs a
	// warning for any non-zero value and lets vmem.NewArena pick the base.
	StartAddress uintptr `env:"GIVYGO_GAS_START" envDefault:"0"`

	// BytesPerNode is the size, in bytes, of each node's interval of the
	// GAS. Rounded up to a superpage multiple on use.
	BytesPerNode uint64 `env:"GIVYGO_BYTES_PER_NODE" envDefault:"4294967296"`

	// NodeCount is the number of node intervals partitioning the GAS.
	NodeCount int `env:"GIVYGO_NODE_COUNT" envDefault:"1"`

	// LocalNode is this process's index into the node intervals.
	LocalNode int `env:"GIVYGO_LOCAL_NODE" envDefault:"0"`
}

// FromEnviron parses a Layout from the process environment, applying the
// documented defaults for anything unset.
func FromEnviron() (Layout, error) {
	var l Layout
	opts := env.Options{FuncMap: map[reflect.Type]env.ParserFunc{
		reflect.TypeOf(uintptr(0)): func(v string) (interface{}, error) {
			n, err := strconv.ParseUint(v, 0, 64)
			return uintptr(n), err
		},
	}}
	if err := env.ParseWithOptions(&l, opts); err != nil {
		return Layout{}, fmt.Errorf("config: parse environment: %w", err)
	}
	return l, l.Validate()
}

// Validate reports whether the layout is self-consistent enough to build a
// gas.Layout from: a positive node count and an in-range local node.
func (l Layout) Validate() error {
	if l.NodeCount <= 0 {
		return fmt.Errorf("config: node count must be positive, got %d", l.NodeCount)
	}
	if l.LocalNode < 0 || l.LocalNode >= l.NodeCount {
		return fmt.Errorf("config: local node %d out of range [0,%d)", l.LocalNode, l.NodeCount)
	}
	if l.BytesPerNode == 0 {
		return fmt.Errorf("config: bytes per node must be positive")
	}
	return nil
}
