// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simt

import (
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
)

// Arena is the block-scoped shared memory of one block execution: a fixed-capacity region of float32 words,
// allocated fresh (zeroed) for every block, and never shared across blocks or launches.
//
// Allocations are named after their call site: every group of the block asking for the same site gets the
// same backing slice, the equivalent of a `static __shared__` array.
type Arena struct {
	mu     sync.Mutex
	words  []float32
	used   int
	allocs map[string][]float32
}

func newArena(capacityBytes int) *Arena {
	return &Arena{
		words:  make([]float32, capacityBytes/4),
		allocs: make(map[string][]float32),
	}
}

// reset makes the arena ready for another block, as if freshly allocated.
func (a *Arena) reset() {
	clear(a.words[:a.used])
	clear(a.allocs)
	a.used = 0
}

// Capacity in bytes.
func (a *Arena) Capacity() int {
	return len(a.words) * 4
}

// Used returns the number of bytes allocated so far.
func (a *Arena) Used() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used * 4
}

// Float32s returns the block's shared slice of n float32 for the given call site.
//
// The first group to ask for a site allocates it, the others get the same slice. It panics (the launch then
// fails with the error) if the arena capacity is exhausted, or if the site was already allocated with a
// different size.
func (a *Arena) Float32s(site string, n int) []float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, found := a.allocs[site]; found {
		if len(s) != n {
			exceptions.Panicf("shared memory site %q allocated with %d float32, requested again with %d", site, len(s), n)
		}
		return s
	}
	if n < 0 || a.used+n > len(a.words) {
		exceptions.Panicf("shared memory exhausted: site %q needs %s, %s of %s already in use",
			site, humanize.IBytes(uint64(max(n, 0))*4), humanize.IBytes(uint64(a.used)*4),
			humanize.IBytes(uint64(len(a.words))*4))
	}
	s := a.words[a.used : a.used+n : a.used+n]
	a.used += n
	a.allocs[site] = s
	return s
}
