// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xsync

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrBarrierAborted is returned (wrapped) by Barrier.Wait once the barrier has been aborted.
var ErrBarrierAborted = errors.New("barrier aborted")

// Barrier is a cyclic synchronization point for a fixed number of parties: each call to Wait
// blocks until all parties have called Wait for the current generation, and then the barrier
// resets itself for the next generation.
//
// It is the emulation of a block-wide __syncthreads: every group of a block must reach it
// before any group proceeds.
//
// A barrier can be aborted (see Abort), in which case all current and future waiters return
// an error instead of blocking forever.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	parties    int
	arrived    int
	generation uint64
	abortErr   error
}

// NewBarrier creates a Barrier for the given number of parties. It panics if parties < 1.
func NewBarrier(parties int) *Barrier {
	if parties < 1 {
		panic(errors.Errorf("NewBarrier: parties must be >= 1, got %d", parties))
	}
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Parties returns the number of parties the barrier waits for.
func (b *Barrier) Parties() int {
	return b.parties
}

// Wait blocks until all parties of the current generation have arrived.
//
// It returns an error wrapping ErrBarrierAborted if the barrier was aborted before or
// while waiting.
func (b *Barrier) Wait() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.abortErr != nil {
		return b.abortErr
	}
	generation := b.generation
	b.arrived++
	if b.arrived == b.parties {
		b.arrived = 0
		b.generation++
		b.cond.Broadcast()
		return nil
	}
	for generation == b.generation && b.abortErr == nil {
		b.cond.Wait()
	}
	if generation == b.generation {
		// Woken up by Abort, not by the last party.
		return b.abortErr
	}
	return nil
}

// Abort releases all waiters, and makes every future call to Wait return an error.
// Only the first cause is kept; later calls are no-ops.
func (b *Barrier) Abort(cause error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.abortErr != nil {
		return
	}
	if cause == nil {
		b.abortErr = ErrBarrierAborted
	} else {
		b.abortErr = errors.WithMessagef(ErrBarrierAborted, "%v", cause)
	}
	b.cond.Broadcast()
}

// IsAborted returns whether Abort was called.
func (b *Barrier) IsAborted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.abortErr != nil
}
