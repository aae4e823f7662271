/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package commercials selects interstitial spots for the breaks between
// shows.
package commercials

import (
	"math/rand"

	"github.com/friendsincode/grimnir_tv/internal/library"
)

// Order names a spot selection policy.
type Order string

const (
	// OrderSequential cycles through the pool in index order.
	OrderSequential Order = "sequential"
	// OrderShuffle plays a seeded random permutation per cycle, never
	// repeating a spot back to back across the cycle seam.
	OrderShuffle Order = "shuffle"
)

// Valid reports whether o names a known policy.
func (o Order) Valid() bool { return o == OrderSequential || o == OrderShuffle }

// Injector emits spots from one commercial pool. It is owned by the
// schedule engine's loop and is not safe for concurrent use.
type Injector struct {
	order Order
	spots []library.Asset
	rng   *rand.Rand

	next int   // cursor into spots (sequential) or perm (shuffle)
	perm []int // current shuffle cycle
	last int   // index of the most recently emitted spot
}

// New builds an injector over a pool. The seed makes shuffle order
// reproducible; sequential order ignores it.
func New(pool library.Pool, order Order, seed int64) *Injector {
	return &Injector{
		order: order,
		spots: pool.Spots,
		rng:   rand.New(rand.NewSource(seed)),
		last:  -1,
	}
}

// Next returns the next spot, or false when the pool is empty.
func (in *Injector) Next() (library.Asset, bool) {
	if len(in.spots) == 0 {
		return library.Asset{}, false
	}
	if in.order == OrderSequential {
		spot := in.spots[in.next]
		in.next = (in.next + 1) % len(in.spots)
		return spot, true
	}

	if in.next >= len(in.perm) {
		in.reshuffle()
	}
	idx := in.perm[in.next]
	in.next++
	in.last = idx
	return in.spots[idx], true
}

func (in *Injector) reshuffle() {
	in.perm = in.rng.Perm(len(in.spots))
	// keep the previous cycle's final spot from playing twice in a row
	if len(in.perm) > 1 && in.perm[0] == in.last {
		in.perm[0], in.perm[len(in.perm)-1] = in.perm[len(in.perm)-1], in.perm[0]
	}
	in.next = 0
}
