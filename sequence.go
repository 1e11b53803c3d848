// Copyright (c) 2023 The Gring Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gring

import (
	"math"
	"strconv"
	"sync/atomic"
)

const (
	// InitialSequenceValue is the value every sequence starts from, one before
	// the first valid sequence, so a fresh ring has published nothing.
	InitialSequenceValue int64 = -1

	// cacheLinePadding is the number of int64 words laid out on each side of a
	// hot counter so that it occupies a cache line of its own.
	cacheLinePadding = 7
)

// Sequence is a monotonic 64-bit counter shared between producers and
// consumers. The counter is padded before and after so that two hot sequences
// living on different cores never share a cache line.
type Sequence struct {
	_     [cacheLinePadding]int64
	value int64
	_     [cacheLinePadding]int64
}

// NewSequence creates a Sequence with the given initial value.
func NewSequence(initial int64) *Sequence {
	return &Sequence{value: initial}
}

// Get returns the current value of the sequence.
func (s *Sequence) Get() int64 {
	return atomic.LoadInt64(&s.value)
}

// Set updates the sequence. Go's sync/atomic stores are sequentially
// consistent, which covers both the ordered store and the full-fence store
// the claim protocols rely on.
func (s *Sequence) Set(value int64) {
	atomic.StoreInt64(&s.value, value)
}

// CompareAndSet atomically replaces the value if it still equals expected.
func (s *Sequence) CompareAndSet(expected, value int64) bool {
	return atomic.CompareAndSwapInt64(&s.value, expected, value)
}

// IncrementAndGet atomically adds one and returns the new value.
func (s *Sequence) IncrementAndGet() int64 {
	return atomic.AddInt64(&s.value, 1)
}

// AddAndGet atomically adds n and returns the new value.
func (s *Sequence) AddAndGet(n int64) int64 {
	return atomic.AddInt64(&s.value, n)
}

func (s *Sequence) String() string {
	return strconv.FormatInt(s.Get(), 10)
}

// DependentSequence is the read-only view of progress a wait strategy or a
// barrier polls while idling. *Sequence implements it; so does the fixed
// group a barrier builds over several upstream sequences.
type DependentSequence interface {
	Get() int64
}

// fixedSequenceGroup presents several upstream sequences as one: its value is
// the minimum of the members. The member set is fixed at construction.
type fixedSequenceGroup struct {
	sequences []*Sequence
}

func (g *fixedSequenceGroup) Get() int64 {
	return minimumSequence(g.sequences, math.MaxInt64)
}

// minimumSequence returns the smaller of the given floor and the minimum
// value over sequences.
func minimumSequence(sequences []*Sequence, floor int64) int64 {
	minimum := floor
	for _, s := range sequences {
		if v := s.Get(); v < minimum {
			minimum = v
		}
	}
	return minimum
}

// gatingSequences is the copy-on-write set of consumer sequences a producer
// gates on. Reads on the claim hot path are a single atomic pointer load;
// add/remove build a new slice and swap it in.
type gatingSequences struct {
	sequences atomic.Pointer[[]*Sequence]
}

func (g *gatingSequences) load() []*Sequence {
	if p := g.sequences.Load(); p != nil {
		return *p
	}
	return nil
}

// minimum returns min(gating sequences, floor).
func (g *gatingSequences) minimum(floor int64) int64 {
	return minimumSequence(g.load(), floor)
}

// add registers the given sequences, first bumping each to the current cursor
// value so a newly registered consumer does not gate the producer at -1.
// Registration is atomic with respect to other add/remove calls but racy with
// in-flight claims, which is inherent to late registration.
func (g *gatingSequences) add(cursor func() int64, sequences ...*Sequence) {
	for {
		oldPtr := g.sequences.Load()
		var current []*Sequence
		if oldPtr != nil {
			current = *oldPtr
		}
		updated := make([]*Sequence, len(current), len(current)+len(sequences))
		copy(updated, current)
		cursorValue := cursor()
		for _, s := range sequences {
			s.Set(cursorValue)
			updated = append(updated, s)
		}
		if g.sequences.CompareAndSwap(oldPtr, &updated) {
			// Bump once more in case the cursor moved while swapping.
			cursorValue = cursor()
			for _, s := range sequences {
				s.Set(cursorValue)
			}
			return
		}
	}
}

// remove drops every occurrence of sequence and reports whether any was found.
func (g *gatingSequences) remove(sequence *Sequence) bool {
	for {
		oldPtr := g.sequences.Load()
		if oldPtr == nil {
			return false
		}
		current := *oldPtr
		updated := make([]*Sequence, 0, len(current))
		for _, s := range current {
			if s != sequence {
				updated = append(updated, s)
			}
		}
		if len(updated) == len(current) {
			return false
		}
		if g.sequences.CompareAndSwap(oldPtr, &updated) {
			return true
		}
	}
}
