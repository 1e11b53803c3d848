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
	"runtime"

	"github.com/gring-io/gring/pkg/errors"
)

// SingleProducerSequencer coordinates a ring with exactly one publishing
// goroutine. nextValue and cachedValue are only ever touched by that
// goroutine, so claims run without a single atomic RMW; the cursor is the one
// shared word. It moves on publish, and a claim that has to re-read the gating
// sequences first stores nextValue into it.
//
// Using it from more than one goroutine concurrently corrupts the ring.
type SingleProducerSequencer struct {
	baseSequencer

	_ [cacheLinePadding]int64
	// nextValue is the highest sequence claimed so far, cachedValue the last
	// observed minimum of the gating sequences.
	nextValue   int64
	cachedValue int64
	_           [cacheLinePadding]int64
}

// NewSingleProducerSequencer instantiates a SingleProducerSequencer over a
// ring of bufferSize slots. bufferSize must be a power of two.
func NewSingleProducerSequencer(bufferSize int64, waitStrategy WaitStrategy) *SingleProducerSequencer {
	return &SingleProducerSequencer{
		baseSequencer: newBaseSequencer(bufferSize, waitStrategy),
		nextValue:     InitialSequenceValue,
		cachedValue:   InitialSequenceValue,
	}
}

// Next claims the next sequence, blocking while the ring is full.
func (s *SingleProducerSequencer) Next() int64 {
	return s.NextN(1)
}

// NextN claims the next n sequences and returns the highest, blocking while
// the ring is full.
func (s *SingleProducerSequencer) NextN(n int64) int64 {
	if n < 1 || n > s.bufferSize {
		panic("gring: claim batch must be in [1, bufferSize]")
	}

	nextValue := s.nextValue
	nextSequence := nextValue + n
	wrapPoint := nextSequence - s.bufferSize
	cachedGatingSequence := s.cachedValue

	if wrapPoint > cachedGatingSequence || cachedGatingSequence > nextValue {
		// Expose the claim intent before reading the gating sequences, so the
		// gating read cannot be satisfied by a stale view.
		s.cursor.Set(nextValue)

		minSequence := s.gating.minimum(nextValue)
		for wrapPoint > minSequence {
			runtime.Gosched()
			minSequence = s.gating.minimum(nextValue)
		}
		s.cachedValue = minSequence
	}

	s.nextValue = nextSequence
	return nextSequence
}

// TryNext claims the next sequence without blocking.
func (s *SingleProducerSequencer) TryNext() (int64, error) {
	return s.TryNextN(1)
}

// TryNextN claims the next n sequences without blocking and returns the
// highest, failing with errors.ErrInsufficientCapacity when the ring cannot
// fit n more events.
func (s *SingleProducerSequencer) TryNextN(n int64) (int64, error) {
	if n < 1 || n > s.bufferSize {
		panic("gring: claim batch must be in [1, bufferSize]")
	}

	if !s.HasAvailableCapacity(n) {
		return InitialSequenceValue, errors.ErrInsufficientCapacity
	}

	s.nextValue += n
	return s.nextValue, nil
}

// HasAvailableCapacity reports whether the ring can fit requiredCapacity more
// claims.
func (s *SingleProducerSequencer) HasAvailableCapacity(requiredCapacity int64) bool {
	nextValue := s.nextValue
	wrapPoint := (nextValue + requiredCapacity) - s.bufferSize
	cachedGatingSequence := s.cachedValue

	if wrapPoint > cachedGatingSequence || cachedGatingSequence > nextValue {
		s.cursor.Set(nextValue)

		minSequence := s.gating.minimum(nextValue)
		s.cachedValue = minSequence
		if wrapPoint > minSequence {
			return false
		}
	}
	return true
}

// RemainingCapacity returns the number of slots that can still be claimed.
func (s *SingleProducerSequencer) RemainingCapacity() int64 {
	nextValue := s.nextValue
	consumed := s.gating.minimum(nextValue)
	return s.bufferSize - (nextValue - consumed)
}

// Claim forces the claimed position to a specific sequence.
// Initialization-time only.
func (s *SingleProducerSequencer) Claim(sequence int64) {
	s.nextValue = sequence
}

// Publish makes the given sequence visible to consumers and wakes any that
// are parked. With a single producer the cursor itself carries availability.
func (s *SingleProducerSequencer) Publish(sequence int64) {
	s.cursor.Set(sequence)
	s.waitStrategy.SignalAllWhenBlocking()
}

// PublishRange publishes every sequence in [lo, hi]; publishing hi covers the
// whole range since the cursor is cumulative.
func (s *SingleProducerSequencer) PublishRange(_, hi int64) {
	s.Publish(hi)
}

// IsAvailable reports whether the given sequence has been published.
func (s *SingleProducerSequencer) IsAvailable(sequence int64) bool {
	return sequence <= s.cursor.Get()
}

// HighestPublishedSequence returns availableSequence as-is: one publisher
// publishes in order, so everything at or below the cursor is contiguous.
func (s *SingleProducerSequencer) HighestPublishedSequence(_, availableSequence int64) int64 {
	return availableSequence
}

// NewBarrier creates a barrier over this sequencer.
func (s *SingleProducerSequencer) NewBarrier(sequencesToTrack ...*Sequence) *SequenceBarrier {
	return newSequenceBarrier(s, s.waitStrategy, s.cursor, sequencesToTrack)
}
