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

// Sequencer is the producer-side coordinator of a ring buffer: it claims
// sequence ranges, gates claims on the slowest consumer, publishes claimed
// sequences and answers availability queries for barriers.
//
// Implemented by SingleProducerSequencer and MultiProducerSequencer.
type Sequencer interface {
	// Next claims the next sequence, blocking while the ring is full.
	Next() int64
	// NextN claims the next n sequences and returns the highest, blocking
	// while the ring is full. Panics if n is not in [1, bufferSize].
	NextN(n int64) int64
	// TryNext claims the next sequence without blocking, failing with
	// errors.ErrInsufficientCapacity when the ring is full.
	TryNext() (int64, error)
	// TryNextN claims the next n sequences without blocking and returns the
	// highest, failing with errors.ErrInsufficientCapacity when the ring
	// cannot fit n more events. Panics if n is not in [1, bufferSize].
	TryNextN(n int64) (int64, error)
	// Publish marks the given sequence as published and wakes blocked
	// consumers.
	Publish(sequence int64)
	// PublishRange marks every sequence in [lo, hi] as published and wakes
	// blocked consumers once.
	PublishRange(lo, hi int64)
	// IsAvailable reports whether the given sequence has been published and
	// may be read. It says nothing about preceding sequences.
	IsAvailable(sequence int64) bool
	// HighestPublishedSequence returns the highest sequence h in
	// [nextSequence, availableSequence] such that every sequence in
	// [nextSequence, h] is published, or nextSequence-1 when nextSequence
	// itself is unpublished. This is what keeps consumers on a contiguous
	// prefix under out-of-order multi-producer publication. The
	// single-producer variant returns availableSequence without checking it
	// against the cursor.
	HighestPublishedSequence(nextSequence, availableSequence int64) int64
	// HasAvailableCapacity reports whether the ring can fit requiredCapacity
	// more claims without overrunning the slowest consumer.
	HasAvailableCapacity(requiredCapacity int64) bool
	// RemainingCapacity returns the number of slots that can still be claimed.
	RemainingCapacity() int64
	// MinimumSequence returns the minimum over the gating sequences and the
	// cursor.
	MinimumSequence() int64
	// AddGatingSequences registers consumer sequences the producer must not
	// overrun; the set snapshot is replaced atomically.
	AddGatingSequences(gatingSequences ...*Sequence)
	// RemoveGatingSequence removes a sequence from the gating set, reporting
	// whether it was present.
	RemoveGatingSequence(sequence *Sequence) bool
	// Claim forces the claimed position to a specific sequence: the cursor
	// in the multi-producer variant, the next-claim counter (not the cursor)
	// in the single-producer variant. Initialization-time only, racy once
	// producers or consumers are running.
	Claim(sequence int64)
	// NewBarrier creates a barrier over this sequencer, gated on the given
	// upstream sequences (on the cursor alone when none are given).
	NewBarrier(sequencesToTrack ...*Sequence) *SequenceBarrier
	// Cursor returns the current cursor value.
	Cursor() int64
	// BufferSize returns the ring capacity.
	BufferSize() int64
}

// baseSequencer carries the state and bookkeeping both sequencer variants
// share.
type baseSequencer struct {
	bufferSize   int64
	waitStrategy WaitStrategy
	cursor       *Sequence
	gating       gatingSequences
}

func newBaseSequencer(bufferSize int64, waitStrategy WaitStrategy) baseSequencer {
	return baseSequencer{
		bufferSize:   bufferSize,
		waitStrategy: waitStrategy,
		cursor:       NewSequence(InitialSequenceValue),
	}
}

// Cursor returns the current cursor value.
func (s *baseSequencer) Cursor() int64 {
	return s.cursor.Get()
}

// BufferSize returns the ring capacity.
func (s *baseSequencer) BufferSize() int64 {
	return s.bufferSize
}

// AddGatingSequences registers consumer sequences the producer must not
// overrun.
func (s *baseSequencer) AddGatingSequences(gatingSequences ...*Sequence) {
	s.gating.add(s.cursor.Get, gatingSequences...)
}

// RemoveGatingSequence removes a sequence from the gating set.
func (s *baseSequencer) RemoveGatingSequence(sequence *Sequence) bool {
	return s.gating.remove(sequence)
}

// MinimumSequence returns the minimum over the gating sequences and the
// cursor.
func (s *baseSequencer) MinimumSequence() int64 {
	return s.gating.minimum(s.cursor.Get())
}
