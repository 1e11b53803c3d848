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
	"math/bits"
	"runtime"
	"sync/atomic"

	"github.com/gring-io/gring/pkg/errors"
)

// MultiProducerSequencer coordinates a ring shared by concurrent publishing
// goroutines. Ranges are claimed by CAS on the cursor, so the cursor tracks
// the highest claimed (not published) sequence. Because claims complete out of
// order, publication is recorded per slot in availableBuffer: slot i holds the
// wrap generation (sequence >> indexShift) of the sequence most recently
// published into it. A slot is available for sequence s exactly when its
// recorded generation equals s's, and barriers scan for the contiguous prefix.
type MultiProducerSequencer struct {
	baseSequencer

	gatingSequenceCache *Sequence
	availableBuffer     []int32
	indexMask           int64
	indexShift          uint
}

// NewMultiProducerSequencer instantiates a MultiProducerSequencer over a ring
// of bufferSize slots. bufferSize must be a power of two.
func NewMultiProducerSequencer(bufferSize int64, waitStrategy WaitStrategy) *MultiProducerSequencer {
	s := &MultiProducerSequencer{
		baseSequencer:       newBaseSequencer(bufferSize, waitStrategy),
		gatingSequenceCache: NewSequence(InitialSequenceValue),
		availableBuffer:     make([]int32, bufferSize),
		indexMask:           bufferSize - 1,
		indexShift:          uint(bits.TrailingZeros64(uint64(bufferSize))),
	}
	// -1 matches no real generation, so nothing reads as published before its
	// first publish, sequence 0 included.
	for i := range s.availableBuffer {
		s.availableBuffer[i] = -1
	}
	return s
}

// Next claims the next sequence, blocking while the ring is full.
func (s *MultiProducerSequencer) Next() int64 {
	return s.NextN(1)
}

// NextN claims the next n sequences and returns the highest, blocking while
// the ring is full.
func (s *MultiProducerSequencer) NextN(n int64) int64 {
	if n < 1 || n > s.bufferSize {
		panic("gring: claim batch must be in [1, bufferSize]")
	}

	for {
		current := s.cursor.Get()
		next := current + n
		wrapPoint := next - s.bufferSize
		cachedGatingSequence := s.gatingSequenceCache.Get()

		if wrapPoint > cachedGatingSequence || cachedGatingSequence > current {
			gatingSequence := s.gating.minimum(current)
			if wrapPoint > gatingSequence {
				// Full. Nudge parked consumers in case they are the ones we
				// are waiting on, then back off.
				s.waitStrategy.SignalAllWhenBlocking()
				runtime.Gosched()
				continue
			}
			s.gatingSequenceCache.Set(gatingSequence)
		} else if s.cursor.CompareAndSet(current, next) {
			return next
		}
	}
}

// TryNext claims the next sequence without blocking.
func (s *MultiProducerSequencer) TryNext() (int64, error) {
	return s.TryNextN(1)
}

// TryNextN claims the next n sequences without blocking and returns the
// highest, failing with errors.ErrInsufficientCapacity when the ring cannot
// fit n more events.
func (s *MultiProducerSequencer) TryNextN(n int64) (int64, error) {
	if n < 1 || n > s.bufferSize {
		panic("gring: claim batch must be in [1, bufferSize]")
	}

	for {
		current := s.cursor.Get()
		next := current + n
		if !s.hasAvailableCapacity(n, current) {
			return InitialSequenceValue, errors.ErrInsufficientCapacity
		}
		if s.cursor.CompareAndSet(current, next) {
			return next, nil
		}
	}
}

// HasAvailableCapacity reports whether the ring can fit requiredCapacity more
// claims.
func (s *MultiProducerSequencer) HasAvailableCapacity(requiredCapacity int64) bool {
	return s.hasAvailableCapacity(requiredCapacity, s.cursor.Get())
}

func (s *MultiProducerSequencer) hasAvailableCapacity(requiredCapacity, cursorValue int64) bool {
	wrapPoint := (cursorValue + requiredCapacity) - s.bufferSize
	cachedGatingSequence := s.gatingSequenceCache.Get()

	if wrapPoint > cachedGatingSequence || cachedGatingSequence > cursorValue {
		minSequence := s.gating.minimum(cursorValue)
		s.gatingSequenceCache.Set(minSequence)
		if wrapPoint > minSequence {
			return false
		}
	}
	return true
}

// RemainingCapacity returns the number of slots that can still be claimed.
func (s *MultiProducerSequencer) RemainingCapacity() int64 {
	produced := s.cursor.Get()
	consumed := s.gating.minimum(produced)
	return s.bufferSize - (produced - consumed)
}

// Claim forces the cursor to a specific sequence. Initialization-time only.
func (s *MultiProducerSequencer) Claim(sequence int64) {
	s.cursor.Set(sequence)
}

// Publish marks the given sequence as published and wakes blocked consumers.
func (s *MultiProducerSequencer) Publish(sequence int64) {
	s.setAvailable(sequence)
	s.waitStrategy.SignalAllWhenBlocking()
}

// PublishRange marks every sequence in [lo, hi] as published. Slots are
// marked from hi down to lo so a reader scanning the prefix picks up the
// whole batch at once instead of splitting it.
func (s *MultiProducerSequencer) PublishRange(lo, hi int64) {
	for sequence := hi; sequence >= lo; sequence-- {
		s.setAvailable(sequence)
	}
	s.waitStrategy.SignalAllWhenBlocking()
}

func (s *MultiProducerSequencer) setAvailable(sequence int64) {
	index := sequence & s.indexMask
	flag := int32(sequence >> s.indexShift)
	atomic.StoreInt32(&s.availableBuffer[index], flag)
}

// IsAvailable reports whether the given sequence has been published.
func (s *MultiProducerSequencer) IsAvailable(sequence int64) bool {
	index := sequence & s.indexMask
	flag := int32(sequence >> s.indexShift)
	return atomic.LoadInt32(&s.availableBuffer[index]) == flag
}

// HighestPublishedSequence scans upward from nextSequence and returns the
// last sequence before the first gap, so consumers only ever observe a fully
// published contiguous prefix.
func (s *MultiProducerSequencer) HighestPublishedSequence(nextSequence, availableSequence int64) int64 {
	for sequence := nextSequence; sequence <= availableSequence; sequence++ {
		if !s.IsAvailable(sequence) {
			return sequence - 1
		}
	}
	return availableSequence
}

// NewBarrier creates a barrier over this sequencer.
func (s *MultiProducerSequencer) NewBarrier(sequencesToTrack ...*Sequence) *SequenceBarrier {
	return newSequenceBarrier(s, s.waitStrategy, s.cursor, sequencesToTrack)
}
