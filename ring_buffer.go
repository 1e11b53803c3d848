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
	"github.com/gring-io/gring/pkg/math"
)

// RingBuffer is a fixed array of pre-allocated event slots addressed by
// sequence modulo size, with all claim/publish coordination delegated to a
// Sequencer. Slots are created once by the event factory and mutated in
// place for the life of the ring.
type RingBuffer[E any] struct {
	indexMask  int64
	entries    []E
	bufferSize int64
	sequencer  Sequencer
}

// NewRingBuffer instantiates a ring of bufferSize pre-allocated slots.
// bufferSize must be a positive power of two.
func NewRingBuffer[E any](factory EventFactory[E], bufferSize int64, opts ...Option) (*RingBuffer[E], error) {
	options := loadOptions(opts...)

	if !math.IsPowerOfTwo(int(bufferSize)) {
		return nil, errors.ErrInvalidBufferSize
	}

	var sequencer Sequencer
	switch options.ProducerType {
	case MultiProducer:
		sequencer = NewMultiProducerSequencer(bufferSize, options.WaitStrategy)
	default:
		sequencer = NewSingleProducerSequencer(bufferSize, options.WaitStrategy)
	}

	rb := &RingBuffer[E]{
		indexMask:  bufferSize - 1,
		entries:    make([]E, bufferSize),
		bufferSize: bufferSize,
		sequencer:  sequencer,
	}
	for i := range rb.entries {
		rb.entries[i] = factory()
	}
	return rb, nil
}

// Get returns the pre-allocated slot for the given sequence. The caller must
// hold the claim for a write, or have ratified availability for a read;
// sequence s and s+bufferSize alias the same slot.
func (rb *RingBuffer[E]) Get(sequence int64) *E {
	return &rb.entries[sequence&rb.indexMask]
}

// GetPublished busy-waits until the given sequence is published and returns
// its slot. Intended for occasional out-of-band reads; consumers normally go
// through a barrier.
func (rb *RingBuffer[E]) GetPublished(sequence int64) *E {
	for !rb.sequencer.IsAvailable(sequence) {
		runtime.Gosched()
	}
	return rb.Get(sequence)
}

// IsPublished reports whether the given sequence has been published.
func (rb *RingBuffer[E]) IsPublished(sequence int64) bool {
	return rb.sequencer.IsAvailable(sequence)
}

// Next claims the next sequence for writing, blocking while the ring is full.
// The claim must be completed with Publish.
func (rb *RingBuffer[E]) Next() int64 {
	return rb.sequencer.Next()
}

// NextN claims the next n sequences and returns the highest, blocking while
// the ring is full.
func (rb *RingBuffer[E]) NextN(n int64) int64 {
	return rb.sequencer.NextN(n)
}

// TryNext claims the next sequence without blocking, failing with
// errors.ErrInsufficientCapacity when the ring is full.
func (rb *RingBuffer[E]) TryNext() (int64, error) {
	return rb.sequencer.TryNext()
}

// TryNextN claims the next n sequences without blocking and returns the
// highest.
func (rb *RingBuffer[E]) TryNextN(n int64) (int64, error) {
	return rb.sequencer.TryNextN(n)
}

// Publish makes the given sequence visible to consumers.
func (rb *RingBuffer[E]) Publish(sequence int64) {
	rb.sequencer.Publish(sequence)
}

// PublishRange makes every sequence in [lo, hi] visible to consumers.
func (rb *RingBuffer[E]) PublishRange(lo, hi int64) {
	rb.sequencer.PublishRange(lo, hi)
}

// PublishEvent claims the next slot, lets translator fill it and publishes
// it. The slot is published on every path out of the translator, errors and
// panics included: a half-written published slot is recoverable downstream, a
// permanently claimed-but-unpublished slot stalls the ring forever.
func (rb *RingBuffer[E]) PublishEvent(translator EventTranslator[E]) error {
	sequence := rb.sequencer.Next()
	return rb.translateAndPublish(translator, sequence)
}

// TryPublishEvent is PublishEvent with a non-blocking claim, failing with
// errors.ErrInsufficientCapacity when the ring is full.
func (rb *RingBuffer[E]) TryPublishEvent(translator EventTranslator[E]) error {
	sequence, err := rb.sequencer.TryNext()
	if err != nil {
		return err
	}
	return rb.translateAndPublish(translator, sequence)
}

func (rb *RingBuffer[E]) translateAndPublish(translator EventTranslator[E], sequence int64) error {
	defer rb.sequencer.Publish(sequence)
	return translator(rb.Get(sequence), sequence)
}

// PublishEventVararg is PublishEvent for translators taking caller arguments.
func (rb *RingBuffer[E]) PublishEventVararg(translator EventTranslatorVararg[E], args ...interface{}) error {
	sequence := rb.sequencer.Next()
	defer rb.sequencer.Publish(sequence)
	return translator(rb.Get(sequence), sequence, args...)
}

// TryPublishEventVararg is PublishEventVararg with a non-blocking claim.
func (rb *RingBuffer[E]) TryPublishEventVararg(translator EventTranslatorVararg[E], args ...interface{}) error {
	sequence, err := rb.sequencer.TryNext()
	if err != nil {
		return err
	}
	defer rb.sequencer.Publish(sequence)
	return translator(rb.Get(sequence), sequence, args...)
}

// PublishEvents claims len(translators) contiguous slots with one claim,
// fills them and commits them with one range publish. Translation stops at
// the first error but the whole range is still published, so consumers never
// see a gap; slots past a failed translation carry their previous contents.
func (rb *RingBuffer[E]) PublishEvents(translators []EventTranslator[E]) error {
	n := int64(len(translators))
	if n == 0 {
		return nil
	}
	hi := rb.sequencer.NextN(n)
	return rb.translateAndPublishBatch(translators, hi-n+1, hi)
}

// TryPublishEvents is PublishEvents with a non-blocking claim. A batch larger
// than the ring fails immediately without claiming.
func (rb *RingBuffer[E]) TryPublishEvents(translators []EventTranslator[E]) error {
	n := int64(len(translators))
	if n == 0 {
		return nil
	}
	if n > rb.bufferSize {
		return errors.ErrInsufficientCapacity
	}
	hi, err := rb.sequencer.TryNextN(n)
	if err != nil {
		return err
	}
	return rb.translateAndPublishBatch(translators, hi-n+1, hi)
}

func (rb *RingBuffer[E]) translateAndPublishBatch(translators []EventTranslator[E], lo, hi int64) error {
	defer rb.sequencer.PublishRange(lo, hi)
	for i, sequence := 0, lo; sequence <= hi; i, sequence = i+1, sequence+1 {
		if err := translators[i](rb.Get(sequence), sequence); err != nil {
			return err
		}
	}
	return nil
}

// AddGatingSequences registers consumer sequences the producers must not
// overrun.
func (rb *RingBuffer[E]) AddGatingSequences(gatingSequences ...*Sequence) {
	rb.sequencer.AddGatingSequences(gatingSequences...)
}

// RemoveGatingSequence removes a sequence from the gating set, reporting
// whether it was present.
func (rb *RingBuffer[E]) RemoveGatingSequence(sequence *Sequence) bool {
	return rb.sequencer.RemoveGatingSequence(sequence)
}

// NewBarrier creates a barrier gated on the given upstream sequences, or on
// the cursor alone when none are given.
func (rb *RingBuffer[E]) NewBarrier(sequencesToTrack ...*Sequence) *SequenceBarrier {
	return rb.sequencer.NewBarrier(sequencesToTrack...)
}

// Cursor returns the sequencer's cursor value.
func (rb *RingBuffer[E]) Cursor() int64 {
	return rb.sequencer.Cursor()
}

// BufferSize returns the number of slots in the ring.
func (rb *RingBuffer[E]) BufferSize() int64 {
	return rb.bufferSize
}

// HasAvailableCapacity reports whether the ring can fit requiredCapacity more
// claims.
func (rb *RingBuffer[E]) HasAvailableCapacity(requiredCapacity int64) bool {
	return rb.sequencer.HasAvailableCapacity(requiredCapacity)
}

// RemainingCapacity returns the number of slots that can still be claimed.
func (rb *RingBuffer[E]) RemainingCapacity() int64 {
	return rb.sequencer.RemainingCapacity()
}

// MinimumGatingSequence returns the minimum over the gating sequences and the
// cursor.
func (rb *RingBuffer[E]) MinimumGatingSequence() int64 {
	return rb.sequencer.MinimumSequence()
}

// ResetTo moves the cursor to the given sequence and publishes it. Racy by
// design: only valid before any gating sequence is registered and any
// producer or consumer runs.
func (rb *RingBuffer[E]) ResetTo(sequence int64) {
	rb.sequencer.Claim(sequence)
	rb.sequencer.Publish(sequence)
}

// ClaimAndGetPreallocated forces a claim of the given sequence and returns
// its slot. Racy by design, initialization-time only.
func (rb *RingBuffer[E]) ClaimAndGetPreallocated(sequence int64) *E {
	rb.sequencer.Claim(sequence)
	return rb.Get(sequence)
}

// PublishEventOneArg claims the next slot, lets translator fill it with arg
// and publishes it on every exit path. A package function rather than a
// method so the argument keeps its own type parameter.
func PublishEventOneArg[E, A any](rb *RingBuffer[E], translator EventTranslatorOneArg[E, A], arg A) error {
	sequence := rb.sequencer.Next()
	defer rb.sequencer.Publish(sequence)
	return translator(rb.Get(sequence), sequence, arg)
}

// TryPublishEventOneArg is PublishEventOneArg with a non-blocking claim.
func TryPublishEventOneArg[E, A any](rb *RingBuffer[E], translator EventTranslatorOneArg[E, A], arg A) error {
	sequence, err := rb.sequencer.TryNext()
	if err != nil {
		return err
	}
	defer rb.sequencer.Publish(sequence)
	return translator(rb.Get(sequence), sequence, arg)
}

// PublishEventTwoArg claims the next slot, lets translator fill it with two
// arguments and publishes it on every exit path.
func PublishEventTwoArg[E, A, B any](rb *RingBuffer[E], translator EventTranslatorTwoArg[E, A, B], arg0 A, arg1 B) error {
	sequence := rb.sequencer.Next()
	defer rb.sequencer.Publish(sequence)
	return translator(rb.Get(sequence), sequence, arg0, arg1)
}

// TryPublishEventTwoArg is PublishEventTwoArg with a non-blocking claim.
func TryPublishEventTwoArg[E, A, B any](rb *RingBuffer[E], translator EventTranslatorTwoArg[E, A, B], arg0 A, arg1 B) error {
	sequence, err := rb.sequencer.TryNext()
	if err != nil {
		return err
	}
	defer rb.sequencer.Publish(sequence)
	return translator(rb.Get(sequence), sequence, arg0, arg1)
}

// PublishEventThreeArg claims the next slot, lets translator fill it with
// three arguments and publishes it on every exit path.
func PublishEventThreeArg[E, A, B, C any](rb *RingBuffer[E], translator EventTranslatorThreeArg[E, A, B, C], arg0 A, arg1 B, arg2 C) error {
	sequence := rb.sequencer.Next()
	defer rb.sequencer.Publish(sequence)
	return translator(rb.Get(sequence), sequence, arg0, arg1, arg2)
}

// TryPublishEventThreeArg is PublishEventThreeArg with a non-blocking claim.
func TryPublishEventThreeArg[E, A, B, C any](rb *RingBuffer[E], translator EventTranslatorThreeArg[E, A, B, C], arg0 A, arg1 B, arg2 C) error {
	sequence, err := rb.sequencer.TryNext()
	if err != nil {
		return err
	}
	defer rb.sequencer.Publish(sequence)
	return translator(rb.Get(sequence), sequence, arg0, arg1, arg2)
}

// PublishEventsOneArg publishes one event per element of args through a
// single translator, claiming the whole batch at once and committing it with
// one range publish.
func PublishEventsOneArg[E, A any](rb *RingBuffer[E], translator EventTranslatorOneArg[E, A], args []A) error {
	n := int64(len(args))
	if n == 0 {
		return nil
	}
	hi := rb.sequencer.NextN(n)
	return translateAndPublishBatchOneArg(rb, translator, args, hi-n+1, hi)
}

// TryPublishEventsOneArg is PublishEventsOneArg with a non-blocking claim. A
// batch larger than the ring fails immediately without claiming.
func TryPublishEventsOneArg[E, A any](rb *RingBuffer[E], translator EventTranslatorOneArg[E, A], args []A) error {
	n := int64(len(args))
	if n == 0 {
		return nil
	}
	if n > rb.bufferSize {
		return errors.ErrInsufficientCapacity
	}
	hi, err := rb.sequencer.TryNextN(n)
	if err != nil {
		return err
	}
	return translateAndPublishBatchOneArg(rb, translator, args, hi-n+1, hi)
}

func translateAndPublishBatchOneArg[E, A any](rb *RingBuffer[E], translator EventTranslatorOneArg[E, A], args []A, lo, hi int64) error {
	defer rb.sequencer.PublishRange(lo, hi)
	for i, sequence := 0, lo; sequence <= hi; i, sequence = i+1, sequence+1 {
		if err := translator(rb.Get(sequence), sequence, args[i]); err != nil {
			return err
		}
	}
	return nil
}
