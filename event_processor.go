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
	goerrors "errors"
	"sync/atomic"

	"github.com/gring-io/gring/pkg/errors"
	"github.com/gring-io/gring/pkg/logging"
)

// BatchEventProcessor drives an EventHandler from a SequenceBarrier,
// consuming every available event in order and advancing its own Sequence,
// which upstream producers (and downstream processors) gate on.
//
// The processor owns no goroutine; Run is called by whoever does, typically
// the disruptor's worker pool.
type BatchEventProcessor[E any] struct {
	ring     *RingBuffer[E]
	barrier  *SequenceBarrier
	handler  EventHandler[E]
	sequence *Sequence
	logger   logging.Logger
	running  int32
}

// NewBatchEventProcessor instantiates a processor reading ring through
// barrier and feeding handler.
func NewBatchEventProcessor[E any](ring *RingBuffer[E], barrier *SequenceBarrier, handler EventHandler[E]) *BatchEventProcessor[E] {
	return &BatchEventProcessor[E]{
		ring:     ring,
		barrier:  barrier,
		handler:  handler,
		sequence: NewSequence(InitialSequenceValue),
		logger:   logging.GetDefaultLogger(),
	}
}

// Sequence returns the processor's progress counter, to be registered as a
// gating sequence and depended on by downstream barriers.
func (p *BatchEventProcessor[E]) Sequence() *Sequence {
	return p.sequence
}

// IsRunning reports whether the processor loop is active.
func (p *BatchEventProcessor[E]) IsRunning() bool {
	return atomic.LoadInt32(&p.running) == 1
}

// Halt asks the processor to stop after the batch it is currently handling
// and wakes it if it is parked in the barrier.
func (p *BatchEventProcessor[E]) Halt() {
	atomic.StoreInt32(&p.running, 0)
	p.barrier.Alert()
}

// Run executes the processing loop until Halt. It fails with
// errors.ErrEventProcessorRunning if the loop is already active.
//
// Handler errors are logged and the sequence still advances; a failed event
// must not wedge every event behind it.
func (p *BatchEventProcessor[E]) Run() error {
	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		return errors.ErrEventProcessorRunning
	}
	defer atomic.StoreInt32(&p.running, 0)

	p.barrier.ClearAlert()

	nextSequence := p.sequence.Get() + 1
	for {
		availableSequence, err := p.barrier.WaitFor(nextSequence)
		switch {
		case err == nil:
		case goerrors.Is(err, errors.ErrAlerted):
			if atomic.LoadInt32(&p.running) == 0 {
				return nil
			}
			p.barrier.ClearAlert()
			continue
		case goerrors.Is(err, errors.ErrTimeout):
			continue
		default:
			return err
		}

		for ; nextSequence <= availableSequence; nextSequence++ {
			event := p.ring.Get(nextSequence)
			if herr := p.handler(event, nextSequence, nextSequence == availableSequence); herr != nil {
				p.logger.Errorf("event handler failed on sequence %d: %v", nextSequence, herr)
			}
		}
		p.sequence.Set(availableSequence)
	}
}
