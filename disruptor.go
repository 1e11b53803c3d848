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
	"sync/atomic"
	"time"

	"github.com/gring-io/gring/pkg/errors"
	"github.com/gring-io/gring/pkg/pool/goroutine"
)

// Disruptor wires a ring buffer to a graph of event processors and runs them
// on a worker pool. Handlers registered with HandleEventsWith consume every
// event directly from the producers; chaining with Then builds downstream
// stages whose barriers track the upstream processors' sequences, so a stage
// never sees an event before every stage ahead of it is done with it.
type Disruptor[E any] struct {
	ring       *RingBuffer[E]
	opts       *Options
	pool       *goroutine.Pool
	ownsPool   bool
	processors []*BatchEventProcessor[E]
	started    int32
}

// EventHandlerGroup names the tail of a processor chain; Then hangs further
// stages off it.
type EventHandlerGroup[E any] struct {
	d         *Disruptor[E]
	sequences []*Sequence
}

// NewDisruptor instantiates a disruptor over a fresh ring of bufferSize
// pre-allocated slots.
func NewDisruptor[E any](factory EventFactory[E], bufferSize int64, opts ...Option) (*Disruptor[E], error) {
	options := loadOptions(opts...)
	ring, err := NewRingBuffer[E](factory, bufferSize, WithOptions(*options))
	if err != nil {
		return nil, err
	}
	return &Disruptor[E]{ring: ring, opts: options}, nil
}

// RingBuffer returns the underlying ring, for direct claim/publish access.
func (d *Disruptor[E]) RingBuffer() *RingBuffer[E] {
	return d.ring
}

// HandleEventsWith registers one processor per handler, each consuming every
// event straight from the producers. Returns the group to chain dependent
// stages onto.
func (d *Disruptor[E]) HandleEventsWith(handlers ...EventHandler[E]) *EventHandlerGroup[E] {
	return d.createProcessors(nil, handlers)
}

// Then registers one processor per handler gated on every processor of the
// receiving group having handled the event first.
func (g *EventHandlerGroup[E]) Then(handlers ...EventHandler[E]) *EventHandlerGroup[E] {
	return g.d.createProcessors(g.sequences, handlers)
}

func (d *Disruptor[E]) createProcessors(barrierSequences []*Sequence, handlers []EventHandler[E]) *EventHandlerGroup[E] {
	if atomic.LoadInt32(&d.started) == 1 {
		panic(errors.ErrDisruptorStarted)
	}

	processorSequences := make([]*Sequence, 0, len(handlers))
	for _, handler := range handlers {
		barrier := d.ring.NewBarrier(barrierSequences...)
		p := NewBatchEventProcessor[E](d.ring, barrier, handler)
		p.logger = d.opts.Logger
		d.processors = append(d.processors, p)
		processorSequences = append(processorSequences, p.Sequence())
	}

	// Producers only need to gate on the chain tail: the new stage cannot
	// pass its upstream, so the upstream sequences stop gating.
	d.ring.AddGatingSequences(processorSequences...)
	for _, s := range barrierSequences {
		d.ring.RemoveGatingSequence(s)
	}
	return &EventHandlerGroup[E]{d: d, sequences: processorSequences}
}

// Start schedules every registered processor on the worker pool. It may be
// called once.
func (d *Disruptor[E]) Start() error {
	if len(d.processors) == 0 {
		return errors.ErrNoEventHandlers
	}
	if !atomic.CompareAndSwapInt32(&d.started, 0, 1) {
		return errors.ErrDisruptorStarted
	}

	d.pool = d.opts.Pool
	if d.pool == nil {
		d.pool = goroutine.Default()
		d.ownsPool = true
	}

	for _, p := range d.processors {
		p := p
		if err := d.pool.Submit(func() {
			if err := p.Run(); err != nil {
				d.opts.Logger.Errorf("event processor exited: %v", err)
			}
		}); err != nil {
			d.Halt()
			return err
		}
	}
	return nil
}

// Halt stops every processor after the batch it is currently handling.
// Events already published but not yet consumed stay in the ring.
func (d *Disruptor[E]) Halt() {
	for _, p := range d.processors {
		p.Halt()
	}
	if d.ownsPool {
		d.ownsPool = false
		d.pool.Release()
	}
}

// Shutdown waits until every processor has consumed every published event,
// then halts. Fails with errors.ErrTimeout if the backlog does not drain in
// time; the processors keep running in that case so the caller can retry.
func (d *Disruptor[E]) Shutdown(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for d.hasBacklog() {
		if time.Now().After(deadline) {
			return errors.ErrTimeout
		}
		time.Sleep(time.Millisecond)
	}
	d.Halt()
	return nil
}

func (d *Disruptor[E]) hasBacklog() bool {
	cursor := d.ring.Cursor()
	for _, p := range d.processors {
		if p.Sequence().Get() < cursor {
			return true
		}
	}
	return false
}

// PublishEvent claims the next slot, fills it via translator and publishes it.
func (d *Disruptor[E]) PublishEvent(translator EventTranslator[E]) error {
	return d.ring.PublishEvent(translator)
}

// TryPublishEvent is PublishEvent with a non-blocking claim.
func (d *Disruptor[E]) TryPublishEvent(translator EventTranslator[E]) error {
	return d.ring.TryPublishEvent(translator)
}
