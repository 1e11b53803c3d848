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

	"github.com/gring-io/gring/pkg/errors"
)

// SequenceBarrier is the consumer-side view of a sequencer: it answers "up to
// which sequence may I read?" while honoring upstream consumer dependencies
// and a cooperative alert flag.
type SequenceBarrier struct {
	waitStrategy WaitStrategy
	sequencer    Sequencer
	cursor       *Sequence
	dependent    DependentSequence
	alerted      int32
}

func newSequenceBarrier(sequencer Sequencer, waitStrategy WaitStrategy, cursor *Sequence, dependentSequences []*Sequence) *SequenceBarrier {
	b := &SequenceBarrier{
		waitStrategy: waitStrategy,
		sequencer:    sequencer,
		cursor:       cursor,
	}
	if len(dependentSequences) == 0 {
		b.dependent = cursor
	} else {
		b.dependent = &fixedSequenceGroup{sequences: dependentSequences}
	}
	return b
}

// WaitFor blocks until sequence is available for consumption and returns the
// highest available sequence, which is guaranteed to be part of a fully
// published contiguous run from sequence. The returned value may be less than
// sequence if the wait strategy cut the wait short.
//
// Returns errors.ErrAlerted when the barrier is alerted, or errors.ErrTimeout
// from bounded wait strategies.
func (b *SequenceBarrier) WaitFor(sequence int64) (int64, error) {
	if err := b.CheckAlert(); err != nil {
		return InitialSequenceValue, err
	}

	available, err := b.waitStrategy.WaitFor(sequence, b.cursor, b.dependent, b)
	if err != nil {
		return available, err
	}
	if available < sequence {
		return available, nil
	}

	// With multiple producers sequences can be published out of order, only
	// the contiguous prefix is safe to hand out.
	return b.sequencer.HighestPublishedSequence(sequence, available), nil
}

// Cursor returns the current value of the sequencer's cursor.
func (b *SequenceBarrier) Cursor() int64 {
	return b.cursor.Get()
}

// Alert raises the alert flag and wakes any parked consumer.
func (b *SequenceBarrier) Alert() {
	atomic.StoreInt32(&b.alerted, 1)
	b.waitStrategy.SignalAllWhenBlocking()
}

// ClearAlert lowers the alert flag.
func (b *SequenceBarrier) ClearAlert() {
	atomic.StoreInt32(&b.alerted, 0)
}

// IsAlerted reports whether the barrier is in the alerted state.
func (b *SequenceBarrier) IsAlerted() bool {
	return atomic.LoadInt32(&b.alerted) == 1
}

// CheckAlert returns errors.ErrAlerted when the barrier is alerted, the fast
// path polled between consumer iterations and on every wait-strategy spin.
func (b *SequenceBarrier) CheckAlert() error {
	if b.IsAlerted() {
		return errors.ErrAlerted
	}
	return nil
}
