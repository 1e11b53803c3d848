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
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gring-io/gring/pkg/errors"
)

type countingLogger struct {
	errors int32
}

func (l *countingLogger) Debugf(string, ...interface{}) {}
func (l *countingLogger) Infof(string, ...interface{})  {}
func (l *countingLogger) Warnf(string, ...interface{})  {}
func (l *countingLogger) Errorf(string, ...interface{}) { atomic.AddInt32(&l.errors, 1) }
func (l *countingLogger) Fatalf(string, ...interface{}) {}

func TestBatchEventProcessorConsumesInBatches(t *testing.T) {
	rb := newTestRing(t, 16)

	type seen struct {
		sequence   int64
		endOfBatch bool
	}
	var mu []seen
	done := make(chan struct{})
	p := NewBatchEventProcessor[testEvent](rb, rb.NewBarrier(), func(_ *testEvent, sequence int64, endOfBatch bool) error {
		mu = append(mu, seen{sequence, endOfBatch})
		if sequence == 4 {
			close(done)
		}
		return nil
	})
	rb.AddGatingSequences(p.Sequence())

	// Publish the whole batch before the processor starts, so it drains all
	// five in one barrier round.
	for i := 0; i < 5; i++ {
		rb.Publish(rb.Next())
	}

	go func() { _ = p.Run() }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("processor never drained the batch")
	}
	p.Halt()

	require.Len(t, mu, 5)
	for i, s := range mu {
		assert.EqualValues(t, i, s.sequence)
		assert.Equal(t, i == 4, s.endOfBatch, "only the last event of the run carries endOfBatch")
	}
	assert.EqualValues(t, 4, p.Sequence().Get())
}

func TestBatchEventProcessorRejectsSecondRun(t *testing.T) {
	rb := newTestRing(t, 8)
	p := NewBatchEventProcessor[testEvent](rb, rb.NewBarrier(), func(*testEvent, int64, bool) error { return nil })
	rb.AddGatingSequences(p.Sequence())

	go func() { _ = p.Run() }()
	require.Eventually(t, p.IsRunning, time.Second, time.Millisecond)

	assert.ErrorIs(t, p.Run(), errors.ErrEventProcessorRunning)

	p.Halt()
	require.Eventually(t, func() bool { return !p.IsRunning() }, time.Second, time.Millisecond)
}

func TestBatchEventProcessorAdvancesPastHandlerErrors(t *testing.T) {
	rb := newTestRing(t, 8)
	logger := new(countingLogger)

	var handled int32
	p := NewBatchEventProcessor[testEvent](rb, rb.NewBarrier(), func(_ *testEvent, sequence int64, _ bool) error {
		atomic.AddInt32(&handled, 1)
		if sequence%2 == 0 {
			return fmt.Errorf("handler rejects sequence %d", sequence)
		}
		return nil
	})
	p.logger = logger
	rb.AddGatingSequences(p.Sequence())

	go func() { _ = p.Run() }()
	for i := 0; i < 6; i++ {
		rb.Publish(rb.Next())
	}

	require.Eventually(t, func() bool { return p.Sequence().Get() == 5 }, 2*time.Second, time.Millisecond,
		"a failing handler must not stall the sequence")
	p.Halt()

	assert.EqualValues(t, 6, atomic.LoadInt32(&handled))
	assert.EqualValues(t, 3, atomic.LoadInt32(&logger.errors), "every handler failure is logged")
}
