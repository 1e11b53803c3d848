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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gring-io/gring/pkg/errors"
)

type testEvent struct {
	value string
	n     int64
}

func newTestRing(t *testing.T, size int64, opts ...Option) *RingBuffer[testEvent] {
	t.Helper()
	rb, err := NewRingBuffer[testEvent](func() testEvent { return testEvent{} }, size, opts...)
	require.NoError(t, err)
	return rb
}

func TestNewRingBufferRejectsInvalidSizes(t *testing.T) {
	for _, size := range []int64{0, -1, 3, 6, 31} {
		_, err := NewRingBuffer[testEvent](func() testEvent { return testEvent{} }, size)
		assert.ErrorIsf(t, err, errors.ErrInvalidBufferSize, "size %d must be rejected", size)
	}
	for _, size := range []int64{1, 2, 8, 1024} {
		_, err := NewRingBuffer[testEvent](func() testEvent { return testEvent{} }, size)
		assert.NoErrorf(t, err, "size %d must be accepted", size)
	}
}

func TestRingBufferSlotAliasing(t *testing.T) {
	rb := newTestRing(t, 8)
	for s := int64(0); s < 8; s++ {
		assert.Same(t, rb.Get(s), rb.Get(s+8), "sequence s and s+bufferSize must share a slot")
	}
	assert.NotSame(t, rb.Get(0), rb.Get(1))
}

func TestRingBufferPublishEventRoundTrip(t *testing.T) {
	rb := newTestRing(t, 8)

	for i := 0; i < 3; i++ {
		i := i
		err := rb.PublishEvent(func(e *testEvent, sequence int64) error {
			e.value = fmt.Sprintf("e%d", i)
			e.n = sequence
			return nil
		})
		require.NoError(t, err)
	}

	assert.EqualValues(t, 2, rb.Cursor())
	for s := int64(0); s <= 2; s++ {
		require.True(t, rb.IsPublished(s))
		e := rb.GetPublished(s)
		assert.Equal(t, fmt.Sprintf("e%d", s), e.value)
		assert.Equal(t, s, e.n)
	}
	assert.False(t, rb.IsPublished(3))
}

// A failing translator must not leave its claimed slot unpublished, a hole
// would stall every consumer forever.
func TestRingBufferPublishesSlotOnTranslatorError(t *testing.T) {
	rb := newTestRing(t, 8)
	boom := fmt.Errorf("translator blew up")

	calls := 0
	translator := func(e *testEvent, sequence int64) error {
		calls++
		if calls == 6 {
			return boom
		}
		e.value = fmt.Sprintf("e%d", sequence)
		return nil
	}

	var firstErr error
	for i := 0; i < 10; i++ {
		if err := rb.PublishEvent(translator); err != nil {
			firstErr = err
		}
	}

	require.ErrorIs(t, firstErr, boom)
	assert.EqualValues(t, 9, rb.Cursor(), "the ring must keep accepting publishes after a translator failure")
	assert.True(t, rb.IsPublished(5), "the failed slot must still be published")
}

func TestRingBufferPublishEventArgHelpers(t *testing.T) {
	rb := newTestRing(t, 8)

	require.NoError(t, PublishEventOneArg(rb, func(e *testEvent, _ int64, v string) error {
		e.value = v
		return nil
	}, "one"))
	require.NoError(t, PublishEventTwoArg(rb, func(e *testEvent, _ int64, v string, n int64) error {
		e.value, e.n = v, n
		return nil
	}, "two", int64(2)))
	require.NoError(t, PublishEventThreeArg(rb, func(e *testEvent, _ int64, a string, b string, n int64) error {
		e.value, e.n = a+b, n
		return nil
	}, "th", "ree", int64(3)))
	require.NoError(t, rb.PublishEventVararg(func(e *testEvent, _ int64, args ...interface{}) error {
		e.value = fmt.Sprint(args...)
		return nil
	}, "var", "arg"))

	assert.EqualValues(t, 3, rb.Cursor())
	assert.Equal(t, "one", rb.Get(0).value)
	assert.Equal(t, "two", rb.Get(1).value)
	assert.Equal(t, "three", rb.Get(2).value)
	assert.Equal(t, "vararg", rb.Get(3).value)
}

func TestRingBufferBatchPublish(t *testing.T) {
	rb := newTestRing(t, 8)

	translators := make([]EventTranslator[testEvent], 5)
	for i := range translators {
		i := i
		translators[i] = func(e *testEvent, sequence int64) error {
			e.value = fmt.Sprintf("b%d", i)
			e.n = sequence
			return nil
		}
	}
	require.NoError(t, rb.PublishEvents(translators))
	assert.EqualValues(t, 4, rb.Cursor())
	for s := int64(0); s <= 4; s++ {
		assert.Equal(t, fmt.Sprintf("b%d", s), rb.Get(s).value)
	}

	require.NoError(t, PublishEventsOneArg(rb, func(e *testEvent, _ int64, v string) error {
		e.value = v
		return nil
	}, []string{"x", "y", "z"}))
	assert.EqualValues(t, 7, rb.Cursor())
	assert.Equal(t, "z", rb.Get(7).value)
}

func TestRingBufferTryPublishRejectsOversizedBatch(t *testing.T) {
	rb := newTestRing(t, 4)

	translators := make([]EventTranslator[testEvent], 5)
	for i := range translators {
		translators[i] = func(*testEvent, int64) error { return nil }
	}
	err := rb.TryPublishEvents(translators)
	require.ErrorIs(t, err, errors.ErrInsufficientCapacity)
	assert.EqualValues(t, InitialSequenceValue, rb.Cursor(), "no claim may happen for an oversized batch")

	err = TryPublishEventsOneArg(rb, func(*testEvent, int64, int) error { return nil }, []int{1, 2, 3, 4, 5})
	require.ErrorIs(t, err, errors.ErrInsufficientCapacity)
	assert.EqualValues(t, InitialSequenceValue, rb.Cursor())
}

func TestRingBufferTryPublishEventOnFullRing(t *testing.T) {
	rb := newTestRing(t, 2)
	consumer := NewSequence(InitialSequenceValue)
	rb.AddGatingSequences(consumer)

	fill := func(e *testEvent, sequence int64) error { e.n = sequence; return nil }
	require.NoError(t, rb.TryPublishEvent(fill))
	require.NoError(t, rb.TryPublishEvent(fill))
	require.ErrorIs(t, rb.TryPublishEvent(fill), errors.ErrInsufficientCapacity)

	// The consumer catching up frees capacity again.
	consumer.Set(1)
	require.NoError(t, rb.TryPublishEvent(fill))
}

func TestRingBufferCapacityQueries(t *testing.T) {
	rb := newTestRing(t, 8)
	consumer := NewSequence(InitialSequenceValue)
	rb.AddGatingSequences(consumer)

	assert.EqualValues(t, 8, rb.BufferSize())
	assert.EqualValues(t, 8, rb.RemainingCapacity())
	assert.True(t, rb.HasAvailableCapacity(8))

	for i := 0; i < 5; i++ {
		rb.Publish(rb.Next())
	}
	assert.EqualValues(t, 3, rb.RemainingCapacity())
	assert.True(t, rb.HasAvailableCapacity(3))
	assert.False(t, rb.HasAvailableCapacity(4))
	assert.EqualValues(t, -1, rb.MinimumGatingSequence())

	assert.True(t, rb.RemoveGatingSequence(consumer))
	assert.EqualValues(t, 8, rb.RemainingCapacity(), "dropping the gating sequence frees the window")
}

func TestRingBufferResetTo(t *testing.T) {
	rb := newTestRing(t, 8)
	rb.ResetTo(41)
	assert.EqualValues(t, 41, rb.Cursor())
	assert.True(t, rb.IsPublished(41))
	assert.EqualValues(t, 42, rb.Next())
}

func TestRingBufferClaimAndGetPreallocated(t *testing.T) {
	rb := newTestRing(t, 8)
	e := rb.ClaimAndGetPreallocated(5)
	require.NotNil(t, e)
	assert.Same(t, rb.Get(5), e)
	e.value = "seeded"
	rb.Publish(5)
	assert.Equal(t, "seeded", rb.GetPublished(5).value)
}

func BenchmarkRingBufferPublishEventSingleProducer(b *testing.B) {
	rb, _ := NewRingBuffer[testEvent](func() testEvent { return testEvent{} }, 1<<16,
		WithWaitStrategy(NewYieldingWaitStrategy()))
	consumer := NewSequence(InitialSequenceValue)
	rb.AddGatingSequences(consumer)
	translator := func(e *testEvent, sequence int64) error {
		e.n = sequence
		return nil
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rb.PublishEvent(translator)
		consumer.Set(int64(i)) // keep the gate moving, this benchmark measures publication
	}
}
