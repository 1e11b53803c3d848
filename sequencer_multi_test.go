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
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gring-io/gring/pkg/errors"
)

func TestMultiProducerAvailabilityTracksPerSlot(t *testing.T) {
	s := NewMultiProducerSequencer(8, NewYieldingWaitStrategy())

	hi, err := s.TryNextN(2)
	require.NoError(t, err)
	require.EqualValues(t, 1, hi)

	// Publish out of order: 1 before 0.
	s.Publish(1)
	assert.False(t, s.IsAvailable(0))
	assert.True(t, s.IsAvailable(1))
	assert.EqualValues(t, -1, s.HighestPublishedSequence(0, 1),
		"an unpublished predecessor must hide the published successor")

	s.Publish(0)
	assert.EqualValues(t, 1, s.HighestPublishedSequence(0, 1))
}

func TestMultiProducerAvailabilityFlagSurvivesWrap(t *testing.T) {
	s := NewMultiProducerSequencer(8, NewYieldingWaitStrategy())
	consumer := NewSequence(InitialSequenceValue)
	s.AddGatingSequences(consumer)

	// A fresh ring reports nothing available, sequence 0 included.
	for i := int64(0); i < 8; i++ {
		assert.False(t, s.IsAvailable(i))
	}

	for i := int64(0); i < 8; i++ {
		s.Publish(s.Next())
	}
	consumer.Set(7)

	// Sequence 8 reuses slot 0 but belongs to the next wrap generation.
	seq := s.Next()
	require.EqualValues(t, 8, seq)
	assert.False(t, s.IsAvailable(8), "claimed but unpublished on the second lap")
	assert.True(t, s.IsAvailable(0), "slot still carries the first lap's publication")

	s.Publish(seq)
	assert.True(t, s.IsAvailable(8))
	assert.False(t, s.IsAvailable(0), "the first lap's sequence is gone once the slot is overwritten")
}

func TestMultiProducerPublishRange(t *testing.T) {
	s := NewMultiProducerSequencer(8, NewYieldingWaitStrategy())
	hi, err := s.TryNextN(5)
	require.NoError(t, err)
	s.PublishRange(0, hi)
	for i := int64(0); i <= hi; i++ {
		assert.True(t, s.IsAvailable(i))
	}
	assert.EqualValues(t, hi, s.HighestPublishedSequence(0, hi))
}

func TestMultiProducerTryNextExhaustsCapacity(t *testing.T) {
	s := NewMultiProducerSequencer(2, NewYieldingWaitStrategy())
	consumer := NewSequence(InitialSequenceValue)
	s.AddGatingSequences(consumer)

	for i := int64(0); i < 2; i++ {
		seq, err := s.TryNext()
		require.NoError(t, err)
		s.Publish(seq)
	}
	_, err := s.TryNext()
	require.ErrorIs(t, err, errors.ErrInsufficientCapacity)
	assert.EqualValues(t, 0, s.RemainingCapacity())

	consumer.Set(1)
	assert.EqualValues(t, 2, s.RemainingCapacity())
	_, err = s.TryNext()
	assert.NoError(t, err)
}

func TestMultiProducerConcurrentClaimsAreUnique(t *testing.T) {
	const producers, perProducer = 4, 1000
	s := NewMultiProducerSequencer(8192, NewYieldingWaitStrategy())

	var wg sync.WaitGroup
	claims := make([][]int64, producers)
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			claims[p] = make([]int64, 0, perProducer)
			for i := 0; i < perProducer; i++ {
				claims[p] = append(claims[p], s.Next())
			}
		}(p)
	}
	wg.Wait()

	var all []int64
	for p := 0; p < producers; p++ {
		for i := 1; i < len(claims[p]); i++ {
			require.Greater(t, claims[p][i], claims[p][i-1], "claims within one producer must be strictly increasing")
		}
		all = append(all, claims[p]...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	require.Len(t, all, producers*perProducer)
	for i, seq := range all {
		require.EqualValues(t, i, seq, "every sequence must be claimed exactly once")
	}
}
