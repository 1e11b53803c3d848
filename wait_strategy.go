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
	"sync"
	"time"

	"github.com/gring-io/gring/pkg/errors"
)

// WaitStrategy decides how a consumer idles until a sequence becomes
// available. WaitFor blocks until dependent reaches sequence and returns the
// highest value observed, which may be less than sequence when the wait is cut
// short; it returns errors.ErrAlerted when the barrier is alerted and
// errors.ErrTimeout when the strategy enforces a bound.
//
// SignalAllWhenBlocking is called by producers after publishing, it is a no-op
// for strategies that never park.
type WaitStrategy interface {
	WaitFor(sequence int64, cursor *Sequence, dependent DependentSequence, barrier *SequenceBarrier) (int64, error)
	SignalAllWhenBlocking()
}

// BlockingWaitStrategy parks waiting consumers on a condition variable and
// has publishers wake them. The lowest CPU cost when the ring is idle, at the
// price of lock traffic on publish.
type BlockingWaitStrategy struct {
	mu   sync.Mutex
	cond *sync.Cond
}

// NewBlockingWaitStrategy instantiates a BlockingWaitStrategy.
func NewBlockingWaitStrategy() *BlockingWaitStrategy {
	ws := new(BlockingWaitStrategy)
	ws.cond = sync.NewCond(&ws.mu)
	return ws
}

// WaitFor parks until the cursor reaches sequence, then spins until the
// dependent sequences catch up.
func (ws *BlockingWaitStrategy) WaitFor(sequence int64, cursor *Sequence, dependent DependentSequence, barrier *SequenceBarrier) (int64, error) {
	if cursor.Get() < sequence {
		ws.mu.Lock()
		for cursor.Get() < sequence {
			if err := barrier.CheckAlert(); err != nil {
				ws.mu.Unlock()
				return InitialSequenceValue, err
			}
			ws.cond.Wait()
		}
		ws.mu.Unlock()
	}

	available := dependent.Get()
	for available < sequence {
		if err := barrier.CheckAlert(); err != nil {
			return available, err
		}
		runtime.Gosched()
		available = dependent.Get()
	}
	return available, nil
}

// SignalAllWhenBlocking wakes every parked consumer.
func (ws *BlockingWaitStrategy) SignalAllWhenBlocking() {
	ws.mu.Lock()
	ws.cond.Broadcast()
	ws.mu.Unlock()
}

// TimeoutBlockingWaitStrategy behaves like BlockingWaitStrategy but gives up
// with errors.ErrTimeout once the configured bound elapses.
type TimeoutBlockingWaitStrategy struct {
	mu      sync.Mutex
	cond    *sync.Cond
	timeout time.Duration
}

// NewTimeoutBlockingWaitStrategy instantiates a TimeoutBlockingWaitStrategy
// with the given bound.
func NewTimeoutBlockingWaitStrategy(timeout time.Duration) *TimeoutBlockingWaitStrategy {
	ws := &TimeoutBlockingWaitStrategy{timeout: timeout}
	ws.cond = sync.NewCond(&ws.mu)
	return ws
}

// WaitFor parks until the cursor reaches sequence or the bound elapses.
func (ws *TimeoutBlockingWaitStrategy) WaitFor(sequence int64, cursor *Sequence, dependent DependentSequence, barrier *SequenceBarrier) (int64, error) {
	deadline := time.Now().Add(ws.timeout)
	if cursor.Get() < sequence {
		ws.mu.Lock()
		for cursor.Get() < sequence {
			if err := barrier.CheckAlert(); err != nil {
				ws.mu.Unlock()
				return InitialSequenceValue, err
			}
			remaining := time.Until(deadline)
			if remaining <= 0 {
				ws.mu.Unlock()
				return InitialSequenceValue, errors.ErrTimeout
			}
			// sync.Cond has no timed wait, so arm a one-shot broadcast to
			// bound this iteration.
			timer := time.AfterFunc(remaining, ws.cond.Broadcast)
			ws.cond.Wait()
			timer.Stop()
		}
		ws.mu.Unlock()
	}

	available := dependent.Get()
	for available < sequence {
		if err := barrier.CheckAlert(); err != nil {
			return available, err
		}
		if time.Now().After(deadline) {
			return available, errors.ErrTimeout
		}
		runtime.Gosched()
		available = dependent.Get()
	}
	return available, nil
}

// SignalAllWhenBlocking wakes every parked consumer.
func (ws *TimeoutBlockingWaitStrategy) SignalAllWhenBlocking() {
	ws.mu.Lock()
	ws.cond.Broadcast()
	ws.mu.Unlock()
}

// YieldingWaitStrategy burns a short spin budget and then yields the
// processor between polls. A reasonable default when latency matters but
// cores are shared.
type YieldingWaitStrategy struct{}

const yieldingSpinTries = 100

// NewYieldingWaitStrategy instantiates a YieldingWaitStrategy.
func NewYieldingWaitStrategy() *YieldingWaitStrategy {
	return new(YieldingWaitStrategy)
}

// WaitFor spins, then yields, until the dependent sequences reach sequence.
func (*YieldingWaitStrategy) WaitFor(sequence int64, _ *Sequence, dependent DependentSequence, barrier *SequenceBarrier) (int64, error) {
	counter := yieldingSpinTries
	available := dependent.Get()
	for available < sequence {
		if err := barrier.CheckAlert(); err != nil {
			return available, err
		}
		if counter > 0 {
			counter--
		} else {
			runtime.Gosched()
		}
		available = dependent.Get()
	}
	return available, nil
}

// SignalAllWhenBlocking is a no-op, yielding waiters never park.
func (*YieldingWaitStrategy) SignalAllWhenBlocking() {}

// BusySpinWaitStrategy spins flat out. Lowest latency, a whole core per
// waiting consumer; pin threads accordingly.
type BusySpinWaitStrategy struct{}

// NewBusySpinWaitStrategy instantiates a BusySpinWaitStrategy.
func NewBusySpinWaitStrategy() *BusySpinWaitStrategy {
	return new(BusySpinWaitStrategy)
}

// WaitFor spins until the dependent sequences reach sequence.
func (*BusySpinWaitStrategy) WaitFor(sequence int64, _ *Sequence, dependent DependentSequence, barrier *SequenceBarrier) (int64, error) {
	available := dependent.Get()
	for available < sequence {
		if err := barrier.CheckAlert(); err != nil {
			return available, err
		}
		available = dependent.Get()
	}
	return available, nil
}

// SignalAllWhenBlocking is a no-op, spinning waiters never park.
func (*BusySpinWaitStrategy) SignalAllWhenBlocking() {}

// SleepingWaitStrategy spins, then yields, then sleeps in short intervals.
// Keeps idle CPU near zero without publisher-side signalling; wake-up latency
// degrades to the sleep interval under light traffic.
type SleepingWaitStrategy struct {
	retries int
	sleep   time.Duration
}

const (
	defaultSleepRetries  = 200
	defaultSleepInterval = 100 * time.Microsecond
)

// NewSleepingWaitStrategy instantiates a SleepingWaitStrategy with the
// default spin budget and sleep interval.
func NewSleepingWaitStrategy() *SleepingWaitStrategy {
	return &SleepingWaitStrategy{retries: defaultSleepRetries, sleep: defaultSleepInterval}
}

// WaitFor polls with progressive backoff until the dependent sequences reach
// sequence.
func (ws *SleepingWaitStrategy) WaitFor(sequence int64, _ *Sequence, dependent DependentSequence, barrier *SequenceBarrier) (int64, error) {
	counter := ws.retries
	available := dependent.Get()
	for available < sequence {
		if err := barrier.CheckAlert(); err != nil {
			return available, err
		}
		switch {
		case counter > ws.retries/2:
			counter--
		case counter > 0:
			counter--
			runtime.Gosched()
		default:
			time.Sleep(ws.sleep)
		}
		available = dependent.Get()
	}
	return available, nil
}

// SignalAllWhenBlocking is a no-op, sleeping waiters wake up by themselves.
func (*SleepingWaitStrategy) SignalAllWhenBlocking() {}
