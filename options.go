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
	"github.com/gring-io/gring/pkg/logging"
	"github.com/gring-io/gring/pkg/pool/goroutine"
)

// Option is a function that sets up an option.
type Option func(opts *Options)

func loadOptions(options ...Option) *Options {
	opts := new(Options)
	for _, option := range options {
		option(opts)
	}
	if opts.WaitStrategy == nil {
		opts.WaitStrategy = NewBlockingWaitStrategy()
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetDefaultLogger()
	}
	return opts
}

// Options are set when constructing a ring buffer or a disruptor.
type Options struct {
	// WaitStrategy decides how consumers idle while waiting for a sequence.
	// Defaults to a BlockingWaitStrategy.
	WaitStrategy WaitStrategy

	// ProducerType selects the claim protocol, single- or multi-producer.
	// Defaults to SingleProducer.
	ProducerType ProducerType

	// Pool is the worker pool a disruptor schedules its event processors on.
	// When nil, Start creates a pool of its own with goroutine.Default from
	// pkg/pool/goroutine, and Halt releases it.
	Pool *goroutine.Pool

	// Logger is the logger used by processors for handler failures.
	// Defaults to the logger from pkg/logging.
	Logger logging.Logger
}

// WithOptions sets up all options at once.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithWaitStrategy sets up the consumer wait strategy.
func WithWaitStrategy(ws WaitStrategy) Option {
	return func(opts *Options) {
		opts.WaitStrategy = ws
	}
}

// WithProducerType selects single- or multi-producer claim coordination.
func WithProducerType(producerType ProducerType) Option {
	return func(opts *Options) {
		opts.ProducerType = producerType
	}
}

// WithGoroutinePool sets up the worker pool for event processors.
func WithGoroutinePool(pool *goroutine.Pool) Option {
	return func(opts *Options) {
		opts.Pool = pool
	}
}

// WithLogger sets up the logger.
func WithLogger(logger logging.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}
