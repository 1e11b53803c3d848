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

// Package errors defines common errors for gring.
package errors

import "errors"

var (
	// ErrInsufficientCapacity occurs when a non-blocking claim cannot be satisfied
	// without waiting for consumers to advance.
	ErrInsufficientCapacity = errors.New("gring: insufficient capacity to claim the requested sequences")
	// ErrAlerted occurs when a sequence barrier is alerted while a consumer waits on it.
	ErrAlerted = errors.New("gring: sequence barrier is alerted")
	// ErrTimeout occurs when a bounded wait strategy gives up before the sequence becomes available.
	ErrTimeout = errors.New("gring: timed out waiting for an available sequence")
	// ErrInvalidBufferSize occurs when constructing a ring buffer whose size is not a positive power of two.
	ErrInvalidBufferSize = errors.New("gring: buffer size must be a positive power of two")
	// ErrEventProcessorRunning occurs when Run is called on an event processor that is already running.
	ErrEventProcessorRunning = errors.New("gring: event processor is already running")
	// ErrDisruptorStarted occurs when mutating or restarting a disruptor after Start.
	ErrDisruptorStarted = errors.New("gring: disruptor has already been started")
	// ErrNoEventHandlers occurs when starting a disruptor with no handlers registered.
	ErrNoEventHandlers = errors.New("gring: no event handlers have been registered")
)
