// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pool

import "errors"

var (
	// ErrOutOfCapacity is returned when the pool already holds its configured
	// maximum number of blocks and the free list is empty. It is not retried
	// internally; the caller decides whether to shed load or wait.
	ErrOutOfCapacity = errors.New("pool: out of capacity")

	// ErrPoolClosed is returned by Acquire and Allocate after Close.
	ErrPoolClosed = errors.New("pool: closed")

	// ErrInvalidAlignment is returned when the requested alignment is not a
	// positive power of two.
	ErrInvalidAlignment = errors.New("pool: alignment must be a power of two")

	// ErrInvalidConfig is wrapped by constructor errors for bad sizes or
	// limits.
	ErrInvalidConfig = errors.New("pool: invalid config")

	// ErrInvalidSize is returned for negative sizes and array lengths.
	ErrInvalidSize = errors.New("pool: size must not be negative")
)
