// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"errors"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfc/hazard"
	"code.hybscloud.com/lfc/pool"
)

var (
	// ErrOutOfCapacity is returned by Push, Insert and the batch operations
	// when the node pool already holds its configured maximum. The
	// container is unchanged.
	ErrOutOfCapacity = pool.ErrOutOfCapacity

	// ErrDepthLimit is returned by Stack.PushWithDepthLimit when the
	// observed depth already meets the limit.
	ErrDepthLimit = errors.New("lfc: depth limit reached")

	// ErrSelfTransfer is returned by Stack.TransferTo when the
	// destination is the source stack.
	ErrSelfTransfer = errors.New("lfc: transfer to self")

	// ErrInvalidConfig is wrapped by Config.Validate and the Build
	// functions for out-of-range settings.
	ErrInvalidConfig = errors.New("lfc: invalid config")

	// ErrTooFewGuards is returned by the Build functions when the domain
	// gives each participant fewer guards than the container needs.
	ErrTooFewGuards = errors.New("lfc: domain has too few guards")

	// ErrNotAttached is the panic value for operations run on a nil,
	// detached or foreign participant.
	ErrNotAttached = hazard.ErrNotAttached
)

// ErrWouldBlock indicates the operation cannot proceed immediately.
//
// Containers never return it: contention is retried and emptiness is
// reported as (zero, false). It is the signal used by consumers built on
// top of them, such as a feed whose queue is empty.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
var ErrWouldBlock = iox.ErrWouldBlock

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
