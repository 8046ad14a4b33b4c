// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hazard

import (
	"fmt"
	"log/slog"
)

// MaxGuards is the largest number of guards a participant can own.
const MaxGuards = 64

// Default option values.
const (
	DefaultGuards         = 4
	DefaultScanThreshold  = 64
	DefaultOrphanCapacity = 1024
)

// Options configures a Domain. Zero fields take their defaults.
type Options struct {
	// Guards is the number of hazard guards per participant (1..64).
	Guards int

	// ScanThreshold is the retired-list length that triggers a scan.
	ScanThreshold int

	// OrphanCapacity bounds the lock-free ring holding entries left behind
	// by detached participants. Entries beyond it go to a locked slice.
	OrphanCapacity int

	// Logger receives lifecycle events. Nil selects slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the default domain options.
func DefaultOptions() Options {
	return Options{
		Guards:         DefaultGuards,
		ScanThreshold:  DefaultScanThreshold,
		OrphanCapacity: DefaultOrphanCapacity,
	}
}

func (o *Options) setDefaults() {
	if o.Guards == 0 {
		o.Guards = DefaultGuards
	}
	if o.ScanThreshold == 0 {
		o.ScanThreshold = DefaultScanThreshold
	}
	if o.OrphanCapacity == 0 {
		o.OrphanCapacity = DefaultOrphanCapacity
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Validate reports the first out-of-range option.
func (o *Options) Validate() error {
	if o.Guards < 1 || o.Guards > MaxGuards {
		return fmt.Errorf("%w: guards must be in [1, %d], got %d", ErrInvalidOptions, MaxGuards, o.Guards)
	}
	if o.ScanThreshold < 1 {
		return fmt.Errorf("%w: scan threshold must be > 0, got %d", ErrInvalidOptions, o.ScanThreshold)
	}
	if o.OrphanCapacity < 2 {
		return fmt.Errorf("%w: orphan capacity must be >= 2, got %d", ErrInvalidOptions, o.OrphanCapacity)
	}
	return nil
}
