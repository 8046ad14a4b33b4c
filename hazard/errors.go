// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hazard

import "errors"

var (
	// ErrNotAttached is the panic value raised when a container operation
	// runs on a nil participant, a detached participant, or a participant
	// of another domain.
	ErrNotAttached = errors.New("hazard: participant not attached")

	// ErrGuardsExhausted is the panic value raised when a participant asks
	// for more guards than the domain was configured with.
	ErrGuardsExhausted = errors.New("hazard: guards exhausted")

	// ErrInvalidOptions is wrapped by NewDomain for out-of-range options.
	ErrInvalidOptions = errors.New("hazard: invalid options")

	// ErrParticipantsAttached is returned by Close while participants are
	// still attached.
	ErrParticipantsAttached = errors.New("hazard: participants still attached")
)
