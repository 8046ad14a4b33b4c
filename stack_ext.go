// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"log/slog"

	"code.hybscloud.com/lfc/hazard"
)

// PushWithDepthLimit pushes v unless the depth counter already meets
// limit, in which case it returns ErrDepthLimit.
//
// The check is not linearized with the push: concurrent callers can each
// pass the check, so the depth may exceed limit by up to the number of
// racing goroutines minus one.
func (s *Stack[T]) PushWithDepthLimit(p *hazard.Participant, v T, limit int) error {
	p.Require(s.dom)
	if s.depth.Load() >= int64(limit) {
		return ErrDepthLimit
	}
	return s.Push(p, v)
}

// TransferTo pops every element of s and pushes it to dst, returning how
// many moved. The transfer is not atomic: while it runs an element may be
// observed in neither container or in both. dst must be bound to the same
// domain as s.
//
// If dst rejects an element it is pushed back onto s and the error is
// returned. Transferring a stack to itself returns ErrSelfTransfer.
func (s *Stack[T]) TransferTo(p *hazard.Participant, dst Producer[T]) (int, error) {
	if any(dst) == any(s) {
		return 0, ErrSelfTransfer
	}
	start := s.stats.begin()
	defer s.stats.record(OpTransfer, start)
	n := 0
	for {
		v, ok := s.Pop(p)
		if !ok {
			return n, nil
		}
		if err := dst.Push(p, v); err != nil {
			if perr := s.Push(p, v); perr != nil {
				s.logger.Warn("lfc: transfer dropped element",
					slog.Int("moved", n),
					slog.Any("error", perr))
			}
			return n, err
		}
		n++
	}
}
