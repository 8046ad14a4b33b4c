// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"context"
	"log/slog"
	"time"

	"code.hybscloud.com/atomix"
)

// Op identifies a container operation in the statistics.
type Op uint8

const (
	OpPush Op = iota
	OpPop
	OpInsert
	OpErase
	OpFind
	OpUpdate
	OpBatchPush
	OpBatchPop
	OpTransfer
	OpRangeQuery
	OpBulkErase
	numOps
)

var opNames = [numOps]string{
	OpPush:   "push",
	OpPop:    "pop",
	OpInsert: "insert",
	OpErase:  "erase",
	OpFind:   "find",
	OpUpdate: "update",

	OpBatchPush:  "batch_push",
	OpBatchPop:   "batch_pop",
	OpTransfer:   "transfer",
	OpRangeQuery: "range_query",
	OpBulkErase:  "bulk_erase",
}

// String returns the operation name.
func (o Op) String() string {
	if o < numOps {
		return opNames[o]
	}
	return "unknown"
}

// Statistics accumulates per-container operation counters.
//
// Counters are updated independently; a snapshot taken during concurrent
// operations has no ordering guarantee between fields.
type Statistics struct {
	enabled     bool
	ops         atomix.Int64
	contentions atomix.Int64
	nanos       atomix.Int64
	byOp        [numOps]atomix.Int64
}

// Snapshot is a read-only copy of a container's statistics.
type Snapshot struct {
	Operations    int64            `json:"operations"`
	Pushes        int64            `json:"pushes"`
	Pops          int64            `json:"pops"`
	Contentions   int64            `json:"contentions"`
	TotalDuration time.Duration    `json:"total_duration"`
	ByOp          map[string]int64 `json:"by_op"`
}

// AverageDuration returns the mean duration per recorded operation.
func (s Snapshot) AverageDuration() time.Duration {
	if s.Operations == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Operations)
}

// LogValue implements slog.LogValuer.
func (s Snapshot) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("operations", s.Operations),
		slog.Int64("pushes", s.Pushes),
		slog.Int64("pops", s.Pops),
		slog.Int64("contentions", s.Contentions),
		slog.Duration("avg_duration", s.AverageDuration()),
	)
}

// LogStatistics writes snap at info level under the given container name.
func LogStatistics(logger *slog.Logger, name string, snap Snapshot) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.LogAttrs(context.Background(), slog.LevelInfo, "lfc: container statistics",
		slog.String("container", name),
		slog.Any("stats", snap))
}

func newStatistics(enabled bool) *Statistics {
	return &Statistics{enabled: enabled}
}

// begin returns the start time of an operation, or the zero time when
// statistics are disabled.
func (s *Statistics) begin() time.Time {
	if !s.enabled {
		return time.Time{}
	}
	return time.Now()
}

func (s *Statistics) record(op Op, start time.Time) {
	if !s.enabled {
		return
	}
	s.ops.Add(1)
	s.nanos.Add(int64(time.Since(start)))
	s.byOp[op].Add(1)
}

func (s *Statistics) contention() {
	if s.enabled {
		s.contentions.Add(1)
	}
}

// Snapshot returns a copy of the counters.
func (s *Statistics) Snapshot() Snapshot {
	snap := Snapshot{
		Operations:    s.ops.Load(),
		Pushes:        s.byOp[OpPush].Load(),
		Pops:          s.byOp[OpPop].Load(),
		Contentions:   s.contentions.Load(),
		TotalDuration: time.Duration(s.nanos.Load()),
		ByOp:          make(map[string]int64, numOps),
	}
	for op := range numOps {
		if n := s.byOp[op].Load(); n > 0 {
			snap.ByOp[op.String()] = n
		}
	}
	return snap
}

// Reset zeroes every counter.
func (s *Statistics) Reset() {
	s.ops.Store(0)
	s.contentions.Store(0)
	s.nanos.Store(0)
	for i := range s.byOp {
		s.byOp[i].Store(0)
	}
}
