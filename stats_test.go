// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"code.hybscloud.com/lfc"
)

// =============================================================================
// Statistics
// =============================================================================

func TestSnapshotAverageDuration(t *testing.T) {
	var s lfc.Snapshot
	if s.AverageDuration() != 0 {
		t.Fatalf("AverageDuration of empty snapshot: got %v, want 0", s.AverageDuration())
	}
	s = lfc.Snapshot{Operations: 4, TotalDuration: 100 * time.Nanosecond}
	if got := s.AverageDuration(); got != 25*time.Nanosecond {
		t.Fatalf("AverageDuration: got %v, want 25ns", got)
	}
}

func TestStatisticsByOp(t *testing.T) {
	b, dom := newBuilder(t)
	s, err := lfc.BuildStack[int](b)
	if err != nil {
		t.Fatalf("BuildStack: %v", err)
	}
	p := dom.Attach()
	defer p.Detach()

	for i := range 3 {
		_ = s.Push(p, i)
	}
	s.Pop(p)
	snap := s.Statistics()
	if snap.Pushes != 3 || snap.Pops != 1 {
		t.Fatalf("Pushes/Pops: got %d/%d, want 3/1", snap.Pushes, snap.Pops)
	}
	if snap.Operations != 4 {
		t.Fatalf("Operations: got %d, want 4", snap.Operations)
	}
	if snap.ByOp["push"] != 3 || snap.ByOp["pop"] != 1 {
		t.Fatalf("ByOp: got %v", snap.ByOp)
	}
	if _, ok := snap.ByOp["insert"]; ok {
		t.Fatalf("ByOp: unexpected insert entry in %v", snap.ByOp)
	}

	s.ResetStatistics()
	if snap := s.Statistics(); snap.Operations != 0 || len(snap.ByOp) != 0 {
		t.Fatalf("after Reset: got %+v", snap)
	}
}

func TestLogStatistics(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	lfc.LogStatistics(logger, "orders", lfc.Snapshot{
		Operations:    10,
		Pushes:        6,
		Pops:          4,
		Contentions:   2,
		TotalDuration: time.Microsecond,
	})

	var rec struct {
		Msg       string `json:"msg"`
		Container string `json:"container"`
		Stats     struct {
			Operations  int64 `json:"operations"`
			Pushes      int64 `json:"pushes"`
			Pops        int64 `json:"pops"`
			Contentions int64 `json:"contentions"`
			Avg         int64 `json:"avg_duration"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log record %q: %v", buf.String(), err)
	}
	if rec.Container != "orders" {
		t.Fatalf("container: got %q, want orders", rec.Container)
	}
	if rec.Stats.Operations != 10 || rec.Stats.Pushes != 6 || rec.Stats.Pops != 4 || rec.Stats.Contentions != 2 {
		t.Fatalf("stats: got %+v", rec.Stats)
	}
	if rec.Stats.Avg != int64(100*time.Nanosecond) {
		t.Fatalf("avg_duration: got %d, want 100", rec.Stats.Avg)
	}
}

func TestOpString(t *testing.T) {
	if got := lfc.OpBatchPop.String(); got != "batch_pop" {
		t.Fatalf("OpBatchPop: got %q", got)
	}
	if got := lfc.Op(200).String(); got != "unknown" {
		t.Fatalf("Op(200): got %q, want unknown", got)
	}
}
