// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc_test

import (
	"io"
	"log/slog"
	"testing"

	"code.hybscloud.com/lfc"
	"code.hybscloud.com/lfc/hazard"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// newBuilder returns a builder over a fresh domain. The domain is closed
// when the test ends.
func newBuilder(t testing.TB) (*lfc.Builder, *hazard.Domain) {
	t.Helper()
	dom, err := hazard.NewDomain(hazard.Options{Logger: quiet})
	if err != nil {
		t.Fatalf("NewDomain: %v", err)
	}
	t.Cleanup(func() {
		if err := dom.Close(); err != nil {
			t.Errorf("domain Close: %v", err)
		}
	})
	return lfc.New(dom), dom
}

func mustPanicWith(t *testing.T, name string, want any, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r != want {
			t.Fatalf("%s: recover got %v, want %v", name, r, want)
		}
	}()
	fn()
}
