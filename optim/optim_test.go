// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim_test

import (
	"testing"

	"github.com/born-ml/ffm/optim"
)

func TestNewAdaGrad(t *testing.T) {
	opt := optim.NewAdaGrad(optim.AdaGradConfig{LR: 0.5})
	if opt.GetLR() != 0.5 {
		t.Errorf("GetLR: got %f, want 0.5", opt.GetLR())
	}

	w, acc := float32(0), float32(1)
	opt.Step(&w, &acc, 1)
	if acc != 2 {
		t.Errorf("acc: got %f, want 2", acc)
	}
	if w >= 0 {
		t.Errorf("w: got %f, want negative", w)
	}
}
