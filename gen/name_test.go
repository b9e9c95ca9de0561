// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gen

import "testing"

func TestPascal(t *testing.T) {
	tests := []struct{ in, want string }{
		{"rev_out", "RevOut"},
		{"en", "En"},
		{"mode0", "Mode0"},
		{"rx_tx_en", "RxTxEn"},
		{"div_1", "Div1"},
		{"a", "A"},
	}
	for _, tt := range tests {
		if got := pascal(tt.in); got != tt.want {
			t.Errorf("pascal(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
