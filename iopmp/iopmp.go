// Copyright 2024 The Light SBoot authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package iopmp restricts the DMA windows of bus masters assigned to the
// Non-Trusted world.
package iopmp

import (
	"github.com/transparency-dev/light-sboot/devicetree"
	"github.com/transparency-dev/light-sboot/reg"
)

const (
	startOffset = 0x280
	endOffset   = 0x284
	ctrlOffset  = 0x80

	// enable read and write access within the window
	enable = 0x3
)

// Configure programs the I/O protection unit of every window and returns
// the number of units programmed.
func Configure(a reg.Accessor, windows []devicetree.IOWindow) (n int) {
	for _, w := range windows {
		a.Write(w.Base+startOffset, uint32(w.Range.Start>>12))
		a.Write(w.Base+endOffset, uint32(w.Range.End()>>12))
		a.Write(w.Base+ctrlOffset, enable)
		n++
	}

	if n > 0 {
		a.Barrier()
	}

	return
}
