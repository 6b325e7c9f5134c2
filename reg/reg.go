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

// Package reg provides access to the memory mapped registers programmed
// during the boot sequence.
//
// The boot sequence never dereferences register addresses directly, all
// accesses go through an Accessor so that the whole sequence can be
// executed against an in-memory register file (see Mem) for testing and
// for offline planning.
package reg

import (
	"github.com/usbarmory/tamago/bits"
)

// Accessor represents the capability to read and write 32-bit memory mapped
// registers.
type Accessor interface {
	// Read returns the 32-bit value at addr.
	Read(addr uint64) uint32
	// Write sets the 32-bit value at addr.
	Write(addr uint64, val uint32)
	// Barrier ensures that all previous writes are visible to every hart
	// before any subsequent access.
	Barrier()
}

// Set sets bit pos in the register at addr.
func Set(a Accessor, addr uint64, pos int) {
	r := a.Read(addr)
	bits.Set(&r, pos)
	a.Write(addr, r)
}

// SetN modifies the mask wide field at pos in the register at addr.
func SetN(a Accessor, addr uint64, pos int, mask int, val uint32) {
	r := a.Read(addr)
	bits.SetN(&r, pos, mask, val)
	a.Write(addr, r)
}

// Write64 sets a 64-bit value as two consecutive 32-bit registers, low word
// first.
func Write64(a Accessor, addr uint64, val uint64) {
	a.Write(addr, uint32(val&0xffffffff))
	a.Write(addr+4, uint32(val>>32))
}
