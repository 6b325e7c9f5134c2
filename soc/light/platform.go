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

//go:build tamago && riscv64
// +build tamago,riscv64

package light

import (
	"github.com/transparency-dev/light-sboot/dispatch"
	"github.com/transparency-dev/light-sboot/world"
)

// hart boot parameters, read by the trampoline with a 64 byte stride
type bootParams struct {
	PC        uint64
	A0        uint64
	A1        uint64
	A2        uint64
	Configure uint64
	_         [3]uint64
}

var harts [world.Cores]bootParams

// defined in light.s
func hartid() uint64
func rdtime() uint64
func fence()
func configureCPU()
func enter(pc uint64, a0 uint64, a1 uint64, a2 uint64)
func trampoline()
func trampolineAddr() uint64

// Fence orders all previous memory accesses against all subsequent ones and
// synchronizes the instruction and data caches of every core.
func Fence() {
	fence()
}

// Platform implements dispatch.Platform on the C910 cluster.
type Platform struct{}

// HartID returns the index of the calling hart.
func (p *Platform) HartID() int {
	return int(hartid())
}

// Stage records the entry of a secondary hart, which must be released at
// the returned trampoline address.
func (p *Platform) Stage(hart int, e dispatch.Entry) uint64 {
	h := &harts[hart]

	h.PC = e.PC
	h.A0 = e.Args[0]
	h.A1 = e.Args[1]
	h.A2 = e.Args[2]
	h.Configure = 0

	if e.ConfigureCPU {
		h.Configure = 1
	}

	fence()

	return trampolineAddr()
}

// Enter hands the calling hart over to its world, it never returns.
func (p *Platform) Enter(e dispatch.Entry) {
	if e.ConfigureCPU {
		configureCPU()
	}

	enter(e.PC, e.Args[0], e.Args[1], e.Args[2])
}
