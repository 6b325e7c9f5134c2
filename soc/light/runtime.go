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
	_ "unsafe"

	"github.com/usbarmory/tamago/riscv"

	"github.com/transparency-dev/light-sboot/reg"
)

// machine timer frequency (3MHz)
const timerFreq = 3000000

// Peripheral instances
var (
	// RISC-V core
	RV64 = &riscv.CPU{}

	// Register access
	MMIO = &reg.MMIO{Fence: Fence}

	// Serial port
	UART0 = &UART{
		Base: UART0_BASE,
		Regs: MMIO,
	}
)

var rngState uint64

//go:linkname hwinit runtime.hwinit
func hwinit() {
	RV64.Init()
}

//go:linkname printk runtime.printk
func printk(c byte) {
	UART0.Tx(c)
}

//go:linkname nanotime1 runtime.nanotime1
func nanotime1() int64 {
	t := rdtime()
	return int64(t/timerFreq)*1e9 + int64(t%timerFreq)*1e9/timerFreq
}

// The SoC TRNG is not used, runtime randomness is derived from the timer
// with an xorshift64* generator.
//
//go:linkname initRNG runtime.initRNG
func initRNG() {
	rngState = rdtime() | 1
}

//go:linkname getRandomData runtime.getRandomData
func getRandomData(b []byte) {
	for i := range b {
		rngState ^= rngState >> 12
		rngState ^= rngState << 25
		rngState ^= rngState >> 27
		rngState ^= rdtime()
		b[i] = byte((rngState * 2685821657736338717) >> 56)
	}
}
