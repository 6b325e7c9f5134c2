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


package main

import (
	_ "unsafe"

	"github.com/usbarmory/tamago/dma"
)

const (
	// DDR visible to the boot monitor
	ddrStart = 0x00000000
	ddrSize  = 0x200000000 // 8GB

	// Boot monitor
	secureStart = 0x3e000000
	secureSize  = 0x01000000 // 16MB

	// Boot monitor DMA
	secureDMAStart = 0x3f000000
	secureDMASize  = 0x00f00000 // 15MB

	// Secure monitor firmware information, must remain untouched after the
	// handoff
	infoStart = 0x3ff00000
	infoSize  = 0x1000
)

//go:linkname ramStart runtime.ramStart
var ramStart uint64 = secureStart

//go:linkname ramSize runtime.ramSize
var ramSize uint64 = secureSize

//go:linkname ramStackOffset runtime.ramStackOffset
var ramStackOffset uint64 = 0x100

var (
	infoRegion *dma.Region
	infoAddr   uint64
)

func init() {
	dma.Init(secureDMAStart, secureDMASize)

	infoRegion, _ = dma.NewRegion(infoStart, infoSize, false)
	addr, _ := infoRegion.Reserve(infoSize, 0)

	infoAddr = uint64(addr)
}
