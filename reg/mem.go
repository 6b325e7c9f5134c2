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

package reg

import (
	"fmt"
	"sort"
	"strings"
)

// Op represents a single recorded register access.
type Op struct {
	// Addr is the register address, zero for barriers.
	Addr uint64
	// Val is the written value.
	Val uint32
	// Barrier is set for memory barriers.
	Barrier bool
}

func (o Op) String() string {
	if o.Barrier {
		return "barrier"
	}

	return fmt.Sprintf("%#010x <- %#08x", o.Addr, o.Val)
}

// Mem is an in-memory register file which records every write and barrier
// in program order. Registers which have never been written read as zero.
type Mem struct {
	regs map[uint64]uint32

	// Log holds all writes and barriers in the order they were issued.
	Log []Op
}

// NewMem returns an empty register file.
func NewMem() *Mem {
	return &Mem{
		regs: make(map[uint64]uint32),
	}
}

// Read returns the current value of the register at addr.
func (m *Mem) Read(addr uint64) uint32 {
	return m.regs[addr]
}

// Write sets the register at addr and records the access.
func (m *Mem) Write(addr uint64, val uint32) {
	if m.regs == nil {
		m.regs = make(map[uint64]uint32)
	}

	m.regs[addr] = val
	m.Log = append(m.Log, Op{Addr: addr, Val: val})
}

// Barrier records a memory barrier.
func (m *Mem) Barrier() {
	m.Log = append(m.Log, Op{Barrier: true})
}

// Writes returns the number of recorded writes to addresses within
// [start, end).
func (m *Mem) Writes(start uint64, end uint64) (n int) {
	for _, op := range m.Log {
		if !op.Barrier && op.Addr >= start && op.Addr < end {
			n++
		}
	}

	return
}

// Dump returns the final register state in address order.
func (m *Mem) Dump() string {
	var addrs []uint64
	var s strings.Builder

	for addr := range m.regs {
		addrs = append(addrs, addr)
	}

	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	for _, addr := range addrs {
		fmt.Fprintf(&s, "%#010x: %#08x\n", addr, m.regs[addr])
	}

	return s.String()
}
