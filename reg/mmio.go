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

//go:build tamago
// +build tamago

package reg

import (
	"fmt"
	"io"
	"sync/atomic"
	"unsafe"
)

// MMIO accesses physical registers directly, it must only be used on bare
// metal with identity mapped memory.
type MMIO struct {
	// Fence is invoked by Barrier, it must order all previous memory
	// accesses against all subsequent ones for every hart.
	Fence func()
}

// Read returns the 32-bit value at addr.
func (m *MMIO) Read(addr uint64) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(uintptr(addr))))
}

// Write sets the 32-bit value at addr.
func (m *MMIO) Write(addr uint64, val uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(uintptr(addr))), val)
}

// Barrier invokes the platform fence.
func (m *MMIO) Barrier() {
	if m.Fence != nil {
		m.Fence()
	}
}

// Physical gives read access to identity mapped physical memory, it
// implements io.ReaderAt.
type Physical struct {
	// Start and End bound the accessible memory.
	Start uint64
	End   uint64
}

// ReadAt copies len(p) bytes at physical address off.
func (m *Physical) ReadAt(p []byte, off int64) (int, error) {
	addr := uint64(off)

	if off < 0 || addr < m.Start || addr >= m.End {
		return 0, fmt.Errorf("address %#x out of range", addr)
	}

	n := len(p)

	if avail := m.End - addr; uint64(n) > avail {
		n = int(avail)
	}

	copy(p, unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), n))

	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}
