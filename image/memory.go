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


package image

import (
	"fmt"
	"io"
	"sort"
)

type segment struct {
	addr uint64
	data []byte
}

// Memory is a sparse physical memory holding images loaded at arbitrary
// addresses, it implements io.ReaderAt for off target use of the boot
// sequence.
type Memory struct {
	segments []segment
}

// Load places data at addr, replacing any data previously loaded at the
// same address.
func (m *Memory) Load(addr uint64, data []byte) {
	data = append([]byte{}, data...)

	for i := range m.segments {
		if m.segments[i].addr == addr {
			m.segments[i].data = data
			return
		}
	}

	m.segments = append(m.segments, segment{addr: addr, data: data})
	sort.Slice(m.segments, func(i, j int) bool { return m.segments[i].addr < m.segments[j].addr })
}

// ReadAt implements io.ReaderAt, reads must fall within a single segment.
func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	addr := uint64(off)

	for _, s := range m.segments {
		if addr < s.addr || addr >= s.addr+uint64(len(s.data)) {
			continue
		}

		n := copy(p, s.data[addr-s.addr:])

		if n < len(p) {
			return n, io.EOF
		}

		return n, nil
	}

	return 0, fmt.Errorf("no memory at %#x", addr)
}
