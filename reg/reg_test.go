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
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHelpers(t *testing.T) {
	m := NewMem()

	m.Write(0x100, 0x1)
	Set(m, 0x104, 31)
	SetN(m, 0x108, 8, 0xff, 0x83)
	Write64(m, 0x200, 0x00000001_23456789)
	m.Barrier()

	for _, test := range []struct {
		addr uint64
		want uint32
	}{
		{addr: 0x100, want: 0x1},
		{addr: 0x104, want: 0x80000000},
		{addr: 0x108, want: 0x8300},
		{addr: 0x200, want: 0x23456789},
		{addr: 0x204, want: 0x1},
		{addr: 0x300, want: 0},
	} {
		if got := m.Read(test.addr); got != test.want {
			t.Errorf("Read(%#x) = %#x, want %#x", test.addr, got, test.want)
		}
	}

	want := []Op{
		{Addr: 0x100, Val: 0x1},
		{Addr: 0x100, Val: 0x81},
		{Addr: 0x104, Val: 0x80000000},
		{Addr: 0x108, Val: 0x8300},
		{Addr: 0x200, Val: 0x23456789},
		{Addr: 0x204, Val: 0x1},
		{Barrier: true},
	}

	if diff := cmp.Diff(want, m.Log); diff != "" {
		t.Fatalf("unexpected log (-want +got):\n%s", diff)
	}

	if got, want := m.Writes(0x100, 0x200), 4; got != want {
		t.Errorf("Writes() = %d, want %d", got, want)
	}
}

func TestZeroMem(t *testing.T) {
	var m Mem

	m.Write(0x10, 0xaa)

	if got := m.Read(0x10); got != 0xaa {
		t.Fatalf("Read() = %#x, want 0xaa", got)
	}
}
