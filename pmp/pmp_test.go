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

package pmp

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/transparency-dev/light-sboot/reg"
)

const base = 0xffdc020000

func TestAdd(t *testing.T) {
	for _, test := range []struct {
		name    string
		start   uint64
		size    uint64
		wantErr error
	}{
		{name: "memory", start: 0x20000000, size: 0x40000000},
		{name: "empty", start: 0x1000, size: 0, wantErr: ErrInvalidRegion},
		{name: "wraps", start: 0xfffffffffffff000, size: 0x2000, wantErr: ErrInvalidRegion},
	} {
		t.Run(test.name, func(t *testing.T) {
			tbl := &Table{}
			if err := tbl.Add(test.start, test.size); !errors.Is(err, test.wantErr) {
				t.Fatalf("Add() = %v, want %v", err, test.wantErr)
			}
		})
	}
}

func TestCapacity(t *testing.T) {
	tbl := &Table{}

	for i := 0; i < MaxRegions; i++ {
		if err := tbl.Add(uint64(i+1)<<20, 0x1000); err != nil {
			t.Fatalf("Add(%d): %v", i, err)
		}
	}

	before := tbl.Regions()

	if err := tbl.Add(0x80000000, 0x1000); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("Add() on full table = %v, want %v", err, ErrCapacityExceeded)
	}

	if diff := cmp.Diff(before, tbl.Regions()); diff != "" {
		t.Fatalf("table modified by rejected Add (-before +after):\n%s", diff)
	}
}

func TestRights(t *testing.T) {
	tbl := &Table{}
	tbl.Add(0x20000000, 0x40000000)
	tbl.Add(0xffe7014000, 0x4000)

	want := []Region{
		{Start: 0x20000000, End: 0x60000000, R: true, W: true, X: true},
		{Start: 0xffe7014000, End: 0xffe7018000, R: true, W: true},
	}

	if diff := cmp.Diff(want, tbl.Regions()); diff != "" {
		t.Fatalf("unexpected regions (-want +got):\n%s", diff)
	}
}

func TestProgram(t *testing.T) {
	tbl := &Table{}

	for _, r := range [][2]uint64{
		{0x20000000, 0x40000000},
		{0xffe7014000, 0x4000},
		{0xffe7f34000, 0x1000},
		{0xffe7f38000, 0x1000},
		{0xffe7f3c000, 0x1000},
	} {
		if err := tbl.Add(r[0], r[1]); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	for _, hart := range []int{2, 3} {
		m := reg.NewMem()
		tbl.Program(m, base, hart)

		blk := uint64(base + hart*HartStride)

		for addr, want := range map[uint64]uint32{
			blk + 0x100: 0x20000,
			blk + 0x104: 0x60000,
			blk + 0x108: 0xffe7014,
			blk + 0x10c: 0xffe7018,
			blk + 0x120: 0xffe7f3c,
			blk + 0x124: 0xffe7f3d,
			blk + 0x00:  0x83838387,
			blk + 0x04:  0x00000083,
			blk + 0x20:  0xc7,
		} {
			if got := m.Read(addr); got != want {
				t.Errorf("hart %d: reg %#x = %#x, want %#x", hart, addr, got, want)
			}
		}

		if n := m.Writes(base, blk); n != 0 {
			t.Errorf("hart %d: %d writes to other harts", hart, n)
		}

		if last := m.Log[len(m.Log)-1]; !last.Barrier {
			t.Errorf("hart %d: last operation %v, want barrier", hart, last)
		}
	}
}

func TestProgramReplacesStaleConfig(t *testing.T) {
	m := reg.NewMem()
	blk := uint64(base + HartStride)

	m.Write(blk+cfgOffset, 0xffffffff)

	tbl := &Table{}
	tbl.Add(0x20000000, 0x40000000)
	tbl.Add(0xffe7014000, 0x4000)

	tbl.Program(m, base, 1)

	if got, want := m.Read(blk+cfgOffset), uint32(0xffff8387); got != want {
		t.Fatalf("cfg0 = %#x, want %#x", got, want)
	}
}
