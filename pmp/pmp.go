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

// Package pmp builds and programs the per-hart physical memory protection
// tables confining the Non-Trusted world.
package pmp

import (
	"errors"
	"fmt"

	"github.com/usbarmory/tamago/bits"

	"github.com/transparency-dev/light-sboot/reg"
)

// MaxRegions is the number of protection entries available per hart.
const MaxRegions = 31

// Per-hart register block layout.
const (
	HartStride = 0x4000

	cfgOffset     = 0x000
	defaultOffset = 0x020
	entryOffset   = 0x100

	// grant everything not covered by an entry to the Trusted world only
	defaultPolicy = 0xc7

	cfgR      = 0
	cfgW      = 1
	cfgX      = 2
	cfgLocked = 7

	granule = 12
)

var (
	// ErrCapacityExceeded is returned when a region is added to a full table.
	ErrCapacityExceeded = errors.New("protection table full")
	// ErrInvalidRegion is returned for empty or wrapping regions.
	ErrInvalidRegion = errors.New("invalid region")
)

// Region represents an address range [Start, End) and its access rights.
type Region struct {
	Start uint64
	End   uint64

	R bool
	W bool
	X bool
}

func (r Region) String() string {
	perm := []byte("---")

	if r.R {
		perm[0] = 'r'
	}

	if r.W {
		perm[1] = 'w'
	}

	if r.X {
		perm[2] = 'x'
	}

	return fmt.Sprintf("%#x ~ %#x %s", r.Start, r.End, perm)
}

func (r Region) cfg() (c uint32) {
	bits.Set(&c, cfgLocked)

	if r.R {
		bits.Set(&c, cfgR)
	}

	if r.W {
		bits.Set(&c, cfgW)
	}

	if r.X {
		bits.Set(&c, cfgX)
	}

	return
}

// Table is an ordered set of regions granted to the Non-Trusted world. The
// first region added must be its general memory and is granted full access,
// later regions (device windows) are not executable.
type Table struct {
	regions []Region
}

// Add appends the region [start, start+size) to the table.
func (t *Table) Add(start uint64, size uint64) error {
	if len(t.regions) == MaxRegions {
		return fmt.Errorf("%w: %d entries", ErrCapacityExceeded, MaxRegions)
	}

	end := start + size

	if size == 0 || end < start {
		return fmt.Errorf("%w: %#x+%#x", ErrInvalidRegion, start, size)
	}

	t.regions = append(t.regions, Region{
		Start: start,
		End:   end,
		R:     true,
		W:     true,
		X:     len(t.regions) == 0,
	})

	return nil
}

// Len returns the number of regions in the table.
func (t *Table) Len() int {
	return len(t.regions)
}

// Regions returns a copy of the table regions in insertion order.
func (t *Table) Regions() []Region {
	return append([]Region(nil), t.regions...)
}

// Program writes the table to the protection unit of a hart, base is the
// address of the hart 0 register block.
func (t *Table) Program(a reg.Accessor, base uint64, hart int) {
	blk := base + uint64(hart)*HartStride

	for i, r := range t.regions {
		a.Write(blk+entryOffset+uint64(i)*8, uint32(r.Start>>granule))
		a.Write(blk+entryOffset+uint64(i)*8+4, uint32(r.End>>granule))
	}

	for k, r := range t.regions {
		reg.SetN(a, blk+cfgOffset+uint64(k/4)*4, (k%4)*8, 0xff, r.cfg())
	}

	a.Write(blk+defaultOffset, defaultPolicy)
	a.Barrier()
}
