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

// Package world resolves the assignment of each core to the Trusted or
// Non-Trusted execution world.
//
// Each world has its own device tree describing which cores it owns. A core
// is handed to a world only when both descriptions agree on it: the Trusted
// description must mark it active and the Non-Trusted one inactive, or vice
// versa. Any disagreement aborts the whole assignment.
package world

import (
	"errors"
	"fmt"
)

// Cores is the number of application cores on the platform.
const Cores = 4

var (
	// ErrConsistencyViolation is returned when the two world descriptions
	// disagree on the ownership of at least one core.
	ErrConsistencyViolation = errors.New("world descriptors disagree on core ownership")
	// ErrCoreIndex is returned for core indices outside the platform range.
	ErrCoreIndex = errors.New("invalid core index")
)

// World represents an execution security domain.
type World int

const (
	Trusted World = iota
	NonTrusted
)

func (w World) String() string {
	switch w {
	case Trusted:
		return "T"
	case NonTrusted:
		return "NT"
	}

	return fmt.Sprintf("World(%d)", int(w))
}

// Other returns the opposite world.
func (w World) Other() World {
	if w == Trusted {
		return NonTrusted
	}

	return Trusted
}

// EntryPoint identifies the firmware a core enters once released, the
// address is only bound at dispatch time.
type EntryPoint int

const (
	// SecureMonitor is the Trusted world machine mode firmware.
	SecureMonitor EntryPoint = iota + 1
	// NonTrustedFirmware is the Non-Trusted world firmware.
	NonTrustedFirmware
)

func (e EntryPoint) String() string {
	switch e {
	case SecureMonitor:
		return "secure-monitor"
	case NonTrustedFirmware:
		return "nt-firmware"
	}

	return "none"
}

// Entry returns the entry point of a world.
func (w World) Entry() EntryPoint {
	if w == Trusted {
		return SecureMonitor
	}

	return NonTrustedFirmware
}

// Core represents the status of a core as described by one world.
type Core struct {
	Index  int
	Active bool
}

// Assignment represents the world a core is released into.
type Assignment struct {
	World World
	Entry EntryPoint
}

func (a Assignment) String() string {
	if a.Entry == 0 {
		return "unassigned"
	}

	return fmt.Sprintf("%s (%s)", a.World, a.Entry)
}

// Table holds the assignment of every core.
type Table [Cores]Assignment

// Cores returns the indices of the cores assigned to w.
func (t *Table) Cores(w World) (cores []int) {
	for i, a := range t {
		if a.Entry != 0 && a.World == w {
			cores = append(cores, i)
		}
	}

	return
}

// Derive builds the assignment table implied by one world description. Cores
// marked active by the view belong to that world, inactive ones to the other
// world. Cores absent from the description are left unassigned, a core
// described more than once is a consistency violation.
func Derive(view World, cores []Core) (t Table, err error) {
	for _, c := range cores {
		if c.Index < 0 || c.Index >= Cores {
			return Table{}, fmt.Errorf("%w: %d", ErrCoreIndex, c.Index)
		}

		if t[c.Index].Entry != 0 {
			return Table{}, fmt.Errorf("%w: core %d described twice by %s", ErrConsistencyViolation, c.Index, view)
		}

		w := view

		if !c.Active {
			w = view.Other()
		}

		t[c.Index] = Assignment{
			World: w,
			Entry: w.Entry(),
		}
	}

	return
}

// Resolve derives the assignment table from both world descriptions and
// verifies that they agree on every core. The table is returned only when
// all cores are assigned identically by both descriptions.
func Resolve(trusted []Core, nonTrusted []Core) (Table, error) {
	t, err := Derive(Trusted, trusted)

	if err != nil {
		return Table{}, err
	}

	chk, err := Derive(NonTrusted, nonTrusted)

	if err != nil {
		return Table{}, err
	}

	for i := 0; i < Cores; i++ {
		switch {
		case t[i].Entry == 0 || chk[i].Entry == 0:
			return Table{}, fmt.Errorf("%w: core %d not described by both worlds", ErrConsistencyViolation, i)
		case t[i] != chk[i]:
			return Table{}, fmt.Errorf("%w: core %d is %s for T, %s for NT", ErrConsistencyViolation, i, t[i], chk[i])
		}
	}

	return t, nil
}
