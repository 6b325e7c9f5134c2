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

// Package dispatch releases the secondary cores into their assigned world
// and hands the primary core over to its own world.
//
// All register accesses go through a reg.Accessor and every hart specific
// operation (staging the entry of a secondary core, entering a world) goes
// through a Platform, so that the whole release sequence can be exercised
// off target.
package dispatch

import (
	"errors"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/transparency-dev/light-sboot/pmp"
	"github.com/transparency-dev/light-sboot/reg"
	"github.com/transparency-dev/light-sboot/world"
)

// DefaultSettle is the delay granted to each released core to start.
const DefaultSettle = 50 * time.Millisecond

const (
	mailboxOffset = 0x50
	controlOffset = 0x04

	// keep the primary cluster and core 0 running
	controlBase = 0b11

	// first argument passed to the Non-Trusted firmware
	NonTrustedMagic = 0xdeadbeef
)

// ErrState is returned for operations invalid in the current state.
var ErrState = errors.New("invalid dispatcher state")

// State represents the dispatcher lifecycle.
type State int

const (
	Idle State = iota
	Configured
	Released
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Configured:
		return "configured"
	case Released:
		return "released"
	}

	return fmt.Sprintf("State(%d)", int(s))
}

// Entry represents the handoff of a core to its world.
type Entry struct {
	World world.World
	// PC is the world entry point.
	PC uint64
	// Args are passed in a0-a2.
	Args [3]uint64
	// ConfigureCPU requests core control registers setup before entry.
	ConfigureCPU bool
}

func (e Entry) String() string {
	return fmt.Sprintf("%s pc:%#x a0:%#x a1:%#x a2:%#x cfg:%v", e.World, e.PC, e.Args[0], e.Args[1], e.Args[2], e.ConfigureCPU)
}

// Platform represents the hart specific operations of the boot sequence.
type Platform interface {
	// HartID returns the index of the calling hart.
	HartID() int
	// Stage records e as the entry of a secondary hart and returns the
	// address the hart must fetch once released.
	Stage(hart int, e Entry) uint64
	// Enter hands the calling hart over to its world, it never returns.
	Enter(e Entry)
}

// Params holds the addresses resolved by the boot sequence.
type Params struct {
	// Table is the agreed core assignment.
	Table world.Table

	// SecureMonitor is the Trusted world entry point.
	SecureMonitor uint64
	// Kernel is the Trusted kernel started by the secure monitor.
	Kernel uint64
	// TrustedDTB is the Trusted world device tree.
	TrustedDTB uint64
	// InfoAddr is where the secure monitor FirmwareInfo is placed.
	InfoAddr uint64

	// NonTrustedEntry is the Non-Trusted world entry point.
	NonTrustedEntry uint64
	// NonTrustedDTB is the Non-Trusted world device tree.
	NonTrustedDTB uint64
	// PMP is the memory protection table of Non-Trusted harts.
	PMP *pmp.Table
	// PMPBase is the address of the hart 0 protection registers.
	PMPBase uint64

	// Mailbox is the core boot address mailbox base.
	Mailbox uint64
	// Control is the core reset control base.
	Control uint64
}

// Dispatcher sequences the release of all cores.
type Dispatcher struct {
	Platform Platform
	Regs     reg.Accessor

	// Settle is the delay after each release, DefaultSettle when zero.
	Settle time.Duration
	// Sleep waits for the settle delay, time.Sleep when nil.
	Sleep func(time.Duration)

	params   Params
	primary  int
	state    State
	released uint32
}

// State returns the dispatcher state.
func (d *Dispatcher) State() State {
	return d.state
}

// Configure validates the boot parameters and writes the secure monitor
// information structure.
func (d *Dispatcher) Configure(p Params) error {
	if d.state != Idle {
		return fmt.Errorf("%w: configure while %s", ErrState, d.state)
	}

	for i, a := range p.Table {
		if a.Entry == 0 {
			return fmt.Errorf("%w: core %d unassigned", ErrState, i)
		}
	}

	if len(p.Table.Cores(world.NonTrusted)) > 0 && p.PMP == nil {
		return fmt.Errorf("%w: no protection table for Non-Trusted cores", ErrState)
	}

	d.params = p
	d.primary = d.Platform.HartID()

	if len(p.Table.Cores(world.Trusted)) > 0 {
		info := FirmwareInfo{
			Magic:    FirmwareInfoMagic,
			Version:  FirmwareInfoVersion,
			NextAddr: p.Kernel,
			NextMode: NextModeS,
			BootHart: uint64(d.primary),
		}

		info.Write(d.Regs, p.InfoAddr)
	}

	d.state = Configured

	return nil
}

// Entry returns the handoff of a hart according to its assignment.
func (d *Dispatcher) Entry(hart int) Entry {
	p := d.params

	if p.Table[hart].World == world.Trusted {
		return Entry{
			World:        world.Trusted,
			PC:           p.SecureMonitor,
			Args:         [3]uint64{uint64(hart), p.TrustedDTB, p.InfoAddr},
			ConfigureCPU: hart != d.primary,
		}
	}

	return Entry{
		World:        world.NonTrusted,
		PC:           p.NonTrustedEntry,
		Args:         [3]uint64{NonTrustedMagic, p.NonTrustedDTB, 0},
		ConfigureCPU: true,
	}
}

func (d *Dispatcher) prepare(hart int) Entry {
	e := d.Entry(hart)

	if e.World == world.NonTrusted {
		d.params.PMP.Program(d.Regs, d.params.PMPBase, hart)
	}

	return e
}

// Release starts a secondary core.
func (d *Dispatcher) Release(core int) error {
	if d.state != Configured {
		return fmt.Errorf("%w: release while %s", ErrState, d.state)
	}

	if core < 0 || core >= world.Cores || core == d.primary {
		return fmt.Errorf("%w: core %d is not a secondary core", ErrState, core)
	}

	bit := uint32(1) << (core + 1)

	if d.released&bit != 0 {
		return fmt.Errorf("%w: core %d already released", ErrState, core)
	}

	e := d.prepare(core)
	pc := d.Platform.Stage(core, e)

	klog.V(1).Infof("SM: cpu %d ---%#x (%s)", core, pc, e)

	d.Regs.Barrier()
	reg.Write64(d.Regs, d.params.Mailbox+mailboxOffset+uint64(core)*8, pc)

	d.released |= bit
	d.Regs.Write(d.params.Control+controlOffset, controlBase|d.released)

	d.settle()

	return nil
}

func (d *Dispatcher) settle() {
	delay := d.Settle

	if delay == 0 {
		delay = DefaultSettle
	}

	if d.Sleep != nil {
		d.Sleep(delay)
	} else {
		time.Sleep(delay)
	}
}

// Boot releases all secondary cores in index order and enters the world of
// the calling hart, it never returns on success.
func (d *Dispatcher) Boot() error {
	if d.state != Configured {
		return fmt.Errorf("%w: boot while %s", ErrState, d.state)
	}

	for core := 0; core < world.Cores; core++ {
		if core == d.primary {
			continue
		}

		if err := d.Release(core); err != nil {
			return err
		}
	}

	d.state = Released

	e := d.prepare(d.primary)

	klog.Infof("SM: hart %d entering %s world at %#x", d.primary, e.World, e.PC)

	d.Platform.Enter(e)

	panic("world entry returned")
}
