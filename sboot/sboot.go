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


// Package sboot implements the secure boot sequence of the Light SoC: it
// authenticates the boot images, partitions cores, memory and peripherals
// between the Trusted and Non-Trusted worlds according to their device
// trees, enforces the partition and finally releases every core into its
// world.
package sboot

import (
	"errors"
	"fmt"
	"io"
	"time"

	"k8s.io/klog/v2"

	"github.com/transparency-dev/light-sboot/devicetree"
	"github.com/transparency-dev/light-sboot/dispatch"
	"github.com/transparency-dev/light-sboot/env"
	"github.com/transparency-dev/light-sboot/image"
	"github.com/transparency-dev/light-sboot/iopmp"
	"github.com/transparency-dev/light-sboot/plic"
	"github.com/transparency-dev/light-sboot/pmp"
	"github.com/transparency-dev/light-sboot/reg"
	"github.com/transparency-dev/light-sboot/soc/light"
	"github.com/transparency-dev/light-sboot/version"
	"github.com/transparency-dev/light-sboot/world"
)

// Phase identifies a step of the boot sequence.
type Phase string

const (
	PhaseArgs    Phase = "args"
	PhaseVerify  Phase = "verify"
	PhaseParse   Phase = "parse"
	PhaseResolve Phase = "resolve"
	PhaseProtect Phase = "protect"
	PhaseRelease Phase = "release"
	PhaseUpgrade Phase = "upgrade"
)

// ErrUsage is returned for malformed boot arguments.
var ErrUsage = errors.New("usage: <kernel> <rootfs> <t-dtb> <nt-dtb>")

// AbortError is returned when the boot sequence is aborted, no core has
// been released when it is returned.
type AbortError struct {
	Phase Phase
	Err   error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

func abort(phase Phase, err error) error {
	return &AbortError{Phase: phase, Err: err}
}

// Status maps the outcome of a command to its terminal status.
func Status(err error) int {
	if err != nil {
		return 1
	}

	return 0
}

// Plan holds everything resolved by the boot sequence before any hardware
// state is changed.
type Plan struct {
	Kernel        *image.Descriptor
	Rootfs        *image.Descriptor
	TrustedDTB    *image.Descriptor
	SecureMonitor *image.Descriptor
	AlwaysOn      *image.Descriptor
	// NonTrustedDTB is used at its load address, without verification.
	NonTrustedDTB uint64

	Trusted    *devicetree.Resources
	NonTrusted *devicetree.Resources
	Table      world.Table

	PMP        *pmp.Table
	Interrupts *plic.InterruptSet
}

// Orchestrator runs the boot sequence on the primary hart.
type Orchestrator struct {
	// Memory gives access to the loaded images.
	Memory io.ReaderAt
	Regs   reg.Accessor
	Env    env.Env

	Verifier image.Verifier
	Platform dispatch.Platform
	Parser   devicetree.Parser

	// Guard and Pending serve the image upgrade check, Pending defaults to
	// the Guard store when it implements version.Pending.
	Guard   *version.Guard
	Pending version.Pending

	Settle time.Duration
	Sleep  func(time.Duration)

	// InfoAddr is where the secure monitor FirmwareInfo is placed.
	InfoAddr uint64
}

func (o *Orchestrator) sbiAddr() (uint64, error) {
	if o.Env == nil {
		return light.SBI_ENTRY_ADDR, nil
	}

	addr, err := env.Uint(o.Env, light.SBIAddrEnv, light.SBI_ENTRY_ADDR)

	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUsage, err)
	}

	return addr, nil
}

func (o *Orchestrator) verify(kind image.Kind, addr uint64) (*image.Descriptor, error) {
	d, err := image.VerifyAndLocate(o.Memory, o.Verifier, kind, addr)

	if err != nil {
		klog.Errorf("SM: %s image verification failed at %#x", kind, addr)
		return nil, err
	}

	klog.Infof("SM: %s image verified (%s)", kind, d)

	return d, nil
}

// parseArgs converts the image addresses, ordered as kernel, rootfs,
// Trusted and Non-Trusted device trees.
func parseArgs(args []string) (addrs [4]uint64, err error) {
	if len(args) != len(addrs) {
		return addrs, ErrUsage
	}

	for i, arg := range args {
		if addrs[i], err = env.ParseHex(arg); err != nil {
			return addrs, fmt.Errorf("%w: invalid address %q", ErrUsage, arg)
		}
	}

	return
}

// Prepare authenticates the images loaded at the addresses in args and
// resolves the world partition from both device trees. On success the
// verified image arguments are rewritten in place with their payload
// addresses, an unverified rootfs is replaced with "-".
//
// No hardware state is changed by Prepare.
func (o *Orchestrator) Prepare(args []string) (*Plan, error) {
	addrs, err := parseArgs(args)

	if err != nil {
		return nil, abort(PhaseArgs, err)
	}

	sbi, err := o.sbiAddr()

	if err != nil {
		return nil, abort(PhaseArgs, err)
	}

	p := &Plan{
		NonTrustedDTB: addrs[3],
	}

	if p.Kernel, err = o.verify(image.Kernel, addrs[0]); err != nil {
		return nil, abort(PhaseVerify, err)
	}

	if image.Mandatory(image.Rootfs) {
		if p.Rootfs, err = o.verify(image.Rootfs, addrs[1]); err != nil {
			return nil, abort(PhaseVerify, err)
		}
	}

	if p.TrustedDTB, err = o.verify(image.TrustedDeviceTree, addrs[2]); err != nil {
		return nil, abort(PhaseVerify, err)
	}

	if p.SecureMonitor, err = o.verify(image.SecureMonitor, sbi); err != nil {
		return nil, abort(PhaseVerify, err)
	}

	if p.AlwaysOn, err = o.verify(image.AlwaysOnFirmware, light.AON_DDR_ADDR); err != nil {
		return nil, abort(PhaseVerify, err)
	}

	td, err := devicetree.Load(o.Memory, p.TrustedDTB.Payload(), world.Trusted)

	if err != nil {
		return nil, abort(PhaseParse, err)
	}

	ntd, err := devicetree.Load(o.Memory, p.NonTrustedDTB, world.NonTrusted)

	if err != nil {
		return nil, abort(PhaseParse, err)
	}

	if p.Trusted, err = o.Parser.Parse(td); err != nil {
		return nil, abort(PhaseParse, err)
	}

	if p.NonTrusted, err = o.Parser.Parse(ntd); err != nil {
		return nil, abort(PhaseParse, err)
	}

	if p.Table, err = world.Resolve(p.Trusted.CPUs, p.NonTrusted.CPUs); err != nil {
		klog.Errorf("SM: T and NT device trees disagree on core ownership")
		return nil, abort(PhaseResolve, err)
	}

	for i, a := range p.Table {
		klog.Infof("SM: cpu %d: %s", i, a)
	}

	if p.PMP, err = protectionTable(p.NonTrusted); err != nil {
		return nil, abort(PhaseProtect, err)
	}

	if p.Interrupts, err = interruptSet(p.Trusted); err != nil {
		return nil, abort(PhaseProtect, err)
	}

	args[0] = fmt.Sprintf("0x%x", p.Kernel.Payload())
	args[1] = "-"
	args[2] = fmt.Sprintf("0x%x", p.TrustedDTB.Payload())

	if p.Rootfs != nil {
		args[1] = fmt.Sprintf("0x%x", p.Rootfs.Payload())
	}

	return p, nil
}

// protectionTable lists the regions accessible to Non-Trusted harts: their
// memory followed by every window of their devices.
func protectionTable(res *devicetree.Resources) (*pmp.Table, error) {
	t := &pmp.Table{}

	if err := t.Add(res.Memory.Start, res.Memory.Size); err != nil {
		return nil, fmt.Errorf("NT memory %s, %w", res.Memory, err)
	}

	for _, dev := range res.Devices {
		for _, w := range dev.Windows {
			if err := t.Add(w.Start, w.Size); err != nil {
				return nil, fmt.Errorf("NT device %s window %s, %w", dev.Name, w, err)
			}
		}
	}

	return t, nil
}

// interruptSet lists the interrupts reserved to the Trusted world.
func interruptSet(res *devicetree.Resources) (*plic.InterruptSet, error) {
	s := &plic.InterruptSet{}

	for _, dev := range res.Devices {
		if !dev.HasIRQ {
			continue
		}

		if err := s.Add(dev.IRQ); err != nil {
			return nil, fmt.Errorf("T device %s irq %d, %w", dev.Name, dev.IRQ, err)
		}
	}

	return s, nil
}

// Program writes the protection state shared by all harts: the Trusted
// interrupt gate, the Non-Trusted DMA windows and the Non-Trusted entry
// stub.
func (o *Orchestrator) Program(p *Plan) {
	plic.Configure(o.Regs, light.PLIC_BASE, p.Interrupts)
	klog.Infof("SM: plic: %d Trusted interrupts", len(p.Interrupts.IRQs()))

	n := iopmp.Configure(o.Regs, p.NonTrusted.IOPMP)
	klog.Infof("SM: iopmp: %d Non-Trusted devices", n)

	if start := p.NonTrusted.Memory.Start; start != 0 {
		o.Regs.Write(start, light.TEEBootStub)
		o.Regs.Barrier()
	}
}

// Dispatcher returns a dispatcher configured to release the cores as
// planned by p.
func (o *Orchestrator) Dispatcher(p *Plan) (*dispatch.Dispatcher, error) {
	d := &dispatch.Dispatcher{
		Platform: o.Platform,
		Regs:     o.Regs,
		Settle:   o.Settle,
		Sleep:    o.Sleep,
	}

	err := d.Configure(dispatch.Params{
		Table:           p.Table,
		SecureMonitor:   p.SecureMonitor.Payload(),
		Kernel:          p.Kernel.Payload(),
		TrustedDTB:      p.TrustedDTB.Payload(),
		InfoAddr:        o.InfoAddr,
		NonTrustedEntry: p.NonTrusted.Memory.Start,
		NonTrustedDTB:   p.NonTrustedDTB,
		PMP:             p.PMP,
		PMPBase:         light.PMP_BASE,
		Mailbox:         light.MAILBOX_BASE,
		Control:         light.CORE_CTRL_BASE,
	})

	return d, err
}

// Boot runs the boot sequence for the images loaded at the addresses in
// args (see Prepare). It never returns on success, the calling hart enters
// its own world once all secondary cores have been released.
func (o *Orchestrator) Boot(args []string) error {
	p, err := o.Prepare(args)

	if err != nil {
		klog.Errorf("SM: boot aborted, %v", err)
		return err
	}

	d, err := o.Dispatcher(p)

	if err != nil {
		return abort(PhaseRelease, err)
	}

	o.Program(p)

	klog.Infof("SM: releasing cores (kernel %s rootfs %s t-dtb %s nt-dtb %s)", args[0], args[1], args[2], args[3])

	if err = d.Boot(); err != nil {
		return abort(PhaseRelease, err)
	}

	return nil
}

// CheckUpgrade verifies that the version pending installation for the
// named component ("tf" or "tee") satisfies the anti-rollback rule and
// records it as installed.
func (o *Orchestrator) CheckUpgrade(name string) error {
	c, err := version.ParseComponent(name)

	if err != nil {
		return abort(PhaseUpgrade, fmt.Errorf("%w: %v", ErrUsage, err))
	}

	if o.Guard == nil {
		return abort(PhaseUpgrade, errors.New("no version store"))
	}

	pending := o.Pending

	if pending == nil {
		var ok bool

		if pending, ok = o.Guard.Store.(version.Pending); !ok {
			return abort(PhaseUpgrade, errors.New("no pending version source"))
		}
	}

	if err = o.Guard.Upgrade(c, pending); err != nil {
		klog.Errorf("SM: %s image upgrade rejected, %v", c, err)
		return abort(PhaseUpgrade, err)
	}

	return nil
}
