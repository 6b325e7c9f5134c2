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

package devicetree

import (
	"fmt"
	"strings"

	"github.com/u-root/u-root/pkg/dt"
	"k8s.io/klog/v2"

	"github.com/transparency-dev/light-sboot/world"
)

// Range represents a physical address window.
type Range struct {
	Start uint64
	Size  uint64
}

// End returns the first address past the window.
func (r Range) End() uint64 {
	return r.Start + r.Size
}

func (r Range) String() string {
	return fmt.Sprintf("%#x-%#x", r.Start, r.End())
}

// Device represents a peripheral listed under /soc.
type Device struct {
	Name    string
	Windows []Range
	// IRQ is valid only when HasIRQ is set.
	IRQ    uint32
	HasIRQ bool
}

// IOWindow represents the DMA window of a bus master behind an I/O
// protection unit.
type IOWindow struct {
	Name string
	// Base is the register base of the protection unit.
	Base  uint64
	Range Range
}

// Resources represents the hardware owned by a world according to its
// device tree.
type Resources struct {
	World   world.World
	Memory  Range
	Devices []Device
	CPUs    []world.Core
	IOPMP   []IOWindow
}

// Class matches a family of /soc devices and sets how many address windows
// are read from their reg property.
type Class struct {
	Name    string
	Match   func(n *dt.Node) bool
	Windows int
}

// Mailbox matches the inter-processor mailbox, which exposes one register
// window per processor cluster.
var Mailbox = Class{
	Name: "mailbox",
	Match: func(n *dt.Node) bool {
		if baseName(n) == "mbox" {
			return true
		}

		for _, c := range stringList(n, "compatible") {
			if strings.Contains(c, "mailbox") {
				return true
			}
		}

		return false
	},
	Windows: 4,
}

// DefaultClasses is the class set used by a zero Parser.
var DefaultClasses = []Class{Mailbox}

// Parser extracts Resources from device trees.
type Parser struct {
	// Classes is matched in order against each /soc device, devices not
	// matching any class have a single window.
	Classes []Class
}

func (p *Parser) windows(n *dt.Node) int {
	classes := p.Classes

	if classes == nil {
		classes = DefaultClasses
	}

	for _, c := range classes {
		if c.Match(n) {
			klog.V(2).Infof("\tclass: %s", c.Name)
			return c.Windows
		}
	}

	return 1
}

// Parse extracts the resources described by d. The descriptor is not
// modified.
func (p *Parser) Parse(d *Descriptor) (*Resources, error) {
	if d == nil || d.FDT == nil || d.FDT.RootNode == nil {
		return nil, fmt.Errorf("%w: empty descriptor", ErrConfigNotFound)
	}

	root := d.FDT.RootNode
	res := &Resources{World: d.World}

	rc, err := cellsOf(root)

	if err != nil {
		return nil, err
	}

	if res.Memory, err = parseMemory(root, rc); err != nil {
		return nil, fmt.Errorf("%s memory: %w", d.World, err)
	}

	klog.V(1).Infof("%s memory: %s", d.World, res.Memory)

	if res.Devices, err = p.parseSoC(root, d.World); err != nil {
		return nil, fmt.Errorf("%s soc: %w", d.World, err)
	}

	if res.IOPMP, err = parseIOPMP(root, d.World); err != nil {
		return nil, fmt.Errorf("%s iopmp: %w", d.World, err)
	}

	if res.CPUs, err = parseCPUs(root, d.World); err != nil {
		return nil, fmt.Errorf("%s cpus: %w", d.World, err)
	}

	return res, nil
}

func parseMemory(root *dt.Node, c cells) (Range, error) {
	n, ok := child(root, "memory")

	if !ok {
		return Range{}, fmt.Errorf("%w: /memory", ErrConfigNotFound)
	}

	r, err := pairs(n, "reg", c, 1)

	if err != nil {
		return Range{}, err
	}

	if r[0].Size == 0 {
		return Range{}, fmt.Errorf("%w: empty memory range", ErrConfigInvalid)
	}

	return r[0], nil
}

func (p *Parser) parseSoC(root *dt.Node, w world.World) (devices []Device, err error) {
	soc, ok := child(root, "soc")

	if !ok {
		return nil, fmt.Errorf("%w: /soc", ErrConfigNotFound)
	}

	c, err := cellsOf(soc)

	if err != nil {
		return
	}

	klog.V(1).Infof("%s device ================", w)

	for _, n := range soc.Children {
		dev := Device{Name: n.Name}

		klog.V(1).Infof("name: %s", n.Name)

		if status, ok := stringProperty(n, "status"); ok {
			klog.V(2).Infof("\tstatus: %s", status)
		}

		if _, ok := property(n, "interrupts"); ok {
			irq, err := firstCell(n, "interrupts")

			if err != nil {
				return nil, err
			}

			dev.IRQ = irq
			dev.HasIRQ = true

			klog.V(1).Infof("\tirq_no: %d", irq)
		}

		if _, ok := property(n, "reg"); ok {
			if dev.Windows, err = pairs(n, "reg", c, p.windows(n)); err != nil {
				return nil, err
			}

			for _, r := range dev.Windows {
				klog.V(1).Infof("\taddress: %#x", r.Start)
				klog.V(1).Infof("\tsize: %#x", r.Size)
			}
		}

		devices = append(devices, dev)
	}

	return
}

func firstCell(n *dt.Node, name string) (uint32, error) {
	p, _ := property(n, name)

	if len(p.Value) < 4 || len(p.Value)%4 != 0 {
		return 0, fmt.Errorf("%w: %s/%s length %d", ErrConfigInvalid, n.Name, name, len(p.Value))
	}

	return uint32(number(p.Value, 1)), nil
}

func parseIOPMP(root *dt.Node, w world.World) (windows []IOWindow, err error) {
	iopmp, ok := child(root, "iopmp")

	if !ok {
		return
	}

	c, err := cellsOf(iopmp)

	if err != nil {
		return
	}

	klog.V(1).Infof("%s iopmp ================", w)

	for _, n := range iopmp.Children {
		klog.V(1).Infof("name: %s", n.Name)

		_, hasReg := property(n, "reg")
		_, hasRange := property(n, "range")

		if !hasReg || !hasRange {
			klog.V(2).Infof("\tskipped, no reg or range")
			continue
		}

		base, err := pairs(n, "reg", c, 1)

		if err != nil {
			return nil, err
		}

		r, err := pairs(n, "range", c, 1)

		if err != nil {
			return nil, err
		}

		klog.V(1).Infof("\tbase_addr: %#x", base[0].Start)
		klog.V(1).Infof("\tstart: %#x", r[0].Start)
		klog.V(1).Infof("\tsize: %#x", r[0].Size)

		windows = append(windows, IOWindow{
			Name:  n.Name,
			Base:  base[0].Start,
			Range: r[0],
		})
	}

	return
}

func parseCPUs(root *dt.Node, w world.World) (cores []world.Core, err error) {
	cpus, ok := child(root, "cpus")

	if !ok {
		return nil, fmt.Errorf("%w: /cpus", ErrConfigNotFound)
	}

	seen := make(map[uint32]bool)

	for _, n := range cpus.Children {
		if _, ok := property(n, "reg"); !ok {
			// cpu-map and other helper nodes
			continue
		}

		idx, err := firstCell(n, "reg")

		if err != nil {
			return nil, err
		}

		if seen[idx] {
			return nil, fmt.Errorf("%w: core %d described twice", ErrConfigInvalid, idx)
		}

		seen[idx] = true

		status, ok := stringProperty(n, "status")

		if !ok {
			return nil, fmt.Errorf("%w: core %d has no status", ErrConfigInvalid, idx)
		}

		var active bool

		switch status {
		case "active", "okay":
			active = true
		case "inactive", "disabled":
			active = false
		default:
			return nil, fmt.Errorf("%w: core %d status %q", ErrConfigInvalid, idx, status)
		}

		if active {
			klog.V(1).Infof("core %d  %s world", idx, w)
		} else {
			klog.V(1).Infof("core %d  %s world", idx, w.Other())
		}

		cores = append(cores, world.Core{
			Index:  int(idx),
			Active: active,
		})
	}

	return
}
