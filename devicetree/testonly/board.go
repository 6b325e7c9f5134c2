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

package testonly

import (
	"fmt"

	"github.com/u-root/u-root/pkg/dt"
)

// Board layout used by fixtures.
const (
	TrustedMemory    = 0x0
	TrustedSize      = 0x20000000
	NonTrustedMemory = 0x20000000
	NonTrustedSize   = 0x40000000

	UARTBase    = 0xffe7014000
	UARTIRQ     = 36
	MailboxBase = 0xffffc38000
	MailboxIRQ  = 28
	GPIOBase    = 0xffe7f34000

	IOPMPBase  = 0xffff020000
	IOPMPStart = 0x30000000
	IOPMPSize  = 0x10000000
)

// Board returns the device tree of a world on the test board. Cores are
// marked with the "okay"/"disabled" status pair according to active, the
// memory window and peripheral set depend on trusted.
func Board(trusted bool, active [4]bool) *dt.Node {
	mem := Pairs(NonTrustedMemory, NonTrustedSize)

	if trusted {
		mem = Pairs(TrustedMemory, TrustedSize)
	}

	var cpus []*dt.Node

	for i, a := range active {
		status := "disabled"

		if a {
			status = "okay"
		}

		cpus = append(cpus, Node(fmt.Sprintf("cpu@%d", i), []dt.Property{
			Prop("device_type", String("cpu")),
			Prop("reg", Cells(uint32(i))),
			Prop("status", String(status)),
		}))
	}

	cpus = append(cpus, Node("cpu-map", nil))

	soc := Node("soc", []dt.Property{
		Prop("#address-cells", Cells(2)),
		Prop("#size-cells", Cells(2)),
	})

	if trusted {
		soc.Children = append(soc.Children,
			Node(fmt.Sprintf("mbox@%x", MailboxBase), []dt.Property{
				Prop("compatible", String("thead,light-mbox-client")),
				Prop("reg", Pairs(
					MailboxBase, 0x1000,
					MailboxBase+0x1000, 0x1000,
					MailboxBase+0x2000, 0x1000,
					MailboxBase+0x3000, 0x1000,
				)),
				Prop("interrupts", Cells(MailboxIRQ, 4)),
			}),
		)
	} else {
		soc.Children = append(soc.Children,
			Node(fmt.Sprintf("serial@%x", UARTBase), []dt.Property{
				Prop("compatible", String("snps,dw-apb-uart")),
				Prop("reg", Pairs(UARTBase, 0x4000)),
				Prop("interrupts", Cells(UARTIRQ)),
				Prop("status", String("okay")),
			}),
			Node(fmt.Sprintf("gpio@%x", GPIOBase), []dt.Property{
				Prop("reg", Pairs(GPIOBase, 0x1000)),
			}),
		)
	}

	root := Node("", []dt.Property{
		Prop("#address-cells", Cells(2)),
		Prop("#size-cells", Cells(2)),
		Prop("compatible", String("thead,light-val", "thead,light")),
	},
		Node("cpus", []dt.Property{
			Prop("#address-cells", Cells(1)),
			Prop("#size-cells", Cells(0)),
		}, cpus...),
		Node(fmt.Sprintf("memory@%x", TrustedMemory), []dt.Property{
			Prop("device_type", String("memory")),
			Prop("reg", mem),
		}),
		soc,
	)

	if !trusted {
		root.Children = append(root.Children, Node("iopmp", []dt.Property{
			Prop("#address-cells", Cells(2)),
			Prop("#size-cells", Cells(2)),
		},
			Node("emmc", []dt.Property{
				Prop("reg", Pairs(IOPMPBase, 0x1000)),
				Prop("range", Pairs(IOPMPStart, IOPMPSize)),
			}),
			Node("usb", []dt.Property{
				Prop("reg", Pairs(IOPMPBase+0x1000, 0x1000)),
			}),
		))
	}

	return root
}

// FDT wraps a root node.
func FDT(root *dt.Node) *dt.FDT {
	return &dt.FDT{RootNode: root}
}
