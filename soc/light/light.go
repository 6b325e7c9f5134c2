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

// Package light provides support for the T-Head Light (TH1520) SoC, its
// quad C910 application cluster and the world handoff of each core.
//
// The register map and UART driver are portable, the handoff (hart boot
// parameters, trampoline and CSR setup) is only available with
// `GOOS=tamago GOARCH=riscv64`, see https://github.com/usbarmory/tamago.
package light

// Peripheral registers
const (
	// Platform Level Interrupt Controller
	PLIC_BASE = 0xffd8000000
	// Physical Memory Protection unit (hart 0 block)
	PMP_BASE = 0xffdc020000
	// Secondary core boot address mailbox
	MAILBOX_BASE = 0xffff018000
	// Core reset control
	CORE_CTRL_BASE = 0xffff014000

	// UART0 (Synopsys DesignWare APB)
	UART0_BASE = 0xffe7014000
)

// Boot images
const (
	// Secure monitor (OpenSBI) default load address
	SBI_ENTRY_ADDR = 0x100000
	// Always-on subsystem firmware load address
	AON_DDR_ADDR = 0x80000

	// SBIAddrEnv overrides SBI_ENTRY_ADDR when set in the environment.
	SBIAddrEnv = "t_opensbi_addr"
)

// TEEBootStub is placed at the Non-Trusted world entry point, it executes
// `csrwi 0x7f4, 0` clearing the TEE state of the core before falling
// through to the Non-Trusted firmware.
const TEEBootStub = 0x7f405073

// T-Head C910 extension CSRs and the values loaded on each released core.
const (
	CSR_MXSTATUS = 0x7c0
	CSR_MHCR     = 0x7c1
	CSR_MCOR     = 0x7c2
	CSR_MCCR2    = 0x7c3
	CSR_MHINT    = 0x7c5
	CSR_SMPEN    = 0x7f3

	SMPEN    = 0x1
	MCOR     = 0x70013
	MCCR2    = 0xe0010009
	MHCR     = 0x11ff
	MXSTATUS = 0x638000
	MHINT    = 0x16e30c
)
