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


//go:build !tamago
// +build !tamago

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/mod/sumdb/note"

	"github.com/transparency-dev/light-sboot/devicetree"
	"github.com/transparency-dev/light-sboot/dispatch"
	"github.com/transparency-dev/light-sboot/env"
	"github.com/transparency-dev/light-sboot/image"
	"github.com/transparency-dev/light-sboot/reg"
	"github.com/transparency-dev/light-sboot/sboot"
	"github.com/transparency-dev/light-sboot/world"
)

// loads collects addr=path flags.
type loads []string

func (l *loads) String() string {
	return strings.Join(*l, ",")
}

func (l *loads) Set(v string) error {
	if _, _, ok := strings.Cut(v, "="); !ok {
		return fmt.Errorf("invalid load %q, want addr=path", v)
	}

	*l = append(*l, v)

	return nil
}

// hostPlatform stages secondary cores off target, the primary core never
// enters its world.
type hostPlatform struct {
	staged map[int]dispatch.Entry
}

func (p *hostPlatform) HartID() int {
	return 0
}

func (p *hostPlatform) Stage(hart int, e dispatch.Entry) uint64 {
	p.staged[hart] = e
	return e.PC
}

func (p *hostPlatform) Enter(e dispatch.Entry) {
	panic("world entry on host")
}

func loadEnv(path string) (env.Map, error) {
	if len(path) == 0 {
		return env.Map{}, nil
	}

	f, err := os.Open(path)

	if err != nil {
		return nil, err
	}
	defer f.Close()

	return env.Load(f)
}

func openManifest(path string, keyPath string) (*image.Manifest, error) {
	signed, err := os.ReadFile(path)

	if err != nil {
		return nil, err
	}

	key, err := os.ReadFile(keyPath)

	if err != nil {
		return nil, err
	}

	v, err := note.NewVerifier(strings.TrimSpace(string(key)))

	if err != nil {
		return nil, err
	}

	return image.OpenManifest(signed, v)
}

func plan(args []string) error {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)

	var files loads

	fs.Var(&files, "load", "load a file in memory at addr (addr=path, repeatable)")
	envFile := fs.String("env", "", "boot environment file")
	manifestFile := fs.String("manifest", "", "signed image manifest")
	keyFile := fs.String("manifest_pubkey_file", "", "manifest note verifier key")
	infoAddr := fs.Uint64("info_addr", 0x3ff00000, "secure monitor information address")

	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := loadEnv(*envFile)

	if err != nil {
		return fmt.Errorf("could not load environment, %v", err)
	}

	m, err := openManifest(*manifestFile, *keyFile)

	if err != nil {
		return fmt.Errorf("could not open manifest, %v", err)
	}

	mem := &image.Memory{}

	for _, l := range files {
		a, path, _ := strings.Cut(l, "=")
		addr, err := env.ParseHex(a)

		if err != nil {
			return fmt.Errorf("invalid load address %q, %v", a, err)
		}

		buf, err := os.ReadFile(path)

		if err != nil {
			return err
		}

		mem.Load(addr, buf)
	}

	bootArgs := fs.Args()

	if len(bootArgs) == 0 {
		for _, k := range []string{"t_kernel_addr", "t_rootfs_addr", "t_dtb_addr", "nt_dtb_addr"} {
			v, _ := e.Get(k)
			bootArgs = append(bootArgs, v)
		}
	}

	regs := reg.NewMem()

	return dryRun(os.Stdout, &sboot.Orchestrator{
		Memory:   mem,
		Regs:     regs,
		Env:      e,
		Verifier: &image.ManifestVerifier{Manifest: m},
		Platform: &hostPlatform{staged: make(map[int]dispatch.Entry)},
		Sleep:    func(time.Duration) {},
		InfoAddr: *infoAddr,
	}, regs, bootArgs)
}

func printResources(w io.Writer, res *devicetree.Resources) {
	fmt.Fprintf(w, "%s world\n", res.World)
	fmt.Fprintf(w, "  memory: %s\n", res.Memory)

	for _, d := range res.Devices {
		fmt.Fprintf(w, "  device %s:", d.Name)

		for _, r := range d.Windows {
			fmt.Fprintf(w, " %s", r)
		}

		if d.HasIRQ {
			fmt.Fprintf(w, " irq:%d", d.IRQ)
		}

		fmt.Fprintln(w)
	}

	for _, win := range res.IOPMP {
		fmt.Fprintf(w, "  iopmp %s@%#x: %s\n", win.Name, win.Base, win.Range)
	}
}

// dryRun runs the boot sequence of o up to the release of the secondary
// cores and reports the plan and the resulting state of regs, which must
// back o, to w.
func dryRun(w io.Writer, o *sboot.Orchestrator, regs *reg.Mem, args []string) error {
	p, err := o.Prepare(args)

	if err != nil {
		return err
	}

	fmt.Fprintf(w, "boot arguments: %s\n\n", strings.Join(args, " "))

	for _, d := range []*image.Descriptor{p.Kernel, p.Rootfs, p.TrustedDTB, p.SecureMonitor, p.AlwaysOn} {
		if d != nil {
			fmt.Fprintf(w, "image %s\n", d)
		}
	}

	fmt.Fprintf(w, "image %s: %#x (unverified)\n\n", image.NonTrustedDeviceTree, p.NonTrustedDTB)

	printResources(w, p.Trusted)
	printResources(w, p.NonTrusted)

	fmt.Fprintf(w, "\nNT protection regions:\n")

	for i, r := range p.PMP.Regions() {
		fmt.Fprintf(w, "  %2d %s\n", i, r)
	}

	fmt.Fprintf(w, "T interrupts: %v\n\n", p.Interrupts.IRQs())

	d, err := o.Dispatcher(p)

	if err != nil {
		return err
	}

	o.Program(p)

	primary := o.Platform.HartID()

	for core := 0; core < world.Cores; core++ {
		if core == primary {
			continue
		}

		if err = d.Release(core); err != nil {
			return err
		}
	}

	for core := 0; core < world.Cores; core++ {
		tag := ""

		if core == primary {
			tag = " (primary)"
		}

		fmt.Fprintf(w, "cpu %d%s: %s\n", core, tag, d.Entry(core))
	}

	fmt.Fprintf(w, "\nregister state (%d accesses):\n%s", len(regs.Log), regs.Dump())

	return nil
}
