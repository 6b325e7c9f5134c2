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


package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/transparency-dev/light-sboot/devicetree/testonly"
	"github.com/transparency-dev/light-sboot/dispatch"
	"github.com/transparency-dev/light-sboot/env"
	"github.com/transparency-dev/light-sboot/image"
	"github.com/transparency-dev/light-sboot/reg"
	"github.com/transparency-dev/light-sboot/sboot"
	"github.com/transparency-dev/light-sboot/soc/light"
)

func TestDryRun(t *testing.T) {
	mem := &image.Memory{}
	m := &image.Manifest{Images: map[string]image.Digest{}}

	for _, img := range []struct {
		kind image.Kind
		addr uint64
		data []byte
	}{
		{image.Kernel, 0x200000, []byte("kernel")},
		{image.Rootfs, 0x4000000, []byte("rootfs")},
		{image.TrustedDeviceTree, 0x8000000, testonly.Blob(testonly.Board(true, [4]bool{true, false, false, false}))},
		{image.SecureMonitor, light.SBI_ENTRY_ADDR, []byte("opensbi")},
		{image.AlwaysOnFirmware, light.AON_DDR_ADDR, []byte("aon")},
	} {
		d, err := image.Compute(bytes.NewReader(img.data))
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		m.Images[img.kind.String()] = d
		mem.Load(img.addr, img.data)
	}

	mem.Load(0x21000000, testonly.Blob(testonly.Board(false, [4]bool{false, true, true, true})))

	regs := reg.NewMem()
	p := &hostPlatform{staged: make(map[int]dispatch.Entry)}

	o := &sboot.Orchestrator{
		Memory:   mem,
		Regs:     regs,
		Env:      env.Map{},
		Verifier: &image.ManifestVerifier{Manifest: m},
		Platform: p,
		Sleep:    func(time.Duration) {},
		InfoAddr: 0x3ff00000,
	}

	out := &bytes.Buffer{}

	if err := dryRun(out, o, regs, []string{"200000", "4000000", "8000000", "21000000"}); err != nil {
		t.Fatalf("dryRun: %v", err)
	}

	if len(p.staged) != 3 {
		t.Errorf("%d cores staged, want 3", len(p.staged))
	}

	if got := regs.Read(light.CORE_CTRL_BASE + 0x04); got != 0b11111 {
		t.Errorf("core control = %#x, want 0b11111", got)
	}

	for _, want := range []string{
		"image kernel: 0x200000",
		"NT world",
		"cpu 0 (primary): T",
		"cpu 3: NT",
		"T interrupts: [28]",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
}
