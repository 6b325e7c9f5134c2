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
	"flag"
	"os"
	"runtime"
	"strconv"

	"k8s.io/klog/v2"

	"github.com/transparency-dev/light-sboot/reg"
	"github.com/transparency-dev/light-sboot/sboot"
	"github.com/transparency-dev/light-sboot/soc/light"
)

// initialized at compile time (see Makefile)
var (
	Build     string
	Revision  string
	Version   string
	PublicKey string
)

func init() {
	klog.InitFlags(nil)
	flag.Set("logtostderr", "false")
	flag.Set("v", strconv.Itoa(verbosity))
	klog.SetOutput(light.UART0)

	klog.Infof("%s/%s (%s) • secure boot monitor (M-mode) • %s %s",
		runtime.GOOS, runtime.GOARCH, runtime.Version(),
		Revision, Build)
}

func main() {
	defer klog.Flush()

	e, err := environment()

	if err != nil {
		klog.Fatalf("SM: could not load environment, %v", err)
	}

	v, err := imageVerifier()

	if err != nil {
		klog.Fatalf("SM: %v", err)
	}

	o := &sboot.Orchestrator{
		Memory: &reg.Physical{
			Start: ddrStart,
			End:   ddrStart + ddrSize,
		},
		Regs:     light.MMIO,
		Env:      e,
		Verifier: v,
		Platform: &light.Platform{},
		InfoAddr: infoAddr,
	}

	// Image versions are not checked here: the environment is rebuilt on
	// every boot, upgrades go through `sbootctl upgrade` on the persisted
	// environment.
	klog.Infof("SM: secure boot (%s)", Version)

	// never returns on success
	err = o.Boot(bootArgs(e))

	klog.Errorf("SM: %v", err)
	klog.Flush()

	os.Exit(sboot.Status(err))
}
