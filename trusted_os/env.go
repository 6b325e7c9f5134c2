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
	_ "embed"

	"github.com/transparency-dev/light-sboot/env"
	"github.com/transparency-dev/light-sboot/soc/light"
)

// Board environment overrides, in the format understood by env.Load.
//
//go:embed assets/env.txt
var envOverrides []byte

func defaultEnv() env.Map {
	return env.Map{
		light.SBIAddrEnv: "0x100000",
		"t_kernel_addr":  "0x1ff800",
		"t_rootfs_addr":  "0x01fff800",
		"t_dtb_addr":     "0x1eff800",
		"nt_dtb_addr":    "0x81f00000",
		"aon_ddr_addr":   "0x80000",
	}
}

func environment() (env.Map, error) {
	e := defaultEnv()

	overrides, err := env.Load(bytes.NewReader(envOverrides))

	if err != nil {
		return nil, err
	}

	for k, v := range overrides {
		e[k] = v
	}

	return e, nil
}

// bootArgs returns the image addresses in the order expected by
// sboot.Orchestrator.Boot.
func bootArgs(e env.Env) []string {
	var args []string

	for _, k := range []string{"t_kernel_addr", "t_rootfs_addr", "t_dtb_addr", "nt_dtb_addr"} {
		v, _ := e.Get(k)
		args = append(args, v)
	}

	return args
}
