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

// The sbootctl tool plans secure boot sequences off target and manages the
// signed manifests authenticating boot images.
package main

import (
	"flag"
	"fmt"
	"os"

	"k8s.io/klog/v2"

	"github.com/transparency-dev/light-sboot/sboot"
)

type command struct {
	usage string
	run   func(args []string) error
}

var commands = map[string]command{
	"plan":    {"plan [flags] [<kernel> <rootfs> <t-dtb> <nt-dtb>]", plan},
	"sign":    {"sign [flags] <kind>=<path>...", sign},
	"keygen":  {"keygen [flags] <name>", keygen},
	"upgrade": {"upgrade [flags] tf|tee", upgrade},
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <command> [args]\n\ncommands:\n", os.Args[0])

	for _, name := range []string{"plan", "sign", "keygen", "upgrade"} {
		fmt.Fprintf(flag.CommandLine.Output(), "  %s\n", commands[name].usage)
	}

	fmt.Fprintf(flag.CommandLine.Output(), "\nflags:\n")
	flag.PrintDefaults()
}

func main() {
	klog.InitFlags(nil)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cmd, ok := commands[flag.Arg(0)]

	if !ok {
		klog.Errorf("unknown command %q", flag.Arg(0))
		flag.Usage()
		os.Exit(2)
	}

	err := cmd.run(flag.Args()[1:])

	if err != nil {
		klog.Errorf("%s: %v", flag.Arg(0), err)
	}

	klog.Flush()
	os.Exit(sboot.Status(err))
}
