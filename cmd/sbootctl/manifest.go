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
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/mod/sumdb/note"
	"k8s.io/klog/v2"

	"github.com/transparency-dev/light-sboot/image"
	"github.com/transparency-dev/light-sboot/sboot"
	"github.com/transparency-dev/light-sboot/version"
)

var kinds = map[string]bool{
	image.Kernel.String():               true,
	image.Rootfs.String():               true,
	image.TrustedDeviceTree.String():    true,
	image.NonTrustedDeviceTree.String(): true,
	image.SecureMonitor.String():        true,
	image.AlwaysOnFirmware.String():     true,
}

// versions collects component=version flags.
type versions map[string]string

func (v versions) String() string {
	var s []string

	for c, r := range v {
		s = append(s, c+"="+r)
	}

	return strings.Join(s, ",")
}

func (v versions) Set(s string) error {
	name, ver, ok := strings.Cut(s, "=")

	if !ok {
		return fmt.Errorf("invalid version %q, want component=version", s)
	}

	c, err := version.ParseComponent(name)

	if err != nil {
		return err
	}

	r, err := version.Parse(ver)

	if err != nil {
		return err
	}

	v[c.String()] = r.String()

	return nil
}

// digest hashes the image at path with a progress bar.
func digest(path string) (image.Digest, error) {
	f, err := os.Open(path)

	if err != nil {
		return image.Digest{}, err
	}
	defer f.Close()

	fi, err := f.Stat()

	if err != nil {
		return image.Digest{}, err
	}

	bar := pb.Full.Start64(fi.Size())
	bar.SetWriter(os.Stderr)
	defer bar.Finish()

	return image.Compute(bar.NewProxyReader(f))
}

func sign(args []string) error {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)

	vers := versions{}

	fs.Var(vers, "version", "component version (tf=1.3 or tee=0x0103, repeatable)")
	keyFile := fs.String("key", "", "note signer key file")
	output := fs.String("output", "manifest.note", "signed manifest output file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() == 0 {
		return errors.New("no images")
	}

	key, err := os.ReadFile(*keyFile)

	if err != nil {
		return err
	}

	signer, err := note.NewSigner(strings.TrimSpace(string(key)))

	if err != nil {
		return err
	}

	m := &image.Manifest{
		Images:   make(map[string]image.Digest),
		Versions: vers,
	}

	for _, arg := range fs.Args() {
		kind, path, ok := strings.Cut(arg, "=")

		if !ok || !kinds[kind] {
			return fmt.Errorf("invalid image %q, want <kind>=<path>", arg)
		}

		if m.Images[kind], err = digest(path); err != nil {
			return fmt.Errorf("could not hash %s image, %v", kind, err)
		}

		klog.Infof("%s: %s (%d bytes, sha256 %x)", kind, path, m.Images[kind].Size, m.Images[kind].SHA256)
	}

	signed, err := image.SignManifest(m, signer)

	if err != nil {
		return err
	}

	return os.WriteFile(*output, signed, 0o644)
}

func keygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	prefix := fs.String("output", "sboot", "key files prefix (<prefix>.sec, <prefix>.pub)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		return errors.New("missing key name")
	}

	skey, vkey, err := note.GenerateKey(rand.Reader, fs.Arg(0))

	if err != nil {
		return err
	}

	if err = os.WriteFile(*prefix+".sec", []byte(skey+"\n"), 0o600); err != nil {
		return err
	}

	return os.WriteFile(*prefix+".pub", []byte(vkey+"\n"), 0o644)
}

func upgrade(args []string) error {
	fs := flag.NewFlagSet("upgrade", flag.ContinueOnError)
	envFile := fs.String("env", "", "boot environment file, updated on success")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 || len(*envFile) == 0 {
		return sboot.ErrUsage
	}

	e, err := loadEnv(*envFile)

	if err != nil {
		return err
	}

	o := &sboot.Orchestrator{
		Env: e,
		Guard: &version.Guard{
			Store: &version.EnvStore{Env: e},
		},
	}

	if err = o.CheckUpgrade(fs.Arg(0)); err != nil {
		return err
	}

	f, err := os.Create(*envFile)

	if err != nil {
		return err
	}

	if err = e.Save(f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
