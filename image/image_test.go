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

package image_test

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/mod/sumdb/note"

	"github.com/transparency-dev/light-sboot/image"
	"github.com/transparency-dev/light-sboot/image/testonly"
)

func mustKeys(t *testing.T, name string) (note.Signer, note.Verifier) {
	t.Helper()

	skey, vkey, err := note.GenerateKey(rand.Reader, name)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	s, err := note.NewSigner(skey)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	v, err := note.NewVerifier(vkey)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	return s, v
}

func TestDetect(t *testing.T) {
	kernel := []byte("kernel payload")

	mem := &image.Memory{}
	mem.Load(0x200000, testonly.WithHeader(kernel, nil))
	mem.Load(0x400000, kernel)
	mem.Load(0x500000, []byte("THD"))

	for _, test := range []struct {
		name    string
		addr    uint64
		want    uint64
		wantErr bool
	}{
		{name: "header", addr: 0x200000, want: image.HeaderSize},
		{name: "bare", addr: 0x400000, want: 0},
		{name: "short", addr: 0x500000, wantErr: true},
		{name: "unmapped", addr: 0x600000, wantErr: true},
	} {
		t.Run(test.name, func(t *testing.T) {
			for i := 0; i < 2; i++ {
				got, err := image.Detect(mem, test.addr)
				if gotErr := err != nil; gotErr != test.wantErr {
					t.Fatalf("Detect() = %v, want error %v", err, test.wantErr)
				}
				if got != test.want {
					t.Fatalf("Detect() = %#x, want %#x", got, test.want)
				}
			}
		})
	}
}

func TestParseHeader(t *testing.T) {
	sig := []byte("untrusted comment: signature\nRWQ...\n")
	buf := testonly.WithHeader([]byte("payload"), sig)

	h, err := image.ParseHeader(buf)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}

	if diff := cmp.Diff(&image.Header{Length: 7, Signature: sig}, h); diff != "" {
		t.Fatalf("unexpected header (-want +got):\n%s", diff)
	}

	if _, err := image.ParseHeader(buf[:100]); err == nil {
		t.Fatal("ParseHeader() on short buffer succeeded")
	}

	bad := append([]byte{}, buf...)
	bad[8] = 0xff
	bad[9] = 0xff

	if _, err := image.ParseHeader(bad); err == nil {
		t.Fatal("ParseHeader() with oversized signature succeeded")
	}
}

func TestVerifyAndLocate(t *testing.T) {
	kernel := bytes.Repeat([]byte{0x13}, 4096)
	dtb := []byte("trusted device tree")

	mem := &image.Memory{}
	mem.Load(0x200000, testonly.WithHeader(kernel, nil))
	mem.Load(0x8000000, dtb)
	mem.Load(0x9000000, []byte("tampered device tree"))

	kd, _ := image.Compute(bytes.NewReader(kernel))
	dd, _ := image.Compute(bytes.NewReader(dtb))

	s, v := mustKeys(t, "release")

	signed, err := image.SignManifest(&image.Manifest{
		Images: map[string]image.Digest{
			image.Kernel.String():            kd,
			image.TrustedDeviceTree.String(): dd,
		},
	}, s)
	if err != nil {
		t.Fatalf("SignManifest: %v", err)
	}

	m, err := image.OpenManifest(signed, v)
	if err != nil {
		t.Fatalf("OpenManifest: %v", err)
	}

	mv := &image.ManifestVerifier{Manifest: m}

	for _, test := range []struct {
		name        string
		kind        image.Kind
		addr        uint64
		wantPayload uint64
		wantErr     error
	}{
		{name: "kernel with header", kind: image.Kernel, addr: 0x200000, wantPayload: 0x200800},
		{name: "bare dtb", kind: image.TrustedDeviceTree, addr: 0x8000000, wantPayload: 0x8000000},
		{name: "tampered", kind: image.TrustedDeviceTree, addr: 0x9000000, wantErr: image.ErrVerifyFailure},
		{name: "not in manifest", kind: image.SecureMonitor, addr: 0x8000000, wantErr: image.ErrVerifyFailure},
		{name: "unmapped", kind: image.Kernel, addr: 0x100, wantErr: image.ErrVerifyFailure},
	} {
		t.Run(test.name, func(t *testing.T) {
			d, err := image.VerifyAndLocate(mem, mv, test.kind, test.addr)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("VerifyAndLocate() = %v, want %v", err, test.wantErr)
			}
			if test.wantErr != nil {
				if d != nil {
					t.Fatal("descriptor returned on failure")
				}
				return
			}
			if !d.Verified {
				t.Error("descriptor not marked verified")
			}
			if got := d.Payload(); got != test.wantPayload {
				t.Errorf("Payload() = %#x, want %#x", got, test.wantPayload)
			}
		})
	}
}

func TestOpenManifestUnknownSigner(t *testing.T) {
	s, _ := mustKeys(t, "release")
	_, other := mustKeys(t, "other")

	signed, err := image.SignManifest(&image.Manifest{}, s)
	if err != nil {
		t.Fatalf("SignManifest: %v", err)
	}

	if _, err := image.OpenManifest(signed, other); err == nil {
		t.Fatal("OpenManifest() with unknown signer succeeded")
	}
}

func TestMandatory(t *testing.T) {
	for k, want := range map[image.Kind]bool{
		image.Kernel:               true,
		image.TrustedDeviceTree:    true,
		image.SecureMonitor:        true,
		image.AlwaysOnFirmware:     true,
		image.NonTrustedDeviceTree: false,
		image.Rootfs:               image.VerifyRootfs,
	} {
		if got := image.Mandatory(k); got != want {
			t.Errorf("Mandatory(%s) = %v, want %v", k, got, want)
		}
	}
}

func TestReadPayload(t *testing.T) {
	payload := []byte("signed kernel payload")

	truncated := testonly.WithHeader(payload, []byte("sig"))
	truncated = truncated[:len(truncated)-4]

	huge := testonly.WithHeader(payload, []byte("sig"))
	huge[4], huge[5], huge[6], huge[7] = 0xff, 0xff, 0xff, 0xff

	for _, test := range []struct {
		name    string
		image   []byte
		max     uint32
		want    []byte
		wantErr bool
	}{
		{name: "valid", image: testonly.WithHeader(payload, []byte("sig")), max: 64, want: payload},
		{name: "exact limit", image: testonly.WithHeader(payload, nil), max: uint32(len(payload)), want: payload},
		{name: "above limit", image: testonly.WithHeader(payload, nil), max: uint32(len(payload)) - 1, wantErr: true},
		{name: "unbounded length", image: huge, max: 1 << 20, wantErr: true},
		{name: "empty payload", image: testonly.WithHeader(nil, nil), max: 64, wantErr: true},
		{name: "truncated payload", image: truncated, max: 64, wantErr: true},
		{name: "no header", image: payload, max: 64, wantErr: true},
	} {
		t.Run(test.name, func(t *testing.T) {
			mem := &image.Memory{}
			mem.Load(0x200000, test.image)

			off, err := image.Detect(mem, 0x200000)
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}

			d := &image.Descriptor{Kind: image.Kernel, RawAddress: 0x200000, HeaderOffset: off, Memory: mem}

			got, err := d.ReadPayload(test.max)
			if gotErr := err != nil; gotErr != test.wantErr {
				t.Fatalf("ReadPayload() = %v, wantErr %t", err, test.wantErr)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Fatalf("unexpected payload (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMemory(t *testing.T) {
	mem := &image.Memory{}
	mem.Load(0x1000, []byte("first"))
	mem.Load(0x100, []byte("low"))
	mem.Load(0x1000, []byte("second"))

	buf := make([]byte, 6)

	if n, err := mem.ReadAt(buf, 0x1000); err != nil || string(buf[:n]) != "second" {
		t.Fatalf("ReadAt(0x1000) = %q, %v, want \"second\"", buf[:n], err)
	}

	if n, err := mem.ReadAt(buf, 0x101); !errors.Is(err, io.EOF) || string(buf[:n]) != "ow" {
		t.Fatalf("ReadAt(0x101) = %q, %v, want \"ow\", EOF", buf[:n], err)
	}

	if _, err := mem.ReadAt(buf, 0x800); err == nil {
		t.Fatal("ReadAt() on unmapped address succeeded")
	}
}
