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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/transparency-dev/light-sboot/env"
	"github.com/transparency-dev/light-sboot/version"
)

func TestUpgradePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.txt")

	write := func(content string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	read := func() env.Map {
		t.Helper()
		e, err := loadEnv(path)
		if err != nil {
			t.Fatalf("loadEnv: %v", err)
		}
		return e
	}

	write("tf_new_version=0x0100\n")

	if err := upgrade([]string{"-env", path, "tf"}); err != nil {
		t.Fatalf("upgrade: %v", err)
	}

	want := env.Map{"tf_version": "100", "tf_new_version": "0x0100"}

	if diff := cmp.Diff(want, read()); diff != "" {
		t.Fatalf("unexpected environment (-want +got):\n%s", diff)
	}

	// the accepted version is the baseline of the next upgrade
	if err := upgrade([]string{"-env", path, "tf"}); !errors.Is(err, version.ErrPolicyViolation) {
		t.Fatalf("repeated upgrade = %v, want %v", err, version.ErrPolicyViolation)
	}

	write("tf_version=0x0500\ntf_new_version=0x0700\n")

	if err := upgrade([]string{"-env", path, "tf"}); !errors.Is(err, version.ErrPolicyViolation) {
		t.Fatalf("skipping upgrade = %v, want %v", err, version.ErrPolicyViolation)
	}

	if got, want := read()["tf_version"], "0x0500"; got != want {
		t.Fatalf("tf_version = %q after rejected upgrade, want %q", got, want)
	}

	write("tf_version=0x05zz\ntf_new_version=0x0100\n")

	if err := upgrade([]string{"-env", path, "tf"}); !errors.Is(err, version.ErrInvalidRecord) {
		t.Fatalf("upgrade over corrupt version = %v, want %v", err, version.ErrInvalidRecord)
	}

	if got, want := read()["tf_version"], "0x05zz"; got != want {
		t.Fatalf("tf_version = %q after rejected upgrade, want %q", got, want)
	}
}
