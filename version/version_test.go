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

package version

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/transparency-dev/light-sboot/env"
)

func TestParse(t *testing.T) {
	for _, test := range []struct {
		in      string
		want    Record
		wantErr bool
	}{
		{in: "0x0103", want: Record{1, 3}},
		{in: "0x200", want: Record{2, 0}},
		{in: "1.3", want: Record{1, 3}},
		{in: "1.3.0", want: Record{1, 3}},
		{in: " 2.0 ", want: Record{2, 0}},
		{in: "256.0", wantErr: true},
		{in: "0x10000", wantErr: true},
		{in: "one", wantErr: true},
	} {
		t.Run(test.in, func(t *testing.T) {
			got, err := Parse(test.in)
			if gotErr := err != nil; gotErr != test.wantErr {
				t.Fatalf("Parse() = %v, want error %v", err, test.wantErr)
			}
			if got != test.want {
				t.Fatalf("Parse() = %s, want %s", got, test.want)
			}
		})
	}
}

func TestCheckAndPersist(t *testing.T) {
	for _, test := range []struct {
		name    string
		current string
		next    Record
		want    string
		wantErr error
	}{
		{name: "next security version", current: "103", next: Record{2, 0}, want: "200"},
		{name: "skipped security version", current: "103", next: Record{3, 0}, want: "103", wantErr: ErrPolicyViolation},
		{name: "same security version", current: "103", next: Record{1, 4}, want: "103", wantErr: ErrPolicyViolation},
		{name: "rollback", current: "200", next: Record{1, 9}, want: "200", wantErr: ErrPolicyViolation},
		{name: "first install", next: Record{1, 0}, want: "100"},
	} {
		t.Run(test.name, func(t *testing.T) {
			m := env.Map{}
			if test.current != "" {
				m["tee_version"] = test.current
			}

			g := &Guard{Store: &EnvStore{Env: m}}

			if err := g.CheckAndPersist(TrustedOS, test.next); !errors.Is(err, test.wantErr) {
				t.Fatalf("CheckAndPersist() = %v, want %v", err, test.wantErr)
			}

			if got := m["tee_version"]; got != test.want {
				t.Fatalf("tee_version = %q, want %q", got, test.want)
			}

			if _, ok := m["tf_version"]; ok {
				t.Fatal("tf_version modified")
			}
		})
	}
}

func TestUpgradeFromEnv(t *testing.T) {
	m := env.Map{
		"tf_version":     "103",
		"tf_new_version": "200",
	}

	s := &EnvStore{Env: m}
	g := &Guard{Store: s}

	if err := g.Upgrade(SecureMonitor, s); err != nil {
		t.Fatalf("Upgrade: %v", err)
	}

	want := env.Map{
		"tf_version":     "200",
		"tf_new_version": "200",
	}

	if diff := cmp.Diff(want, m); diff != "" {
		t.Fatalf("unexpected environment (-want +got):\n%s", diff)
	}

	if err := g.Upgrade(SecureMonitor, s); !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("repeated Upgrade() = %v, want %v", err, ErrPolicyViolation)
	}

	if err := g.Upgrade(TrustedOS, s); !errors.Is(err, ErrNotPending) {
		t.Fatalf("Upgrade() without pending version = %v, want %v", err, ErrNotPending)
	}
}

func TestUpgradeInvalidRecord(t *testing.T) {
	for _, test := range []struct {
		name string
		env  env.Map
	}{
		{name: "malformed current", env: env.Map{"tf_version": "0x05zz", "tf_new_version": "0x0100"}},
		{name: "current out of range", env: env.Map{"tf_version": "0x10500", "tf_new_version": "0x0100"}},
		{name: "empty current", env: env.Map{"tf_version": "", "tf_new_version": "0x0100"}},
		{name: "malformed pending", env: env.Map{"tf_version": "0x0000", "tf_new_version": "1.0"}},
	} {
		t.Run(test.name, func(t *testing.T) {
			want := env.Map{}
			for k, v := range test.env {
				want[k] = v
			}

			s := &EnvStore{Env: test.env}
			g := &Guard{Store: s}

			if err := g.Upgrade(SecureMonitor, s); !errors.Is(err, ErrInvalidRecord) {
				t.Fatalf("Upgrade() = %v, want %v", err, ErrInvalidRecord)
			}

			if diff := cmp.Diff(want, test.env); diff != "" {
				t.Fatalf("environment modified (-want +got):\n%s", diff)
			}
		})
	}
}

func TestVersions(t *testing.T) {
	v := Versions{"tf": "2.1", "tee": "0x0300"}

	for c, want := range map[Component]Record{
		SecureMonitor: {2, 1},
		TrustedOS:     {3, 0},
	} {
		got, err := v.Pending(c)
		if err != nil {
			t.Fatalf("Pending(%s): %v", c, err)
		}
		if got != want {
			t.Errorf("Pending(%s) = %s, want %s", c, got, want)
		}
	}

	if _, err := (Versions{}).Pending(TrustedOS); !errors.Is(err, ErrNotPending) {
		t.Fatalf("Pending() on empty versions = %v, want %v", err, ErrNotPending)
	}
}
