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

package env

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadSave(t *testing.T) {
	for _, test := range []struct {
		name    string
		in      string
		want    Map
		wantErr bool
	}{
		{
			name: "defaults",
			in:   "# versions\ntf_version=0x0103\n\ntee_version = 0200\n",
			want: Map{"tf_version": "0x0103", "tee_version": "0200"},
		}, {
			name:    "missing separator",
			in:      "tf_version\n",
			wantErr: true,
		}, {
			name:    "empty key",
			in:      "=1\n",
			wantErr: true,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			m, err := Load(strings.NewReader(test.in))
			if gotErr := err != nil; gotErr != test.wantErr {
				t.Fatalf("Load() = %v, wantErr %t", err, test.wantErr)
			}
			if test.wantErr {
				return
			}
			if diff := cmp.Diff(test.want, m); diff != "" {
				t.Fatalf("unexpected env (-want +got):\n%s", diff)
			}

			buf := new(bytes.Buffer)
			if err := m.Save(buf); err != nil {
				t.Fatalf("Save() = %v", err)
			}
			m2, err := Load(buf)
			if err != nil {
				t.Fatalf("Load(Save()) = %v", err)
			}
			if diff := cmp.Diff(m, m2); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUint(t *testing.T) {
	m := Map{
		"a": "0x100000",
		"b": "1048576",
		"c": "0x10zz",
		"d": "",
	}

	for _, test := range []struct {
		key     string
		def     uint64
		want    uint64
		wantErr bool
	}{
		{key: "a", want: 0x100000},
		{key: "b", want: 0x100000},
		{key: "c", def: 7, wantErr: true},
		{key: "d", def: 7, wantErr: true},
		{key: "missing", def: 9, want: 9},
	} {
		got, err := Uint(m, test.key, test.def)
		if gotErr := err != nil; gotErr != test.wantErr {
			t.Errorf("Uint(%q) = %v, wantErr %t", test.key, err, test.wantErr)
		}
		if got != test.want {
			t.Errorf("Uint(%q) = %#x, want %#x", test.key, got, test.want)
		}
	}
}

func TestHex(t *testing.T) {
	for _, test := range []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "0x1ff800", want: 0x1ff800},
		{in: "1ff800", want: 0x1ff800},
		{in: " 0X200 ", want: 0x200},
		{in: "0x05zz", wantErr: true},
		{in: "", wantErr: true},
	} {
		got, err := ParseHex(test.in)
		if gotErr := err != nil; gotErr != test.wantErr {
			t.Errorf("ParseHex(%q) = %v, wantErr %t", test.in, err, test.wantErr)
		}
		if got != test.want {
			t.Errorf("ParseHex(%q) = %#x, want %#x", test.in, got, test.want)
		}
	}

	m := Map{}

	if err := SetHex(m, "tf_version", 0x0200); err != nil {
		t.Fatalf("SetHex() = %v", err)
	}

	if got, want := m["tf_version"], "200"; got != want {
		t.Errorf("SetHex stored %q, want %q", got, want)
	}
}
