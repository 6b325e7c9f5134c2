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

package light

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/transparency-dev/light-sboot/reg"
)

func TestUARTWrite(t *testing.T) {
	m := reg.NewMem()
	m.Write(UART0_BASE+UART_LSR, 1<<LSR_THRE)
	m.Log = nil

	u := &UART{Base: UART0_BASE, Regs: m}

	n, err := u.Write([]byte("SM\n"))
	if err != nil || n != 3 {
		t.Fatalf("Write() = %d, %v", n, err)
	}

	want := []reg.Op{
		{Addr: UART0_BASE, Val: 'S'},
		{Addr: UART0_BASE, Val: 'M'},
		{Addr: UART0_BASE, Val: '\r'},
		{Addr: UART0_BASE, Val: '\n'},
	}

	if diff := cmp.Diff(want, m.Log); diff != "" {
		t.Fatalf("unexpected writes (-want +got):\n%s", diff)
	}
}
