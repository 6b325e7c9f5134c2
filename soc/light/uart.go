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
	"github.com/transparency-dev/light-sboot/reg"
)

// 16550 compatible registers (4 byte stride)
const (
	UART_THR = 0x00
	UART_LSR = 0x14

	LSR_THRE = 5
)

// UART represents a polled serial port, only transmission is supported.
type UART struct {
	Base uint64
	Regs reg.Accessor
}

// Tx transmits a single character.
func (u *UART) Tx(c byte) {
	for u.Regs.Read(u.Base+UART_LSR)&(1<<LSR_THRE) == 0 {
		// wait for empty transmit holding register
	}

	u.Regs.Write(u.Base+UART_THR, uint32(c))
}

// Write transmits buf, line feeds are preceded by carriage returns.
func (u *UART) Write(buf []byte) (n int, _ error) {
	for n = 0; n < len(buf); n++ {
		if buf[n] == '\n' {
			u.Tx('\r')
		}

		u.Tx(buf[n])
	}

	return
}
