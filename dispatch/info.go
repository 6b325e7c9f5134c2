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

package dispatch

import (
	"github.com/transparency-dev/light-sboot/reg"
)

// Secure monitor dynamic information constants.
const (
	FirmwareInfoMagic   = 0x4942534f
	FirmwareInfoVersion = 1

	NextModeU = 0
	NextModeS = 1
	NextModeM = 3
)

// FirmwareInfo represents the dynamic information passed to the secure
// monitor in a2, it describes the next boot stage.
type FirmwareInfo struct {
	Magic    uint64
	Version  uint64
	NextAddr uint64
	NextMode uint64
	Options  uint64
	BootHart uint64
}

// Write stores the structure at addr as consecutive 64-bit words.
func (fi *FirmwareInfo) Write(a reg.Accessor, addr uint64) {
	for i, v := range []uint64{
		fi.Magic,
		fi.Version,
		fi.NextAddr,
		fi.NextMode,
		fi.Options,
		fi.BootHart,
	} {
		reg.Write64(a, addr+uint64(i)*8, v)
	}
}
