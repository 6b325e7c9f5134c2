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

// Package testonly provides image fixtures for tests.
package testonly

import (
	"encoding/binary"

	"github.com/transparency-dev/light-sboot/image"
)

// WithHeader prepends a security header to payload.
func WithHeader(payload []byte, sig []byte) []byte {
	buf := make([]byte, image.HeaderSize, image.HeaderSize+len(payload))

	copy(buf, image.Magic)
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(buf[8:], uint32(len(sig)))
	copy(buf[12:], sig)

	return append(buf, payload...)
}
