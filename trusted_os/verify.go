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

	"github.com/usbarmory/armory-boot/config"

	"github.com/transparency-dev/light-sboot/image"
)

// Payloads are authenticated from the boot monitor heap.
const maxPayloadSize = secureSize / 2

// headerVerifier authenticates images with the minisign signature carried
// in their security header.
type headerVerifier struct {
	PublicKey string
}

func (v *headerVerifier) Verify(d *image.Descriptor) error {
	h, err := d.Header()

	if err != nil {
		return err
	}

	if len(h.Signature) == 0 {
		return errors.New("unsigned image")
	}

	buf, err := d.ReadPayload(maxPayloadSize)

	if err != nil {
		return err
	}

	return config.Verify(buf, h.Signature, v.PublicKey)
}
