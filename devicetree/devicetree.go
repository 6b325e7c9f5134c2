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

// Package devicetree extracts the hardware resources owned by an execution
// world from its flattened device tree (FDT) description.
package devicetree

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/u-root/u-root/pkg/dt"

	"github.com/transparency-dev/light-sboot/world"
)

const (
	fdtMagic      = 0xd00dfeed
	fdtHeaderSize = 40
	// MaxSize is the largest device tree blob accepted from memory.
	MaxSize = 1 << 20
)

var (
	// ErrConfigNotFound is returned when a required node is missing.
	ErrConfigNotFound = errors.New("configuration node not found")
	// ErrConfigInvalid is returned when a node or property is malformed.
	ErrConfigInvalid = errors.New("invalid configuration")
)

// Descriptor represents the device tree of one world.
type Descriptor struct {
	World world.World
	FDT   *dt.FDT
}

// Read parses a device tree blob describing world w.
func Read(blob []byte, w world.World) (*Descriptor, error) {
	fdt, err := dt.ReadFDT(bytes.NewReader(blob))

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	return &Descriptor{
		World: w,
		FDT:   fdt,
	}, nil
}

// Load reads the device tree blob of world w located at addr.
func Load(mem io.ReaderAt, addr uint64, w world.World) (*Descriptor, error) {
	hdr := make([]byte, fdtHeaderSize)

	if _, err := mem.ReadAt(hdr, int64(addr)); err != nil {
		return nil, fmt.Errorf("could not read %s device tree header at %#x, %v", w, addr, err)
	}

	if magic := binary.BigEndian.Uint32(hdr[0:]); magic != fdtMagic {
		return nil, fmt.Errorf("%w: bad %s device tree magic %#x at %#x", ErrConfigInvalid, w, magic, addr)
	}

	size := binary.BigEndian.Uint32(hdr[4:])

	if size < fdtHeaderSize || size > MaxSize {
		return nil, fmt.Errorf("%w: %s device tree size %d", ErrConfigInvalid, w, size)
	}

	blob := make([]byte, size)

	if _, err := mem.ReadAt(blob, int64(addr)); err != nil {
		return nil, fmt.Errorf("could not read %s device tree at %#x, %v", w, addr, err)
	}

	return Read(blob, w)
}
