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

package devicetree

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/u-root/u-root/pkg/dt"
)

const (
	defaultAddressCells = 2
	defaultSizeCells    = 2
)

// baseName returns the node name without its unit address.
func baseName(n *dt.Node) string {
	name, _, _ := strings.Cut(n.Name, "@")
	return name
}

// child returns the first child of n matching base name.
func child(n *dt.Node, name string) (*dt.Node, bool) {
	if n == nil {
		return nil, false
	}

	for _, c := range n.Children {
		if baseName(c) == name {
			return c, true
		}
	}

	return nil, false
}

func property(n *dt.Node, name string) (*dt.Property, bool) {
	for i := range n.Properties {
		if n.Properties[i].Name == name {
			return &n.Properties[i], true
		}
	}

	return nil, false
}

// stringProperty returns the first string of a string list property.
func stringProperty(n *dt.Node, name string) (string, bool) {
	p, ok := property(n, name)

	if !ok {
		return "", false
	}

	s, _, _ := strings.Cut(string(p.Value), "\x00")

	return s, true
}

// stringList returns all strings of a string list property.
func stringList(n *dt.Node, name string) []string {
	p, ok := property(n, name)

	if !ok {
		return nil
	}

	return strings.FieldsFunc(string(p.Value), func(r rune) bool { return r == 0 })
}

func cell(n *dt.Node, name string, def uint32) (uint32, error) {
	p, ok := property(n, name)

	if !ok {
		return def, nil
	}

	if len(p.Value) != 4 {
		return 0, fmt.Errorf("%w: %s/%s length %d", ErrConfigInvalid, n.Name, name, len(p.Value))
	}

	return binary.BigEndian.Uint32(p.Value), nil
}

// cells holds the address and size cell widths of a node's children.
type cells struct {
	addr uint32
	size uint32
}

func cellsOf(n *dt.Node) (c cells, err error) {
	if c.addr, err = cell(n, "#address-cells", defaultAddressCells); err != nil {
		return
	}

	if c.size, err = cell(n, "#size-cells", defaultSizeCells); err != nil {
		return
	}

	if c.addr == 0 || c.addr > 2 || c.size > 2 {
		err = fmt.Errorf("%w: %s cells %d/%d", ErrConfigInvalid, n.Name, c.addr, c.size)
	}

	return
}

func number(buf []byte, n uint32) uint64 {
	var v uint64

	for i := uint32(0); i < n; i++ {
		v = v<<32 | uint64(binary.BigEndian.Uint32(buf[i*4:]))
	}

	return v
}

// pairs decodes up to max (address, size) pairs of property name, a
// negative max decodes all of them.
func pairs(n *dt.Node, name string, c cells, max int) ([]Range, error) {
	p, ok := property(n, name)

	if !ok {
		return nil, fmt.Errorf("%w: %s missing %s", ErrConfigInvalid, n.Name, name)
	}

	stride := int(c.addr+c.size) * 4

	if len(p.Value) == 0 || len(p.Value)%stride != 0 {
		return nil, fmt.Errorf("%w: %s/%s length %d", ErrConfigInvalid, n.Name, name, len(p.Value))
	}

	var r []Range

	for off := 0; off < len(p.Value) && (max < 0 || len(r) < max); off += stride {
		r = append(r, Range{
			Start: number(p.Value[off:], c.addr),
			Size:  number(p.Value[off+int(c.addr)*4:], c.size),
		})
	}

	return r, nil
}
