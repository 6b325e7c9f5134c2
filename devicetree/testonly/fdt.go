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

// Package testonly builds device tree fixtures for tests.
package testonly

import (
	"bytes"
	"encoding/binary"

	"github.com/u-root/u-root/pkg/dt"
)

const (
	tokenBeginNode = 1
	tokenEndNode   = 2
	tokenProp      = 3
	tokenEnd       = 9

	headerSize = 40
	rsvmapSize = 16
)

// Cells encodes 32-bit cells.
func Cells(v ...uint32) []byte {
	buf := make([]byte, 4*len(v))

	for i, c := range v {
		binary.BigEndian.PutUint32(buf[i*4:], c)
	}

	return buf
}

// Pairs encodes (address, size) pairs with two cells each.
func Pairs(v ...uint64) []byte {
	var c []uint32

	for _, n := range v {
		c = append(c, uint32(n>>32), uint32(n))
	}

	return Cells(c...)
}

// String encodes a string property value.
func String(s ...string) []byte {
	var buf []byte

	for _, v := range s {
		buf = append(buf, v...)
		buf = append(buf, 0)
	}

	return buf
}

// Prop returns a property.
func Prop(name string, value []byte) dt.Property {
	return dt.Property{Name: name, Value: value}
}

// Node returns a node with properties and children.
func Node(name string, props []dt.Property, children ...*dt.Node) *dt.Node {
	return &dt.Node{
		Name:       name,
		Properties: props,
		Children:   children,
	}
}

type encoder struct {
	structs bytes.Buffer
	strings bytes.Buffer
	offsets map[string]uint32
}

func (e *encoder) token(t uint32) {
	binary.Write(&e.structs, binary.BigEndian, t)
}

func (e *encoder) pad() {
	for e.structs.Len()%4 != 0 {
		e.structs.WriteByte(0)
	}
}

func (e *encoder) nameOffset(name string) uint32 {
	if off, ok := e.offsets[name]; ok {
		return off
	}

	off := uint32(e.strings.Len())
	e.strings.WriteString(name)
	e.strings.WriteByte(0)
	e.offsets[name] = off

	return off
}

func (e *encoder) node(n *dt.Node) {
	e.token(tokenBeginNode)
	e.structs.WriteString(n.Name)
	e.structs.WriteByte(0)
	e.pad()

	for _, p := range n.Properties {
		e.token(tokenProp)
		e.token(uint32(len(p.Value)))
		e.token(e.nameOffset(p.Name))
		e.structs.Write(p.Value)
		e.pad()
	}

	for _, c := range n.Children {
		e.node(c)
	}

	e.token(tokenEndNode)
}

// Blob encodes a device tree rooted at root in the flattened (version 17)
// format.
func Blob(root *dt.Node) []byte {
	e := &encoder{offsets: make(map[string]uint32)}

	e.node(root)
	e.token(tokenEnd)

	offStruct := uint32(headerSize + rsvmapSize)
	offStrings := offStruct + uint32(e.structs.Len())
	total := offStrings + uint32(e.strings.Len())

	buf := new(bytes.Buffer)

	for _, v := range []uint32{
		0xd00dfeed,
		total,
		offStruct,
		offStrings,
		headerSize,
		17,
		16,
		0,
		uint32(e.strings.Len()),
		uint32(e.structs.Len()),
	} {
		binary.Write(buf, binary.BigEndian, v)
	}

	buf.Write(make([]byte, rsvmapSize))
	buf.Write(e.structs.Bytes())
	buf.Write(e.strings.Bytes())

	return buf.Bytes()
}
