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

// Package image locates and authenticates the firmware images handed to the
// Trusted and Non-Trusted worlds.
//
// An image may be preceded by a HeaderSize bytes security header, in which
// case its payload starts right after it. Verification is delegated to a
// Verifier, the package only enforces that every mandatory image is
// verified before its payload address is used.
package image

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderSize is the size of the optional security header.
	HeaderSize = 0x800
	// Magic identifies the security header.
	Magic = "THDR"

	lengthOffset = 4
	sigLenOffset = 8
	sigOffset    = 12
)

// ErrVerifyFailure is returned when an image fails authentication.
var ErrVerifyFailure = errors.New("image verification failed")

// Kind represents the role of an image in the boot sequence.
type Kind int

const (
	Kernel Kind = iota
	Rootfs
	TrustedDeviceTree
	NonTrustedDeviceTree
	SecureMonitor
	AlwaysOnFirmware
)

func (k Kind) String() string {
	switch k {
	case Kernel:
		return "kernel"
	case Rootfs:
		return "rootfs"
	case TrustedDeviceTree:
		return "t-dtb"
	case NonTrustedDeviceTree:
		return "nt-dtb"
	case SecureMonitor:
		return "sbi"
	case AlwaysOnFirmware:
		return "aon"
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// Mandatory returns whether images of kind k must be verified before use.
func Mandatory(k Kind) bool {
	switch k {
	case Kernel, TrustedDeviceTree, SecureMonitor, AlwaysOnFirmware:
		return true
	case Rootfs:
		return VerifyRootfs
	}

	return false
}

// Header represents the security header preceding an image payload.
type Header struct {
	// Length is the payload length in bytes.
	Length uint32
	// Signature is the detached payload signature.
	Signature []byte
}

// ParseHeader parses a HeaderSize bytes security header.
func ParseHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("short header (%d bytes)", len(buf))
	}

	if !bytes.Equal(buf[:len(Magic)], []byte(Magic)) {
		return nil, errors.New("missing header magic")
	}

	h := &Header{
		Length: binary.LittleEndian.Uint32(buf[lengthOffset:]),
	}

	n := binary.LittleEndian.Uint32(buf[sigLenOffset:])

	if n > HeaderSize-sigOffset {
		return nil, fmt.Errorf("invalid signature length %d", n)
	}

	h.Signature = append([]byte{}, buf[sigOffset:sigOffset+n]...)

	return h, nil
}

// Detect returns the payload offset of the image at raw: HeaderSize when a
// security header is present, zero otherwise.
func Detect(mem io.ReaderAt, raw uint64) (offset uint64, err error) {
	buf := make([]byte, len(Magic))

	if _, err = mem.ReadAt(buf, int64(raw)); err != nil {
		return 0, fmt.Errorf("could not read image at %#x, %v", raw, err)
	}

	if string(buf) == Magic {
		return HeaderSize, nil
	}

	return 0, nil
}

// Descriptor represents a located image.
type Descriptor struct {
	Kind Kind
	// RawAddress is the address the image was loaded at.
	RawAddress uint64
	// HeaderOffset is the payload offset from RawAddress.
	HeaderOffset uint64
	Verified     bool

	// Memory gives access to the image contents.
	Memory io.ReaderAt
}

// Payload returns the address of the image payload.
func (d *Descriptor) Payload() uint64 {
	return d.RawAddress + d.HeaderOffset
}

// Header reads the image security header, if any.
func (d *Descriptor) Header() (*Header, error) {
	if d.HeaderOffset == 0 {
		return nil, fmt.Errorf("%s image has no header", d.Kind)
	}

	buf := make([]byte, HeaderSize)

	if _, err := d.Memory.ReadAt(buf, int64(d.RawAddress)); err != nil {
		return nil, err
	}

	return ParseHeader(buf)
}

// ReadPayload returns the payload announced by the image security header.
// Lengths above max are rejected before the payload is read.
func (d *Descriptor) ReadPayload(max uint32) ([]byte, error) {
	h, err := d.Header()

	if err != nil {
		return nil, err
	}

	switch {
	case h.Length == 0:
		return nil, fmt.Errorf("%s image has an empty payload", d.Kind)
	case h.Length > max:
		return nil, fmt.Errorf("%s payload length %d exceeds %d", d.Kind, h.Length, max)
	}

	buf := make([]byte, h.Length)
	r := io.NewSectionReader(d.Memory, int64(d.Payload()), int64(h.Length))

	if _, err = io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("could not read %s payload, %v", d.Kind, err)
	}

	return buf, nil
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s: %#x", d.Kind, d.Payload())
}

// Verifier represents an image authentication scheme.
type Verifier interface {
	// Verify authenticates the image described by d.
	Verify(d *Descriptor) error
}

// VerifyAndLocate detects the header of the image at raw and authenticates
// it with v. A descriptor is returned only for verified images.
func VerifyAndLocate(mem io.ReaderAt, v Verifier, kind Kind, raw uint64) (*Descriptor, error) {
	off, err := Detect(mem, raw)

	if err != nil {
		return nil, fmt.Errorf("%w: %s, %v", ErrVerifyFailure, kind, err)
	}

	d := &Descriptor{
		Kind:         kind,
		RawAddress:   raw,
		HeaderOffset: off,
		Memory:       mem,
	}

	if v == nil {
		return nil, fmt.Errorf("%w: %s, no verifier", ErrVerifyFailure, kind)
	}

	if err = v.Verify(d); err != nil {
		return nil, fmt.Errorf("%w: %s, %v", ErrVerifyFailure, kind, err)
	}

	d.Verified = true

	return d, nil
}
