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

// Package version implements the anti-rollback policy of the Trusted world
// firmware components.
//
// Versions are X.Y pairs where X is the security version. An upgrade is
// accepted only when it increases the security version by exactly one, the
// minor version is informational.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/coreos/go-semver/semver"
	"k8s.io/klog/v2"
)

// ErrPolicyViolation is returned when an upgrade does not follow the
// version rule.
var ErrPolicyViolation = errors.New("version policy violation")

// ErrNotPending is returned when no new version of a component is pending
// installation.
var ErrNotPending = errors.New("no pending version")

// ErrInvalidRecord is returned when a stored version cannot be read.
var ErrInvalidRecord = errors.New("invalid version record")

// Component represents a versioned firmware component.
type Component int

const (
	// SecureMonitor is the machine mode firmware (OpenSBI).
	SecureMonitor Component = iota
	// TrustedOS is the Trusted world kernel.
	TrustedOS
)

func (c Component) String() string {
	switch c {
	case SecureMonitor:
		return "tf"
	case TrustedOS:
		return "tee"
	}

	return fmt.Sprintf("Component(%d)", int(c))
}

// ParseComponent returns the component matching name.
func ParseComponent(name string) (Component, error) {
	switch name {
	case "tf":
		return SecureMonitor, nil
	case "tee":
		return TrustedOS, nil
	}

	return 0, fmt.Errorf("unsupported image %q", name)
}

// Record represents a component version.
type Record struct {
	Major uint8
	Minor uint8
}

// FromUint16 decodes the Major<<8|Minor representation.
func FromUint16(v uint16) Record {
	return Record{
		Major: uint8(v >> 8),
		Minor: uint8(v),
	}
}

// Uint16 encodes the record as Major<<8|Minor.
func (r Record) Uint16() uint16 {
	return uint16(r.Major)<<8 | uint16(r.Minor)
}

func (r Record) String() string {
	return fmt.Sprintf("%d.%d", r.Major, r.Minor)
}

// Parse accepts the hexadecimal representation ("0x0103") and the dotted
// one ("1.3" or "1.3.0").
func Parse(s string) (Record, error) {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 16)

		if err != nil {
			return Record{}, fmt.Errorf("invalid version %q, %v", s, err)
		}

		return FromUint16(uint16(v)), nil
	}

	if strings.Count(s, ".") == 1 {
		s += ".0"
	}

	v, err := semver.NewVersion(s)

	if err != nil {
		return Record{}, fmt.Errorf("invalid version %q, %v", s, err)
	}

	if v.Major > 0xff || v.Minor > 0xff {
		return Record{}, fmt.Errorf("version %q out of range", s)
	}

	return Record{
		Major: uint8(v.Major),
		Minor: uint8(v.Minor),
	}, nil
}

// Store represents the persisted version of each component.
type Store interface {
	// Current returns the installed version of c.
	Current(c Component) (Record, error)
	// Persist records r as the installed version of c.
	Persist(c Component, r Record) error
}

// Pending represents the source of the versions being installed.
type Pending interface {
	Pending(c Component) (Record, error)
}

// Guard enforces the version rule on upgrades.
type Guard struct {
	Store Store
}

// CheckAndPersist accepts next as the new version of c only if its security
// version is exactly one above the installed one, in which case it is
// persisted. The store is left untouched on rejection.
func (g *Guard) CheckAndPersist(c Component, next Record) error {
	cur, err := g.Store.Current(c)

	if err != nil {
		return fmt.Errorf("could not read %s version, %w", c, err)
	}

	klog.Infof("SM: cur %s image version: %s", c, cur)
	klog.Infof("SM: new %s image version: %s", c, next)

	switch delta := int(next.Major) - int(cur.Major); delta {
	case 1:
	case 0:
		klog.Warningf("SM: %s upgrade keeps security version %d", c, cur.Major)
		return fmt.Errorf("%w: %s security version unchanged (%s -> %s)", ErrPolicyViolation, c, cur, next)
	default:
		return fmt.Errorf("%w: %s security version must increase by 1 (%s -> %s)", ErrPolicyViolation, c, cur, next)
	}

	klog.Infof("SM: check %s image version rule pass", c)

	if err = g.Store.Persist(c, next); err != nil {
		return fmt.Errorf("could not persist %s version, %w", c, err)
	}

	return nil
}

// Upgrade checks the version pending installation for c.
func (g *Guard) Upgrade(c Component, p Pending) error {
	next, err := p.Pending(c)

	if err != nil {
		return fmt.Errorf("could not read new %s version, %w", c, err)
	}

	return g.CheckAndPersist(c, next)
}

// Versions maps component names to versions, as found in release
// manifests.
type Versions map[string]string

// Pending implements Pending.
func (v Versions) Pending(c Component) (Record, error) {
	s, ok := v[c.String()]

	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotPending, c)
	}

	return Parse(s)
}
