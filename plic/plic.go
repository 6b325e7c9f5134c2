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

// Package plic configures the platform interrupt controller so that the
// interrupts owned by the Trusted world are reserved to it.
package plic

import (
	"errors"
	"fmt"

	"github.com/transparency-dev/light-sboot/reg"
)

// MaxInterrupts is the maximum number of interrupts reserved to the Trusted
// world.
const MaxInterrupts = 255

const (
	ctrlOffset   = 0x1ffff8
	enableOffset = 0x1fe000

	unlock = 0x40000000
	// enable and lock the Trusted interrupt partition
	lock = 0xc0000000
)

var (
	// ErrCapacityExceeded is returned when an interrupt is added to a full set.
	ErrCapacityExceeded = errors.New("interrupt set full")
	// ErrLocked is returned when an interrupt is added to a locked set.
	ErrLocked = errors.New("interrupt set locked")
)

// InterruptSet is an ordered list of interrupt numbers, it can no longer be
// modified once programmed.
type InterruptSet struct {
	irqs   []uint32
	locked bool
}

// Add appends an interrupt to the set.
func (s *InterruptSet) Add(irq uint32) error {
	if s.locked {
		return ErrLocked
	}

	if len(s.irqs) == MaxInterrupts {
		return fmt.Errorf("%w: %d entries", ErrCapacityExceeded, MaxInterrupts)
	}

	s.irqs = append(s.irqs, irq)

	return nil
}

// Lock prevents further additions.
func (s *InterruptSet) Lock() {
	s.locked = true
}

// IRQs returns a copy of the set.
func (s *InterruptSet) IRQs() []uint32 {
	return append([]uint32(nil), s.irqs...)
}

// Configure reserves the interrupts in set to the Trusted world on the
// controller at base and locks the set.
func Configure(a reg.Accessor, base uint64, set *InterruptSet) {
	set.Lock()

	a.Write(base+ctrlOffset, unlock)

	for _, irq := range set.irqs {
		reg.Set(a, base+enableOffset+uint64(irq/32)*4, int(irq%32))
	}

	a.Write(base+ctrlOffset, lock)
	a.Barrier()
}
