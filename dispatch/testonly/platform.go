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

// Package testonly provides a dispatch.Platform which records world entries
// for tests.
package testonly

import (
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/transparency-dev/light-sboot/dispatch"
)

// Platform records staged and entered worlds. Like a real world entry,
// Enter never returns: it terminates the calling goroutine.
type Platform struct {
	sync.Mutex

	// Hart is the index of the calling hart.
	Hart int
	// Staged holds the entry staged for each secondary hart.
	Staged map[int]dispatch.Entry
	// Entered is the entry of the calling hart.
	Entered *dispatch.Entry
	// Returns makes Enter return, which a real platform never does.
	Returns bool

	done chan struct{}
}

// NewPlatform returns a platform running on hart.
func NewPlatform(hart int) *Platform {
	return &Platform{
		Hart:   hart,
		Staged: make(map[int]dispatch.Entry),
		done:   make(chan struct{}),
	}
}

// HartID implements dispatch.Platform.
func (p *Platform) HartID() int {
	return p.Hart
}

// Stage implements dispatch.Platform, the returned fetch address encodes the
// hart index.
func (p *Platform) Stage(hart int, e dispatch.Entry) uint64 {
	p.Lock()
	defer p.Unlock()

	p.Staged[hart] = e

	return TrampolineAddr + uint64(hart)*0x100
}

// TrampolineAddr is the base of fetch addresses returned by Stage.
const TrampolineAddr = 0x80000000

// Enter implements dispatch.Platform.
func (p *Platform) Enter(e dispatch.Entry) {
	p.Lock()
	p.Entered = &e
	p.Unlock()

	if p.Returns {
		return
	}

	close(p.done)
	runtime.Goexit()
}

// ErrTimeout is returned by Run when no world is entered in time.
var ErrTimeout = errors.New("no world entered")

// Run invokes boot, which must end with the world entry of the calling hart
// on p, and waits for that entry. The error returned by boot is returned if
// it returns instead.
func Run(p *Platform, boot func() error) error {
	errc := make(chan error, 1)

	go func() {
		errc <- boot()
	}()

	select {
	case <-p.done:
		return nil
	case err := <-errc:
		return err
	case <-time.After(10 * time.Second):
		return ErrTimeout
	}
}
