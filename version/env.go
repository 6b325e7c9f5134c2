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

package version

import (
	"fmt"

	"github.com/transparency-dev/light-sboot/env"
)

// EnvStore persists versions in the environment as hexadecimal
// Major<<8|Minor values.
type EnvStore struct {
	Env env.Env
}

func currentKey(c Component) string {
	return c.String() + "_version"
}

func pendingKey(c Component) string {
	return c.String() + "_new_version"
}

// Current implements Store, a missing value reads as version 0.0. A value
// which cannot be parsed is an error, it never reads as 0.0.
func (s *EnvStore) Current(c Component) (Record, error) {
	r, ok, err := s.record(currentKey(c))

	if err != nil || !ok {
		return Record{}, err
	}

	return r, nil
}

// Persist implements Store.
func (s *EnvStore) Persist(c Component, r Record) error {
	return env.SetHex(s.Env, currentKey(c), uint64(r.Uint16()))
}

// Pending implements Pending.
func (s *EnvStore) Pending(c Component) (Record, error) {
	r, ok, err := s.record(pendingKey(c))

	if err != nil {
		return Record{}, err
	}

	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotPending, pendingKey(c))
	}

	return r, nil
}

func (s *EnvStore) record(key string) (r Record, ok bool, err error) {
	v, ok := s.Env.Get(key)

	if !ok {
		return
	}

	n, err := env.ParseHex(v)

	switch {
	case err != nil:
		return r, true, fmt.Errorf("%w: %s (%q), %v", ErrInvalidRecord, key, v, err)
	case n > 0xffff:
		return r, true, fmt.Errorf("%w: %s out of range (%#x)", ErrInvalidRecord, key, n)
	}

	return FromUint16(uint16(n)), true, nil
}
