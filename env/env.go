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

// Package env implements the persisted key/value boot environment.
package env

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Env represents persisted boot environment variables.
type Env interface {
	// Get returns the value of key and whether it is set.
	Get(key string) (string, bool)
	// Set updates the value of key.
	Set(key string, value string) error
}

// Map is an in-memory environment.
type Map map[string]string

// Get returns the value of key and whether it is set.
func (m Map) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Set updates the value of key.
func (m Map) Set(key string, value string) error {
	if len(key) == 0 || strings.ContainsAny(key, "=\n") {
		return fmt.Errorf("invalid key %q", key)
	}

	m[key] = value

	return nil
}

// Load parses newline separated key=value pairs, empty lines and lines
// starting with # are ignored.
func Load(r io.Reader) (Map, error) {
	m := make(Map)
	s := bufio.NewScanner(r)

	for n := 1; s.Scan(); n++ {
		line := strings.TrimSpace(s.Text())

		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")

		if !ok {
			return nil, fmt.Errorf("line %d: missing '='", n)
		}

		if err := m.Set(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return nil, fmt.Errorf("line %d: %v", n, err)
		}
	}

	return m, s.Err()
}

// Save writes the environment in the format understood by Load, sorted by
// key.
func (m Map) Save(w io.Writer) error {
	keys := make([]string, 0, len(m))

	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s=%s\n", k, m[k]); err != nil {
			return err
		}
	}

	return nil
}

// ParseHex parses a hexadecimal value with or without 0x prefix.
func ParseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	return strconv.ParseUint(s, 16, 64)
}

// SetHex stores val as a hexadecimal value.
func SetHex(e Env, key string, val uint64) error {
	return e.Set(key, fmt.Sprintf("%x", val))
}

// Uint returns the value of key parsed with automatic base detection (0x
// prefix for hexadecimal), def is returned when the key is not set.
func Uint(e Env, key string, def uint64) (uint64, error) {
	s, ok := e.Get(key)

	if !ok {
		return def, nil
	}

	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)

	if err != nil {
		return 0, fmt.Errorf("invalid %s (%q), %v", key, s, err)
	}

	return v, nil
}
