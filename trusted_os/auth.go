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


//go:build !bundle_auth
// +build !bundle_auth

package main

import (
	"errors"

	"github.com/transparency-dev/light-sboot/image"
)

// imageVerifier authenticates images with their header signature.
func imageVerifier() (image.Verifier, error) {
	if len(PublicKey) == 0 {
		return nil, errors.New("image authentication key is missing")
	}

	return &headerVerifier{PublicKey: PublicKey}, nil
}
