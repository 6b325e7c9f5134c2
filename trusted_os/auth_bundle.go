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


//go:build bundle_auth
// +build bundle_auth

package main

import (
	"bytes"
	_ "embed"
	"encoding/gob"
	"fmt"
	"strings"

	"golang.org/x/mod/sumdb/note"
	"k8s.io/klog/v2"

	"github.com/transparency-dev/light-sboot/image"
)

// LogOrigin is the origin of the release transparency log, initialized at
// compile time.
var LogOrigin string

// Proof bundle of the release manifest (see cmd/proofbundle).
//
//go:embed assets/release.bundle
var releaseBundle []byte

// LogPublicKey authenticates the release transparency log checkpoints.
//
//go:embed assets/log.pub
var LogPublicKey string

// ManifestPublicKey authenticates release manifests.
//
//go:embed assets/manifest.pub
var ManifestPublicKey string

// imageVerifier authenticates images against the release manifest embedded
// in a transparency proof bundle, pending upgrades are the manifest
// versions.
func imageVerifier() (image.Verifier, error) {
	var b image.Bundle

	if err := gob.NewDecoder(bytes.NewReader(releaseBundle)).Decode(&b); err != nil {
		return nil, fmt.Errorf("could not decode release bundle, %v", err)
	}

	lv, err := note.NewVerifier(strings.TrimSpace(LogPublicKey))

	if err != nil {
		return nil, fmt.Errorf("invalid log key, %v", err)
	}

	mv, err := note.NewVerifier(strings.TrimSpace(ManifestPublicKey))

	if err != nil {
		return nil, fmt.Errorf("invalid manifest key, %v", err)
	}

	bv := &image.BundleVerifier{
		LogOrigin:         LogOrigin,
		LogVerifier:       lv,
		ManifestVerifiers: []note.Verifier{mv},
	}

	m, err := bv.Verify(b)

	if err != nil {
		return nil, fmt.Errorf("release bundle verification failed, %v", err)
	}

	for c, v := range m.Versions {
		klog.Infof("SM: release %s version %s", c, v)
	}

	return &image.ManifestVerifier{Manifest: m}, nil
}
