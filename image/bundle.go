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

package image

import (
	"errors"
	"fmt"

	"github.com/transparency-dev/formats/log"
	"github.com/transparency-dev/merkle/proof"
	"github.com/transparency-dev/merkle/rfc6962"
	"golang.org/x/mod/sumdb/note"
)

// Bundle represents a manifest along with the proof of its inclusion in a
// release transparency log.
type Bundle struct {
	// Checkpoint is the signed log checkpoint the proof is relative to.
	Checkpoint []byte
	// Index is the position of the manifest in the log.
	Index uint64
	// InclusionProof is the proof of the manifest inclusion under
	// Checkpoint.
	InclusionProof [][]byte
	// Manifest is the signed manifest.
	Manifest []byte
}

// BundleVerifier verifies transparency bundles.
type BundleVerifier struct {
	LogOrigin         string
	LogVerifier       note.Verifier
	ManifestVerifiers []note.Verifier
}

// Verify checks that the bundle manifest is included in a checkpoint signed
// by the log and returns the verified manifest.
func (v *BundleVerifier) Verify(b Bundle) (*Manifest, error) {
	if v.LogVerifier == nil {
		return nil, errors.New("no log verifier")
	}

	cp, _, _, err := log.ParseCheckpoint(b.Checkpoint, v.LogOrigin, v.LogVerifier)

	if err != nil {
		return nil, fmt.Errorf("could not open checkpoint, %v", err)
	}

	if b.Index >= cp.Size {
		return nil, fmt.Errorf("index %d not within checkpoint size %d", b.Index, cp.Size)
	}

	leaf := rfc6962.DefaultHasher.HashLeaf(b.Manifest)

	if err = proof.VerifyInclusion(rfc6962.DefaultHasher, b.Index, cp.Size, leaf, b.InclusionProof, cp.Hash); err != nil {
		return nil, fmt.Errorf("invalid inclusion proof, %v", err)
	}

	return OpenManifest(b.Manifest, v.ManifestVerifiers...)
}
