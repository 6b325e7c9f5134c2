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
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/mod/sumdb/note"
)

// Digest represents the expected size and hash of an image payload.
type Digest struct {
	Size   uint64 `json:"size"`
	SHA256 []byte `json:"sha256"`
}

// Manifest represents a signed release of boot images.
type Manifest struct {
	// Images maps image kinds (see Kind.String) to their payload digest.
	Images map[string]Digest `json:"images"`
	// Versions maps component names to their version.
	Versions map[string]string `json:"versions,omitempty"`
}

// Compute hashes the contents of r.
func Compute(r io.Reader) (Digest, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)

	if err != nil {
		return Digest{}, err
	}

	return Digest{
		Size:   uint64(n),
		SHA256: h.Sum(nil),
	}, nil
}

// SignManifest serializes m as a note signed by all signers.
func SignManifest(m *Manifest, signers ...note.Signer) ([]byte, error) {
	buf, err := json.MarshalIndent(m, "", "  ")

	if err != nil {
		return nil, err
	}

	return note.Sign(&note.Note{Text: string(buf) + "\n"}, signers...)
}

// OpenManifest verifies a signed manifest against a list of known
// verifiers and returns its contents.
func OpenManifest(signed []byte, verifiers ...note.Verifier) (*Manifest, error) {
	n, err := note.Open(signed, note.VerifierList(verifiers...))

	if err != nil {
		return nil, fmt.Errorf("could not verify manifest, %v", err)
	}

	m := &Manifest{}

	if err = json.Unmarshal([]byte(n.Text), m); err != nil {
		return nil, fmt.Errorf("could not parse manifest, %v", err)
	}

	return m, nil
}

// ManifestVerifier authenticates images against the digests of a verified
// manifest.
type ManifestVerifier struct {
	Manifest *Manifest
}

// Verify implements Verifier.
func (v *ManifestVerifier) Verify(d *Descriptor) error {
	if v.Manifest == nil {
		return errors.New("no manifest")
	}

	want, ok := v.Manifest.Images[d.Kind.String()]

	if !ok {
		return fmt.Errorf("%s not in manifest", d.Kind)
	}

	got, err := Compute(io.NewSectionReader(d.Memory, int64(d.Payload()), int64(want.Size)))

	if err != nil {
		return err
	}

	if got.Size != want.Size {
		return fmt.Errorf("size mismatch (%d != %d)", got.Size, want.Size)
	}

	if !bytes.Equal(got.SHA256, want.SHA256) {
		return fmt.Errorf("digest mismatch (%x != %x)", got.SHA256, want.SHA256)
	}

	return nil
}
