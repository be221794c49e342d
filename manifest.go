// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package evidencekit

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Coverage values for a manifest. Quick acquisitions are explicitly marked
// partial, they never claim forensic completeness.
const (
	CoverageFull    = "full"
	CoveragePartial = "partial"
)

const manifestVersion = 1
const manifestSuffix = ".manifest.json"

// Manifest binds an artifact to its digests and acquisition parameters. It
// is written exactly once per evidence item, on success and on failure
// alike, so gaps in an acquisition are always visible.
type Manifest struct {
	Version     int               `json:"manifest_version"`
	Type        string            `json:"type"`
	Evidence    string            `json:"evidence"`
	CaseID      string            `json:"case_id"`
	Source      string            `json:"source"`
	Acquisition string            `json:"acquisition"`
	Artifact    string            `json:"artifact"`
	Hashes      map[string]string `json:"hashes"`
	Size        int64             `json:"size"`
	ChunkSize   int               `json:"chunk_size"`
	Started     string            `json:"started"`
	Finished    string            `json:"finished"`
	Tool        string            `json:"tool"`
	ToolVersion string            `json:"tool_version"`
	Hostname    string            `json:"hostname,omitempty"`
	Completed   bool              `json:"completed"`
	Coverage    string            `json:"coverage"`
	Error       string            `json:"error,omitempty"`
}

// NewManifest creates a manifest shell for an evidence item.
func NewManifest(evidence *Evidence) *Manifest {
	return &Manifest{
		Version:     manifestVersion,
		Type:        "manifest",
		Evidence:    evidence.ID,
		CaseID:      evidence.CaseID,
		Source:      evidence.Source,
		Acquisition: evidence.Acquisition,
		Artifact:    evidence.Artifact,
		Hashes:      map[string]string{},
		Tool:        Tool,
		ToolVersion: ToolVersion,
		Coverage:    CoverageFull,
	}
}

// ManifestPath returns the manifest location for an artifact path.
func ManifestPath(artifactPath string) string {
	return artifactPath + manifestSuffix
}

// IsManifestPath reports whether a path names a manifest file.
func IsManifestPath(path string) bool {
	return strings.HasSuffix(path, manifestSuffix)
}

// WriteManifest validates and persists a manifest next to its artifact.
// Manifests are immutable, overwriting an existing one is rejected.
func WriteManifest(fs afero.Fs, artifactPath string, manifest *Manifest) error {
	manifestPath := ManifestPath(artifactPath)
	exists, err := afero.Exists(fs, manifestPath)
	if err != nil {
		return err
	}
	if exists {
		return errors.Errorf("manifest %s already exists", manifestPath)
	}

	b, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}

	flaws, err := ValidateAs("manifest", b)
	if err != nil {
		return errors.Wrap(err, "manifest validation failed")
	}
	if len(flaws) > 0 {
		return errors.Errorf("manifest could not be validated [%s]", strings.Join(flaws, ","))
	}

	return afero.WriteFile(fs, manifestPath, b, 0644)
}

// ReadManifest parses a persisted manifest. The record is validated against
// its schema so an audit pass can rely on the fields without trusting the
// code path that wrote them.
func ReadManifest(fs afero.Fs, artifactPath string) (*Manifest, error) {
	b, err := afero.ReadFile(fs, ManifestPath(artifactPath))
	if err != nil {
		return nil, err
	}

	flaws, err := ValidateAs("manifest", b)
	if err != nil {
		return nil, err
	}
	if len(flaws) > 0 {
		return nil, errors.Errorf("manifest could not be validated [%s]", strings.Join(flaws, ","))
	}

	manifest := &Manifest{}
	if err := json.Unmarshal(b, manifest); err != nil {
		return nil, err
	}
	if manifest.Version != manifestVersion {
		return nil, errors.Errorf("wrong manifest version (is %d, requires %d)", manifest.Version, manifestVersion)
	}
	return manifest, nil
}
