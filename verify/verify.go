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

// Package verify recomputes and compares digests for finished artifacts.
// Verification detects tampering, it never corrects it: recorded manifests
// stay untouched and every algorithm is reported, a single mismatch fails
// the artifact even if other algorithms match.
package verify

import (
	"io"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/forensicanalysis/evidencekit"
	"github.com/forensicanalysis/evidencekit/hashsum"
)

var ErrMismatch = errors.New("verify: digest mismatch")

// Verification modes.
const (
	ModeSelfCheck  = "self-check"
	ModeCrossCheck = "cross-check"
)

// AlgorithmResult is the outcome for a single algorithm. Reports never
// short-circuit, the operator sees every algorithm's result.
type AlgorithmResult struct {
	Algorithm string `json:"algorithm"`
	Expected  string `json:"expected"`
	Actual    string `json:"actual"`
	Match     bool   `json:"match"`
}

// Report is the verification outcome for one artifact.
type Report struct {
	Evidence     string            `json:"evidence,omitempty"`
	Artifact     string            `json:"artifact"`
	Mode         string            `json:"mode"`
	Timestamp    string            `json:"timestamp"`
	Size         int64             `json:"size"`
	ExpectedSize int64             `json:"expected_size"`
	SizeMatch    bool              `json:"size_match"`
	Results      []AlgorithmResult `json:"results"`
	Match        bool              `json:"match"`
}

// Engine recomputes digests against manifests or second sources.
type Engine struct {
	FS afero.Fs
}

// SelfCheck recomputes the digests of an artifact and compares them to its
// manifest, algorithm by algorithm, exact hex comparison. The manifest is
// read only, a mismatch is reported, never repaired.
func (e *Engine) SelfCheck(artifactPath string, manifest *evidencekit.Manifest) (*Report, error) {
	algorithms := make([]string, 0, len(manifest.Hashes))
	for algorithm := range manifest.Hashes {
		algorithms = append(algorithms, algorithm)
	}
	sort.Strings(algorithms)
	if len(algorithms) == 0 {
		return nil, errors.New("manifest contains no digests")
	}

	f, err := e.FS.Open(artifactPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	actual, size, err := hashsum.Reader(f, algorithms...)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Evidence:     manifest.Evidence,
		Artifact:     manifest.Artifact,
		Mode:         ModeSelfCheck,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Size:         size,
		ExpectedSize: manifest.Size,
		SizeMatch:    size == manifest.Size,
		Match:        true,
	}
	for _, algorithm := range algorithms {
		result := AlgorithmResult{
			Algorithm: algorithm,
			Expected:  manifest.Hashes[algorithm],
			Actual:    actual[algorithm],
			Match:     manifest.Hashes[algorithm] == actual[algorithm],
		}
		report.Results = append(report.Results, result)
		if !result.Match {
			report.Match = false
		}
	}
	if !report.SizeMatch {
		report.Match = false
	}

	if !report.Match {
		return report, errors.Wrap(ErrMismatch, manifest.Artifact)
	}
	return report, nil
}

// CrossCheck compares two manifests over their shared algorithms, e.g. a
// source system hash against the acquired copy.
func CrossCheck(expected, actual *evidencekit.Manifest) (*Report, error) {
	shared := make([]string, 0, len(expected.Hashes))
	for algorithm := range expected.Hashes {
		if _, ok := actual.Hashes[algorithm]; ok {
			shared = append(shared, algorithm)
		}
	}
	sort.Strings(shared)
	if len(shared) == 0 {
		return nil, errors.New("manifests share no algorithms")
	}

	report := &Report{
		Evidence:     actual.Evidence,
		Artifact:     actual.Artifact,
		Mode:         ModeCrossCheck,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Size:         actual.Size,
		ExpectedSize: expected.Size,
		SizeMatch:    actual.Size == expected.Size,
		Match:        true,
	}
	for _, algorithm := range shared {
		result := AlgorithmResult{
			Algorithm: algorithm,
			Expected:  expected.Hashes[algorithm],
			Actual:    actual.Hashes[algorithm],
			Match:     expected.Hashes[algorithm] == actual.Hashes[algorithm],
		}
		report.Results = append(report.Results, result)
		if !result.Match {
			report.Match = false
		}
	}
	if !report.SizeMatch {
		report.Match = false
	}

	if !report.Match {
		return report, errors.Wrap(ErrMismatch, actual.Artifact)
	}
	return report, nil
}

// CrossCheckSource recomputes the manifest's algorithms against a second
// live source and compares the results.
func CrossCheckSource(r io.Reader, manifest *evidencekit.Manifest) (*Report, error) {
	algorithms := make([]string, 0, len(manifest.Hashes))
	for algorithm := range manifest.Hashes {
		algorithms = append(algorithms, algorithm)
	}
	sort.Strings(algorithms)
	if len(algorithms) == 0 {
		return nil, errors.New("manifest contains no digests")
	}

	actual, size, err := hashsum.Reader(r, algorithms...)
	if err != nil {
		return nil, err
	}

	second := &evidencekit.Manifest{
		Evidence: manifest.Evidence,
		Artifact: manifest.Artifact,
		Hashes:   actual,
		Size:     size,
	}
	return CrossCheck(manifest, second)
}
