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

package verify

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/evidencekit"
	"github.com/forensicanalysis/evidencekit/acquire"
	"github.com/forensicanalysis/evidencekit/source"
)

const sweepCase = "CASE-2024-001"

func acquiredManager(t *testing.T, artifacts ...string) *evidencekit.CaseManager {
	t.Helper()
	manager, err := evidencekit.NewCaseManagerFs(afero.NewMemMapFs(), "evidence", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	_, err = manager.CreateCase(sweepCase, "Jane Doe", "")
	require.NoError(t, err)

	driver := &acquire.Driver{Manager: manager, Provider: &source.SyntheticProvider{Seed: 3}}
	for _, artifact := range artifacts {
		_, err := driver.Acquire(context.Background(), sweepCase, "65536", artifact, evidencekit.AcquisitionDisk, acquire.Options{
			Actor: "Jane Doe",
		})
		require.NoError(t, err)
	}
	return manager
}

func corrupt(t *testing.T, manager *evidencekit.CaseManager, artifact string) {
	t.Helper()
	path := manager.ArtifactPath(sweepCase, artifact)
	b, err := afero.ReadFile(manager.Fs(), path)
	require.NoError(t, err)
	b[len(b)/2] ^= 0xFF
	require.NoError(t, afero.WriteFile(manager.Fs(), path, b, 0644))
}

func TestCheckEvidence(t *testing.T) {
	manager := acquiredManager(t, "sdb.dd")
	verifier := &CaseVerifier{Manager: manager, Actor: "Jane Doe"}

	items, err := manager.Items(sweepCase)
	require.NoError(t, err)
	require.Len(t, items, 1)

	report, err := verifier.CheckEvidence(&items[0])
	require.NoError(t, err)
	assert.True(t, report.Match)

	loaded, err := manager.Evidence(items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, evidencekit.StatusVerified, loaded.Status)

	ledger, err := manager.Ledger(sweepCase)
	require.NoError(t, err)
	entries := ledger.Entries()
	assert.Equal(t, "Verification passed", entries[len(entries)-1].Action)
}

func TestCheckEvidenceCorrupted(t *testing.T) {
	manager := acquiredManager(t, "sdb.dd")
	verifier := &CaseVerifier{Manager: manager, Actor: "Jane Doe"}
	corrupt(t, manager, "sdb.dd")

	items, err := manager.Items(sweepCase)
	require.NoError(t, err)

	report, err := verifier.CheckEvidence(&items[0])
	require.Error(t, err)
	require.NotNil(t, report)
	assert.False(t, report.Match)

	loaded, err := manager.Evidence(items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, evidencekit.StatusVerificationFailed, loaded.Status)

	// The manifest keeps its original digests, the mismatch is only
	// reported.
	manifest, err := manager.Manifest(loaded)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, manifest.Hashes[report.Results[0].Algorithm], report.Results[0].Expected)

	ledger, err := manager.Ledger(sweepCase)
	require.NoError(t, err)
	entries := ledger.Entries()
	assert.Equal(t, "Verification failed: digest mismatch", entries[len(entries)-1].Action)
}

func TestSweep(t *testing.T) {
	manager := acquiredManager(t, "sdb.dd", "sdc.dd")
	verifier := &CaseVerifier{Manager: manager, Actor: "Jane Doe"}

	caseReport, err := verifier.Sweep(sweepCase)
	require.NoError(t, err)
	assert.True(t, caseReport.Passed)
	assert.Len(t, caseReport.Reports, 2)
	assert.Empty(t, caseReport.Flaws)

	items, err := manager.Items(sweepCase)
	require.NoError(t, err)
	for _, item := range items {
		assert.Equal(t, evidencekit.StatusVerified, item.Status)
	}

	ledger, err := manager.Ledger(sweepCase)
	require.NoError(t, err)
	entries := ledger.Entries()
	assert.Equal(t, "Case verification passed", entries[len(entries)-1].Action)
	assert.NoError(t, ledger.VerifyChain())

	// A second sweep over already verified items passes as well.
	again, err := verifier.Sweep(sweepCase)
	require.NoError(t, err)
	assert.True(t, again.Passed)
}

func TestSweepCorruption(t *testing.T) {
	manager := acquiredManager(t, "sdb.dd", "sdc.dd")
	verifier := &CaseVerifier{Manager: manager, Actor: "Jane Doe"}
	corrupt(t, manager, "sdc.dd")

	caseReport, err := verifier.Sweep(sweepCase)
	require.NoError(t, err)
	assert.False(t, caseReport.Passed)
	require.Len(t, caseReport.Reports, 2)
	assert.True(t, caseReport.Reports[0].Match)
	assert.False(t, caseReport.Reports[1].Match)

	items, err := manager.Items(sweepCase)
	require.NoError(t, err)
	assert.Equal(t, evidencekit.StatusVerified, items[0].Status)
	assert.Equal(t, evidencekit.StatusVerificationFailed, items[1].Status)

	ledger, err := manager.Ledger(sweepCase)
	require.NoError(t, err)
	entries := ledger.Entries()
	assert.Equal(t, "Case verification failed", entries[len(entries)-1].Action)
}

func TestSweepStrayManifest(t *testing.T) {
	manager := acquiredManager(t, "sdb.dd")
	verifier := &CaseVerifier{Manager: manager, Actor: "Jane Doe"}

	stray := filepath.Join(manager.CaseDir(sweepCase), "stray.dd.manifest.json")
	require.NoError(t, afero.WriteFile(manager.Fs(), stray, []byte("{}"), 0644))

	caseReport, err := verifier.Sweep(sweepCase)
	require.NoError(t, err)
	assert.False(t, caseReport.Passed)
	require.NotEmpty(t, caseReport.Flaws)
	assert.Contains(t, caseReport.Flaws[0], "stray manifest")
}

func TestSweepMissingManifest(t *testing.T) {
	manager := acquiredManager(t)
	verifier := &CaseVerifier{Manager: manager, Actor: "Jane Doe"}

	// An item registered without a finished acquisition has no manifest.
	_, err := manager.RegisterEvidence(sweepCase, "/dev/sdd", evidencekit.AcquisitionDisk, "sdd.dd", nil)
	require.NoError(t, err)

	caseReport, err := verifier.Sweep(sweepCase)
	require.NoError(t, err)
	assert.False(t, caseReport.Passed)
	assert.NotEmpty(t, caseReport.Flaws)
	assert.Empty(t, caseReport.Reports)
}
