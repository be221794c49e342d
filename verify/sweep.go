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
	"encoding/json"
	"fmt"
	"time"

	"github.com/forensicanalysis/fsdoublestar"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/forensicanalysis/evidencekit"
)

// CaseVerifier runs verification sweeps over whole cases.
type CaseVerifier struct {
	Manager *evidencekit.CaseManager
	// Actor recorded in the custody entries the sweep appends.
	Actor string
}

// CaseReport aggregates the verification of every evidence item of a case.
type CaseReport struct {
	CaseID    string    `json:"case_id"`
	Timestamp string    `json:"timestamp"`
	Passed    bool      `json:"passed"`
	Reports   []*Report `json:"reports"`
	// Flaws lists structural problems: items without manifests, stray
	// manifests no evidence item references, ledger discontinuities.
	Flaws []string `json:"flaws,omitempty"`
}

// CheckEvidence verifies a single evidence item against its manifest,
// updates its status and appends a custody entry with the outcome.
func (v *CaseVerifier) CheckEvidence(evidence *evidencekit.Evidence) (*Report, error) {
	manifest, err := v.Manager.Manifest(evidence)
	if err != nil {
		return nil, err
	}

	engine := &Engine{FS: v.Manager.Fs()}
	artifactPath := v.Manager.ArtifactPath(evidence.CaseID, evidence.Artifact)
	report, err := engine.SelfCheck(artifactPath, manifest)
	if err != nil && !errors.Is(err, ErrMismatch) {
		return nil, err
	}

	status := evidencekit.StatusVerified
	action := "Verification passed"
	if !report.Match {
		status = evidencekit.StatusVerificationFailed
		action = "Verification failed: digest mismatch"
	}
	if statusErr := v.Manager.SetEvidenceStatus(evidence.ID, status); statusErr != nil {
		return report, statusErr
	}
	if _, ledgerErr := v.Manager.AppendCustody(evidence.CaseID, v.actor(), action, evidence.ID); ledgerErr != nil {
		return report, ledgerErr
	}
	return report, err
}

// Sweep verifies every evidence item of a case, audits the custody chain
// and reconciles the manifests found on disk against the case index.
func (v *CaseVerifier) Sweep(caseID string) (*CaseReport, error) {
	items, err := v.Manager.Items(caseID)
	if err != nil {
		return nil, err
	}

	caseReport := &CaseReport{
		CaseID:    caseID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Passed:    true,
	}

	expectedManifests := map[string]bool{}
	for i := range items {
		evidence := items[i]
		expectedManifests[evidencekit.ManifestPath(evidence.Artifact)] = true

		report, err := v.CheckEvidence(&evidence)
		if err != nil && !errors.Is(err, ErrMismatch) {
			caseReport.Passed = false
			caseReport.Flaws = append(caseReport.Flaws, fmt.Sprintf("%s: %s", evidence.ID, err))
			continue
		}
		caseReport.Reports = append(caseReport.Reports, report)
		if !report.Match {
			caseReport.Passed = false
		}
	}

	// Stray manifests point at acquisitions the index does not know about.
	// The glob runs on a filesystem rooted at the case directory so the
	// matches come back relative, like the artifact names in the index.
	caseFs := afero.NewIOFS(afero.NewBasePathFs(v.Manager.Fs(), v.Manager.CaseDir(caseID)))
	found, err := fsdoublestar.Glob(caseFs, "**/*.manifest.json")
	if err != nil {
		return nil, err
	}
	for _, manifestPath := range found {
		if !expectedManifests[manifestPath] {
			caseReport.Passed = false
			caseReport.Flaws = append(caseReport.Flaws, fmt.Sprintf("stray manifest: %s", manifestPath))
		}
	}

	if err := v.auditLedger(caseID, caseReport); err != nil {
		return nil, err
	}

	outcome := "Case verification passed"
	if !caseReport.Passed {
		outcome = "Case verification failed"
	}
	if _, err := v.Manager.AppendCustody(caseID, v.actor(), outcome, ""); err != nil {
		return nil, err
	}
	return caseReport, nil
}

// auditLedger checks the custody chain and validates every persisted entry
// against its schema, so the audit does not rely on the writing code path.
func (v *CaseVerifier) auditLedger(caseID string, caseReport *CaseReport) error {
	ledger, err := v.Manager.Ledger(caseID)
	if err != nil {
		return err
	}
	if err := ledger.VerifyChain(); err != nil {
		caseReport.Passed = false
		caseReport.Flaws = append(caseReport.Flaws, fmt.Sprintf("custody chain: %s", err))
		return nil
	}
	for _, entry := range ledger.Entries() {
		b, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		flaws, err := evidencekit.ValidateAs("custody-entry", b)
		if err != nil {
			return err
		}
		for _, flaw := range flaws {
			caseReport.Passed = false
			caseReport.Flaws = append(caseReport.Flaws, fmt.Sprintf("custody entry %d: %s", entry.Sequence, flaw))
		}
	}
	return nil
}

func (v *CaseVerifier) actor() string {
	if v.Actor != "" {
		return v.Actor
	}
	return evidencekit.Tool
}
