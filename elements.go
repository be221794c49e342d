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
	"fmt"
)

// Tool identification, embedded into every manifest so an audit can tell
// which program and version produced a record.
const (
	Tool        = "evidencekit"
	ToolVersion = "1.0.0"
)

// JSONElement is a single raw record in the case index.
type JSONElement []byte

// Element is a generic decoded record.
type Element map[string]interface{}

// Acquisition types.
const (
	AcquisitionDisk    = "disk"
	AcquisitionMemory  = "memory"
	AcquisitionNetwork = "network"
)

// Evidence item statuses. Transitions are monotonic: in-progress can move
// to complete or failed, either of which can move to verified or
// verification-failed. No other edge is legal.
const (
	StatusInProgress         = "in-progress"
	StatusComplete           = "complete"
	StatusFailed             = "failed"
	StatusVerified           = "verified"
	StatusVerificationFailed = "verification-failed"
)

var legalTransitions = map[string][]string{
	StatusInProgress: {StatusComplete, StatusFailed},
	StatusComplete:   {StatusVerified, StatusVerificationFailed},
	StatusFailed:     {StatusVerified, StatusVerificationFailed},
	// A later re-verification may detect degradation, the reverse edge
	// does not exist: an item never un-fails.
	StatusVerified: {StatusVerificationFailed},
}

// LegalTransition reports whether an evidence item may move from one
// status to another.
func LegalTransition(from, to string) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var ErrDuplicateCase = fmt.Errorf("case already exists")
var ErrCaseNotFound = fmt.Errorf("case does not exist")
var ErrEvidenceNotFound = fmt.Errorf("evidence item does not exist")
var ErrIllegalTransition = fmt.Errorf("illegal evidence status transition")

// Case is the top level record of an investigation. It is created once and
// afterwards only mutated by appending evidence references; the tool never
// deletes a case.
type Case struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	CaseID        string   `json:"case_id"`
	Investigators []string `json:"investigators"`
	Description   string   `json:"description,omitempty"`
	Created       string   `json:"created"`
	Directory     string   `json:"directory"`
	EvidenceIDs   []string `json:"evidence_ids,omitempty"`
}

// NewCase creates a Case record. The element id is derived from the
// investigator assigned case id so duplicates collide in the index.
func NewCase(caseID string) *Case {
	return &Case{ID: "case--" + caseID, Type: "case", CaseID: caseID}
}

// Evidence is one acquired artifact within a case.
type Evidence struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	CaseID      string   `json:"case_id"`
	Sequence    int      `json:"sequence"`
	Source      string   `json:"source"`
	Acquisition string   `json:"acquisition"`
	Artifact    string   `json:"artifact"`
	Algorithms  []string `json:"algorithms,omitempty"`
	Status      string   `json:"status"`
}

// NewEvidence creates an Evidence record with a case scoped sequential id.
func NewEvidence(caseID string, sequence int) *Evidence {
	return &Evidence{
		ID:       fmt.Sprintf("evidence--%s-%03d", caseID, sequence),
		Type:     "evidence",
		CaseID:   caseID,
		Sequence: sequence,
		Status:   StatusInProgress,
	}
}
