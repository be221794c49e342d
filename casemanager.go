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
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/forensicanalysis/evidencekit/custody"
)

const ledgerFile = "custody.jsonl"
const caseIndexFile = "cases.db"

// CaseManager coordinates the engines around a case identity. It owns the
// case index and hands out one custody ledger per case, so concurrent
// sessions share a single total order of custody events.
type CaseManager struct {
	fs      afero.Fs
	root    string
	store   *CaseStore
	mu      sync.Mutex
	ledgers map[string]*custody.Ledger
}

// NewCaseManager opens the evidence root on the host filesystem, creating
// the case index on first use.
func NewCaseManager(root string) (*CaseManager, error) {
	return NewCaseManagerFs(afero.NewOsFs(), root, filepath.Join(root, caseIndexFile))
}

// NewCaseManagerFs opens an evidence root on an arbitrary filesystem with
// an explicit case index url. Tests pass a MemMapFs and ":memory:".
func NewCaseManagerFs(fs afero.Fs, root, storeURL string) (*CaseManager, error) {
	if err := fs.MkdirAll(root, 0750); err != nil {
		return nil, err
	}
	store, err := NewCaseStore(storeURL)
	if err != nil {
		return nil, err
	}
	return &CaseManager{
		fs:      fs,
		root:    root,
		store:   store,
		ledgers: map[string]*custody.Ledger{},
	}, nil
}

// Fs returns the filesystem artifacts and manifests are written to.
func (cm *CaseManager) Fs() afero.Fs { return cm.fs }

// CaseDir returns the directory holding a case's artifacts, manifests and
// ledger.
func (cm *CaseManager) CaseDir(caseID string) string {
	return filepath.Join(cm.root, caseID)
}

// ArtifactPath resolves an artifact name relative to its case directory.
func (cm *CaseManager) ArtifactPath(caseID, name string) string {
	return filepath.Join(cm.CaseDir(caseID), name)
}

// CreateCase registers a new case and appends the initial custody entry.
// A second call with the same id fails with ErrDuplicateCase and leaves
// the index and ledger unchanged.
func (cm *CaseManager) CreateCase(caseID, investigator, description string) (*Case, error) {
	if caseID == "" || investigator == "" {
		return nil, errors.New("case id and investigator are required")
	}

	c := NewCase(caseID)
	if _, err := cm.store.Get(c.ID); err == nil {
		return nil, errors.Wrap(ErrDuplicateCase, caseID)
	}

	c.Investigators = []string{investigator}
	c.Description = description
	c.Created = time.Now().UTC().Format(time.RFC3339)
	c.Directory = cm.CaseDir(caseID)

	if err := cm.fs.MkdirAll(c.Directory, 0750); err != nil {
		return nil, err
	}

	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	if _, err := cm.store.Insert(b); err != nil {
		return nil, err
	}

	ledger, err := cm.Ledger(caseID)
	if err != nil {
		return nil, err
	}
	if _, err := ledger.Append(investigator, "Case initialized", ""); err != nil {
		return nil, err
	}
	return c, nil
}

// OpenCase fetches an existing case.
func (cm *CaseManager) OpenCase(caseID string) (*Case, error) {
	element, err := cm.store.Get("case--" + caseID)
	if err != nil {
		return nil, errors.Wrap(ErrCaseNotFound, caseID)
	}
	c := &Case{}
	if err := json.Unmarshal(element, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Cases lists every case in the index.
func (cm *CaseManager) Cases() ([]Case, error) {
	elements, err := cm.store.Select("case")
	if err != nil {
		return nil, err
	}
	cases := make([]Case, 0, len(elements))
	for _, element := range elements {
		c := Case{}
		if err := json.Unmarshal(element, &c); err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// Ledger returns the custody ledger of a case, opening it on first use.
// The same instance is handed to every caller so appends from parallel
// sessions are totally ordered.
func (cm *CaseManager) Ledger(caseID string) (*custody.Ledger, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if ledger, ok := cm.ledgers[caseID]; ok {
		return ledger, nil
	}
	ledger, err := custody.Open(cm.fs, filepath.Join(cm.CaseDir(caseID), ledgerFile))
	if err != nil {
		return nil, err
	}
	cm.ledgers[caseID] = ledger
	return ledger, nil
}

// AppendCustody adds a custody event to a case ledger.
func (cm *CaseManager) AppendCustody(caseID, actor, action, evidenceID string) (custody.Entry, error) {
	if _, err := cm.OpenCase(caseID); err != nil {
		return custody.Entry{}, err
	}
	ledger, err := cm.Ledger(caseID)
	if err != nil {
		return custody.Entry{}, err
	}
	return ledger.Append(actor, action, evidenceID)
}

// RegisterEvidence creates a new evidence item in status in-progress and
// links it to its case.
func (cm *CaseManager) RegisterEvidence(caseID, source, acquisition, artifact string, algorithms []string) (*Evidence, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	c, err := cm.OpenCase(caseID)
	if err != nil {
		return nil, err
	}

	evidence := NewEvidence(caseID, len(c.EvidenceIDs)+1)
	evidence.Source = source
	evidence.Acquisition = acquisition
	evidence.Artifact = artifact
	evidence.Algorithms = algorithms

	if _, err := cm.store.InsertStruct(evidence); err != nil {
		return nil, err
	}

	evidenceIDs := append(c.EvidenceIDs, evidence.ID) // nolint:gocritic
	err = cm.store.Update(c.ID, Element{"evidence_ids": evidenceIDs})
	if err != nil {
		return nil, err
	}
	return evidence, nil
}

// Evidence fetches a single evidence item.
func (cm *CaseManager) Evidence(evidenceID string) (*Evidence, error) {
	element, err := cm.store.Get(evidenceID)
	if err != nil {
		return nil, errors.Wrap(ErrEvidenceNotFound, evidenceID)
	}
	evidence := &Evidence{}
	if err := json.Unmarshal(element, evidence); err != nil {
		return nil, err
	}
	return evidence, nil
}

// Items lists all evidence items of a case in registration order.
func (cm *CaseManager) Items(caseID string) ([]Evidence, error) {
	c, err := cm.OpenCase(caseID)
	if err != nil {
		return nil, err
	}

	items := make([]Evidence, 0, len(c.EvidenceIDs))
	for _, id := range c.EvidenceIDs {
		evidence, err := cm.Evidence(id)
		if err != nil {
			return nil, err
		}
		items = append(items, *evidence)
	}
	return items, nil
}

// SetEvidenceStatus moves an evidence item to a new status. Transitions
// are monotonic, anything but the documented edges is rejected with
// ErrIllegalTransition.
func (cm *CaseManager) SetEvidenceStatus(evidenceID, status string) error {
	evidence, err := cm.Evidence(evidenceID)
	if err != nil {
		return err
	}
	if evidence.Status == status {
		return nil
	}
	if !LegalTransition(evidence.Status, status) {
		return errors.Wrapf(ErrIllegalTransition, "%s -> %s", evidence.Status, status)
	}
	return cm.store.Update(evidenceID, Element{"status": status})
}

// Manifest loads the manifest of an evidence item.
func (cm *CaseManager) Manifest(evidence *Evidence) (*Manifest, error) {
	return ReadManifest(cm.fs, cm.ArtifactPath(evidence.CaseID, evidence.Artifact))
}

// Close closes the case index.
func (cm *CaseManager) Close() error {
	return cm.store.Close()
}
