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
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *CaseManager {
	t.Helper()
	manager, err := NewCaseManagerFs(afero.NewMemMapFs(), "evidence", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestCreateCase(t *testing.T) {
	manager := testManager(t)

	c, err := manager.CreateCase("CASE-2024-001", "Jane Doe", "seized laptop")
	require.NoError(t, err)
	assert.Equal(t, "case--CASE-2024-001", c.ID)
	assert.Equal(t, []string{"Jane Doe"}, c.Investigators)

	exists, err := afero.DirExists(manager.Fs(), manager.CaseDir("CASE-2024-001"))
	require.NoError(t, err)
	assert.True(t, exists)

	ledger, err := manager.Ledger("CASE-2024-001")
	require.NoError(t, err)
	require.Equal(t, 1, ledger.Len())
	assert.Equal(t, "Case initialized", ledger.Entries()[0].Action)
	assert.Equal(t, "Jane Doe", ledger.Entries()[0].Actor)
}

func TestCreateCaseDuplicate(t *testing.T) {
	manager := testManager(t)

	_, err := manager.CreateCase("CASE-2024-001", "Jane Doe", "")
	require.NoError(t, err)

	_, err = manager.CreateCase("CASE-2024-001", "John Roe", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateCase))

	// The failed attempt leaves no trace in the ledger.
	ledger, err := manager.Ledger("CASE-2024-001")
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.Len())

	c, err := manager.OpenCase("CASE-2024-001")
	require.NoError(t, err)
	assert.Equal(t, []string{"Jane Doe"}, c.Investigators)
}

func TestCreateCaseMissingFields(t *testing.T) {
	manager := testManager(t)

	_, err := manager.CreateCase("", "Jane Doe", "")
	assert.Error(t, err)
	_, err = manager.CreateCase("CASE-1", "", "")
	assert.Error(t, err)
}

func TestOpenCaseNotFound(t *testing.T) {
	manager := testManager(t)

	_, err := manager.OpenCase("CASE-404")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCaseNotFound))

	_, err = manager.AppendCustody("CASE-404", "Jane Doe", "anything", "")
	assert.True(t, errors.Is(err, ErrCaseNotFound))

	_, err = manager.Items("CASE-404")
	assert.True(t, errors.Is(err, ErrCaseNotFound))
}

func TestRegisterEvidence(t *testing.T) {
	manager := testManager(t)

	_, err := manager.CreateCase("CASE-1", "Jane Doe", "")
	require.NoError(t, err)

	first, err := manager.RegisterEvidence("CASE-1", "/dev/sdb", AcquisitionDisk, "sdb.dd", []string{"SHA-256"})
	require.NoError(t, err)
	assert.Equal(t, "evidence--CASE-1-001", first.ID)
	assert.Equal(t, StatusInProgress, first.Status)

	second, err := manager.RegisterEvidence("CASE-1", "eth0", AcquisitionNetwork, "eth0.pcap", []string{"SHA-256"})
	require.NoError(t, err)
	assert.Equal(t, "evidence--CASE-1-002", second.ID)

	c, err := manager.OpenCase("CASE-1")
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID}, c.EvidenceIDs)

	items, err := manager.Items("CASE-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, first.ID, items[0].ID)
	assert.Equal(t, second.ID, items[1].ID)
}

func TestRegisterEvidenceNoAlgorithms(t *testing.T) {
	manager := testManager(t)

	_, err := manager.CreateCase("CASE-1", "Jane Doe", "")
	require.NoError(t, err)

	// Registration without digest algorithms passes schema validation.
	evidence, err := manager.RegisterEvidence("CASE-1", "/dev/sdb", AcquisitionDisk, "sdb.dd", nil)
	require.NoError(t, err)

	loaded, err := manager.Evidence(evidence.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, loaded.Status)
	assert.Empty(t, loaded.Algorithms)
}

func TestEvidenceNotFound(t *testing.T) {
	manager := testManager(t)

	_, err := manager.Evidence("evidence--CASE-1-001")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEvidenceNotFound))

	err = manager.SetEvidenceStatus("evidence--CASE-1-001", StatusComplete)
	assert.True(t, errors.Is(err, ErrEvidenceNotFound))
}

func TestSetEvidenceStatus(t *testing.T) {
	manager := testManager(t)

	_, err := manager.CreateCase("CASE-1", "Jane Doe", "")
	require.NoError(t, err)
	evidence, err := manager.RegisterEvidence("CASE-1", "/dev/sdb", AcquisitionDisk, "sdb.dd", nil)
	require.NoError(t, err)

	require.NoError(t, manager.SetEvidenceStatus(evidence.ID, StatusComplete))
	require.NoError(t, manager.SetEvidenceStatus(evidence.ID, StatusComplete), "same status is a no-op")
	require.NoError(t, manager.SetEvidenceStatus(evidence.ID, StatusVerified))

	err = manager.SetEvidenceStatus(evidence.ID, StatusInProgress)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIllegalTransition))

	loaded, err := manager.Evidence(evidence.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, loaded.Status, "the rejected transition changes nothing")
}

func TestLegalTransition(t *testing.T) {
	tests := []struct {
		from string
		to   string
		want bool
	}{
		{StatusInProgress, StatusComplete, true},
		{StatusInProgress, StatusFailed, true},
		{StatusInProgress, StatusVerified, false},
		{StatusComplete, StatusVerified, true},
		{StatusComplete, StatusVerificationFailed, true},
		{StatusComplete, StatusInProgress, false},
		{StatusFailed, StatusVerified, true},
		{StatusVerified, StatusVerificationFailed, true},
		{StatusVerified, StatusComplete, false},
		{StatusVerificationFailed, StatusVerified, false},
	}
	for _, tt := range tests {
		t.Run(tt.from+" to "+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, LegalTransition(tt.from, tt.to))
		})
	}
}

func TestCases(t *testing.T) {
	manager := testManager(t)

	_, err := manager.CreateCase("CASE-1", "Jane Doe", "")
	require.NoError(t, err)
	_, err = manager.CreateCase("CASE-2", "John Roe", "")
	require.NoError(t, err)
	_, err = manager.RegisterEvidence("CASE-1", "/dev/sdb", AcquisitionDisk, "sdb.dd", nil)
	require.NoError(t, err)

	cases, err := manager.Cases()
	require.NoError(t, err)
	require.Len(t, cases, 2, "evidence records are not cases")
	assert.Equal(t, "CASE-1", cases[0].CaseID)
	assert.Equal(t, "CASE-2", cases[1].CaseID)
}

func TestLedgerSharedInstance(t *testing.T) {
	manager := testManager(t)

	_, err := manager.CreateCase("CASE-1", "Jane Doe", "")
	require.NoError(t, err)

	a, err := manager.Ledger("CASE-1")
	require.NoError(t, err)
	b, err := manager.Ledger("CASE-1")
	require.NoError(t, err)
	assert.Same(t, a, b, "parallel sessions share one total order")
}
