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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *CaseStore {
	t.Helper()
	store, err := NewCaseStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func validCase() JSONElement {
	return JSONElement(`{
		"id": "case--CASE-2024-001",
		"type": "case",
		"case_id": "CASE-2024-001",
		"investigators": ["Jane Doe"],
		"created": "2024-01-01T00:00:00Z",
		"directory": "evidence/CASE-2024-001"
	}`)
}

func TestStoreInsertGet(t *testing.T) {
	store := testStore(t)

	id, err := store.Insert(validCase())
	require.NoError(t, err)
	assert.Equal(t, "case--CASE-2024-001", id)

	element, err := store.Get(id)
	require.NoError(t, err)

	c := &Case{}
	require.NoError(t, json.Unmarshal(element, c))
	assert.Equal(t, "CASE-2024-001", c.CaseID)
	assert.Equal(t, []string{"Jane Doe"}, c.Investigators)
}

func TestStoreInsertInvalid(t *testing.T) {
	tests := []struct {
		name    string
		element string
	}{
		{"missing type", `{"id": "x--1", "case_id": "CASE-1"}`},
		{"missing investigators", `{
			"id": "case--CASE-1", "type": "case", "case_id": "CASE-1",
			"created": "2024-01-01T00:00:00Z", "directory": "evidence/CASE-1"
		}`},
		{"bad status", `{
			"id": "evidence--CASE-1-001", "type": "evidence", "case_id": "CASE-1",
			"sequence": 1, "source": "/dev/sdb", "acquisition": "disk",
			"artifact": "sdb.dd", "status": "done"
		}`},
		{"bad acquisition type", `{
			"id": "evidence--CASE-1-001", "type": "evidence", "case_id": "CASE-1",
			"sequence": 1, "source": "/dev/sdb", "acquisition": "cloud",
			"artifact": "sdb.dd", "status": "in-progress"
		}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testStore(t)
			_, err := store.Insert(JSONElement(tt.element))
			assert.Error(t, err)
		})
	}
}

func TestStoreInsertDuplicateID(t *testing.T) {
	store := testStore(t)

	_, err := store.Insert(validCase())
	require.NoError(t, err)
	_, err = store.Insert(validCase())
	assert.Error(t, err)
}

func TestStoreGeneratedID(t *testing.T) {
	store := testStore(t)

	// Unknown types are stored without schema guarantees.
	id, err := store.Insert(JSONElement(`{"type": "note", "text": "chain of custody sealed"}`))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "note--"))

	element, err := store.Get(id)
	require.NoError(t, err)
	fields := Element{}
	require.NoError(t, json.Unmarshal(element, &fields))
	assert.Equal(t, id, fields["id"])
}

func TestStoreInsertStruct(t *testing.T) {
	store := testStore(t)

	evidence := NewEvidence("CASE-1", 1)
	evidence.Source = "/dev/sdb"
	evidence.Acquisition = AcquisitionDisk
	evidence.Artifact = "sdb.dd"
	evidence.Algorithms = []string{"SHA-256"}

	id, err := store.InsertStruct(evidence)
	require.NoError(t, err)
	assert.Equal(t, "evidence--CASE-1-001", id)

	element, err := store.Get(id)
	require.NoError(t, err)
	loaded := &Evidence{}
	require.NoError(t, json.Unmarshal(element, loaded))
	assert.Equal(t, StatusInProgress, loaded.Status)
	assert.Equal(t, "/dev/sdb", loaded.Source)
}

func TestStoreSelect(t *testing.T) {
	store := testStore(t)

	_, err := store.Insert(validCase())
	require.NoError(t, err)

	evidence := NewEvidence("CASE-2024-001", 1)
	evidence.Source = "/dev/sdb"
	evidence.Acquisition = AcquisitionDisk
	evidence.Artifact = "sdb.dd"
	_, err = store.InsertStruct(evidence)
	require.NoError(t, err)

	cases, err := store.Select("case")
	require.NoError(t, err)
	assert.Len(t, cases, 1)

	items, err := store.Select("evidence")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	all, err := store.All()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := store.Select("manifest")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStoreUpdate(t *testing.T) {
	store := testStore(t)

	id, err := store.Insert(validCase())
	require.NoError(t, err)

	err = store.Update(id, Element{"evidence_ids": []string{"evidence--CASE-2024-001-001"}})
	require.NoError(t, err)

	element, err := store.Get(id)
	require.NoError(t, err)
	c := &Case{}
	require.NoError(t, json.Unmarshal(element, c))
	assert.Equal(t, []string{"evidence--CASE-2024-001-001"}, c.EvidenceIDs)
	assert.Equal(t, []string{"Jane Doe"}, c.Investigators, "untouched fields survive the merge")
}

func TestStoreUpdateInvalid(t *testing.T) {
	store := testStore(t)

	id, err := store.Insert(validCase())
	require.NoError(t, err)

	err = store.Update(id, Element{"investigators": "nobody"})
	assert.Error(t, err, "the merged record is re-validated")

	err = store.Update("case--missing", Element{"description": "x"})
	assert.Error(t, err)
}
