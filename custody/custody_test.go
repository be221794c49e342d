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

package custody

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndVerify(t *testing.T) {
	fs := afero.NewMemMapFs()
	ledger, err := Open(fs, "custody.jsonl")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		entry, err := ledger.Append("Jane Doe", fmt.Sprintf("action %d", i), "")
		require.NoError(t, err)
		assert.Equal(t, i, entry.Sequence)
	}

	entries := ledger.Entries()
	require.Len(t, entries, 5)
	assert.Equal(t, Genesis, entries[0].Previous)
	for i := 1; i < len(entries); i++ {
		assert.Equal(t, entries[i-1].Digest, entries[i].Previous)
	}
	assert.NoError(t, ledger.VerifyChain())
}

func TestReload(t *testing.T) {
	fs := afero.NewMemMapFs()
	ledger, err := Open(fs, "custody.jsonl")
	require.NoError(t, err)

	_, err = ledger.Append("Jane Doe", "Case initialized", "")
	require.NoError(t, err)
	_, err = ledger.Append("Jane Doe", "Acquisition started", "evidence--CASE-1-001")
	require.NoError(t, err)

	reloaded, err := Open(fs, "custody.jsonl")
	require.NoError(t, err)
	assert.Equal(t, ledger.Entries(), reloaded.Entries())
	assert.NoError(t, reloaded.VerifyChain())
}

func TestTamperDetection(t *testing.T) {
	fs := afero.NewMemMapFs()
	ledger, err := Open(fs, "custody.jsonl")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := ledger.Append("Jane Doe", fmt.Sprintf("action %d", i), "")
		require.NoError(t, err)
	}

	// Rewrite the persisted file with entry 2 edited after the fact.
	b, err := afero.ReadFile(fs, "custody.jsonl")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 4)

	var tampered Entry
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &tampered))
	tampered.Action = "nothing happened here"
	edited, err := json.Marshal(tampered)
	require.NoError(t, err)
	lines[2] = string(edited)
	require.NoError(t, afero.WriteFile(fs, "custody.jsonl", []byte(strings.Join(lines, "\n")+"\n"), 0644))

	reloaded, err := Open(fs, "custody.jsonl")
	require.NoError(t, err)

	err = reloaded.VerifyChain()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIntegrity))
	assert.Contains(t, err.Error(), "sequence 2")
}

func TestVerifyChainBrokenLink(t *testing.T) {
	fs := afero.NewMemMapFs()
	ledger, err := Open(fs, "custody.jsonl")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := ledger.Append("Jane Doe", fmt.Sprintf("action %d", i), "")
		require.NoError(t, err)
	}

	// Replace entry 1 with a recomputed digest. The edit is self
	// consistent, but entry 2 still links to the original digest.
	ledger.entries[1].Action = "rewritten"
	ledger.entries[1].Digest = ledger.entries[1].chainDigest()

	err = ledger.VerifyChain()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIntegrity))
	assert.Contains(t, err.Error(), "sequence 2")
}

func TestOpenOutOfOrder(t *testing.T) {
	fs := afero.NewMemMapFs()
	line0 := `{"sequence":0,"timestamp":"2024-01-01T00:00:00Z","actor":"a","action":"x","previous":"` + Genesis + `","digest":"d"}`
	line1 := `{"sequence":5,"timestamp":"2024-01-01T00:00:01Z","actor":"a","action":"y","previous":"d","digest":"e"}`
	require.NoError(t, afero.WriteFile(fs, "custody.jsonl", []byte(line0+"\n"+line1+"\n"), 0644))

	_, err := Open(fs, "custody.jsonl")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutOfOrder))
}

func TestConcurrentAppends(t *testing.T) {
	fs := afero.NewMemMapFs()
	ledger, err := Open(fs, "custody.jsonl")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_, err := ledger.Append(fmt.Sprintf("worker %d", w), "concurrent append", "")
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	entries := ledger.Entries()
	require.Len(t, entries, 100)
	for i, entry := range entries {
		assert.Equal(t, i, entry.Sequence)
	}
	assert.NoError(t, ledger.VerifyChain())
}

func TestWriteReport(t *testing.T) {
	fs := afero.NewMemMapFs()
	ledger, err := Open(fs, "custody.jsonl")
	require.NoError(t, err)

	_, err = ledger.Append("Jane Doe", "Case initialized", "")
	require.NoError(t, err)
	_, err = ledger.Append("Jane Doe", "Acquisition completed", "evidence--CASE-1-001")
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	require.NoError(t, ledger.WriteReport(buf, "CASE-1"))

	out := buf.String()
	assert.Contains(t, out, "Case: CASE-1")
	assert.Contains(t, out, "Acquisition completed")
	assert.Contains(t, out, "Evidence: evidence--CASE-1-001")
	assert.Contains(t, out, "CHAIN INTEGRITY: OK")
}
