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

// Package custody implements an append only, hash linked chain of custody
// ledger. Every entry carries the digest of its predecessor, so any
// retroactive edit of a committed entry is detectable by recomputing the
// chain, without trusting the tool that wrote it.
package custody

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Genesis is the well known root digest the first entry links to.
const Genesis = "0000000000000000000000000000000000000000000000000000000000000000"

var ErrIntegrity = errors.New("custody: chain integrity violated")
var ErrOutOfOrder = errors.New("custody: out of order sequence number")

// Entry is one committed custody event. All fields are plain struct fields
// so json.Marshal yields a deterministic byte sequence for hashing.
// Entries are immutable after commit.
type Entry struct {
	Sequence  int    `json:"sequence"`
	Timestamp string `json:"timestamp"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Evidence  string `json:"evidence,omitempty"`
	Previous  string `json:"previous"`
	Digest    string `json:"digest"`
}

// chainDigest computes SHA-256 over the entry serialized with a zeroed
// digest field. The previous digest is part of the serialization, which
// links the entries into a chain.
func (e Entry) chainDigest() string {
	c := e
	c.Digest = ""
	b, _ := json.Marshal(c) // struct marshal cannot fail
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Ledger is the per case custody log, one JSON entry per line. Appends are
// serialized by a single writer lock and persisted before they become
// visible to readers.
type Ledger struct {
	mu      sync.Mutex
	fs      afero.Fs
	path    string
	entries []Entry
}

// Open loads a ledger file, creating an empty one on first use. Loading
// rejects out of order and duplicate sequence numbers.
func Open(fs afero.Fs, path string) (*Ledger, error) {
	ledger := &Ledger{fs: fs, path: path}

	f, err := fs.Open(path)
	if os.IsNotExist(err) {
		return ledger, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, errors.Wrapf(err, "malformed ledger line %d", len(ledger.entries))
		}
		if entry.Sequence != len(ledger.entries) {
			return nil, errors.Wrapf(ErrOutOfOrder, "entry %d at position %d", entry.Sequence, len(ledger.entries))
		}
		ledger.entries = append(ledger.entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ledger, nil
}

// Append commits a new custody event. The entry is durably written before
// it is returned or becomes visible to Entries.
func (l *Ledger) Append(actor, action, evidenceID string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	previous := Genesis
	if len(l.entries) > 0 {
		previous = l.entries[len(l.entries)-1].Digest
	}

	entry := Entry{
		Sequence:  len(l.entries),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Actor:     actor,
		Action:    action,
		Evidence:  evidenceID,
		Previous:  previous,
	}
	entry.Digest = entry.chainDigest()

	if err := l.persist(entry); err != nil {
		return Entry{}, err
	}

	l.entries = append(l.entries, entry)
	return entry, nil
}

func (l *Ledger) persist(entry Entry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	f, err := l.fs.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// Entries returns a copy of all committed entries.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := make([]Entry, len(l.entries))
	copy(entries, l.entries)
	return entries
}

// Len returns the number of committed entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// VerifyChain recomputes every chain digest and fails at the first
// discontinuity, reporting the offending sequence number. A failure makes
// the whole custody record untrustworthy, it is never auto repaired.
func (l *Ledger) VerifyChain() error {
	entries := l.Entries()
	for i, entry := range entries {
		previous := Genesis
		if i > 0 {
			previous = entries[i-1].Digest
		}
		if entry.Sequence != i {
			return errors.Wrapf(ErrOutOfOrder, "entry %d at position %d", entry.Sequence, i)
		}
		if entry.Previous != previous {
			return errors.Wrapf(ErrIntegrity, "sequence %d", entry.Sequence)
		}
		if entry.chainDigest() != entry.Digest {
			return errors.Wrapf(ErrIntegrity, "sequence %d", entry.Sequence)
		}
	}
	return nil
}
