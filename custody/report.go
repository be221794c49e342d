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
	"fmt"
	"io"
	"time"
)

// WriteReport renders a human readable custody log. The authoritative
// record stays the hash chained ledger file, this is a convenience view
// for case files and court exhibits.
func (l *Ledger) WriteReport(w io.Writer, caseID string) error {
	entries := l.Entries()

	fmt.Fprintln(w, "DIGITAL EVIDENCE CHAIN OF CUSTODY")
	fmt.Fprintln(w, "=================================")
	fmt.Fprintf(w, "Case: %s\n", caseID)
	fmt.Fprintf(w, "Entries: %d\n", len(entries))
	fmt.Fprintf(w, "Generated: %s\n\n", time.Now().UTC().Format(time.RFC3339))

	for _, entry := range entries {
		fmt.Fprintf(w, "[%d] %s  %s\n", entry.Sequence, entry.Timestamp, entry.Action)
		fmt.Fprintf(w, "    Actor: %s\n", entry.Actor)
		if entry.Evidence != "" {
			fmt.Fprintf(w, "    Evidence: %s\n", entry.Evidence)
		}
		fmt.Fprintf(w, "    Digest: %s\n", entry.Digest)
	}

	if err := l.VerifyChain(); err != nil {
		fmt.Fprintf(w, "\nCHAIN INTEGRITY: FAILED (%s)\n", err)
		return err
	}
	fmt.Fprintln(w, "\nCHAIN INTEGRITY: OK")
	return nil
}
