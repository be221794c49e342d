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

// Package main implements the evidencekit command line tool with
// various subcommands to acquire and verify evidence and to maintain a
// chain of custody.
//     case      Manage cases (create, show, verify)
//     acquire   Stream a source into a hashed evidence artifact
//     verify    Verify an artifact against its manifest
//     custody   Manage the chain of custody (add, show, verify, report)
//
// Usage
//
// Create a case
//     evidencekit case create CASE-2024-001 "Jane Doe"
// Acquire a disk image with two digests
//     evidencekit acquire --case CASE-2024-001 --type disk --hash sha256,md5 /dev/sdb sdb.dd
// Capture network traffic for five minutes
//     evidencekit acquire --case CASE-2024-001 --type network --duration 5m "cmd:tcpdump -i eth0 -w -" eth0.pcap
// Verify everything and audit the custody chain
//     evidencekit case verify CASE-2024-001
//
// Exit codes: 0 success, 1 failure, 2 partial success (the acquisition
// completed but verification reported a mismatch).
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/evidencekit/cmd"
	"github.com/forensicanalysis/evidencekit/verify"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "evidencekit",
		Short:         "Acquire, verify and track digital evidence",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(cmd.Case(), cmd.Acquire(), cmd.Verify(), cmd.Custody())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, verify.ErrMismatch) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
