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

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/forensicanalysis/evidencekit"
	"github.com/forensicanalysis/evidencekit/acquire"
	"github.com/forensicanalysis/evidencekit/verify"
)

// Acquire is the evidencekit acquire commandline subcommand.
func Acquire() *cobra.Command {
	var (
		caseID          string
		acquisitionType string
		algorithms      []string
		duration        time.Duration
		byteLimit       int64
		quick           bool
		verifyAfter     bool
		actor           string
	)
	cmd := &cobra.Command{
		Use:   "acquire <source> <artifact>",
		Short: "Stream a source into a hashed evidence artifact",
		Long: `Stream a source into a hashed evidence artifact.

The source is a device path ("/dev/sdb"), a wrapped capture tool
("cmd:tcpdump -i eth0 -w -") or a synthetic drill source
("synthetic:104857600"). The artifact is written into the case directory
together with its manifest, and the acquisition is recorded in the case's
chain of custody.`,
		Args: cobra.ExactArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, manager, err := setup(cmd)
			if err != nil {
				return err
			}
			defer manager.Close()

			if caseID == "" {
				return fmt.Errorf("--case is required")
			}
			if len(algorithms) == 0 {
				algorithms = cfg.Algorithms
			}
			if actor == "" {
				actor = cfg.Actor
			}
			if quick && byteLimit == 0 {
				byteLimit = cfg.QuickByteLimit
			}

			provider, descriptor := providerFor(args[0])
			driver := &acquire.Driver{Manager: manager, Provider: provider}

			// Ctrl-C aborts the session cooperatively, the partial
			// artifact and manifest are kept.
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			result, err := driver.Acquire(ctx, caseID, descriptor, args[1], acquisitionType, acquire.Options{
				Algorithms: algorithms,
				ChunkSize:  cfg.ChunkSize,
				Duration:   duration,
				ByteLimit:  byteLimit,
				Quick:      quick,
				Actor:      actor,
			})
			if result != nil && result.Manifest != nil {
				b, _ := json.MarshalIndent(result.Manifest, "", "  ")
				fmt.Printf("%s\n", b)
			}
			if err != nil {
				return err
			}

			if verifyAfter {
				verifier := &verify.CaseVerifier{Manager: manager, Actor: actor}
				report, err := verifier.CheckEvidence(result.Evidence)
				if report != nil {
					b, _ := json.MarshalIndent(report, "", "  ")
					fmt.Printf("%s\n", b)
				}
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&caseID, "case", "", "case id")
	cmd.Flags().StringVar(&acquisitionType, "type", evidencekit.AcquisitionDisk, "acquisition type (disk, memory, network)")
	cmd.Flags().StringSliceVar(&algorithms, "hash", nil, "digest algorithms (md5, sha1, sha256, sha512, blake3)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "time bound for the capture")
	cmd.Flags().Int64Var(&byteLimit, "limit", 0, "byte cap for the capture")
	cmd.Flags().BoolVar(&quick, "quick", false, "reduced coverage quick acquisition")
	cmd.Flags().BoolVar(&verifyAfter, "verify", false, "verify the artifact after acquisition")
	cmd.Flags().StringVar(&actor, "actor", "", "person running the acquisition")
	addCommonFlags(cmd)
	return cmd
}
