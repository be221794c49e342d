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
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/evidencekit"
	"github.com/forensicanalysis/evidencekit/verify"
)

// Verify is the evidencekit verify commandline subcommand. It checks one
// artifact against its manifest, or cross-checks two manifests.
func Verify() *cobra.Command {
	var against string
	cmd := &cobra.Command{
		Use:   "verify <artifact>",
		Short: "Verify an artifact against its manifest",
		Args:  cobra.ExactArgs(1), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()

			manifest, err := evidencekit.ReadManifest(fs, args[0])
			if err != nil {
				return err
			}

			var report *verify.Report
			if against != "" {
				other, err := evidencekit.ReadManifest(fs, against)
				if err != nil {
					return err
				}
				report, err = verify.CrossCheck(manifest, other)
				printReport(report)
				return err
			}

			engine := &verify.Engine{FS: fs}
			report, err = engine.SelfCheck(args[0], manifest)
			printReport(report)
			return err
		},
	}
	cmd.Flags().StringVar(&against, "against", "", "second artifact whose manifest is cross-checked")
	return cmd
}

func printReport(report *verify.Report) {
	if report == nil {
		return
	}
	b, _ := json.MarshalIndent(report, "", "  ")
	fmt.Printf("%s\n", b)
}
