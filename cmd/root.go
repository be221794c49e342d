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

// Package cmd implements the evidencekit command line subcommands.
package cmd

import (
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/evidencekit"
	"github.com/forensicanalysis/evidencekit/config"
	"github.com/forensicanalysis/evidencekit/source"
)

const configFlag = "config"
const rootFlag = "root"

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String(configFlag, "evidencekit.yml", "tool configuration file")
	cmd.Flags().String(rootFlag, "", "evidence root directory (overrides config)")
}

func setup(cmd *cobra.Command) (config.Config, *evidencekit.CaseManager, error) {
	configPath, _ := cmd.Flags().GetString(configFlag)
	cfg, err := config.Load(afero.NewOsFs(), configPath)
	if err != nil {
		return cfg, nil, err
	}
	if root, _ := cmd.Flags().GetString(rootFlag); root != "" {
		cfg.EvidenceRoot = root
	}

	manager, err := evidencekit.NewCaseManager(cfg.EvidenceRoot)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, manager, nil
}

// providerFor picks the byte source provider for a descriptor. "cmd:"
// wraps an external capture utility, "synthetic:" generates test bytes,
// everything else is a device node or file path.
func providerFor(descriptor string) (source.Provider, string) {
	switch {
	case strings.HasPrefix(descriptor, "cmd:"):
		return &source.CommandProvider{}, strings.TrimPrefix(descriptor, "cmd:")
	case strings.HasPrefix(descriptor, "synthetic:"):
		return &source.SyntheticProvider{}, strings.TrimPrefix(descriptor, "synthetic:")
	default:
		return &source.FileProvider{}, descriptor
	}
}
