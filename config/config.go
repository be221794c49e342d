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

// Package config loads the toolwide defaults for acquisitions.
package config

import (
	"os"

	"github.com/imdario/mergo"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Config holds operator defaults. Command line flags override these.
type Config struct {
	EvidenceRoot   string   `yaml:"evidence_root"`
	Algorithms     []string `yaml:"algorithms"`
	ChunkSize      int      `yaml:"chunk_size"`
	QuickByteLimit int64    `yaml:"quick_byte_limit"`
	Actor          string   `yaml:"actor"`
}

// Default returns the built in configuration.
func Default() Config {
	return Config{
		EvidenceRoot:   "evidence",
		Algorithms:     []string{"sha256"},
		ChunkSize:      1 << 20,
		QuickByteLimit: 64 << 20,
		Actor:          "",
	}
}

// Load reads a YAML configuration file and fills unset fields with the
// defaults. A missing file yields the defaults.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := Config{}

	b, err := afero.ReadFile(fs, path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, err
	}
	if err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := mergo.Merge(&cfg, Default()); err != nil {
		return cfg, err
	}
	return cfg, nil
}
