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

// Package hashsum computes digests for multiple algorithms over a byte
// stream in a single pass. Memory use is independent of stream size and
// the source is never read twice.
package hashsum

import (
	"crypto/md5"  // #nosec
	"crypto/sha1" // #nosec
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/zeebo/blake3"
)

// Canonical algorithm names, matching the hash naming used in forensic
// manifests.
const (
	MD5    = "MD5"
	SHA1   = "SHA-1"
	SHA256 = "SHA-256"
	SHA512 = "SHA-512"
	BLAKE3 = "BLAKE3"
)

var ErrUnknownAlgorithm = errors.New("hashsum: unknown algorithm")
var ErrComputation = errors.New("hashsum: digest computation failed")

func newHash(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case MD5:
		return md5.New(), nil // #nosec
	case SHA1:
		return sha1.New(), nil // #nosec
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	case BLAKE3:
		return blake3.New(), nil
	}
	return nil, errors.Wrap(ErrUnknownAlgorithm, algorithm)
}

// Normalize maps user spellings like "sha256" or "Sha-1" to the canonical
// algorithm name.
func Normalize(algorithm string) (string, error) {
	switch strings.ReplaceAll(strings.ToLower(algorithm), "-", "") {
	case "md5":
		return MD5, nil
	case "sha1":
		return SHA1, nil
	case "sha256":
		return SHA256, nil
	case "sha512":
		return SHA512, nil
	case "blake3":
		return BLAKE3, nil
	}
	return "", errors.Wrap(ErrUnknownAlgorithm, algorithm)
}

// MultiHasher feeds one byte stream into several digests at once.
type MultiHasher struct {
	algorithms []string
	hashes     []hash.Hash
	writer     io.Writer
}

// New creates a MultiHasher for a set of canonical algorithm names.
func New(algorithms ...string) (*MultiHasher, error) {
	if len(algorithms) == 0 {
		return nil, errors.New("hashsum: at least one algorithm required")
	}

	m := &MultiHasher{}
	writers := make([]io.Writer, 0, len(algorithms))
	for _, algorithm := range algorithms {
		h, err := newHash(algorithm)
		if err != nil {
			return nil, err
		}
		m.algorithms = append(m.algorithms, algorithm)
		m.hashes = append(m.hashes, h)
		writers = append(writers, h)
	}
	m.writer = io.MultiWriter(writers...)
	return m, nil
}

// Write feeds a chunk into every digest.
func (m *MultiHasher) Write(p []byte) (int, error) {
	return m.writer.Write(p)
}

// Sums returns the current digest per algorithm as lowercase hex.
func (m *MultiHasher) Sums() map[string]string {
	sums := make(map[string]string, len(m.algorithms))
	for i, algorithm := range m.algorithms {
		sums[algorithm] = hex.EncodeToString(m.hashes[i].Sum(nil))
	}
	return sums
}

// Reader digests an entire stream in one pass. A failing stream yields
// ErrComputation and no digests, partial sums are never reported as valid.
func Reader(r io.Reader, algorithms ...string) (map[string]string, int64, error) {
	m, err := New(algorithms...)
	if err != nil {
		return nil, 0, err
	}
	n, err := io.Copy(m, r)
	if err != nil {
		return nil, 0, errors.Wrap(ErrComputation, err.Error())
	}
	return m.Sums(), n, nil
}
