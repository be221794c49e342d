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

// Package source abstracts the byte stream producers an acquisition reads
// from. The driver only ever sees the Provider interface, never a concrete
// capture tool, so real devices, wrapped external utilities and synthetic
// test sources are interchangeable.
package source

import (
	"context"
	"io"
	"math/rand"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

var ErrUnavailable = errors.New("source: unavailable")

// Stream is an open byte source. Size returns the declared total size in
// bytes, or -1 when the size is unknown (live memory, open ended
// captures).
type Stream interface {
	io.ReadCloser
	Size() int64
}

// Provider opens a byte stream for a source descriptor. The context bounds
// the whole capture: when it ends, the stream must unblock pending reads,
// a stalled capture tool never hangs its session.
type Provider interface {
	OpenStream(ctx context.Context, descriptor string) (Stream, error)
}

type stream struct {
	io.ReadCloser
	size int64
}

func (s *stream) Size() int64 { return s.size }

// FileProvider opens device nodes and regular files. Regular files declare
// their size, device nodes and pipes do not.
type FileProvider struct {
	FS afero.Fs
}

// OpenStream opens a path. Missing files and permission problems map to
// ErrUnavailable so the driver can reject them before any side effect.
func (p *FileProvider) OpenStream(_ context.Context, descriptor string) (Stream, error) {
	fs := p.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}

	info, err := fs.Stat(descriptor)
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, descriptor)
	}

	f, err := fs.Open(descriptor)
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, descriptor)
	}

	size := int64(-1)
	if info.Mode().IsRegular() {
		size = info.Size()
	}
	return &stream{ReadCloser: f, size: size}, nil
}

// SyntheticProvider produces deterministic pseudo random bytes of a
// declared size. The descriptor is the decimal byte count. Used for
// acquisition drills and tests.
type SyntheticProvider struct {
	Seed int64
}

// OpenStream opens a synthetic stream of the requested size.
func (p *SyntheticProvider) OpenStream(_ context.Context, descriptor string) (Stream, error) {
	size, err := strconv.ParseInt(descriptor, 10, 64)
	if err != nil || size < 0 {
		return nil, errors.Wrap(ErrUnavailable, descriptor)
	}
	r := rand.New(rand.NewSource(p.Seed)) // #nosec
	return &stream{
		ReadCloser: io.NopCloser(io.LimitReader(r, size)),
		size:       size,
	}, nil
}

// FaultyProvider wraps another provider and injects a read fault after a
// number of bytes. Only used by tests and fault drills.
type FaultyProvider struct {
	Provider   Provider
	FailAfter  int64
	FailureErr error
}

// OpenStream opens the wrapped stream with the fault armed.
func (p *FaultyProvider) OpenStream(ctx context.Context, descriptor string) (Stream, error) {
	s, err := p.Provider.OpenStream(ctx, descriptor)
	if err != nil {
		return nil, err
	}
	failure := p.FailureErr
	if failure == nil {
		failure = errors.New("injected read fault")
	}
	return &stream{
		ReadCloser: &faultyReader{r: s, remaining: p.FailAfter, err: failure},
		size:       s.Size(),
	}, nil
}

type faultyReader struct {
	r         io.ReadCloser
	remaining int64
	err       error
}

func (f *faultyReader) Read(p []byte) (int, error) {
	if f.remaining <= 0 {
		return 0, f.err
	}
	if int64(len(p)) > f.remaining {
		p = p[:f.remaining]
	}
	n, err := f.r.Read(p)
	f.remaining -= int64(n)
	return n, err
}

func (f *faultyReader) Close() error { return f.r.Close() }
