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

// Package acquire runs one capture session as a state machine, streaming
// source bytes into an evidence artifact while computing live digests. On
// any fault the bytes already written are flushed and documented in an
// incomplete manifest, evidence of what was captured is never dropped.
package acquire

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/forensicanalysis/evidencekit"
	"github.com/forensicanalysis/evidencekit/hashsum"
	"github.com/forensicanalysis/evidencekit/source"
)

// Session states: Initializing -> Streaming -> {Finalizing, Aborted}.
type State int

const (
	Initializing State = iota
	Streaming
	Finalizing
	Aborted
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Streaming:
		return "streaming"
	case Finalizing:
		return "finalizing"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

var ErrDestination = errors.New("acquire: destination not usable")
var ErrStreamFault = errors.New("acquire: stream fault")

// DefaultChunkSize is the read/write granularity of the streaming loop.
const DefaultChunkSize = 1 << 20

// Options control one acquisition session.
type Options struct {
	// Algorithms to digest, canonical names. Defaults to SHA-256.
	Algorithms []string
	// ChunkSize of the streaming loop. Defaults to DefaultChunkSize.
	ChunkSize int
	// Duration bounds a capture in time. Reaching it is a clean end of
	// the session, not an abort. Used for network captures.
	Duration time.Duration
	// ByteLimit caps the transferred bytes. Reaching it is a clean end.
	ByteLimit int64
	// Quick marks the acquisition as an explicit reduced coverage
	// variant. The manifest records partial coverage, never completeness.
	Quick bool
	// Actor recorded in custody entries. Defaults to the tool name.
	Actor string
}

// Result of a finished session, successful or not.
type Result struct {
	Session  string
	Evidence *evidencekit.Evidence
	Manifest *evidencekit.Manifest
}

// Driver streams acquisitions for one case manager. Sessions for distinct
// evidence items may run concurrently, each owns its destination path
// exclusively.
type Driver struct {
	Manager  *evidencekit.CaseManager
	Provider source.Provider
}

// Acquire runs a full capture session: validate source and destination,
// register the evidence item, stream with live hashing, emit the manifest
// and the custody entries. It blocks until the session ends, run it on a
// worker goroutine and cancel via ctx to keep a control path responsive.
//
// On a mid-stream fault or cancellation the partial artifact and an
// incomplete manifest are retained and the error is returned alongside a
// non-nil Result.
func (d *Driver) Acquire(ctx context.Context, caseID, descriptor, artifact, acquisitionType string, opt Options) (*Result, error) {
	if opt.ChunkSize <= 0 {
		opt.ChunkSize = DefaultChunkSize
	}
	if len(opt.Algorithms) == 0 {
		opt.Algorithms = []string{hashsum.SHA256}
	}
	if opt.Actor == "" {
		opt.Actor = evidencekit.Tool
	}
	algorithms := make([]string, 0, len(opt.Algorithms))
	for _, algorithm := range opt.Algorithms {
		canonical, err := hashsum.Normalize(algorithm)
		if err != nil {
			return nil, err
		}
		algorithms = append(algorithms, canonical)
	}

	fs := d.Manager.Fs()
	destination := d.Manager.ArtifactPath(caseID, artifact)

	// Initializing: source reachable, destination writable, space free.
	src, err := d.Provider.OpenStream(ctx, descriptor)
	if err != nil {
		return nil, err
	}

	// Closing the stream on cancellation unblocks a read stuck in a
	// silent capture tool, the session always reaches Aborted.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			src.Close()
		case <-watchDone:
		}
	}()

	if err := checkDestination(fs, destination, src.Size()); err != nil {
		src.Close()
		return nil, err
	}

	if err := lockDestination(destination); err != nil {
		src.Close()
		return nil, err
	}
	defer releaseDestination(destination)

	evidence, err := d.Manager.RegisterEvidence(caseID, descriptor, acquisitionType, artifact, algorithms)
	if err != nil {
		src.Close()
		return nil, err
	}

	ledger, err := d.Manager.Ledger(caseID)
	if err != nil {
		src.Close()
		return nil, err
	}
	if _, err := ledger.Append(opt.Actor, "Acquisition started: "+descriptor, evidence.ID); err != nil {
		src.Close()
		return nil, err
	}

	session := &session{
		id:       uuid.New().String(),
		driver:   d,
		fs:       fs,
		evidence: evidence,
		options:  opt,
		state:    Initializing,
	}
	manifest, streamErr := session.run(ctx, src, destination, algorithms)
	src.Close()

	result := &Result{Session: session.id, Evidence: evidence, Manifest: manifest}
	if streamErr != nil {
		log.Printf("Session %s aborted after %d bytes: %v", session.id, session.bytes, streamErr)
		if err := d.Manager.SetEvidenceStatus(evidence.ID, evidencekit.StatusFailed); err != nil {
			return result, err
		}
		evidence.Status = evidencekit.StatusFailed
		if _, err := ledger.Append(opt.Actor, "Acquisition aborted: "+streamErr.Error(), evidence.ID); err != nil {
			return result, err
		}
		return result, streamErr
	}

	if err := d.Manager.SetEvidenceStatus(evidence.ID, evidencekit.StatusComplete); err != nil {
		return result, err
	}
	evidence.Status = evidencekit.StatusComplete
	if _, err := ledger.Append(opt.Actor, "Acquisition completed", evidence.ID); err != nil {
		return result, err
	}
	return result, nil
}

type session struct {
	id       string
	driver   *Driver
	fs       afero.Fs
	evidence *evidencekit.Evidence
	options  Options
	state    State
	bytes    int64
}

// run executes the Streaming and Finalizing/Aborted states and always
// writes exactly one manifest. The returned error is nil for a clean end
// of source or an explicit limit, the fault otherwise.
func (s *session) run(ctx context.Context, src source.Stream, destination string, algorithms []string) (*evidencekit.Manifest, error) {
	hasher, err := hashsum.New(algorithms...)
	if err != nil {
		return nil, err
	}

	dst, err := s.fs.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, errors.Wrap(ErrDestination, err.Error())
	}

	manifest := evidencekit.NewManifest(s.evidence)
	manifest.ChunkSize = s.options.ChunkSize
	manifest.Started = time.Now().UTC().Format(time.RFC3339)
	if hostname, err := os.Hostname(); err == nil {
		manifest.Hostname = hostname
	}
	if s.options.Quick {
		manifest.Coverage = evidencekit.CoveragePartial
	}

	s.state = Streaming
	var deadline time.Time
	if s.options.Duration > 0 {
		deadline = time.Now().Add(s.options.Duration)
	}

	streamErr := s.stream(ctx, src, dst, hasher, deadline)

	// Flush and close even on a fault, partial bytes are evidence too.
	syncErr := dst.Sync()
	closeErr := dst.Close()

	manifest.Finished = time.Now().UTC().Format(time.RFC3339)
	manifest.Size = s.bytes
	manifest.Hashes = hasher.Sums()

	if streamErr == nil && syncErr != nil {
		streamErr = errors.Wrap(ErrStreamFault, syncErr.Error())
	}
	if streamErr == nil && closeErr != nil {
		streamErr = errors.Wrap(ErrStreamFault, closeErr.Error())
	}

	if streamErr != nil {
		s.state = Aborted
		manifest.Completed = false
		manifest.Coverage = evidencekit.CoveragePartial
		manifest.Error = streamErr.Error()
	} else {
		s.state = Finalizing
		manifest.Completed = true
	}

	if err := evidencekit.WriteManifest(s.fs, destination, manifest); err != nil {
		if streamErr != nil {
			return manifest, streamErr
		}
		return manifest, err
	}
	return manifest, streamErr
}

// stream is the chunk loop. Cancellation, duration and byte limits are
// checked between chunks, a blocked read is bounded by the capture tool
// itself. Read errors are never retried, a damaged source is surfaced to
// the caller who may substitute a recovery oriented source instead.
func (s *session) stream(ctx context.Context, src source.Stream, dst afero.File, hasher *hashsum.MultiHasher, deadline time.Time) error {
	buf := make([]byte, s.options.ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "acquisition cancelled")
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return nil // duration limit is a clean end
		}

		chunk := buf
		if s.options.ByteLimit > 0 {
			remaining := s.options.ByteLimit - s.bytes
			if remaining <= 0 {
				return nil // byte limit is a clean end
			}
			if remaining < int64(len(chunk)) {
				chunk = chunk[:remaining]
			}
		}

		n, readErr := src.Read(chunk)
		if n > 0 {
			if _, err := dst.Write(chunk[:n]); err != nil {
				return errors.Wrap(ErrStreamFault, err.Error())
			}
			if _, err := hasher.Write(chunk[:n]); err != nil {
				return errors.Wrap(hashsum.ErrComputation, err.Error())
			}
			s.bytes += int64(n)
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			// A read unblocked by the cancellation watcher reports the
			// cancellation, not the closed stream.
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, "acquisition cancelled")
			}
			return errors.Wrap(ErrStreamFault, readErr.Error())
		}
	}
}
