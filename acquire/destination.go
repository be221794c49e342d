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

package acquire

import (
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// destinations tracks which artifact paths have a session writing to
// them. Two sessions must never write the same destination concurrently.
var destinations = struct { // nolint:gochecknoglobals
	sync.Mutex
	held map[string]bool
}{held: map[string]bool{}}

func lockDestination(path string) error {
	destinations.Lock()
	defer destinations.Unlock()
	if destinations.held[path] {
		return errors.Wrapf(ErrDestination, "%s is locked by another session", path)
	}
	destinations.held[path] = true
	return nil
}

func releaseDestination(path string) {
	destinations.Lock()
	delete(destinations.held, path)
	destinations.Unlock()
}

// checkDestination validates the destination before Streaming begins: the
// artifact must not exist yet, its directory must be creatable and, when
// the source size is known, the filesystem must have room for it.
// Unknown size sources skip the space check and rely on operator limits.
func checkDestination(fs afero.Fs, destination string, sourceSize int64) error {
	exists, err := afero.Exists(fs, destination)
	if err != nil {
		return err
	}
	if exists {
		return errors.Wrapf(ErrDestination, "%s already exists", destination)
	}

	dir := filepath.Dir(destination)
	if err := fs.MkdirAll(dir, 0750); err != nil {
		return errors.Wrap(ErrDestination, err.Error())
	}

	if sourceSize > 0 {
		free := freeBytes(fs, dir)
		if free >= 0 && free < sourceSize {
			return errors.Wrapf(ErrDestination, "insufficient space: %d bytes free, %d required", free, sourceSize)
		}
	}
	return nil
}
