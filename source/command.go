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

package source

import (
	"context"
	"io"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// CommandProvider wraps an external capture utility (dd, tcpdump, a LiME
// reader) as an opaque byte stream producer. The descriptor is the command
// line whose stdout is the stream, e.g. "tcpdump -i eth0 -w -". The
// utility itself stays an external collaborator, the driver never depends
// on a specific tool.
type CommandProvider struct{}

// OpenStream starts the command and returns its stdout as an unknown size
// stream. A command that cannot be started maps to ErrUnavailable. Ending
// the context kills the process, which unblocks a pending read on its
// stdout, so a silent capture tool cannot hang its session.
func (p *CommandProvider) OpenStream(ctx context.Context, descriptor string) (Stream, error) {
	args := strings.Fields(descriptor)
	if len(args) == 0 {
		return nil, errors.Wrap(ErrUnavailable, "empty command")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) // #nosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, descriptor)
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(ErrUnavailable, descriptor)
	}

	return &stream{
		ReadCloser: &commandReader{stdout: stdout, cmd: cmd},
		size:       -1,
	}, nil
}

type commandReader struct {
	stdout io.ReadCloser
	cmd    *exec.Cmd
}

func (c *commandReader) Read(p []byte) (int, error) {
	return c.stdout.Read(p)
}

// Close terminates the capture process. Capture tools like tcpdump run
// until stopped, so closing the stream kills the process and reaps it.
func (c *commandReader) Close() error {
	_ = c.stdout.Close()
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	_ = c.cmd.Wait()
	return nil
}
