/*
 *	Copyright 2024 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package toolchain drives the external programs used by the conversion: the graph dumper,
// the kernel checker and the ahead-of-time kernel compiler (ocloc).
//
// Commands are always built as argument vectors and executed directly, never through a shell.
package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// waitDelay is how long Command.Run waits for the output pipes to be closed after the
// program was killed. Children of the program may hold them open.
const waitDelay = 500 * time.Millisecond

// Command is one invocation of an external program.
type Command struct {
	// Path to the executable. If it has no path separator it is searched in $PATH.
	Path string

	// Args are the arguments, not including the program name.
	Args []string

	// Timeout for the execution. If 0 the command can run forever.
	Timeout time.Duration
}

// String renders the command line, quoting arguments where needed. It is only meant for messages.
func (c *Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quoteArg(c.Path))
	for _, arg := range c.Args {
		parts = append(parts, quoteArg(arg))
	}
	return strings.Join(parts, " ")
}

func quoteArg(arg string) string {
	if arg == "" || strings.ContainsAny(arg, " \t\n\"'\\$`") {
		return strconv.Quote(arg)
	}
	return arg
}

// Result of a command that was executed to completion, whatever its exit code.
type Result struct {
	Command  *Command
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Success returns whether the command exited with code 0.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Err returns nil if the command succeeded, or an *ExitError otherwise.
func (r *Result) Err() error {
	if r.Success() {
		return nil
	}
	return &ExitError{Result: r}
}

// ExitError is returned when an external program ran but exited with a non-zero code.
// Its message includes the command line and the captured output.
type ExitError struct {
	Result *Result
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "command exited with code %d:\n  %s", e.Result.ExitCode, e.Result.Command)
	if out := strings.TrimSpace(string(e.Result.Stdout)); out != "" {
		fmt.Fprintf(&b, "\nstdout:\n%s", out)
	}
	if out := strings.TrimSpace(string(e.Result.Stderr)); out != "" {
		fmt.Fprintf(&b, "\nstderr:\n%s", out)
	}
	return b.String()
}

// Run executes the command, blocking until it exits, and captures its output.
//
// A non-zero exit code is not an error: it is reported in Result.ExitCode.
// An error is returned only if the program could not be started, or if it was stopped by
// the context or the timeout. In these cases there is no meaningful exit code. On cancellation
// the program and the processes it started are killed.
func (c *Command) Run(ctx context.Context) (*Result, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	setProcessGroup(cmd)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	klog.V(1).Infof("running %s", c)
	start := time.Now()
	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errors.Wrapf(ctxErr, "command interrupted after %s: %s", time.Since(start), c)
	}
	result := &Result{
		Command: c,
		Stdout:  stdout.Bytes(),
		Stderr:  stderr.Bytes(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, errors.Wrapf(err, "failed to launch %s", c)
		}
		result.ExitCode = exitErr.ExitCode()
	}
	klog.V(1).Infof("exit code %d after %s: %s", result.ExitCode, time.Since(start), c.Path)
	return result, nil
}
