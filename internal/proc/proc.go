// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package proc owns spawned external processes: their pipes, their exit
// observation and a two-phase termination sequence.
package proc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	xglog "github.com/catatau597/tube-sub000/internal/log"
	"github.com/catatau597/tube-sub000/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultKillTimeout is the grace period between the graceful signal and SIGKILL.
const DefaultKillTimeout = 3 * time.Second

// ErrKillFailed is returned when SIGKILL could not be delivered.
var ErrKillFailed = errors.New("kill operation failed")

// Command describes one external process to spawn.
type Command struct {
	// Name labels the process in logs and metrics. Defaults to the binary base name.
	Name string
	Path string
	Args []string
	// Env is appended to the current process environment.
	Env []string

	// Stdin, when set, becomes the child's standard input. Ownership moves to
	// the child: the parent copy is closed once the process has started.
	Stdin *os.File
	// OpenStdin gives the handle a writable stdin pipe. Ignored when Stdin is set.
	OpenStdin bool
}

// Handle is one spawned process. Stdout and stderr are OS pipes held by the
// handle so that Wait never closes a read end that is still being drained.
type Handle struct {
	name   string
	cmd    *exec.Cmd
	logger zerolog.Logger
	ring   *LineRing

	mu         sync.Mutex
	stdout     *os.File
	stderr     *os.File
	stdin      *os.File
	terminated bool

	exited  chan struct{}
	waitErr error
	drained chan struct{}
}

// Spawn starts the command and returns its handle.
func Spawn(ctx context.Context, c Command) (*Handle, error) {
	name := c.Name
	if name == "" {
		name = filepath.Base(c.Path)
	}

	outR, outW, err := os.Pipe()
	if err != nil {
		closeFiles(c.Stdin)
		return nil, fmt.Errorf("stdout pipe for %s: %w", name, err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		closeFiles(c.Stdin, outR, outW)
		return nil, fmt.Errorf("stderr pipe for %s: %w", name, err)
	}

	// #nosec G204 -- binaries come from configuration, args are built by strategies
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Stdout = outW
	cmd.Stderr = errW
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var inR, inW *os.File
	switch {
	case c.Stdin != nil:
		cmd.Stdin = c.Stdin
	case c.OpenStdin:
		inR, inW, err = os.Pipe()
		if err != nil {
			closeFiles(outR, outW, errR, errW)
			return nil, fmt.Errorf("stdin pipe for %s: %w", name, err)
		}
		cmd.Stdin = inR
	}

	if err := cmd.Start(); err != nil {
		closeFiles(c.Stdin, outR, outW, errR, errW, inR, inW)
		metrics.IncProcSpawn(name, false)
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	metrics.IncProcSpawn(name, true)

	// The child holds its own copies now.
	closeFiles(outW, errW, inR, c.Stdin)

	logger := xglog.WithContext(ctx, xglog.WithComponent("proc")).With().
		Str(xglog.FieldBinary, name).
		Int(xglog.FieldPID, cmd.Process.Pid).
		Logger()

	h := &Handle{
		name:    name,
		cmd:     cmd,
		logger:  logger,
		ring:    NewLineRing(64),
		stdout:  outR,
		stderr:  errR,
		stdin:   inW,
		exited:  make(chan struct{}),
		drained: make(chan struct{}),
	}

	go h.drainStderr(errR)
	go func() {
		h.waitErr = cmd.Wait()
		close(h.exited)
	}()

	logger.Debug().Str(xglog.FieldEvent, "proc.spawned").Strs("args", c.Args).Msg("process started")
	return h, nil
}

// Name returns the process label.
func (h *Handle) Name() string { return h.name }

// PID returns the OS process id.
func (h *Handle) PID() int { return h.cmd.Process.Pid }

// Stdout returns the read end of the child's standard output.
func (h *Handle) Stdout() io.Reader {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stdout == nil {
		return eofReader{}
	}
	return h.stdout
}

// Stdin returns the write end of the child's standard input, or nil when the
// handle was not spawned with OpenStdin.
func (h *Handle) Stdin() io.WriteCloser {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stdin == nil {
		return nil
	}
	return h.stdin
}

// DetachStdout hands the stdout read end to the caller, typically to become
// the stdin of the next process in a chain. The handle no longer closes it.
func (h *Handle) DetachStdout() *os.File {
	h.mu.Lock()
	defer h.mu.Unlock()
	f := h.stdout
	h.stdout = nil
	return f
}

// Exited is closed once the OS has reported the process exit.
func (h *Handle) Exited() <-chan struct{} { return h.exited }

// ExitErr returns the Wait result. Only meaningful after Exited is closed.
func (h *Handle) ExitErr() error {
	select {
	case <-h.exited:
		return h.waitErr
	default:
		return nil
	}
}

// Diagnostics returns the last stderr lines of the process.
func (h *Handle) Diagnostics(n int) []string {
	return h.ring.LastN(n)
}

// Wait blocks until the process has exited and its stderr has been drained,
// or ctx ends. It returns the exit error.
func (h *Handle) Wait(ctx context.Context) error {
	for _, ch := range []<-chan struct{}{h.exited, h.drained} {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return h.ExitErr()
}

// Kill terminates the process. Pipes are destroyed first so that a child
// blocked on a read or write cannot stall; then the graceful signal goes to
// the single PID (never a group), and SIGKILL follows if the process has not
// exited within timeout. Kill returns after the exit has been observed.
// Repeated calls are no-ops.
func (h *Handle) Kill(timeout time.Duration) error {
	h.mu.Lock()
	if h.terminated {
		h.mu.Unlock()
		return nil
	}
	h.terminated = true
	files := []*os.File{h.stdin, h.stdout, h.stderr}
	h.stdin, h.stdout, h.stderr = nil, nil, nil
	h.mu.Unlock()

	if timeout <= 0 {
		timeout = DefaultKillTimeout
	}

	// 1. Pipes
	closeFiles(files...)

	// 2. Graceful signal
	h.signal(gracefulSignal, gracefulSignalName)

	// 3. Exit vs timeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-h.exited:
		metrics.IncProcWait("graceful")
		h.logger.Debug().Str(xglog.FieldEvent, "proc.exited").Msg("process exited after graceful signal")
		return nil
	case <-timer.C:
	}

	// 4. Forceful signal, then wait unconditionally
	h.logger.Warn().
		Str(xglog.FieldEvent, "proc.sigkill").
		Dur("timeout", timeout).
		Msg("graceful termination timed out, sending SIGKILL")
	if !h.signal(os.Kill, "SIGKILL") {
		return fmt.Errorf("%w: %s pid %d", ErrKillFailed, h.name, h.PID())
	}
	<-h.exited
	metrics.IncProcWait("forced")
	return nil
}

// signal reports false only when the signal could not be delivered to a
// process that is still running.
func (h *Handle) signal(sig os.Signal, label string) bool {
	err := h.cmd.Process.Signal(sig)
	switch {
	case err == nil:
		metrics.IncProcTerminate(label, "sent")
		return true
	case errors.Is(err, os.ErrProcessDone):
		metrics.IncProcTerminate(label, "esrch")
		return true
	default:
		metrics.IncProcTerminate(label, "error")
		h.logger.Debug().Err(err).Str("signal", label).Msg("signal delivery failed")
		return false
	}
}

func (h *Handle) drainStderr(r io.Reader) {
	defer close(h.drained)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		h.ring.Add(line)
		h.logger.Debug().Str("stderr", line).Msg("process output")
	}
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
