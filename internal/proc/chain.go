// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package proc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Chain is an ordered list of handles whose last member produces the output
// stream, e.g. a downloader piped into a remuxer. A single process is a chain
// of one.
type Chain struct {
	handles []*Handle
}

// NewChain wraps already-spawned handles.
func NewChain(handles ...*Handle) *Chain {
	return &Chain{handles: handles}
}

// SpawnPiped starts each command with its stdout connected to the stdin of the
// next one through an OS pipe. If a later member fails to start, the members
// already running are killed.
func SpawnPiped(ctx context.Context, timeout time.Duration, cmds ...Command) (*Chain, error) {
	if len(cmds) == 0 {
		return nil, errors.New("empty chain")
	}
	c := &Chain{}
	for i, cmd := range cmds {
		if i > 0 {
			cmd.Stdin = c.handles[i-1].DetachStdout()
			cmd.OpenStdin = false
		}
		h, err := Spawn(ctx, cmd)
		if err != nil {
			if killErr := c.Kill(timeout); killErr != nil {
				err = errors.Join(err, killErr)
			}
			return nil, fmt.Errorf("chain member %d: %w", i, err)
		}
		c.handles = append(c.handles, h)
	}
	return c, nil
}

// Stdout returns the output of the last member.
func (c *Chain) Stdout() io.Reader {
	if len(c.handles) == 0 {
		return eofReader{}
	}
	return c.handles[len(c.handles)-1].Stdout()
}

// Handles returns the chain members in order.
func (c *Chain) Handles() []*Handle {
	return c.handles
}

// PIDs returns the process ids of all members.
func (c *Chain) PIDs() []int {
	pids := make([]int, 0, len(c.handles))
	for _, h := range c.handles {
		pids = append(pids, h.PID())
	}
	return pids
}

// Kill kills every member in order with the same sequence as Handle.Kill.
// Members that are already dead are tolerated; all errors are joined.
func (c *Chain) Kill(timeout time.Duration) error {
	var errs []error
	for _, h := range c.handles {
		if err := h.Kill(timeout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
