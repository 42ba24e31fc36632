package hostgroup

import (
	"context"
	"sync"

	"github.com/lsds/collsweep/srcs/go/plan/hostfile"
	"github.com/lsds/collsweep/srcs/go/utils/ssh"
	"github.com/pkg/errors"
)

// ErrJoined is returned by a second Join on the same Handle.
var ErrJoined = errors.New("handle already joined")

// Handle owns one asynchronous remote process. Join is its only terminal
// operation and takes effect exactly once.
type Handle struct {
	Index   int
	Host    hostfile.Host
	Command string

	mu       sync.Mutex
	proc     ssh.Process
	startErr error
	joined   bool
}

// Started reports whether the remote process was launched.
func (h *Handle) Started() bool { return h.startErr == nil }

func (h *Handle) StartErr() error { return h.startErr }

// Joined reports whether Join has been called, even if it is still waiting.
func (h *Handle) Joined() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.joined
}

// Join waits for the remote process to exit or ctx to expire. A handle
// whose start failed joins immediately with the start error.
func (h *Handle) Join(ctx context.Context) error {
	h.mu.Lock()
	if h.joined {
		h.mu.Unlock()
		return ErrJoined
	}
	h.joined = true
	h.mu.Unlock()
	if h.startErr != nil {
		return h.startErr
	}
	if err := h.proc.Wait(ctx); err != nil {
		return newCommandError(h.Host, h.Command, err)
	}
	return nil
}

// Outputs returns what the process wrote so far.
func (h *Handle) Outputs() *ssh.Outputs {
	if h.proc == nil {
		return nil
	}
	return h.proc.Outputs()
}
