package ssh

import (
	"context"
	"fmt"

	"github.com/lsds/collsweep/srcs/go/utils/iostream"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// Process is a remote command started without waiting for it.
type Process interface {
	// Wait blocks until the command exits or ctx is done. On ctx expiry
	// the session is torn down and ctx.Err() returned.
	Wait(ctx context.Context) error
	Outputs() *Outputs
}

// Outputs stores stdout/stderr of a remote command
type Outputs struct {
	stdout iostream.Lines
	stderr iostream.Lines
}

func newOutputs() *Outputs {
	return &Outputs{}
}

func (o *Outputs) writers() *iostream.StdWriters {
	return &iostream.StdWriters{Stdout: &o.stdout, Stderr: &o.stderr}
}

func (o *Outputs) Stdout() []string {
	if o == nil {
		return nil
	}
	return o.stdout.Get()
}

func (o *Outputs) Stderr() []string {
	if o == nil {
		return nil
	}
	return o.stderr.Get()
}

// NewOutputs builds Outputs from known lines.
func NewOutputs(stdout, stderr []string) *Outputs {
	o := newOutputs()
	for _, l := range stdout {
		fmt.Fprintln(&o.stdout, l)
	}
	for _, l := range stderr {
		fmt.Fprintln(&o.stderr, l)
	}
	return o
}

// ExitError reports a remote command that ran and exited non-zero.
type ExitError struct {
	Status int
	Signal string
}

func (e *ExitError) Error() string {
	if len(e.Signal) > 0 {
		return fmt.Sprintf("remote process killed by signal %s", e.Signal)
	}
	return fmt.Sprintf("remote process exited with status %d", e.Status)
}

func wrapExit(err error) error {
	var exit *ssh.ExitError
	if errors.As(err, &exit) {
		return &ExitError{Status: exit.ExitStatus(), Signal: exit.Signal()}
	}
	var missing *ssh.ExitMissingError
	if errors.As(err, &missing) {
		return &ExitError{Status: -1}
	}
	return err
}

// await returns done's error, preferring it over ctx when both are ready.
// On ctx expiry it calls stop and drains done, so the session has stopped
// writing by the time it returns.
func await(ctx context.Context, done <-chan error, stop func()) error {
	select {
	case err := <-done:
		return err
	default:
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		stop()
		<-done
		return ctx.Err()
	}
}

// ExitStatus returns the remote exit status carried by err, if any.
func ExitStatus(err error) (int, bool) {
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Status, true
	}
	return 0, false
}
