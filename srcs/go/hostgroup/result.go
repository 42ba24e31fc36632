package hostgroup

import (
	"fmt"
	"time"

	"github.com/lsds/collsweep/srcs/go/plan/hostfile"
	"github.com/lsds/collsweep/srcs/go/utils"
	"github.com/lsds/collsweep/srcs/go/utils/ssh"
)

// Result holds the outcome of a synchronous command on one host.
type Result struct {
	Index   int
	Host    hostfile.Host
	Command string
	Outputs *ssh.Outputs
	Took    time.Duration
	Err     error
}

func (r Result) OK() bool { return r.Err == nil }

type Results []Result

// Failed returns the results with an error, in host order.
func (rs Results) Failed() Results {
	var failed Results
	for _, r := range rs {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err merges the per-host errors, or returns nil if every host succeeded.
func (rs Results) Err() error {
	errs := make([]error, len(rs))
	for i, r := range rs {
		errs[i] = r.Err
	}
	return utils.MergeErrors(errs, "run")
}

// CommandError is a command that could not run or exited non-zero on one host.
type CommandError struct {
	Index   int
	Host    string
	Command string
	// Status is the remote exit status, or -1 if the command never exited.
	Status int
	Err    error
}

func newCommandError(h hostfile.Host, cmd string, err error) *CommandError {
	status := -1
	if n, ok := ssh.ExitStatus(err); ok {
		status = n
	}
	return &CommandError{
		Index:   h.Index,
		Host:    h.Addr,
		Command: cmd,
		Status:  status,
		Err:     err,
	}
}

func (e *CommandError) Error() string {
	if e.Status >= 0 {
		return fmt.Sprintf("#%d <%s> %q exited with status %d", e.Index, e.Host, e.Command, e.Status)
	}
	return fmt.Sprintf("#%d <%s> %q failed: %v", e.Index, e.Host, e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }
