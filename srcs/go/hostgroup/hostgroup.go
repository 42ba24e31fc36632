package hostgroup

import (
	"context"
	"io"
	"time"

	"github.com/lsds/collsweep/srcs/go/log"
	"github.com/lsds/collsweep/srcs/go/plan/hostfile"
	"github.com/lsds/collsweep/srcs/go/utils"
	"github.com/lsds/collsweep/srcs/go/utils/ssh"
	"github.com/lsds/collsweep/srcs/go/utils/xterm"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Channel is an authenticated command channel to a single host.
type Channel interface {
	Run(ctx context.Context, cmd string) (*ssh.Outputs, error)
	Start(cmd string) (ssh.Process, error)
	Fetch(ctx context.Context, path string, w io.Writer) error
	Close() error
}

// Group addresses a fixed, ordered set of hosts. channels[i] talks to hosts[i].
type Group struct {
	hosts    hostfile.HostList
	channels []Channel
}

var errEmptyGroup = errors.New("empty host group")

func New(hosts hostfile.HostList, channels []Channel) (*Group, error) {
	if len(hosts) == 0 {
		return nil, errEmptyGroup
	}
	if len(hosts) != len(channels) {
		return nil, errors.Errorf("%d hosts but %d channels", len(hosts), len(channels))
	}
	for i, h := range hosts {
		if h.Index != i {
			return nil, errors.Errorf("host %s has index %d at position %d", h, h.Index, i)
		}
	}
	return &Group{hosts: hosts, channels: channels}, nil
}

type DialFunc func(ctx context.Context, h hostfile.Host) (Channel, error)

// Dial connects to every host in parallel. If any host fails, the channels
// that did open are closed again.
func Dial(ctx context.Context, hosts hostfile.HostList, dial DialFunc) (*Group, error) {
	if len(hosts) == 0 {
		return nil, errEmptyGroup
	}
	channels := make([]Channel, len(hosts))
	errs := make([]error, len(hosts))
	forEach(len(hosts), func(i int) {
		ch, err := dial(ctx, hosts[i])
		if err != nil {
			errs[i] = errors.Wrapf(err, "#%d <%s>", i, hosts[i])
			return
		}
		channels[i] = ch
	})
	if err := utils.MergeErrors(errs, "dial"); err != nil {
		for _, ch := range channels {
			if ch != nil {
				ch.Close()
			}
		}
		return nil, err
	}
	return New(hosts, channels)
}

// forEach runs f for every index on a pool sized to n and waits for all of them.
func forEach(n int, f func(i int)) {
	var g errgroup.Group
	g.SetLimit(n)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			f(i)
			return nil
		})
	}
	g.Wait()
}

func (g *Group) Size() int { return len(g.hosts) }

func (g *Group) Hosts() hostfile.HostList { return g.hosts }

// Addrs returns host addresses in group order.
func (g *Group) Addrs() []string { return g.hosts.Addrs() }

func (g *Group) Close() error {
	errs := make([]error, len(g.channels))
	for i, ch := range g.channels {
		errs[i] = ch.Close()
	}
	return utils.MergeErrors(errs, "close")
}

func (g *Group) runOn(ctx context.Context, i int, cmd string) Result {
	h := g.hosts[i]
	t0 := time.Now()
	outputs, err := g.channels[i].Run(ctx, cmd)
	r := Result{
		Index:   i,
		Host:    h,
		Command: cmd,
		Outputs: outputs,
		Took:    time.Since(t0),
	}
	if err != nil {
		r.Err = newCommandError(h, cmd, err)
		log.Debugf("%s #%d <%s> exited with error: %v, took %s", xterm.Warn.S("[E]"), i, h.Addr, err, r.Took)
		return r
	}
	log.Debugf("#%d <%s> finished successfully, took %s", i, h.Addr, r.Took)
	return r
}

// Run issues cmd to every host in parallel and waits for all of them.
func (g *Group) Run(ctx context.Context, cmd string) Results {
	results := make(Results, len(g.hosts))
	forEach(len(g.hosts), func(i int) {
		results[i] = g.runOn(ctx, i, cmd)
	})
	return results
}

// RunOn issues cmd to the host at index only.
func (g *Group) RunOn(ctx context.Context, index int, cmd string) Result {
	if index < 0 || index >= len(g.hosts) {
		return Result{
			Index:   index,
			Command: cmd,
			Err:     errors.Errorf("host index %d out of range [0, %d)", index, len(g.hosts)),
		}
	}
	return g.runOn(ctx, index, cmd)
}

// Start issues cmd to every host without waiting for completion. The
// returned handles are in host order; each must be joined.
func (g *Group) Start(ctx context.Context, cmd string) []*Handle {
	handles := make([]*Handle, len(g.hosts))
	forEach(len(g.hosts), func(i int) {
		h := &Handle{Index: i, Host: g.hosts[i], Command: cmd}
		if err := ctx.Err(); err != nil {
			h.startErr = err
		} else if p, err := g.channels[i].Start(cmd); err != nil {
			h.startErr = newCommandError(g.hosts[i], cmd, err)
		} else {
			h.proc = p
		}
		handles[i] = h
	})
	return handles
}
