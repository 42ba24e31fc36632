package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lsds/collsweep/srcs/go/catalog"
	"github.com/lsds/collsweep/srcs/go/config"
	"github.com/lsds/collsweep/srcs/go/hostgroup"
	"github.com/lsds/collsweep/srcs/go/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type State int

const (
	Idle State = iota
	Starting
	Running
	Joining
	Done
)

var stateNames = map[State]string{
	Idle:     `idle`,
	Starting: `starting`,
	Running:  `running`,
	Joining:  `joining`,
	Done:     `done`,
}

func (s State) String() string { return stateNames[s] }

// ErrReused is returned when a coordinator is started twice.
var ErrReused = errors.New("monitor coordinator is single-use")

// Group is the part of hostgroup.Group the coordinator needs.
type Group interface {
	Run(ctx context.Context, cmd string) hostgroup.Results
	Start(ctx context.Context, cmd string) []*hostgroup.Handle
}

type Options struct {
	Interface string
	Selection catalog.Selection
	Agents    []Agent
	Config    config.Config
	// Coalesce tunes NIC statistics before the agents start.
	Coalesce bool
}

// Handle is one agent running on one host.
type Handle struct {
	*hostgroup.Handle
	Agent  string
	Output string
}

// JoinResult records how an agent ended. Errors here never fail a run.
type JoinResult struct {
	Index  int
	Host   string
	Agent  string
	Output string
	Took   time.Duration
	Err    error
}

// JoinTimeout is an agent that outlived its sampling session plus grace.
type JoinTimeout struct {
	Index int
	Host  string
	Agent string
	After time.Duration
}

func (e *JoinTimeout) Error() string {
	return fmt.Sprintf("#%d <%s> %s still running after %s", e.Index, e.Host, e.Agent, e.After)
}

// Coordinator brackets one workload run with monitoring agents:
// idle -> starting -> running -> joining -> done.
type Coordinator struct {
	group Group
	opts  Options

	mu      sync.Mutex
	state   State
	started time.Time
	handles []*Handle
	results []JoinResult
}

func New(g Group, opts Options) *Coordinator {
	return &Coordinator{group: g, opts: opts}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	log.Debugf("monitors %s: %s -> %s", c.opts.Selection, c.state, s)
	c.state = s
}

func (c *Coordinator) sample(a Agent) Sample {
	return Sample{
		Interface: c.opts.Interface,
		Output:    c.opts.Selection.Artifact(a.Name, a.Ext),
		Duration:  c.opts.Config.MonitorDuration,
		Interval:  c.opts.Config.MonitorInterval,
	}
}

// Artifacts lists the file every host ends up with, one per agent.
func (c *Coordinator) Artifacts() []string {
	var names []string
	for _, a := range c.opts.Agents {
		names = append(names, c.sample(a).Output)
	}
	return names
}

// Handles returns the agent handles in start order.
func (c *Coordinator) Handles() []*Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Handle(nil), c.handles...)
}

// Start launches every agent on every host and then holds for the warm-up
// delay. Whatever it returns, Join must follow.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return ErrReused
	}
	c.mu.Unlock()
	c.setState(Starting)

	if c.opts.Coalesce {
		cmd := CoalesceCommand(c.opts.Interface)
		if c.opts.Config.UseSudo {
			cmd = Sudo(cmd)
		}
		for _, r := range c.group.Run(ctx, cmd).Failed() {
			log.Warnf("#%d <%s> failed to tune NIC statistics: %v", r.Index, r.Host.Addr, r.Err)
		}
	}

	c.mu.Lock()
	c.started = time.Now()
	c.mu.Unlock()
	for _, a := range c.opts.Agents {
		s := c.sample(a)
		hs := c.group.Start(ctx, a.render(s, c.opts.Config.UseSudo))
		c.mu.Lock()
		for _, h := range hs {
			if !h.Started() {
				log.Warnf("#%d <%s> failed to start %s: %v", h.Index, h.Host.Addr, a.Name, h.StartErr())
			}
			c.handles = append(c.handles, &Handle{Handle: h, Agent: a.Name, Output: s.Output})
		}
		c.mu.Unlock()
	}
	c.setState(Running)

	if d := c.opts.Config.Warmup; d > 0 {
		log.Debugf("warming up monitors for %s", d)
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *Coordinator) joinDeadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started.Add(c.opts.Config.MonitorDuration + c.opts.Config.JoinGrace)
}

// Join waits for every agent, successful or not, until the join deadline,
// and always ends in Done.
// Calling it again returns the first call's results.
func (c *Coordinator) Join(ctx context.Context) []JoinResult {
	c.mu.Lock()
	switch c.state {
	case Done:
		defer c.mu.Unlock()
		return c.results
	case Idle:
		c.state = Done
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	c.setState(Joining)

	// Agents are joined even when ctx is already cancelled; only the
	// deadline cuts the wait short.
	ctx, cancel := context.WithDeadline(context.WithoutCancel(ctx), c.joinDeadline())
	defer cancel()
	handles := c.Handles()
	results := make([]JoinResult, len(handles))
	var g errgroup.Group
	for i, h := range handles {
		i, h := i, h
		g.Go(func() error {
			results[i] = c.join(ctx, h)
			return nil
		})
	}
	g.Wait()

	c.mu.Lock()
	c.results = results
	c.mu.Unlock()
	c.setState(Done)
	return results
}

func (c *Coordinator) join(ctx context.Context, h *Handle) JoinResult {
	t0 := time.Now()
	err := h.Join(ctx)
	r := JoinResult{
		Index:  h.Index,
		Host:   h.Host.Addr,
		Agent:  h.Agent,
		Output: h.Output,
		Took:   time.Since(t0),
		Err:    err,
	}
	switch {
	case err == nil:
		log.Debugf("#%d <%s> %s finished, took %s", r.Index, r.Host, r.Agent, r.Took)
	case errors.Is(err, context.DeadlineExceeded):
		r.Err = &JoinTimeout{
			Index: r.Index,
			Host:  r.Host,
			Agent: r.Agent,
			After: c.opts.Config.MonitorDuration + c.opts.Config.JoinGrace,
		}
		log.Warnf("%v", r.Err)
	default:
		log.Warnf("#%d <%s> %s exited abnormally: %v", r.Index, r.Host, r.Agent, err)
	}
	return r
}

// Results returns what Join recorded.
func (c *Coordinator) Results() []JoinResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results
}

// Bracket starts the agents, runs workload, and joins the agents on every
// path out, including a failed start, a failed workload or a panic.
func (c *Coordinator) Bracket(ctx context.Context, workload func(ctx context.Context) error) error {
	defer c.Join(ctx)
	if err := c.Start(ctx); err != nil {
		return err
	}
	return workload(ctx)
}
