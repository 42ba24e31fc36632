// Package fakehost provides in-memory hostgroup channels for tests.
package fakehost

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/lsds/collsweep/srcs/go/hostgroup"
	"github.com/lsds/collsweep/srcs/go/plan/hostfile"
	"github.com/lsds/collsweep/srcs/go/utils/ssh"
)

type Kind string

const (
	Run   Kind = "run"
	Start Kind = "start"
	Exit  Kind = "exit"
	Fetch Kind = "fetch"
)

// Event is one observed interaction with a fake host.
type Event struct {
	Seq  int
	Host int
	Kind Kind
	Cmd  string
}

// Journal records events from every channel of a group in global order.
type Journal struct {
	sync.Mutex
	events []Event
}

func (j *Journal) add(host int, kind Kind, cmd string) {
	j.Lock()
	defer j.Unlock()
	j.events = append(j.events, Event{Seq: len(j.events), Host: host, Kind: kind, Cmd: cmd})
}

func (j *Journal) Events() []Event {
	j.Lock()
	defer j.Unlock()
	return append([]Event(nil), j.events...)
}

// Filter returns events of the given kind whose command contains substr.
func (j *Journal) Filter(kind Kind, substr string) []Event {
	var es []Event
	for _, e := range j.Events() {
		if e.Kind == kind && strings.Contains(e.Cmd, substr) {
			es = append(es, e)
		}
	}
	return es
}

// Channel is a scripted host.
type Channel struct {
	Index   int
	Journal *Journal

	// RunErr decides the result of Run; nil means success.
	RunErr func(cmd string) error
	// RunDelay makes Run block for a while, or until ctx is done.
	RunDelay time.Duration
	// StartErr decides whether Start fails.
	StartErr func(cmd string) error
	// ExitAfter is how long started processes keep running.
	ExitAfter time.Duration
	ExitErr   error

	sync.Mutex
	Files  map[string]string
	procs  []*Process
	closed bool
}

func (c *Channel) Run(ctx context.Context, cmd string) (*ssh.Outputs, error) {
	c.Journal.add(c.Index, Run, cmd)
	if c.RunDelay > 0 {
		select {
		case <-time.After(c.RunDelay):
		case <-ctx.Done():
			return ssh.NewOutputs(nil, nil), ctx.Err()
		}
	}
	if c.RunErr != nil {
		if err := c.RunErr(cmd); err != nil {
			return ssh.NewOutputs(nil, []string{err.Error()}), err
		}
	}
	return ssh.NewOutputs([]string{fmt.Sprintf("ok %d", c.Index)}, nil), nil
}

func (c *Channel) Start(cmd string) (ssh.Process, error) {
	if c.StartErr != nil {
		if err := c.StartErr(cmd); err != nil {
			return nil, err
		}
	}
	c.Journal.add(c.Index, Start, cmd)
	p := &Process{channel: c, cmd: cmd, exit: time.After(c.ExitAfter), err: c.ExitErr}
	c.Lock()
	c.procs = append(c.procs, p)
	c.Unlock()
	return p, nil
}

func (c *Channel) Fetch(ctx context.Context, path string, w io.Writer) error {
	c.Journal.add(c.Index, Fetch, path)
	c.Lock()
	content, ok := c.Files[path]
	c.Unlock()
	if !ok {
		return &ssh.ExitError{Status: 1}
	}
	_, err := io.WriteString(w, content)
	return err
}

func (c *Channel) Close() error {
	c.Lock()
	defer c.Unlock()
	c.closed = true
	return nil
}

func (c *Channel) Closed() bool {
	c.Lock()
	defer c.Unlock()
	return c.closed
}

// SetFile makes path fetchable from this host.
func (c *Channel) SetFile(path, content string) {
	c.Lock()
	defer c.Unlock()
	if c.Files == nil {
		c.Files = make(map[string]string)
	}
	c.Files[path] = content
}

// Processes returns every process started on this host.
func (c *Channel) Processes() []*Process {
	c.Lock()
	defer c.Unlock()
	return append([]*Process(nil), c.procs...)
}

// Process is a fake remote process that exits after ExitAfter.
type Process struct {
	sync.Mutex
	channel *Channel
	cmd     string
	exit    <-chan time.Time
	err     error
	waits   int
}

func (p *Process) Wait(ctx context.Context) error {
	p.Lock()
	p.waits++
	p.Unlock()
	select {
	case <-p.exit:
		return p.exited()
	default:
	}
	select {
	case <-p.exit:
		return p.exited()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Process) exited() error {
	p.channel.Journal.add(p.channel.Index, Exit, p.cmd)
	return p.err
}

func (p *Process) Outputs() *ssh.Outputs { return ssh.NewOutputs(nil, nil) }

// Waits counts calls to Wait.
func (p *Process) Waits() int {
	p.Lock()
	defer p.Unlock()
	return p.waits
}

// Hosts returns n hosts named a, b, c, ...
func Hosts(n int) hostfile.HostList {
	hl := make(hostfile.HostList, n)
	for i := range hl {
		hl[i] = hostfile.Host{Index: i, User: "bench", Addr: string(rune('a' + i))}
	}
	return hl
}

// NewGroup builds a group of n fake hosts sharing one journal.
func NewGroup(n int) (*hostgroup.Group, []*Channel, *Journal) {
	j := &Journal{}
	channels := make([]*Channel, n)
	chs := make([]hostgroup.Channel, n)
	for i := range channels {
		channels[i] = &Channel{Index: i, Journal: j}
		chs[i] = channels[i]
	}
	g, err := hostgroup.New(Hosts(n), chs)
	if err != nil {
		panic(err)
	}
	return g, channels, j
}
