package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/lsds/collsweep/srcs/go/catalog"
	"github.com/lsds/collsweep/srcs/go/collect"
	"github.com/lsds/collsweep/srcs/go/config"
	"github.com/lsds/collsweep/srcs/go/hostgroup"
	"github.com/lsds/collsweep/srcs/go/log"
	"github.com/lsds/collsweep/srcs/go/monitor"
	"github.com/lsds/collsweep/srcs/go/mpirun"
	"github.com/lsds/collsweep/srcs/go/utils"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// HarnessPrefix names the leader's output file in harness mode.
const HarnessPrefix = `osu`

// Group is what a sweep needs from a hostgroup.Group.
type Group interface {
	monitor.Group
	collect.Group
	RunOn(ctx context.Context, index int, cmd string) hostgroup.Result
	Addrs() []string
}

// Recorder persists finished iterations, e.g. into a ledger.
type Recorder interface {
	Record(ctx context.Context, r Record) error
}

// Plan validates the requested benchmark and algorithm before any host is
// contacted.
func Plan(c *catalog.Catalog, benchmark, algorithm string) ([]catalog.Selection, error) {
	return c.Plan(benchmark, algorithm)
}

// RunSpec is everything one iteration needs, fixed before it starts.
type RunSpec struct {
	Selection catalog.Selection
	Interface string
	Program   string
	Harness   bool
	// Command is the workload issued on the leader.
	Command string
	// Artifacts are fetched from every host, LeaderArtifact from the leader only.
	Artifacts      []string
	LeaderArtifact string
}

type Sweeper struct {
	Group     Group
	Builder   mpirun.Builder
	Agents    []monitor.Agent
	Config    config.Config
	Interface string
	// Program overrides the binary launched by mpirun.
	Program string
	// Harness runs an external benchmark harness without monitors.
	Harness       bool
	StopOnFailure bool
	// Coalesce tunes NIC statistics before monitors start.
	Coalesce  bool
	Collector *collect.Collector
	Recorder  Recorder
}

func (s *Sweeper) spec(sel catalog.Selection) RunSpec {
	rs := RunSpec{
		Selection: sel,
		Interface: s.Interface,
		Program:   s.Program,
		Harness:   s.Harness,
	}
	l := mpirun.Launch{
		Hosts:     s.Group.Addrs(),
		Interface: s.Interface,
		Selection: sel,
		Program:   s.Program,
	}
	if s.Harness {
		rs.LeaderArtifact = sel.Artifact(HarnessPrefix, `txt`)
		l.Args = []string{`-f`}
		rs.Command = mpirun.Tee(s.Builder.Build(l), rs.LeaderArtifact)
		return rs
	}
	l.Args = []string{mpirun.GiBPayload}
	rs.Command = s.Builder.Build(l)
	return rs
}

func (s *Sweeper) coordinator(rs RunSpec) *monitor.Coordinator {
	agents, cfg := s.Agents, s.Config
	if rs.Harness {
		agents, cfg.Warmup = nil, 0
	}
	return monitor.New(s.Group, monitor.Options{
		Interface: rs.Interface,
		Selection: rs.Selection,
		Agents:    agents,
		Config:    cfg,
		Coalesce:  s.Coalesce && !rs.Harness,
	})
}

// Run executes the selections strictly one after another. A failed
// iteration is recorded and the sweep moves on unless StopOnFailure is set.
func (s *Sweeper) Run(ctx context.Context, selections []catalog.Selection) Summary {
	var summary Summary
	t0 := time.Now()
	for i, sel := range selections {
		if err := ctx.Err(); err != nil {
			log.Warnf("sweep interrupted before %s: %v", sel, err)
			break
		}
		log.Infof("[%d/%d] %s", i+1, len(selections), sel)
		r := s.iterate(ctx, i, sel)
		if s.Recorder != nil {
			if err := s.Recorder.Record(ctx, r); err != nil {
				log.Warnf("failed to record %s: %v", sel, err)
			}
		}
		summary.Records = append(summary.Records, r)
		if r.Failed() {
			log.Errorf("[%d/%d] %s failed: %v", i+1, len(selections), sel, r.Err)
			if s.StopOnFailure {
				break
			}
			continue
		}
		log.Infof("[%d/%d] %s took %s", i+1, len(selections), sel, r.Took)
	}
	summary.Took = time.Since(t0)
	return summary
}

func (s *Sweeper) iterate(ctx context.Context, i int, sel catalog.Selection) Record {
	rs := s.spec(sel)
	r := Record{Iteration: i, Selection: sel, Command: rs.Command, Started: time.Now()}
	c := s.coordinator(rs)
	rs.Artifacts = c.Artifacts()

	var leader hostgroup.Result
	d, err := utils.Measure(func() error {
		return c.Bracket(ctx, func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, s.Config.WorkloadTimeout())
			defer cancel()
			leader = s.Group.RunOn(ctx, collect.Leader, rs.Command)
			return leader.Err
		})
	})
	r.Took = d
	r.Monitors = c.Results()
	r.Leader = leader
	if err != nil {
		r.Status = Failed
		r.Err = errors.Wrapf(err, "%s", sel)
	} else {
		r.Status = OK
	}
	r.Transfers = s.collect(ctx, rs)
	return r
}

func (s *Sweeper) collect(ctx context.Context, rs RunSpec) hostgroup.Transfers {
	if s.Collector == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		log.Warnf("skip fetching artifacts of %s: %v", rs.Selection, err)
		return nil
	}
	if rs.Harness {
		return hostgroup.Transfers{s.Collector.CollectLeader(ctx, rs.LeaderArtifact)}
	}
	return s.Collector.Collect(ctx, rs.Artifacts)
}

type Status string

const (
	OK     Status = `ok`
	Failed Status = `failed`
)

// Record is the outcome of one iteration.
type Record struct {
	Iteration int
	Selection catalog.Selection
	Command   string
	Status    Status
	Started   time.Time
	Took      time.Duration
	Leader    hostgroup.Result
	Monitors  []monitor.JoinResult
	Transfers hostgroup.Transfers
	Err       error
}

func (r Record) Failed() bool { return r.Status != OK }

// Staged lists the local files this iteration produced.
func (r Record) Staged() []string {
	return lo.FilterMap(r.Transfers, func(t hostgroup.Transfer, _ int) (string, bool) {
		return t.Local, t.Err == nil
	})
}

// MissingHosts lists the hosts with at least one failed transfer.
func (r Record) MissingHosts() []int {
	return lo.Uniq(lo.Map(r.Transfers.Failed(), func(t hostgroup.Transfer, _ int) int {
		return t.Index
	}))
}

// MonitorFailures counts agents that did not exit cleanly.
func (r Record) MonitorFailures() int {
	return lo.CountBy(r.Monitors, func(j monitor.JoinResult) bool { return j.Err != nil })
}

func (r Record) String() string {
	return fmt.Sprintf("#%d %s %s took %s", r.Iteration, r.Selection, r.Status, r.Took)
}

type Summary struct {
	Records []Record
	Took    time.Duration
}

func (s Summary) Failed() []Record {
	return lo.Filter(s.Records, func(r Record, _ int) bool { return r.Failed() })
}
