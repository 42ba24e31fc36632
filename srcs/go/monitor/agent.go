package monitor

import (
	"fmt"
	"strconv"
	"time"

	"github.com/alessio/shellescape"
)

// Sample describes one bounded sampling session.
type Sample struct {
	Interface string
	Output    string
	Duration  time.Duration
	Interval  time.Duration
}

// Samples is how many intervals fit into the session.
func (s Sample) Samples() int {
	if s.Interval <= 0 {
		return 0
	}
	return int(s.Duration / s.Interval)
}

// Agent is a monitoring program started on every host around a workload.
type Agent struct {
	Name string
	Ext  string
	// Sudo runs the command as root, without prompting.
	Sudo    bool
	Command func(s Sample) string
}

func (a Agent) render(s Sample, useSudo bool) string {
	cmd := a.Command(s)
	if a.Sudo && useSudo {
		return Sudo(cmd)
	}
	return cmd
}

func Sudo(cmd string) string {
	return `sudo -n ` + cmd
}

// fmtDuration renders d the way ifstat parses it: whole seconds or milliseconds.
func fmtDuration(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", d/time.Second)
	}
	return fmt.Sprintf("%dms", d/time.Millisecond)
}

func fmtSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// Ifstat samples NIC throughput with ~/ifstat.
func Ifstat() Agent {
	return Agent{
		Name: `ifstat`,
		Ext:  `txt`,
		Command: func(s Sample) string {
			return fmt.Sprintf("~/ifstat -I %s -d %s -i %s > %s",
				shellescape.Quote(s.Interface),
				fmtDuration(s.Duration),
				fmtDuration(s.Interval),
				shellescape.Quote(s.Output))
		},
	}
}

// PCM samples hardware performance counters with Intel pcm.
func PCM() Agent {
	return Agent{
		Name: `pcm`,
		Ext:  `txt`,
		Sudo: true,
		Command: func(s Sample) string {
			return fmt.Sprintf("pcm -nc -csv=%s -i=%d %s",
				shellescape.Quote(s.Output),
				s.Samples(),
				fmtSeconds(s.Interval))
		},
	}
}

func DefaultAgents() []Agent {
	return []Agent{Ifstat(), PCM()}
}

// CoalesceCommand makes the NIC refresh its statistics every 100ms so that
// ifstat sees fresh counters.
func CoalesceCommand(iface string) string {
	return `ethtool -C ` + shellescape.Quote(iface) + ` stats-block-usecs 100000`
}
