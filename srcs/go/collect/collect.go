// Package collect stages per-host artifacts on the local machine.
package collect

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/lsds/collsweep/srcs/go/hostgroup"
	"github.com/lsds/collsweep/srcs/go/log"
	"github.com/spf13/afero"
)

// Leader is the host that launches workloads.
const Leader = 0

type Group interface {
	Fetch(ctx context.Context, fs afero.Fs, remote, template string) hostgroup.Transfers
	FetchFrom(ctx context.Context, fs afero.Fs, index int, remote, template string) hostgroup.Transfer
}

// Collector fetches artifacts relative to each host's home directory.
type Collector struct {
	Group Group
	Fs    afero.Fs
	// Dir is the local staging directory; empty means the working directory.
	Dir string
}

func New(g Group, fs afero.Fs, dir string) *Collector {
	return &Collector{Group: g, Fs: fs, Dir: dir}
}

// LocalName is where host index's copy of artifact is staged.
func LocalName(index int, artifact string) string {
	return fmt.Sprintf("%d-%s", index, artifact)
}

func indexTemplate(artifact string) string {
	return `{index}-` + artifact
}

func (c *Collector) path(name string) string {
	if len(c.Dir) == 0 {
		return name
	}
	return filepath.Join(c.Dir, name)
}

// Collect fetches every artifact from every host as {index}-{artifact}.
// Transfers are independent: one failure neither stops nor clobbers others.
func (c *Collector) Collect(ctx context.Context, artifacts []string) hostgroup.Transfers {
	var all hostgroup.Transfers
	for _, a := range artifacts {
		ts := c.Group.Fetch(ctx, c.Fs, a, c.path(indexTemplate(a)))
		if failed := ts.Failed(); len(failed) > 0 {
			log.Warnf("%s: %d of %d transfers failed", a, len(failed), len(ts))
		}
		all = append(all, ts...)
	}
	return all
}

// CollectLeader fetches artifact from the leader only, under its own name.
func (c *Collector) CollectLeader(ctx context.Context, artifact string) hostgroup.Transfer {
	return c.Group.FetchFrom(ctx, c.Fs, Leader, artifact, c.path(artifact))
}
