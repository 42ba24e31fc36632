package hostgroup

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lsds/collsweep/srcs/go/log"
	"github.com/lsds/collsweep/srcs/go/plan/hostfile"
	"github.com/lsds/collsweep/srcs/go/utils"
	"github.com/spf13/afero"
)

// Transfer is the outcome of fetching one file from one host.
type Transfer struct {
	Index  int
	Host   hostfile.Host
	Remote string
	Local  string
	Bytes  int64
	Took   time.Duration
	Err    error
}

type Transfers []Transfer

func (ts Transfers) Err() error {
	errs := make([]error, len(ts))
	for i, t := range ts {
		errs[i] = t.Err
	}
	return utils.MergeErrors(errs, "fetch")
}

func (ts Transfers) Failed() Transfers {
	var failed Transfers
	for _, t := range ts {
		if t.Err != nil {
			failed = append(failed, t)
		}
	}
	return failed
}

// TransferError is a fetch that did not complete for one host.
type TransferError struct {
	Index  int
	Host   string
	Remote string
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("#%d <%s> fetch %s: %v", e.Index, e.Host, e.Remote, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// ExpandLocal substitutes {index} and {host} in a local path template.
func ExpandLocal(template string, h hostfile.Host) string {
	r := strings.NewReplacer(`{index}`, strconv.Itoa(h.Index), `{host}`, h.Addr)
	return r.Replace(template)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(bs []byte) (int, error) {
	n, err := c.w.Write(bs)
	c.n += int64(n)
	return n, err
}

func (g *Group) fetchFrom(ctx context.Context, fs afero.Fs, i int, remote, template string) Transfer {
	h := g.hosts[i]
	t := Transfer{Index: i, Host: h, Remote: remote, Local: ExpandLocal(template, h)}
	t0 := time.Now()
	n, err := fetchAtomic(ctx, fs, g.channels[i], remote, t.Local)
	t.Bytes, t.Took = n, time.Since(t0)
	if err != nil {
		t.Err = &TransferError{Index: i, Host: h.Addr, Remote: remote, Err: err}
		log.Errorf("#%d <%s> failed to fetch %s: %v", i, h.Addr, remote, err)
		return t
	}
	log.Debugf("#%d <%s> fetched %s -> %s (%d bytes), took %s", i, h.Addr, remote, t.Local, n, t.Took)
	return t
}

// fetchAtomic writes into local+".part" and only renames over local once the
// whole file arrived, so a failed transfer leaves the previous file alone.
func fetchAtomic(ctx context.Context, fs afero.Fs, ch Channel, remote, local string) (int64, error) {
	if dir := filepath.Dir(local); dir != "." {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return 0, err
		}
	}
	part := local + ".part"
	f, err := fs.Create(part)
	if err != nil {
		return 0, err
	}
	w := &countingWriter{w: f}
	err = ch.Fetch(ctx, remote, w)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fs.Remove(part)
		return w.n, err
	}
	return w.n, fs.Rename(part, local)
}

// Fetch downloads remote from every host in parallel into the local path
// given by template. Each host's transfer succeeds or fails independently.
func (g *Group) Fetch(ctx context.Context, fs afero.Fs, remote, template string) Transfers {
	ts := make(Transfers, len(g.hosts))
	forEach(len(g.hosts), func(i int) {
		ts[i] = g.fetchFrom(ctx, fs, i, remote, template)
	})
	return ts
}

// FetchFrom downloads remote from a single host.
func (g *Group) FetchFrom(ctx context.Context, fs afero.Fs, index int, remote, template string) Transfer {
	if index < 0 || index >= len(g.hosts) {
		return Transfer{
			Index:  index,
			Remote: remote,
			Err:    fmt.Errorf("host index %d out of range [0, %d)", index, len(g.hosts)),
		}
	}
	return g.fetchFrom(ctx, fs, index, remote, template)
}
