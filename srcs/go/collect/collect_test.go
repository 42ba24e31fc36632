package collect_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lsds/collsweep/srcs/go/collect"
	"github.com/lsds/collsweep/srcs/go/hostgroup"
	"github.com/lsds/collsweep/srcs/go/hostgroup/fakehost"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFile(t *testing.T, fs afero.Fs, name string) string {
	bs, err := afero.ReadFile(fs, name)
	require.NoError(t, err, name)
	return string(bs)
}

func Test_Collect_IndexPrefix(t *testing.T) {
	g, chs, _ := fakehost.NewGroup(2)
	chs[0].SetFile("ifstat-broadcast-ring.txt", "host a\n")
	chs[1].SetFile("ifstat-broadcast-ring.txt", "host b\n")
	fs := afero.NewMemMapFs()
	c := collect.New(g, fs, "out")

	ts := c.Collect(context.Background(), []string{"ifstat-broadcast-ring.txt"})
	require.NoError(t, ts.Err())
	require.Len(t, ts, 2)
	assert.Equal(t, "host a\n", readFile(t, fs, "out/0-ifstat-broadcast-ring.txt"))
	assert.Equal(t, "host b\n", readFile(t, fs, "out/1-ifstat-broadcast-ring.txt"))
	assert.Equal(t, "1-ifstat-broadcast-ring.txt", collect.LocalName(1, "ifstat-broadcast-ring.txt"))
}

func Test_Collect_CombinationsDoNotCollide(t *testing.T) {
	g, chs, _ := fakehost.NewGroup(2)
	for _, ch := range chs {
		ch.SetFile("ifstat-broadcast-ring.txt", "ring")
		ch.SetFile("ifstat-broadcast-chain.txt", "chain")
	}
	fs := afero.NewMemMapFs()
	c := collect.New(g, fs, "")
	c.Collect(context.Background(), []string{"ifstat-broadcast-ring.txt"})
	c.Collect(context.Background(), []string{"ifstat-broadcast-chain.txt"})
	assert.Equal(t, "ring", readFile(t, fs, "0-ifstat-broadcast-ring.txt"))
	assert.Equal(t, "chain", readFile(t, fs, "0-ifstat-broadcast-chain.txt"))
}

func Test_Collect_PartialFailure(t *testing.T) {
	g, chs, _ := fakehost.NewGroup(3)
	chs[0].SetFile("pcm-allreduce-ring.txt", "0")
	chs[2].SetFile("pcm-allreduce-ring.txt", "2")
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "1-pcm-allreduce-ring.txt", []byte("previous"), 0644)
	c := collect.New(g, fs, "")

	ts := c.Collect(context.Background(), []string{"pcm-allreduce-ring.txt"})
	failed := ts.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].Index)
	var te *hostgroup.TransferError
	assert.True(t, errors.As(ts.Err(), &te))
	assert.Equal(t, "previous", readFile(t, fs, "1-pcm-allreduce-ring.txt"))
	assert.Equal(t, "2", readFile(t, fs, "2-pcm-allreduce-ring.txt"))
	ok, _ := afero.Exists(fs, "1-pcm-allreduce-ring.txt.part")
	assert.False(t, ok)
}

func Test_CollectLeader(t *testing.T) {
	g, chs, j := fakehost.NewGroup(3)
	chs[0].SetFile("osu-broadcast-chain.txt", "latency")
	fs := afero.NewMemMapFs()
	c := collect.New(g, fs, "results")

	tr := c.CollectLeader(context.Background(), "osu-broadcast-chain.txt")
	require.NoError(t, tr.Err)
	assert.Equal(t, "results/osu-broadcast-chain.txt", tr.Local)
	assert.Equal(t, "latency", readFile(t, fs, "results/osu-broadcast-chain.txt"))
	fetches := j.Filter(fakehost.Fetch, "")
	require.Len(t, fetches, 1)
	assert.Equal(t, 0, fetches[0].Host)
}
