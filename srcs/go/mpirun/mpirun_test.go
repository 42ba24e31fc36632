package mpirun

import (
	"testing"

	"github.com/lsds/collsweep/srcs/go/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selection(t *testing.T, bench, alg string) catalog.Selection {
	ss, err := catalog.Default().Plan(bench, alg)
	require.NoError(t, err)
	return ss[0]
}

func Test_Build_Broadcast(t *testing.T) {
	b := Builder{Prefix: `/users/nwtnni/openmpi-v5.0.x-install`}
	l := Launch{
		Hosts:     []string{"a", "b", "c"},
		Interface: "enp65s0f0np0",
		Selection: selection(t, "broadcast", "binary-tree"),
		Args:      []string{GiBPayload},
	}
	const want = `OPAL_PREFIX=/users/nwtnni/openmpi-v5.0.x-install mpirun -x OPAL_PREFIX` +
		` --map-by ppr:1:node --mca btl self,tcp --mca btl_tcp_if_include enp65s0f0np0` +
		` -H a,b,c --mca coll_tuned_use_dynamic_rules 1 --mca coll_tuned_bcast_algorithm 5` +
		` broadcast $((2**30))`
	if got := b.Build(l); got != want {
		t.Errorf("want %q, got %q", want, got)
	}
}

func Test_Build_Pure(t *testing.T) {
	b := Builder{Prefix: "/opt/ompi"}
	l := Launch{
		Hosts:     []string{"a", "b", "c"},
		Interface: "eth0",
		Selection: selection(t, "allreduce", "ring"),
	}
	first := b.Build(l)
	assert.Equal(t, first, b.Build(l))
	assert.Contains(t, first, `--mca coll_tuned_allreduce_algorithm 4 allreduce`)

	l.Hosts = []string{"c", "a", "b"}
	permuted := b.Build(l)
	assert.NotEqual(t, first, permuted)
	assert.Contains(t, permuted, `-H c,a,b `)
}

func Test_Build_CustomProgram(t *testing.T) {
	b := Builder{}
	l := Launch{
		Hosts:     []string{"10.0.0.1", "10.0.0.2"},
		Interface: "eth0",
		Selection: selection(t, "allreduce", "0"),
		Program:   "~/osu/osu_allreduce",
		Args:      []string{"-f"},
	}
	got := Tee(b.Build(l), "osu-allreduce-ignore.txt")
	const want = `mpirun --map-by ppr:1:node --mca btl self,tcp --mca btl_tcp_if_include eth0` +
		` -H 10.0.0.1,10.0.0.2 --mca coll_tuned_use_dynamic_rules 1 --mca coll_tuned_allreduce_algorithm 0` +
		` ~/osu/osu_allreduce -f | tee osu-allreduce-ignore.txt`
	assert.Equal(t, want, got)
}

func Test_QuotePath(t *testing.T) {
	assert.Equal(t, `~/'my bench'`, QuotePath(`~/my bench`))
	assert.Equal(t, `/usr/bin/x`, QuotePath(`/usr/bin/x`))
}
