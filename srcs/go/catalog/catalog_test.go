package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Default(t *testing.T) {
	c := Default()
	assert.Equal(t, []string{"allreduce", "broadcast"}, c.Names())
	for _, name := range c.Names() {
		as, err := c.Algorithms(name)
		require.NoError(t, err)
		assert.Equal(t, Ignore, as[0])
	}
	as, _ := c.Algorithms("allreduce")
	assert.Len(t, as, 6)
	b, _ := c.Lookup("broadcast")
	assert.Equal(t, "bcast", b.Key)
	assert.Len(t, b.Algorithms, 10)
}

func Test_Resolve_Valid(t *testing.T) {
	c := Default()
	for _, name := range c.Names() {
		as, _ := c.Algorithms(name)
		for i, a := range as {
			got, err := c.Resolve(name, a)
			require.NoError(t, err)
			assert.Equal(t, i, got)
		}
	}
	i, err := c.Resolve("broadcast", "binary-tree")
	require.NoError(t, err)
	assert.Equal(t, 5, i)
	i, err = c.Resolve("allreduce", "0")
	require.NoError(t, err)
	assert.Equal(t, 0, i)
}

func Test_Resolve_Invalid(t *testing.T) {
	c := Default()
	for _, tc := range []struct{ bench, token string }{
		{"allreduce", "9"},
		{"allreduce", "6"},
		{"allreduce", "-1"},
		{"allreduce", "binary-tree"},
		{"gather", "0"},
		{"broadcast", "Ring"},
	} {
		_, err := c.Resolve(tc.bench, tc.token)
		var is *InvalidSelection
		assert.True(t, errors.As(err, &is), "%s %s: %v", tc.bench, tc.token, err)
	}
}

func Test_Selections_Order(t *testing.T) {
	c := Default()
	ss, err := c.Selections("")
	require.NoError(t, err)
	require.Len(t, ss, 16)
	assert.Equal(t, "allreduce", ss[0].Benchmark.Name)
	assert.Equal(t, 0, ss[0].Algorithm)
	assert.Equal(t, "segmented-ring", ss[5].AlgorithmName())
	assert.Equal(t, "broadcast", ss[6].Benchmark.Name)
	assert.Equal(t, "scatter-allgather-ring", ss[15].AlgorithmName())

	ss, err = c.Selections("broadcast")
	require.NoError(t, err)
	assert.Len(t, ss, 10)
}

func Test_Plan(t *testing.T) {
	c := Default()
	ss, err := c.Plan("broadcast", "binary-tree")
	require.NoError(t, err)
	require.Len(t, ss, 1)
	assert.Equal(t, "broadcast/binary-tree(5)", ss[0].String())

	_, err = c.Plan("", "ring")
	assert.Error(t, err)
	_, err = c.Plan("allreduce", "9")
	assert.Error(t, err)

	ss, err = c.Plan("", "")
	require.NoError(t, err)
	assert.Len(t, ss, 16)
}

func Test_New_Invalid(t *testing.T) {
	for _, bs := range [][]Benchmark{
		{{Name: "x", Algorithms: []string{"ring"}}},
		{{Name: "x", Algorithms: nil}},
		{{Name: "", Algorithms: []string{Ignore}}},
		{{Name: "x", Algorithms: []string{Ignore}}, {Name: "x", Algorithms: []string{Ignore}}},
		{{Name: "x", Algorithms: []string{Ignore, "ring", "ring"}}},
	} {
		_, err := New(bs...)
		assert.Error(t, err)
	}
}

func Test_Lookup_Immutable(t *testing.T) {
	c := Default()
	b, _ := c.Lookup("allreduce")
	b.Algorithms[1] = "mutated"
	as, _ := c.Algorithms("allreduce")
	assert.Equal(t, "basic-linear", as[1])
}

func Test_Artifact_Distinct(t *testing.T) {
	ss, err := Default().Selections("")
	require.NoError(t, err)
	seen := make(map[string]bool)
	for _, s := range ss {
		name := s.Artifact("ifstat", "txt")
		assert.False(t, seen[name], name)
		seen[name] = true
	}
	assert.True(t, seen["ifstat-broadcast-binary-tree.txt"])
	assert.True(t, seen["ifstat-allreduce-ring.txt"])
}
