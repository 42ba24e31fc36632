package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Ignore is the sentinel at index 0 of every algorithm list: it leaves the
// choice to the runtime's own decision rules.
const Ignore = `ignore`

// Benchmark is a collective workload and its selectable algorithm variants.
type Benchmark struct {
	Name string
	// Key is the operation's fragment in coll_tuned_<Key>_algorithm.
	Key        string
	Algorithms []string
}

// Selection picks one algorithm of one benchmark.
type Selection struct {
	Benchmark Benchmark
	Algorithm int
}

func (s Selection) AlgorithmName() string {
	return s.Benchmark.Algorithms[s.Algorithm]
}

// Artifact names a per-run output file: prefix-benchmark-algorithm.ext.
// The benchmark and algorithm names keep runs from sharing a file.
func (s Selection) Artifact(prefix, ext string) string {
	return fmt.Sprintf("%s-%s-%s.%s", prefix, s.Benchmark.Name, s.AlgorithmName(), ext)
}

func (s Selection) String() string {
	return fmt.Sprintf("%s/%s(%d)", s.Benchmark.Name, s.AlgorithmName(), s.Algorithm)
}

// Catalog is an immutable, ordered set of benchmarks.
type Catalog struct {
	benchmarks []Benchmark
	index      map[string]int
}

func New(bs ...Benchmark) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int)}
	for _, b := range bs {
		if len(b.Name) == 0 {
			return nil, errors.New("benchmark without name")
		}
		if _, ok := c.index[b.Name]; ok {
			return nil, errors.Errorf("duplicate benchmark %q", b.Name)
		}
		if len(b.Algorithms) == 0 || b.Algorithms[0] != Ignore {
			return nil, errors.Errorf("benchmark %q must list %q first", b.Name, Ignore)
		}
		seen := make(map[string]bool)
		for _, a := range b.Algorithms {
			if seen[a] {
				return nil, errors.Errorf("benchmark %q lists %q twice", b.Name, a)
			}
			seen[a] = true
		}
		if len(b.Key) == 0 {
			b.Key = b.Name
		}
		b.Algorithms = append([]string(nil), b.Algorithms...)
		c.index[b.Name] = len(c.benchmarks)
		c.benchmarks = append(c.benchmarks, b)
	}
	return c, nil
}

func MustNew(bs ...Benchmark) *Catalog {
	c, err := New(bs...)
	if err != nil {
		panic(err)
	}
	return c
}

// Default holds the Open MPI coll/tuned algorithm tables, as listed by
// `ompi_info --param coll tuned --level 5`.
func Default() *Catalog {
	return MustNew(
		Benchmark{
			Name: `allreduce`,
			Key:  `allreduce`,
			Algorithms: []string{
				Ignore,
				`basic-linear`,
				`nonoverlapping`,
				`recursive-doubling`,
				`ring`,
				`segmented-ring`,
			},
		},
		Benchmark{
			Name: `broadcast`,
			Key:  `bcast`,
			Algorithms: []string{
				Ignore,
				`basic-linear`,
				`chain`,
				`pipeline`,
				`split-binary-tree`,
				`binary-tree`,
				`binomial-tree`,
				`knomial-tree`,
				`scatter-allgather`,
				`scatter-allgather-ring`,
			},
		},
	)
}

// Names returns benchmark names in declaration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.benchmarks))
	for i, b := range c.benchmarks {
		names[i] = b.Name
	}
	return names
}

func (c *Catalog) Lookup(name string) (Benchmark, error) {
	i, ok := c.index[name]
	if !ok {
		return Benchmark{}, &InvalidSelection{
			Benchmark: name,
			Reason:    fmt.Sprintf("unknown benchmark, options are: %s", strings.Join(c.Names(), " | ")),
		}
	}
	b := c.benchmarks[i]
	b.Algorithms = append([]string(nil), b.Algorithms...)
	return b, nil
}

func (c *Catalog) Algorithms(name string) ([]string, error) {
	b, err := c.Lookup(name)
	if err != nil {
		return nil, err
	}
	return b.Algorithms, nil
}

// Resolve maps token, either an index or an algorithm name, to an index.
func (c *Catalog) Resolve(name, token string) (int, error) {
	b, err := c.Lookup(name)
	if err != nil {
		return 0, err
	}
	if n, err := strconv.Atoi(token); err == nil {
		if n < 0 || n >= len(b.Algorithms) {
			return 0, &InvalidSelection{
				Benchmark: name,
				Token:     token,
				Reason:    fmt.Sprintf("index out of range [0, %d)", len(b.Algorithms)),
			}
		}
		return n, nil
	}
	for i, a := range b.Algorithms {
		if a == token {
			return i, nil
		}
	}
	return 0, &InvalidSelection{
		Benchmark: name,
		Token:     token,
		Reason:    fmt.Sprintf("unknown algorithm, options are: %s", strings.Join(b.Algorithms, " | ")),
	}
}

// Selections enumerates every algorithm of the named benchmark, or of all
// benchmarks when name is empty: benchmarks in declaration order, algorithms
// in ascending index order.
func (c *Catalog) Selections(name string) ([]Selection, error) {
	names := c.Names()
	if len(name) > 0 {
		names = []string{name}
	}
	var ss []Selection
	for _, name := range names {
		b, err := c.Lookup(name)
		if err != nil {
			return nil, err
		}
		for i := range b.Algorithms {
			ss = append(ss, Selection{Benchmark: b, Algorithm: i})
		}
	}
	return ss, nil
}

// Plan validates a command-line selection and returns what to run. An empty
// token sweeps every algorithm; a token without a benchmark is invalid.
func (c *Catalog) Plan(name, token string) ([]Selection, error) {
	if len(token) == 0 {
		return c.Selections(name)
	}
	if len(name) == 0 {
		return nil, &InvalidSelection{Token: token, Reason: "algorithm given without benchmark"}
	}
	i, err := c.Resolve(name, token)
	if err != nil {
		return nil, err
	}
	b, _ := c.Lookup(name)
	return []Selection{{Benchmark: b, Algorithm: i}}, nil
}

// InvalidSelection rejects a benchmark or algorithm before any host is contacted.
type InvalidSelection struct {
	Benchmark string
	Token     string
	Reason    string
}

func (e *InvalidSelection) Error() string {
	switch {
	case len(e.Token) > 0 && len(e.Benchmark) > 0:
		return fmt.Sprintf("invalid algorithm %q for %q: %s", e.Token, e.Benchmark, e.Reason)
	case len(e.Token) > 0:
		return fmt.Sprintf("invalid algorithm %q: %s", e.Token, e.Reason)
	default:
		return fmt.Sprintf("invalid benchmark %q: %s", e.Benchmark, e.Reason)
	}
}
