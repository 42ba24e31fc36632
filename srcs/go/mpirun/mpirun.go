package mpirun

import (
	"fmt"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/lsds/collsweep/srcs/go/catalog"
)

// GiBPayload makes the remote shell compute a one GiB message size.
const GiBPayload = `$((2**30))`

const defaultLauncher = `mpirun`

// Builder renders mpirun command lines for one Open MPI installation.
type Builder struct {
	// Prefix is exported as OPAL_PREFIX to every rank; empty skips it.
	Prefix   string
	Launcher string
}

// Launch describes one workload run.
type Launch struct {
	Hosts     []string
	Interface string
	Selection catalog.Selection
	// Program defaults to the benchmark name.
	Program string
	// Args are passed through verbatim so the remote shell may expand them.
	Args []string
}

func (l Launch) program() string {
	if len(l.Program) > 0 {
		return l.Program
	}
	return l.Selection.Benchmark.Name
}

// Build returns the full shell command. It has no side effects and the same
// Launch always yields the same string.
func (b Builder) Build(l Launch) string {
	launcher := b.Launcher
	if len(launcher) == 0 {
		launcher = defaultLauncher
	}
	var words []string
	if len(b.Prefix) > 0 {
		words = append(words, `OPAL_PREFIX=`+QuotePath(b.Prefix), launcher, `-x OPAL_PREFIX`)
	} else {
		words = append(words, launcher)
	}
	words = append(words,
		`--map-by ppr:1:node`,
		`--mca btl self,tcp`,
		`--mca btl_tcp_if_include `+shellescape.Quote(l.Interface),
		`-H`,
		shellescape.Quote(strings.Join(l.Hosts, ",")),
		`--mca coll_tuned_use_dynamic_rules 1`,
		fmt.Sprintf(`--mca coll_tuned_%s_algorithm %d`, l.Selection.Benchmark.Key, l.Selection.Algorithm),
		QuotePath(l.program()),
	)
	words = append(words, l.Args...)
	return strings.Join(words, " ")
}

// Tee appends a pipe that copies cmd's stdout into file.
func Tee(cmd, file string) string {
	return cmd + ` | tee ` + QuotePath(file)
}

// QuotePath quotes p for the shell but keeps a leading ~/ expandable.
func QuotePath(p string) string {
	if strings.HasPrefix(p, `~/`) {
		return `~/` + shellescape.Quote(p[2:])
	}
	return shellescape.Quote(p)
}
