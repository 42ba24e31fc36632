package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/lsds/collsweep/srcs/go/catalog"
	"github.com/lsds/collsweep/srcs/go/config"
	"github.com/lsds/collsweep/srcs/go/plan/hostfile"
)

type FlagSet struct {
	User      string
	Interface string
	Benchmark string
	Algorithm string
	Program   string
	Harness   bool
	HostFile  string

	LogDir  string
	OutDir  string
	DB      string
	Verbose bool
	Quiet   bool

	KeepGoing    bool
	Coalesce     bool
	ForwardAgent bool

	Config config.Config
}

func (f *FlagSet) Register(flag *flag.FlagSet, c *catalog.Catalog, defaults config.Config) {
	flag.StringVar(&f.User, "u", "", "user name for ssh")
	flag.StringVar(&f.Interface, "i", "", "network interface used by MPI and the monitors")
	flag.StringVar(&f.Benchmark, "b", "", fmt.Sprintf("benchmark, options are: %s; empty sweeps all", strings.Join(c.Names(), " | ")))
	flag.StringVar(&f.Algorithm, "a", "", "algorithm name or index; empty sweeps all")
	flag.StringVar(&f.Program, "p", "", "path to the benchmark program on the hosts, defaults to the benchmark name")
	flag.BoolVar(&f.Harness, "o", false, "run an external benchmark harness instead of monitored runs")
	flag.StringVar(&f.HostFile, "hostfile", "", "path to hostfile, hosts are read from stdin if not specified")

	flag.StringVar(&f.LogDir, "logdir", "", "path to log dir for remote output")
	flag.StringVar(&f.OutDir, "out", ".", "directory to stage fetched artifacts in")
	flag.StringVar(&f.DB, "db", "", "path to a sqlite ledger of sweeps")
	flag.BoolVar(&f.Verbose, "v", false, "show remote output")
	flag.BoolVar(&f.Quiet, "q", false, "only log warnings and errors")

	flag.BoolVar(&f.KeepGoing, "keep-going", true, "continue the sweep after a failed run")
	flag.BoolVar(&f.Coalesce, "coalesce", true, "tune NIC statistics refresh before monitoring")
	flag.BoolVar(&f.ForwardAgent, "forward-agent", true, "forward the local ssh agent to the hosts")

	f.Config = defaults
	flag.DurationVar(&f.Config.Warmup, "warmup", defaults.Warmup, "delay between starting monitors and the workload")
	flag.DurationVar(&f.Config.MonitorDuration, "duration", defaults.MonitorDuration, "monitor sampling duration")
	flag.DurationVar(&f.Config.MonitorInterval, "interval", defaults.MonitorInterval, "monitor sampling interval")
	flag.DurationVar(&f.Config.Timeout, "timeout", defaults.Timeout, "workload timeout, defaults to twice -duration")
	flag.StringVar(&f.Config.OpalPrefix, "prefix", defaults.OpalPrefix, "Open MPI install prefix on the hosts, exported as OPAL_PREFIX")
	flag.BoolVar(&f.Config.UseSudo, "sudo", defaults.UseSudo, "run privileged monitor commands with sudo")
}

var errMissingInterface = errors.New("missing network interface (-i)")

func (f *FlagSet) Parse(args []string, c *catalog.Catalog, defaults config.Config) error {
	commandLine := flag.NewFlagSet(args[0], flag.ContinueOnError)
	f.Register(commandLine, c, defaults)
	if err := commandLine.Parse(args[1:]); err != nil {
		return err
	}
	if len(f.Interface) == 0 {
		return errMissingInterface
	}
	if rest := commandLine.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected arguments: %q", rest)
	}
	return f.Config.Validate()
}

// Hosts reads the host list from -hostfile, or from stdin.
func (f *FlagSet) Hosts(stdin io.Reader) (hostfile.HostList, error) {
	if len(f.HostFile) > 0 {
		return hostfile.ParseFile(f.HostFile, f.User)
	}
	return hostfile.Read(stdin, f.User)
}
