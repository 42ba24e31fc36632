package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/lsds/collsweep/srcs/go/catalog"
	"github.com/lsds/collsweep/srcs/go/collect"
	"github.com/lsds/collsweep/srcs/go/config"
	"github.com/lsds/collsweep/srcs/go/hostgroup"
	"github.com/lsds/collsweep/srcs/go/ledger"
	"github.com/lsds/collsweep/srcs/go/log"
	"github.com/lsds/collsweep/srcs/go/monitor"
	"github.com/lsds/collsweep/srcs/go/mpirun"
	"github.com/lsds/collsweep/srcs/go/plan/hostfile"
	"github.com/lsds/collsweep/srcs/go/sweep"
	"github.com/lsds/collsweep/srcs/go/utils"
	"github.com/lsds/collsweep/srcs/go/utils/ssh"
	"github.com/lsds/collsweep/srcs/go/utils/xterm"
	"github.com/spf13/afero"
)

var errSweepFailed = errors.New("sweep had failed runs")

func main() {
	if err := run(os.Args); err != nil {
		if errors.Is(err, errSweepFailed) {
			log.Errorf("%v", err)
			os.Exit(1)
		}
		utils.ExitErr(err)
	}
}

func run(args []string) error {
	c := catalog.Default()
	defaults, err := config.FromEnv()
	if err != nil {
		return err
	}
	var f FlagSet
	if err := f.Parse(args, c, defaults); err != nil {
		return err
	}
	if f.Quiet {
		log.SetLevel(log.Warn)
	}
	if f.Verbose {
		log.SetFlags(log.ShowTimestamp)
		utils.LogArgs()
		utils.LogConfigEnv()
	}
	sels, err := sweep.Plan(c, f.Benchmark, f.Algorithm)
	if err != nil {
		return err
	}
	hosts, err := f.Hosts(os.Stdin)
	if err != nil {
		return err
	}
	log.Infof("will run %s on %s: %s", utils.Pluralize(len(sels), "combination", "combinations"), utils.Pluralize(len(hosts), "host", "hosts"), hosts)

	ctx, cancel := utils.TrapContext(context.Background(), func(sig os.Signal) {
		log.Warnf("got %s, joining monitors and stopping", sig)
	})
	defer cancel()

	g, err := hostgroup.Dial(ctx, hosts, dialer(&f))
	if err != nil {
		return err
	}
	defer g.Close()

	s := &sweep.Sweeper{
		Group:         g,
		Builder:       mpirun.Builder{Prefix: f.Config.OpalPrefix},
		Agents:        monitor.DefaultAgents(),
		Config:        f.Config,
		Interface:     f.Interface,
		Program:       f.Program,
		Harness:       f.Harness,
		StopOnFailure: !f.KeepGoing,
		Coalesce:      f.Coalesce,
		Collector:     collect.New(g, afero.NewOsFs(), f.OutDir),
	}
	var record *ledger.Sweep
	if len(f.DB) > 0 {
		l, err := ledger.Open(f.DB)
		if err != nil {
			return err
		}
		defer l.Close()
		if record, err = l.Begin(ctx, g.Addrs(), f.Interface); err != nil {
			return err
		}
		log.Infof("recording sweep %s into %s", record.ID, f.DB)
		s.Recorder = record
	}

	summary := s.Run(ctx, sels)
	sweep.WriteReport(summary, os.Stdout)
	failed := len(summary.Failed())
	if record != nil {
		if err := record.Finish(context.Background(), failed); err != nil {
			log.Warnf("%v", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errSweepFailed, failed, len(summary.Records))
	}
	return nil
}

func dialer(f *FlagSet) hostgroup.DialFunc {
	return func(ctx context.Context, h hostfile.Host) (hostgroup.Channel, error) {
		client, err := ssh.New(ssh.Config{
			User:         h.User,
			Host:         h.Addr,
			Port:         h.Port,
			ForwardAgent: f.ForwardAgent,
		}, ssh.Options{
			Name:    fmt.Sprintf("host-%d", h.Index),
			Color:   xterm.HostColors.Choose(h.Index),
			Verbose: f.Verbose,
			LogDir:  f.LogDir,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
