package sweep

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/lsds/collsweep/srcs/go/utils"
	"github.com/samber/lo"
)

func tableOptions() table.Options {
	options := table.OptionsDefault
	options.DrawBorder = false
	options.SeparateColumns = false
	options.SeparateRows = false
	return options
}

// WriteReport prints one row per iteration followed by a totals line.
func WriteReport(s Summary, w io.Writer) {
	fmt.Fprintf(w, "Got results from %s, %d failed, took %s\n",
		utils.Pluralize(len(s.Records), "run", "runs"), len(s.Failed()), s.Took)
	if len(s.Records) == 0 {
		return
	}
	ta := table.NewWriter()
	ta.SetOutputMirror(w)
	ta.Style().Options = tableOptions()
	ta.AppendHeader(table.Row{"#", "BENCHMARK", "ALGORITHM", "STATUS", "TOOK", "STAGED", "MISSING HOSTS", "MONITOR ERRORS"})
	for _, r := range s.Records {
		missing := lo.Map(r.MissingHosts(), func(i int, _ int) string { return fmt.Sprint(i) })
		ta.AppendRow(table.Row{
			r.Iteration,
			r.Selection.Benchmark.Name,
			fmt.Sprintf("%s(%d)", r.Selection.AlgorithmName(), r.Selection.Algorithm),
			r.Status,
			r.Took.Round(time.Millisecond),
			len(r.Staged()),
			strings.Join(missing, ","),
			r.MonitorFailures(),
		})
	}
	ta.Render()
}
