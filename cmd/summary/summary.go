// Package summary prints dashboard counts to the terminal.
package summary

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tphakala/transformer-inspect/internal/app"
	"github.com/tphakala/transformer-inspect/internal/conf"
	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
	"github.com/tphakala/transformer-inspect/internal/inventory"
)

// Command creates the summary command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print transformer, inspection and annotation counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(settings)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			s, err := a.Inventory.Summary(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, Render(s, isTerminal(out)))
			return nil
		},
	}
}

// Render lays the summary out as a table. Rounded box drawing is used only
// on terminals so piped output stays plain ASCII.
func Render(s *inventory.Summary, styled bool) string {
	tw := table.NewWriter()
	if styled {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleDefault)
	}
	tw.AppendHeader(table.Row{"Metric", "Count"})

	tw.AppendRow(table.Row{"Transformers", count(s.Transformers)})
	tw.AppendRow(table.Row{"Inspections", count(s.Inspections)})
	for _, st := range entities.InspectionStatuses {
		tw.AppendRow(table.Row{"  " + inventory.StatusDisplayName(st), count(s.InspectionsByStatus[st])})
	}
	tw.AppendRow(table.Row{"Images", count(s.Images)})
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"Active annotations", count(s.ActiveAnnotations)})
	for _, t := range entities.AnnotationTypes {
		tw.AppendRow(table.Row{"  " + string(t), count(s.AnnotationsByType[t])})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func count(n int64) string { return strconv.FormatInt(n, 10) }

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
