package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/notescribe/notescribe/pkg/environment"
	"github.com/notescribe/notescribe/pkg/history"
	"github.com/notescribe/notescribe/pkg/logging"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the 'history' command.
func NewHistoryCommand(ctx context.Context, fs afero.Fs, env *environment.Environment, logger *logging.Logger) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"h"},
		Short:   "Show recent transcription runs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := OpenHistoryFn(fs, env.HistoryDB, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(ctx, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, dimStyle.Render("no runs recorded yet"))
				return nil
			}
			fmt.Fprintln(out, historyTable(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 for all)")
	return cmd
}

func historyTable(runs []history.Run) *table.Table {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		outcome := r.Outcome
		if r.ErrorCode != "" {
			outcome += " (" + r.ErrorCode + ")"
		}
		rows = append(rows, []string{
			humanize.Time(r.StartedAt),
			outcome,
			r.Duration.Round(100 * time.Millisecond).String(),
			r.AudioPath,
			r.OutputPath,
			r.ID,
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STARTED", "OUTCOME", "DURATION", "AUDIO", "OUTPUT", "RUN").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(runs) && runs[row].Outcome == history.OutcomeFailed {
				return cellStyle.Foreground(lipgloss.Color("196"))
			}
			return cellStyle
		})
}
