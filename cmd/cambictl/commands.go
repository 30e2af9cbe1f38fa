package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"cambi/internal/core"
	"cambi/internal/ledger"
	"cambi/internal/sheets"
)

// app carries what every command needs. setup fills it from the
// environment; tests fill it directly.
type app struct {
	primary    string
	secondary  string
	openLedger func(ctx context.Context) (*ledger.Ledger, func() error, error)
}

func newRootCmd(a *app, setup func(*app) error) *cobra.Command {
	root := &cobra.Command{
		Use:   "cambictl",
		Short: "Inspect and edit the cambi ledger",
		Long: `cambictl reads and writes the same storage slot as the cambi server.
Run it against the server's configuration (DATA_BACKEND and friends).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if setup == nil {
				return nil
			}
			return setup(a)
		},
	}
	root.AddCommand(
		newListCmd(a),
		newAddCmd(a),
		newDeleteCmd(a),
		newSummaryCmd(a),
		newExportCmd(a),
	)
	return root
}

// withLedger opens the ledger for the duration of fn.
func (a *app) withLedger(ctx context.Context, fn func(*ledger.Ledger) error) error {
	l, closeFn, err := a.openLedger(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(l)
}

// summaryFor rejects malformed filters instead of printing an empty table.
func summaryFor(l *ledger.Ledger, filter string) (core.Summary, error) {
	filter = strings.TrimSpace(filter)
	if filter != "" {
		if _, err := core.ParseYearMonth(filter); err != nil {
			return core.Summary{}, fmt.Errorf("invalid --filter %q: want YYYY-MonthName, e.g. 2025-January", filter)
		}
	}
	return l.Summary(filter), nil
}

func newListCmd(a *app) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries, optionally for one month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(l *ledger.Ledger) error {
				sum, err := summaryFor(l, filter)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "ID\tDATE\tDESCRIPTION\t%s\t%s\n", a.primary, a.secondary)
				for _, e := range sum.Entries {
					fmt.Fprintln(tw, strings.Join(sheets.Row(e), "\t"))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "Month filter, e.g. 2025-January")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var form core.EntryForm
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an entry",
		Example: `  cambictl add --desc "Lunch" --primary 42.50 --secondary 960
  cambictl add --date 2025-01-05 --desc "Train" --primary 12 --secondary 270`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if form.Date == "" {
				form.Date = time.Now().Format("2006-01-02")
			}
			return a.withLedger(cmd.Context(), func(l *ledger.Ledger) error {
				e, err := l.Add(cmd.Context(), form)
				var ve *core.ValidationError
				if errors.As(err, &ve) {
					msgs := ve.Messages()
					for _, field := range ve.FieldNames() {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", field, msgs[field])
					}
					return errors.New("entry rejected")
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", e.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&form.Date, "date", "", "Entry date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&form.Description, "desc", "", "Description")
	cmd.Flags().StringVar(&form.AmountPrimary, "primary", "", "Amount in the primary currency")
	cmd.Flags().StringVar(&form.AmountSecondary, "secondary", "", "Amount in the secondary currency")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entry by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(l *ledger.Ledger) error {
				deleted, err := l.Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if deleted {
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "No entry with id %s\n", args[0])
				}
				return nil
			})
		},
	}
}

func newSummaryCmd(a *app) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print totals and the average rate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(l *ledger.Ledger) error {
				sum, err := summaryFor(l, filter)
				if err != nil {
					return err
				}
				label := sum.Filter
				if label == "" {
					label = "all"
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "Filter\t%s\n", label)
				fmt.Fprintf(tw, "Entries\t%d\n", len(sum.Entries))
				fmt.Fprintf(tw, "Total %s\t%s\n", a.primary, sum.Totals.Primary.StringFixed(2))
				fmt.Fprintf(tw, "Total %s\t%s\n", a.secondary, sum.Totals.Secondary.StringFixed(2))
				fmt.Fprintf(tw, "Average rate\t%s\n", sum.AverageRate)
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "Month filter, e.g. 2025-January")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	export := &cobra.Command{
		Use:   "export",
		Short: "Export entries",
	}

	var filter string
	csvCmd := &cobra.Command{
		Use:   "csv",
		Short: "Write entries as CSV to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(l *ledger.Ledger) error {
				sum, err := summaryFor(l, filter)
				if err != nil {
					return err
				}
				return sheets.WriteCSV(cmd.OutOrStdout(), sum.Entries, a.primary, a.secondary)
			})
		},
	}
	csvCmd.Flags().StringVar(&filter, "filter", "", "Month filter, e.g. 2025-January")
	export.AddCommand(csvCmd)
	return export
}
