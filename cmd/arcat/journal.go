package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oukeidos/arcat/internal/recovery"
)

func journalFor(g *globalOptions) (*recovery.Journal, error) {
	dir := g.cfg.Archive.JournalDir
	if dir == "" {
		var err error
		if dir, err = recovery.DefaultDir(); err != nil {
			return nil, fmt.Errorf("locate journal: %w", err)
		}
	}
	return recovery.New(dir), nil
}

func newJournalCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect edits discarded when the editor switched parent rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalList(cmd, g)
		},
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved entries, newest first (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalList(cmd, g)
		},
	}
	show := &cobra.Command{
		Use:   "show <entry>",
		Short: "Print the rows of one entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalShow(cmd, g, args[0])
		},
	}
	list.SetUsageTemplate(subcommandUsageTemplate)
	show.SetUsageTemplate(subcommandUsageTemplate)
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	cmd.AddCommand(list, show)
	return cmd
}

func runJournalList(cmd *cobra.Command, g *globalOptions) error {
	j, err := journalFor(g)
	if err != nil {
		return err
	}
	entries, err := j.List()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(out, "no journal entries in %s\n", j.Dir())
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "entry\ttable\tparent\trows\tsaved")
	for _, e := range entries {
		name := strings.TrimSuffix(filepath.Base(e.Path), ".json")
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", name, e.Table, e.ParentKey, e.Rows, e.SavedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func runJournalShow(cmd *cobra.Command, g *globalOptions, name string) error {
	j, err := journalFor(g)
	if err != nil {
		return err
	}
	e, err := recovery.Load(j.Resolve(name))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s under %s, saved %s\n", e.Table, e.ParentKey, e.SavedAt.Local().Format("2006-01-02 15:04:05"))
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "row\tstate\t%s\n", strings.Join(e.Columns, "\t"))
	for _, r := range e.Rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", r.Index, r.State, strings.Join(r.Working, "\t"))
	}
	return tw.Flush()
}
