package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oukeidos/arcat/internal/apperrors"
)

func newParentsCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parents <child-table>",
		Short: "List the parent rows a child table is grouped by",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			a, err := openApp(ctx, cmd, g)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			t, err := a.schema.Table(args[0])
			if err != nil {
				return err
			}
			if t.Parent == "" {
				return apperrors.Validation(fmt.Sprintf("%s has no parent table; use: arcat children %s", t.Name, t.Name))
			}
			s, err := a.newSession(ctx, t.Parent, -1)
			if err != nil {
				return err
			}
			// Only stored rows; the parent list has no insertion row.
			rows := make([]int, 0, s.main.Len()-1)
			for i := 0; i < s.main.Len()-1; i++ {
				rows = append(rows, i)
			}
			if len(rows) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is empty\n", t.Parent)
				return nil
			}
			printRows(cmd.OutOrStdout(), s.main, rows...)
			return nil
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func newChildrenCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "children <table> [parent-index]",
		Short: "List the rows of a table, under one parent row for child tables",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			a, err := openApp(ctx, cmd, g)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			t, parent, rest, err := target(a.schema, args)
			if err != nil {
				return err
			}
			if len(rest) > 0 {
				return apperrors.Validation(fmt.Sprintf("unexpected argument %q", rest[0]))
			}
			s, err := a.newSession(ctx, t.Name, parent)
			if err != nil {
				return err
			}
			if s.parents != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", s.parents.Table().Name, s.parents.SelectedKey())
			}
			printRows(cmd.OutOrStdout(), s.main)
			return nil
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
