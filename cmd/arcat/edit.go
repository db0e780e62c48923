package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oukeidos/arcat/internal/apperrors"
	"github.com/oukeidos/arcat/internal/catalog"
)

func newSetCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <table> [parent-index] <row|new> <column>=<value>...",
		Short: "Edit cells of one row and save it",
		Long: "Edits the given cells and then leaves the row, which saves it. An empty value\n" +
			"clears the cell. When the store refuses the row, the refused values are shown\n" +
			"the way the editor would restore them and the command fails.",
		Args: cobra.MinimumNArgs(2),
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
			if len(rest) < 2 {
				return apperrors.Validation("give a row and at least one column=value")
			}
			s, err := a.newSession(ctx, t.Name, parent)
			if err != nil {
				return err
			}
			i, err := s.rowIndex(rest[0])
			if err != nil {
				return err
			}
			return s.set(cmd.OutOrStdout(), i, rest[1:])
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

// set enters row i, applies the assignments and leaves the row.
func (s *session) set(out io.Writer, i int, assignments []string) error {
	insert := i == s.main.InsertionIndex()
	if err := s.main.OnRowEntered(i); err != nil {
		return err
	}
	for _, a := range assignments {
		name, value, ok := strings.Cut(a, "=")
		if !ok {
			return apperrors.Validation(fmt.Sprintf("%q is not column=value", a))
		}
		col := s.table.Index(strings.TrimSpace(name))
		if col < 0 {
			return apperrors.Validation(fmt.Sprintf("%s has no column %q", s.table.Name, name))
		}
		if err := s.main.OnCellFocused(i, col); err != nil {
			return err
		}
		if err := s.main.OnCellEdited(i, col, value); err != nil {
			return err
		}
	}
	err := s.main.OnRowLeft(i)
	s.queue.Flush()
	if err != nil {
		s.report(out, i, err)
		return err
	}
	if insert {
		fmt.Fprintf(out, "added row %d\n", i)
	} else {
		fmt.Fprintf(out, "saved row %d\n", i)
	}
	printRows(out, s.main, i)
	return nil
}

// report prints why row i was refused and the values it now holds.
func (s *session) report(out io.Writer, i int, err error) {
	reason := apperrors.PublicMessage(err)
	if len(s.messages) > 0 {
		reason = s.messages[len(s.messages)-1]
	}
	fmt.Fprintf(out, "refused: %s\n", reason)
	if row, col := s.main.Current(); row >= 0 && col >= 0 && col < len(s.table.Columns) {
		fmt.Fprintf(out, "fix %s in row %s\n", s.table.Columns[col].Name, label(s, row))
	}
	if i >= 0 && i < s.main.Len() {
		printRows(out, s.main, i)
	}
}

func label(s *session, i int) string {
	if i == s.main.InsertionIndex() {
		return "new"
	}
	return strconv.Itoa(i)
}

func newDeleteCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <table> [parent-index] <row>...",
		Short: "Delete rows; stops at the first refusal",
		Args:  cobra.MinimumNArgs(2),
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
			if len(rest) == 0 {
				return apperrors.Validation("give at least one row to delete")
			}
			s, err := a.newSession(ctx, t.Name, parent)
			if err != nil {
				return err
			}
			var rows []int
			for _, r := range rest {
				i, err := s.rowIndex(r)
				if err != nil {
					return err
				}
				if i == s.main.InsertionIndex() {
					return apperrors.Validation("the new-row placeholder cannot be deleted")
				}
				rows = append(rows, i)
			}
			if len(rows) > 1 {
				ok, err := confirmer.Confirm(fmt.Sprintf("Delete %d %s rows?", len(rows), t.Name), a.yes)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing deleted")
					return nil
				}
			}
			before := s.main.Len()
			err = s.main.RemoveRows(rows...)
			s.queue.Flush()
			deleted := before - s.main.Len()
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d of %d rows\n", deleted, len(rows))
			if err != nil {
				var rej *catalog.Rejection
				row := -1
				if errors.As(err, &rej) {
					row = rej.Row
				}
				s.report(cmd.OutOrStdout(), row, err)
				return err
			}
			return nil
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
