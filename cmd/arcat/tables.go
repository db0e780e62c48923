package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oukeidos/arcat/internal/schema"
)

func newTablesCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List catalogue tables",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cat := schema.New()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "table\tparent\tkey")
			for _, t := range cat.Tables() {
				var key []string
				for _, i := range t.KeyIndexes() {
					key = append(key, t.Columns[i].Name)
				}
				parent := t.Parent
				if parent == "" {
					parent = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, parent, strings.Join(key, ", "))
			}
			_ = tw.Flush()
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func newDescribeCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe <table>",
		Short: "Show the columns of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := schema.New()
			cols, err := cat.DescribeColumns(args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "column\tkind\tflags\treferences")
			for _, c := range cols {
				var flags []string
				if c.PrimaryKey {
					flags = append(flags, "key")
				}
				if c.Sequence {
					flags = append(flags, "sequence")
				}
				if c.Required {
					flags = append(flags, "required")
				}
				if c.Unique {
					flags = append(flags, "unique")
				}
				if !c.Visible {
					flags = append(flags, "hidden")
				} else if c.ReadOnly {
					flags = append(flags, "read-only")
				}
				if c.MaxLength > 0 {
					flags = append(flags, fmt.Sprintf("max %d", c.MaxLength))
				}
				ref := "-"
				if c.ReferencedTable != "" {
					ref = c.ReferencedTable + "." + c.ReferencedColumn
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, c.Kind, strings.Join(flags, ", "), ref)
			}
			return tw.Flush()
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
