package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oukeidos/arcat/internal/config"
	"github.com/oukeidos/arcat/internal/schema"
)

func newInitCmd(g *globalOptions) *cobra.Command {
	var printOnly bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the catalogue tables in the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if printOnly {
				driver := g.cfg.Database.Driver
				if driver == config.DriverMemory {
					driver = config.DriverSQLite
				}
				d, err := schema.ParseDialect(driver)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(schema.New().DDL(d), ";\n\n")+";")
				return nil
			}
			ctx, stop := signalContext()
			defer stop()
			// Opening the store applies any missing DDL.
			a, err := openApp(ctx, cmd, g)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			fmt.Fprintf(cmd.OutOrStdout(), "%d tables ready (%s)\n", len(a.schema.Tables()), g.cfg.Database.Driver)
			return nil
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "Print the DDL instead of applying it")
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
