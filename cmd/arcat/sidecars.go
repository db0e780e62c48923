package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/oukeidos/arcat/internal/apperrors"
	"github.com/oukeidos/arcat/internal/pathcheck"
)

func newSidecarsCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sidecars <media-path>",
		Short: "Check a media path and list the subtitle files next to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.cfg.Archive.Root == "" {
				return apperrors.Validation("set --archive-root or ARCAT_ARCHIVE_ROOT first")
			}
			c := pathcheck.New(g.cfg.Archive.Root, g.cfg.Archive.RequireFiles)
			out := cmd.OutOrStdout()
			if err := c.Check(args[0]); err != nil {
				return err
			}
			found, err := c.Sidecars(args[0])
			if err != nil {
				return err
			}
			if len(found) == 0 {
				fmt.Fprintln(out, "no sidecars")
				return nil
			}
			for _, sc := range found {
				if sc.Err != nil {
					fmt.Fprintf(out, "%s\tunreadable: %v\n", filepath.Base(sc.Path), sc.Err)
					continue
				}
				fmt.Fprintf(out, "%s\t%d cues\n", filepath.Base(sc.Path), sc.Items)
			}
			return nil
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
