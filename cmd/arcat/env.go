package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oukeidos/arcat/internal/auth"
)

var (
	savePassword   = auth.SavePassword
	deletePassword = auth.DeletePassword
	passwordStored = auth.Stored
)

func newEnvCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage the database password in the OS keychain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvStatus(cmd, g)
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	setup := &cobra.Command{
		Use:   "setup",
		Short: "Save the database password to the keychain (prompt only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := promptPassword(cmd.ErrOrStderr(), "Database password: ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			if pw == "" {
				return fmt.Errorf("a password is required for setup")
			}
			if err := savePassword(pw); err != nil {
				return fmt.Errorf("save password: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Saved the database password to the keychain.")
			return nil
		},
	}
	status := &cobra.Command{
		Use:   "status",
		Short: "Show where the password would come from (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvStatus(cmd, g)
		},
	}
	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete the password from the keychain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := deletePassword(); err != nil {
				return fmt.Errorf("delete password: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted the database password from the keychain.")
			return nil
		},
	}
	for _, c := range []*cobra.Command{setup, status, del} {
		c.SetUsageTemplate(subcommandUsageTemplate)
	}
	cmd.AddCommand(setup, status, del)
	return cmd
}

func runEnvStatus(cmd *cobra.Command, g *globalOptions) error {
	out := cmd.OutOrStdout()
	if passwordStored() {
		fmt.Fprintln(out, "Database password: Found (source=Keychain)")
		return nil
	}
	if pw, src := getPassword(true); pw != "" && src == auth.SourceEnv {
		if g.allowEnv {
			fmt.Fprintln(out, "Database password: Found (source=Environment Variable)")
		} else {
			fmt.Fprintln(out, "Database password: Found (source=Environment Variable; disabled by default, use --allow-env)")
		}
		return nil
	}
	fmt.Fprintln(out, "Database password: Not Found (keychain empty, ARCAT_DB_PASSWORD not set)")
	return nil
}
