package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nexahealth/nexa/internal/config"
	"github.com/nexahealth/nexa/internal/tui"
)

// configCmd edits the config file only. Environment overrides are neither
// shown nor written back.
func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings in the config file",
		Long:  "Keys: " + strings.Join(config.Keys, ", "),
	}

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ReadFile(a.cfgPath)
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ReadFile(a.cfgPath)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Save(a.cfgPath); err != nil {
				return err
			}
			v, _ := cfg.Get(args[0])
			fmt.Fprintln(cmd.OutOrStdout(), tui.Notice(tui.NoticeSuccess, fmt.Sprintf("%s = %s", args[0], v)))
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print every setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.ReadFile(a.cfgPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, k := range config.Keys {
				v, _ := cfg.Get(k)
				fmt.Fprintf(out, "%s = %s\n", k, v)
			}
			return nil
		},
	}

	cmd.AddCommand(get, set, show)
	return cmd
}
