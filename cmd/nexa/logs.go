package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) logsCmd() *cobra.Command {
	var (
		level string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := a.log.Entries(level, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "%s %-5s [%s] %s\n", e.Timestamp, e.Level, e.Module, e.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "Only this level (debug, info, warn, error)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum entries")
	return cmd
}
