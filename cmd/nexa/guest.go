package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nexahealth/nexa/internal/guest"
	"github.com/nexahealth/nexa/internal/tui"
	"github.com/nexahealth/nexa/pkg/client"
	"github.com/nexahealth/nexa/pkg/domain"
)

func (a *app) guestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guest",
		Short: "Try NexaHealth without an account",
	}
	cmd.AddCommand(a.guestStartCmd(), a.guestShowCmd(), a.guestEndCmd())
	return cmd
}

func (a *app) tracker() *guest.Tracker {
	return guest.NewTracker(a.session.Client(), a.durable, a.cfg.Guest.Limit, a.log)
}

func printGuest(cmd *cobra.Command, t *guest.Tracker, g *domain.GuestSession) {
	rows := [][2]string{
		{"session", g.ID.String()},
		{"expires", g.ExpiresAt.Local().Format(time.DateTime)},
		{"requests", fmt.Sprint(g.RequestCount)},
	}
	if t != nil {
		rows = append(rows, [2]string{"assessments left", fmt.Sprint(t.Remaining(domain.FeatureRiskAssessment))})
	} else {
		rows = append(rows, [2]string{"assessments used", fmt.Sprint(g.Usage(domain.FeatureRiskAssessment))})
	}
	fmt.Fprint(cmd.OutOrStdout(), tui.KeyValue(rows))
}

func (a *app) guestStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start or resume a guest session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := a.tracker()
			g, err := t.Ensure(cmd.Context())
			if err != nil {
				return err
			}
			printGuest(cmd, t, g)
			if t.LimitReached(domain.FeatureRiskAssessment) {
				fmt.Fprintln(cmd.OutOrStdout(), tui.Notice(tui.NoticeWarning, "Guest limit reached. Sign up to keep going."))
			}
			return nil
		},
	}
}

func (a *app) guestShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current guest session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := a.session.Client().GuestSession(cmd.Context())
			if client.IsStatus(err, http.StatusNotFound) || client.IsStatus(err, http.StatusGone) {
				fmt.Fprintln(cmd.OutOrStdout(), tui.Notice(tui.NoticeInfo, "No guest session. Start one with: nexa guest start"))
				return nil
			}
			if err != nil {
				return err
			}
			printGuest(cmd, nil, g)
			return nil
		},
	}
}

func (a *app) guestEndCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "end",
		Short: "End the guest session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.tracker().End(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tui.Notice(tui.NoticeSuccess, "Guest session ended."))
			return nil
		},
	}
}
