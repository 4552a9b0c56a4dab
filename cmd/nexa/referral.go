package main

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/nexahealth/nexa/internal/browser"
	"github.com/nexahealth/nexa/internal/referral"
	"github.com/nexahealth/nexa/internal/tui"
	"github.com/nexahealth/nexa/pkg/domain"
)

func (a *app) applier() *referral.Applier {
	typ := domain.ReferralUser
	if a.session.Principal().Name == domain.PharmacyPrincipal.Name {
		typ = domain.ReferralPharmacy
	}
	return referral.NewApplier(a.durable, a.session.Client(), a.session, typ, a.log)
}

func referralNotice(res *domain.ReferralResult) string {
	if res.Applied {
		return tui.Notice(tui.NoticeSuccess, "Referral applied!")
	}
	msg := res.Message
	if msg == "" {
		msg = "Referral code already used."
	}
	return tui.Notice(tui.NoticeInfo, msg)
}

func (a *app) referralCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "referral",
		Short: "Referral code, progress and sharing",
	}
	cmd.AddCommand(a.referralShowCmd(), a.referralApplyCmd(), a.referralShareCmd(), a.referralLeaderboardCmd())
	return cmd
}

func (a *app) referralShowCmd() *cobra.Command {
	var copyLink bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show your referral code and progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			info, err := a.session.Client().ReferralInfo(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			n := info.Referred()
			fmt.Fprint(out, tui.KeyValue([][2]string{
				{"code", info.ReferralCode},
				{"link", info.ReferralLink},
				{"users", fmt.Sprint(info.UsersReferred)},
				{"pharmacies", fmt.Sprint(info.PharmaciesReferred)},
				{"points", fmt.Sprint(info.Points)},
				{"progress", tui.ProgressBar(n, domain.ReferralGoal, 20) + "  " + referral.Progress(n)},
				{"badges", tui.Badges(domain.Badges(n))},
			}))
			if info.SuperAccess || n >= domain.ReferralGoal {
				fmt.Fprintln(out, tui.Notice(tui.NoticeSuccess, "Early access unlocked."))
			}
			if copyLink {
				if err := clipboard.WriteAll(info.ReferralLink); err != nil {
					fmt.Fprintln(out, tui.Notice(tui.NoticeWarning, "Could not copy to clipboard."))
					return nil
				}
				fmt.Fprintln(out, tui.Notice(tui.NoticeSuccess, "Link copied!"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&copyLink, "copy", false, "Copy the referral link to the clipboard")
	return cmd
}

func (a *app) referralApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <code|link>",
		Short: "Redeem a referral code",
		Long: `Redeem a referral code or a link carrying ?ref=CODE. When signed out the
code is kept and redeemed on the next login.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := referral.CodeFromURL(args[0])
			if err != nil {
				return err
			}
			ap := a.applier()
			if err := ap.Capture(code); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			res, err := ap.ApplyPending(cmd.Context())
			switch {
			case errors.Is(err, referral.ErrNotAuthenticated):
				fmt.Fprintln(out, tui.Notice(tui.NoticeInfo, "Code saved. It will be applied after you log in."))
				return nil
			case err != nil:
				return err
			}
			fmt.Fprintln(out, referralNotice(res))
			return nil
		},
	}
}

func (a *app) referralShareCmd() *cobra.Command {
	var printOnly bool
	cmd := &cobra.Command{
		Use:       "share <channel>",
		Short:     "Share your referral link (whatsapp, twitter, telegram, email)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: referral.Channels,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			info, err := a.session.Client().ReferralInfo(cmd.Context())
			if err != nil {
				return err
			}
			link, err := referral.ShareURL(args[0], info.ReferralLink)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if printOnly {
				fmt.Fprintln(out, link)
				return nil
			}
			if err := browser.Open(link); err != nil {
				fmt.Fprintf(out, "Could not open a browser. Share this link manually:\n  %s\n", link)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "Print the share link instead of opening it")
	return cmd
}

func (a *app) referralLeaderboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Top referrers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := a.session.Client().ReferralLeaderboard(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.Leaderboard(entries))
			return nil
		},
	}
}
