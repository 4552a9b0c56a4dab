package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nexahealth/nexa/internal/referral"
	"github.com/nexahealth/nexa/internal/tui"
	"github.com/nexahealth/nexa/pkg/domain"
)

func (a *app) loginCmd() *cobra.Command {
	var (
		email    string
		password string
		remember bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Long: `Sign in with email and password. Without --email and --password an
interactive form is shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if email != "" && password != "" {
				if _, err := a.session.Login(ctx, domain.Credentials{Username: email, Password: password}, remember); err != nil {
					return err
				}
			} else {
				submit := func(ctx context.Context, creds domain.Credentials, remember bool) error {
					_, err := a.session.Login(ctx, creds, remember)
					return err
				}
				form, err := tui.RunLoginForm(ctx, cmd.InOrStdin(), out, email, remember, submit)
				if err != nil {
					return err
				}
				if !form.Done() {
					fmt.Fprintln(out, tui.Notice(tui.NoticeInfo, "Login canceled."))
					return nil
				}
			}

			fmt.Fprintln(out, tui.Notice(tui.NoticeSuccess, "Login successful!"))
			a.applyPendingReferral(ctx)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().BoolVar(&remember, "remember", false, "Keep me signed in after this shell exits")
	return cmd
}

// applyPendingReferral redeems a code captured before login. Failures are
// shown but never fail the login.
func (a *app) applyPendingReferral(ctx context.Context) {
	res, err := a.applier().ApplyPending(ctx)
	switch {
	case errors.Is(err, referral.ErrNoPending):
		return
	case err != nil:
		fmt.Fprintln(a.out, tui.ErrorNotice(err))
	default:
		fmt.Fprintln(a.out, referralNotice(res))
	}
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if !a.session.IsAuthenticated() {
				fmt.Fprintln(out, tui.Notice(tui.NoticeInfo, "Already logged out."))
				return nil
			}
			if err := a.session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(out, tui.Notice(tui.NoticeSuccess, "Logged out."))
			return nil
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if !offline && a.session.IsAuthenticated() {
				if _, err := a.session.CheckSession(cmd.Context()); err != nil {
					// The session is kept; the backend could not be reached.
					fmt.Fprintln(out, tui.ErrorNotice(err))
				}
			}
			if !a.session.IsAuthenticated() && a.session.State() != domain.Expired {
				printSignedOutGreeting(out)
				return nil
			}
			fmt.Fprint(out, tui.SessionSummary(a.session, time.Now()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Do not validate the token with the backend")
	return cmd
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ctx := cmd.Context()
			api := a.session.Client()

			var rows [][2]string
			if a.session.Principal().Name == domain.PharmacyPrincipal.Name {
				p, err := api.PharmacyProfile(ctx)
				if err != nil {
					return err
				}
				rows = [][2]string{
					{"pharmacy", p.PharmacyName},
					{"email", p.Email},
					{"phone", p.PhoneNumber},
					{"status", p.Status},
					{"profile", fmt.Sprintf("%d%% complete", p.ProfileCompleteness)},
					{"verifications", fmt.Sprint(p.TotalVerifications)},
				}
			} else {
				u, err := api.Me(ctx)
				if err != nil {
					return err
				}
				verified := "no"
				if u.EmailVerified {
					verified = "yes"
				}
				rows = [][2]string{
					{"name", u.DisplayName()},
					{"email", u.Email},
					{"verified", verified},
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.KeyValue(rows))
			return nil
		},
	}
}

func (a *app) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the access token now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			if _, err := a.session.Refresh(cmd.Context()); err != nil {
				return err
			}
			msg := "Token refreshed."
			if exp, ok := a.session.TokenExpiry(); ok {
				msg = fmt.Sprintf("Token refreshed. Expires in %s.", tui.Countdown(exp, time.Now()))
			}
			fmt.Fprintln(cmd.OutOrStdout(), tui.Notice(tui.NoticeSuccess, msg))
			return nil
		},
	}
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the session alive and show its state until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			p := tea.NewProgram(tui.NewWatchModel(a.session),
				tea.WithContext(cmd.Context()),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			)
			a.session.OnExpired(func(err error) {
				p.Send(tui.ExpiredMsg{Err: err})
			})
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("watch: %w", err)
			}
			return nil
		},
	}
}

func (a *app) registerCmd() *cobra.Command {
	var reg domain.PharmacyRegistration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a pharmacy account",
		Long: `Create a pharmacy account. The backend emails a verification link;
sign in afterwards with: nexa --as pharmacy login`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg.PharmacyName = strings.TrimSpace(reg.PharmacyName)
			reg.Email = strings.TrimSpace(reg.Email)
			reg.PhoneNumber = strings.TrimSpace(reg.PhoneNumber)
			if reg.PharmacyName == "" || reg.Email == "" || reg.PhoneNumber == "" || reg.Password == "" {
				return errors.New("please fill in all fields (--name, --email, --phone, --password)")
			}
			if !strings.Contains(reg.Email, "@") {
				return errors.New("invalid email format")
			}
			if err := a.session.Client().RegisterPharmacy(cmd.Context(), reg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tui.Notice(tui.NoticeSuccess,
				"Registration successful! Check your email for verification instructions."))
			return nil
		},
	}
	cmd.Flags().StringVar(&reg.PharmacyName, "name", "", "Pharmacy name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "Contact email")
	cmd.Flags().StringVar(&reg.PhoneNumber, "phone", "", "Phone number")
	cmd.Flags().StringVar(&reg.Password, "password", "", fmt.Sprintf("Password (at least %d characters)", domain.MinPasswordLen))
	return cmd
}
