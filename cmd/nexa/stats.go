package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nexahealth/nexa/internal/tui"
	"github.com/nexahealth/nexa/pkg/domain"
)

func (a *app) statsCmd() *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Platform counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !domain.ValidPeriod(period) {
				return fmt.Errorf("invalid period %q (valid: %s)", period, strings.Join(domain.ValidPeriods, ", "))
			}
			names := []string{domain.StatVerifications, domain.StatReports, domain.StatReferredPharmacies}
			labels := []string{"verifications", "reports", "pharmacies"}
			results := make([]*domain.StatCount, len(names))

			api := a.session.Client()
			g, ctx := errgroup.WithContext(cmd.Context())
			for i, name := range names {
				g.Go(func() error {
					s, err := api.Stat(ctx, name, period)
					if err != nil {
						return err
					}
					results[i] = s
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			rows := make([][2]string, len(names))
			for i, s := range results {
				rows[i] = [2]string{labels[i], fmt.Sprintf("%d (today %d)", s.Total, s.Today)}
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.KeyValue(rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&period, "period", "week", "Window: "+strings.Join(domain.ValidPeriods, ", "))
	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	var req domain.DrugVerificationRequest
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a drug against the NAFDAC register",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.Empty() {
				return fmt.Errorf("give a product name (--name) or NAFDAC number (--nafdac)")
			}
			res, err := a.session.Client().VerifyDrug(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			kind := tui.NoticeWarning
			if res.Verified() {
				kind = tui.NoticeSuccess
			}
			msg := res.Message
			if msg == "" {
				msg = strings.ToUpper(res.Status)
			}
			fmt.Fprintln(out, tui.Notice(kind, msg))

			rows := [][2]string{{"status", res.Status}}
			for _, r := range [][2]string{
				{"product", res.ProductName},
				{"nafdac no", res.NafdacRegNo},
				{"manufacturer", res.Manufacturer},
				{"dosage form", res.DosageForm},
				{"strength", res.Strength},
				{"confidence", res.Confidence},
			} {
				if r[1] != "" {
					rows = append(rows, r)
				}
			}
			rows = append(rows,
				[2]string{"match score", fmt.Sprint(res.MatchScore)},
				[2]string{"reports", fmt.Sprint(res.ReportCount)},
			)
			fmt.Fprint(out, tui.KeyValue(rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&req.ProductName, "name", "", "Product name")
	cmd.Flags().StringVar(&req.NafdacRegNo, "nafdac", "", "NAFDAC registration number")
	cmd.Flags().StringVar(&req.Manufacturer, "manufacturer", "", "Manufacturer")
	cmd.Flags().StringVar(&req.GenericName, "generic", "", "Generic name")
	cmd.Flags().StringVar(&req.DosageForm, "form", "", "Dosage form")
	return cmd
}
