package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/azzil/mensalidades/be/internal/app"
	"github.com/azzil/mensalidades/be/internal/dues"
	"github.com/azzil/mensalidades/be/pkg/common/brformat"
	"github.com/azzil/mensalidades/be/pkg/common/confirmlink"
	"github.com/azzil/mensalidades/be/pkg/common/keys"
	"github.com/azzil/mensalidades/be/pkg/common/period"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
	"github.com/azzil/mensalidades/be/pkg/repositories/payments"
)

func periodList(ob dues.Obligations) string {
	parts := make([]string, len(ob.Items))
	for i, it := range ob.Items {
		parts[i] = it.Period.Display()
	}
	return strings.Join(parts, ", ")
}

func printObligations(w io.Writer, m members.Member, ob dues.Obligations) {
	fmt.Fprintf(w, "%s (%s): %s\n", m.Name, m.ID, ob.Standing)
	for _, it := range ob.Items {
		fmt.Fprintf(w, "  %s  R$ %s\n", it.Period.Display(), brformat.FormatAmount(it.AmountDue))
	}
	fmt.Fprintf(w, "  total: R$ %s\n", brformat.FormatAmount(ob.Total))
}

func obligationsCommand() *cobra.Command {
	var owing bool
	var query string
	cmd := &cobra.Command{
		Use:   "obligations [member-id]",
		Short: "List open periods for one member or the whole directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					id := members.MemberID(args[0])
					m, err := a.Ledger.Member(id)
					if err != nil {
						return err
					}
					ob, err := a.Ledger.Obligations(id)
					if err != nil {
						return err
					}
					printObligations(out, m, ob)
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tSTANDING\tOPEN\tTOTAL")
				for _, st := range a.Ledger.Overview(dues.OverviewFilter{OnlyOwing: owing, Query: query}) {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\tR$ %s\n",
						st.Member.ID, st.Member.Name, st.Obligations.Standing,
						periodList(st.Obligations), brformat.FormatAmount(st.Obligations.Total))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&owing, "owing", false, "only members with open periods")
	cmd.Flags().StringVarP(&query, "query", "q", "", "filter by name or tax id")
	return cmd
}

func summaryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print treasury totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				s := a.Ledger.Summary()
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "as of\t%s\n", brformat.FormatDate(s.AsOf))
				fmt.Fprintf(tw, "receipts\tR$ %s\n", brformat.FormatAmount(s.Receipts))
				fmt.Fprintf(tw, "open amount\tR$ %s\n", brformat.FormatAmount(s.OpenAmount))
				fmt.Fprintf(tw, "expenses\tR$ %s\n", brformat.FormatAmount(s.Expenses))
				fmt.Fprintf(tw, "balance\tR$ %s\n", brformat.FormatAmount(s.Balance))
				fmt.Fprintf(tw, "members\t%d (%d active)\n", s.Members, s.ActiveMembers)
				fmt.Fprintf(tw, "owing\t%d (%d open periods, R$ %s)\n", s.MembersOwing, s.OpenPeriods, brformat.FormatAmount(s.OwedTotal))
				fmt.Fprintf(tw, "good standing\t%d\n", s.GoodStanding)
				statuses := make([]payments.Status, 0, len(s.StatusCounts))
				for st := range s.StatusCounts {
					statuses = append(statuses, st)
				}
				sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
				for _, st := range statuses {
					fmt.Fprintf(tw, "%s\t%d\n", st, s.StatusCounts[st])
				}
				return tw.Flush()
			})
		},
	}
}

func reportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the full text report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				_, err := io.WriteString(cmd.OutOrStdout(), a.Ledger.TextReport())
				return err
			})
		},
	}
}

func editCommand() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "edit <member-id> <period> <field> <value>",
		Short: "Change one field of a payment record",
		Long:  "Fields: period, paymentDate, amountDue, status, notes. Legacy names are accepted.",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			per, err := period.Parse(args[1])
			if err != nil {
				return err
			}
			field, ok := dues.ParseEditField(args[2])
			if !ok {
				return fmt.Errorf("%w: %q", dues.ErrUnknownField, args[2])
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Ledger.ApplyFieldEdit(ctx, members.MemberID(args[0]), per, dues.Edit{Field: field, Value: args[3], Date: date})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				p := res.Payment
				fmt.Fprintf(out, "%s %s: %s R$ %s %s\n", p.MemberID, p.Period.Display(), p.Status, brformat.FormatAmount(p.AmountDue), brformat.FormatDate(p.PaymentDate))
				if !res.Changed {
					fmt.Fprintln(out, "no change")
				}
				for _, w := range res.Warnings {
					fmt.Fprintf(out, "warning: %s\n", w)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "payment date when setting status to PAID")
	return cmd
}

func issuerFor(a *app.App) (*confirmlink.Issuer, error) {
	cfg := a.Config
	if cfg.ConfirmKeyB64 == "" {
		return nil, errors.New("CONFIRM_LINK_KEY_B64 must be set to issue links the server will accept")
	}
	if err := keys.Init(cfg.ConfirmKeyB64, cfg.ConfirmKeyID); err != nil {
		return nil, err
	}
	return confirmlink.NewIssuer(keys.SigningKey(), "mensalidades", cfg.PublicBaseURL, cfg.ConfirmTTL), nil
}

func linkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "link <member-id>",
		Short: "Issue a confirmation link for a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				m, err := a.Ledger.Member(members.MemberID(args[0]))
				if err != nil {
					return err
				}
				issuer, err := issuerFor(a)
				if err != nil {
					return err
				}
				tok, claims, err := issuer.Issue(m)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, issuer.Link(tok))
				fmt.Fprintln(out, issuer.InvoicesLink(tok, "abertos"))
				fmt.Fprintf(out, "expires %s\n", claims.ExpiresAt.Format("02/01/2006"))
				return nil
			})
		},
	}
}

func chargeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "charge <member-id>",
		Short: "Print the reminder message for a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				m, err := a.Ledger.Member(members.MemberID(args[0]))
				if err != nil {
					return err
				}
				var links dues.ReminderLinks
				if issuer, err := issuerFor(a); err == nil {
					if tok, _, err := issuer.Issue(m); err == nil {
						links = dues.ReminderLinks{
							Confirm:      issuer.Link(tok),
							OpenInvoices: issuer.InvoicesLink(tok, "abertos"),
							PaidInvoices: issuer.InvoicesLink(tok, "pagos"),
						}
					}
				}
				r, err := a.Ledger.Reminder(ctx, m.ID, links, programName)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, r.Message)
				if r.WhatsAppURL != "" {
					fmt.Fprintf(out, "\n%s\n", r.WhatsAppURL)
				}
				return nil
			})
		},
	}
}
