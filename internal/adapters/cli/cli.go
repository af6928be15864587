package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cashflow/internal/app"
	"cashflow/internal/core"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var version = "1.0.0"

// operator is the identity of back-office commands run from a shell. It acts as
// superadmin so every tenant can be addressed by code.
var operator = core.Principal{Role: core.RoleSuperAdmin}

// Deps are the collaborators the command tree needs. Migrate runs the SQL
// migrations and returns the files applied.
type Deps struct {
	Service app.ApplicationService
	Migrate func(ctx context.Context) ([]string, error)
	Out     io.Writer
}

// NewRootCommand builds the back-office command tree.
func NewRootCommand(d Deps) *cobra.Command {
	if d.Out == nil {
		d.Out = os.Stdout
	}

	root := &cobra.Command{
		Use:   "cashflow",
		Short: "Cash-flow back office administration",
		Long: `Administrative commands for the cash-flow back office: schema migrations,
tenant and user provisioning, spreadsheet exports and register reports.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(d.Out)

	root.AddCommand(
		migrateCommand(d),
		companyCommand(d),
		userCommand(d),
		exportCommand(d),
		sessionCommand(d),
	)
	return root
}

// Execute runs the tree with args and returns the first error.
func Execute(ctx context.Context, d Deps, args []string) error {
	root := NewRootCommand(d)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func migrateCommand(d Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if d.Migrate == nil {
				return fmt.Errorf("migrate: no database configured")
			}
			applied, err := d.Migrate(cmd.Context())
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if len(applied) == 0 {
				fmt.Fprintln(d.Out, "Schema is up to date.")
				return nil
			}
			for _, f := range applied {
				fmt.Fprintf(d.Out, "applied %s\n", f)
			}
			return nil
		},
	}
}

func companyCommand(d Deps) *cobra.Command {
	cmd := &cobra.Command{Use: "company", Short: "Manage tenants"}

	var in core.CompanyInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a company",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := d.Service.CreateCompany(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(d.Out, "Company %s created (id %d).\n", c.CompanyCode, c.ID)
			return nil
		},
	}
	create.Flags().StringVar(&in.CompanyCode, "code", "", "company code (required)")
	create.Flags().StringVar(&in.Name, "name", "", "legal or trade name (required)")
	create.Flags().StringVar(&in.Document, "document", "", "CNPJ")
	create.Flags().StringVar(&in.BaseCurrency, "currency", "", "ISO currency code")
	_ = create.MarkFlagRequired("code")
	_ = create.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List companies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			companies, err := d.Service.ListCompanies(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(d.Out, "%-6s %-20s %-40s %s\n", "ID", "CODE", "NAME", "ACTIVE")
			for _, c := range companies {
				fmt.Fprintf(d.Out, "%-6d %-20s %-40s %t\n", c.ID, c.CompanyCode, c.Name, c.IsActive)
			}
			return nil
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}

func userCommand(d Deps) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users"}

	var (
		companyCode string
		role        string
		in          core.UserInput
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user in a company",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := d.Service.ResolveScope(cmd.Context(), operator, companyCode)
			if err != nil {
				return err
			}
			in.Role = core.Role(role)
			u, err := d.Service.CreateUser(cmd.Context(), sc, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(d.Out, "User %s created in %s with role %s.\n", u.Username, sc.CompanyCode, u.Role)
			return nil
		},
	}
	create.Flags().StringVar(&companyCode, "company", "", "company code (required)")
	create.Flags().StringVar(&in.Username, "username", "", "login name (required)")
	create.Flags().StringVar(&in.Email, "email", "", "email address (required)")
	create.Flags().StringVar(&in.Password, "password", "", "initial password (required)")
	create.Flags().StringVar(&in.Phone, "phone", "", "phone number")
	create.Flags().StringVar(&role, "role", string(core.RoleAdmin), "superadmin, admin, manager, operator or viewer")
	for _, f := range []string{"company", "username", "email", "password"} {
		_ = create.MarkFlagRequired(f)
	}

	cmd.AddCommand(create)
	return cmd
}

// exportFlags are shared by every export subcommand.
type exportFlags struct {
	company string
	out     string
	from    string
	to      string
}

func (f *exportFlags) bind(cmd *cobra.Command, withRange bool) {
	cmd.Flags().StringVar(&f.company, "company", "", "company code (required)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output .xlsx file (required)")
	if withRange {
		cmd.Flags().StringVar(&f.from, "from", "", "first date, YYYY-MM-DD")
		cmd.Flags().StringVar(&f.to, "to", "", "last date, YYYY-MM-DD")
	}
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("out")
}

func (f *exportFlags) rng() app.DateRange {
	return app.DateRange{From: f.from, To: f.to}
}

// run resolves the tenant, renders into the output file and removes it on failure.
func (f *exportFlags) run(ctx context.Context, d Deps, render func(app.Scope, io.Writer) error) error {
	sc, err := d.Service.ResolveScope(ctx, operator, f.company)
	if err != nil {
		return err
	}
	file, err := os.Create(f.out)
	if err != nil {
		return fmt.Errorf("create %s: %w", f.out, err)
	}
	if err := render(sc, file); err != nil {
		file.Close()
		os.Remove(f.out)
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("write %s: %w", f.out, err)
	}
	fmt.Fprintf(d.Out, "Wrote %s\n", f.out)
	return nil
}

func exportCommand(d Deps) *cobra.Command {
	cmd := &cobra.Command{Use: "export", Short: "Export reports as XLSX workbooks"}

	var cf exportFlags
	var cfType, cfCategory string
	cashflow := &cobra.Command{
		Use:   "cashflow",
		Short: "Export the cash-flow ledger",
		Example: `  cashflow export cashflow --company ACME --from 2024-03-01 --to 2024-03-31 -o march.xlsx
  cashflow export cashflow --company ACME --type exit -o exits.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := app.CashFlowQuery{DateRange: cf.rng(), Type: cfType, Category: cfCategory}
			return cf.run(cmd.Context(), d, func(sc app.Scope, w io.Writer) error {
				return d.Service.ExportCashFlow(cmd.Context(), sc, q, w)
			})
		},
	}
	cf.bind(cashflow, true)
	cashflow.Flags().StringVar(&cfType, "type", "", "entry or exit")
	cashflow.Flags().StringVar(&cfCategory, "category", "", "category filter")

	var pf exportFlags
	var pStatus string
	var pOverdue bool
	payables := &cobra.Command{
		Use:   "payables",
		Short: "Export payables; the range applies to due dates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := app.PayableQuery{DateRange: pf.rng(), Status: pStatus, OverdueOnly: pOverdue}
			return pf.run(cmd.Context(), d, func(sc app.Scope, w io.Writer) error {
				return d.Service.ExportPayables(cmd.Context(), sc, q, w)
			})
		},
	}
	pf.bind(payables, true)
	payables.Flags().StringVar(&pStatus, "status", "", "pending, partially_paid or paid")
	payables.Flags().BoolVar(&pOverdue, "overdue", false, "only unpaid payables past due")

	var bf exportFlags
	var year, month int
	budget := &cobra.Command{
		Use:   "budget",
		Short: "Export budget versus actual for a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return bf.run(cmd.Context(), d, func(sc app.Scope, w io.Writer) error {
				return d.Service.ExportBudgetVsActual(cmd.Context(), sc, year, month, w)
			})
		},
	}
	bf.bind(budget, false)
	budget.Flags().IntVar(&year, "year", 0, "budget year (required)")
	budget.Flags().IntVar(&month, "month", 0, "budget month, 1-12 (required)")
	_ = budget.MarkFlagRequired("year")
	_ = budget.MarkFlagRequired("month")

	var sf exportFlags
	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "Export cash register sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sf.run(cmd.Context(), d, func(sc app.Scope, w io.Writer) error {
				return d.Service.ExportSessions(cmd.Context(), sc, sf.rng(), w)
			})
		},
	}
	sf.bind(sessions, true)

	cmd.AddCommand(cashflow, payables, budget, sessions)
	return cmd
}

func sessionCommand(d Deps) *cobra.Command {
	cmd := &cobra.Command{Use: "session", Short: "Cash register sessions"}

	var companyCode, from, to string
	report := &cobra.Command{
		Use:   "report",
		Short: "Print opening, expected and counted amounts per session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := d.Service.ResolveScope(cmd.Context(), operator, companyCode)
			if err != nil {
				return err
			}
			sessions, err := d.Service.ListSessions(cmd.Context(), sc, app.DateRange{From: from, To: to})
			if err != nil {
				return err
			}
			printSessions(d.Out, sc.CompanyCode, sessions)
			return nil
		},
	}
	report.Flags().StringVar(&companyCode, "company", "", "company code (required)")
	report.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	report.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD")
	_ = report.MarkFlagRequired("company")

	cmd.AddCommand(report)
	return cmd
}

func printSessions(w io.Writer, companyCode string, sessions []core.CashSession) {
	fmt.Fprintln(w, strings.Repeat("=", 84))
	fmt.Fprintf(w, "  CASH SESSIONS  %s\n", companyCode)
	fmt.Fprintln(w, strings.Repeat("=", 84))
	fmt.Fprintf(w, "  %-10s %-7s %12s %12s %12s %12s %12s\n",
		"DATE", "STATUS", "OPENING", "ENTRIES", "EXITS", "COUNTED", "DIFF")
	fmt.Fprintln(w, strings.Repeat("-", 84))
	for _, s := range sessions {
		fmt.Fprintf(w, "  %-10s %-7s %12s %12s %12s %12s %12s\n",
			s.SessionDate, s.Status, s.OpeningAmount.StringFixed(2),
			nullFixed(s.TotalEntries), nullFixed(s.TotalExits),
			nullFixed(s.ClosingAmount), nullFixed(s.Difference))
	}
	fmt.Fprintln(w, strings.Repeat("=", 84))
}

func nullFixed(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.StringFixed(2)
}
