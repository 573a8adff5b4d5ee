package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fieldservice/backend/internal/application/backup"
	"github.com/fieldservice/backend/internal/domain/finance"
	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/domain/shared/valueobject"
	"github.com/google/subcommands"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func commands(out io.Writer, in io.Reader) []subcommands.Command {
	e := &env{out: out, in: in}
	return []subcommands.Command{
		&summaryCmd{env: e},
		&forecastCmd{env: e},
		&overdueCmd{env: e},
		&verifyStockCmd{env: e},
		&exportCmd{env: e},
		&importCmd{env: e},
		&planCmd{env: e},
	}
}

const dateLayout = "2006-01-02"

func parseDate(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return shared.DateOf(fallback), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

type summaryCmd struct {
	*env
	recompute bool
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "print the financial summary" }
func (*summaryCmd) Usage() string {
	return `fsctl summary [-recompute]

  Prints the stored financial summary, or recomputes and stores it first.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.recompute, "recompute", false, "Recompute the summary from the ledger before printing")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, closeFn, err := c.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	ctx, inbox := withInbox(ctx)
	var summary *finance.FinancialSummary
	if c.recompute {
		summary, err = app.Summary.Summarize(ctx)
	} else {
		summary, err = app.Summary.Current(ctx)
	}
	c.printNotifications(inbox)
	if err != nil {
		return fail(err)
	}
	if err := c.printJSON(summary); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type forecastCmd struct {
	*env
	months int
}

func (*forecastCmd) Name() string     { return "forecast" }
func (*forecastCmd) Synopsis() string { return "project monthly cash flow" }
func (*forecastCmd) Usage() string {
	return `fsctl forecast [-months <n>]

  Projects income and expenses month by month from pending installments,
  unpaid expenses and recent revenue.
`
}

func (c *forecastCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.months, "months", 6, "Number of months to project")
}

func (c *forecastCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.months < 1 {
		return usageError("-months must be positive")
	}
	app, closeFn, err := c.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	forecast, err := app.CashFlow.Forecast(ctx, c.months)
	if err != nil {
		return fail(err)
	}
	if err := c.printJSON(forecast); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type overdueCmd struct {
	*env
	asOf string
}

func (*overdueCmd) Name() string     { return "overdue" }
func (*overdueCmd) Synopsis() string { return "list pending installments past due" }
func (*overdueCmd) Usage() string {
	return `fsctl overdue [-as-of <YYYY-MM-DD>]
`
}

func (c *overdueCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asOf, "as-of", "", "Reference date (defaults to today)")
}

func (c *overdueCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	asOf, err := parseDate(c.asOf, time.Now())
	if err != nil {
		return usageError("%v", err)
	}
	app, closeFn, err := c.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	overdue, err := app.Installments.ListOverdue(ctx, asOf)
	if err != nil {
		return fail(err)
	}
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tPARCEL\tDUE\tAMOUNT")
	for _, inst := range overdue {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", inst.ServiceID, inst.ParcelNumber, inst.DueDate.Format(dateLayout), inst.Amount)
	}
	if err := w.Flush(); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type verifyStockCmd struct {
	*env
	material string
}

func (*verifyStockCmd) Name() string     { return "verify-stock" }
func (*verifyStockCmd) Synopsis() string { return "replay the stock ledger of a material" }
func (*verifyStockCmd) Usage() string {
	return `fsctl verify-stock -material <id>

  Replays the movements of a material and compares the result with its
  recorded stock. Exits non-zero when they disagree.
`
}

func (c *verifyStockCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.material, "material", "", "Material ID")
}

func (c *verifyStockCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, err := uuid.Parse(c.material)
	if err != nil {
		return usageError("-material must be a material ID")
	}
	app, closeFn, err := c.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	result, err := app.Stock.Verify(ctx, id)
	if err != nil {
		return fail(err)
	}
	if err := c.printJSON(result); err != nil {
		return fail(err)
	}
	if !result.Consistent {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type exportCmd struct {
	*env
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write a backup bundle of every collection" }
func (*exportCmd) Usage() string {
	return `fsctl export [-out <file>]

  Writes the backup bundle to the file, or to stdout without -out.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "out", "", "Output file")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, closeFn, err := c.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	bundle, err := app.Backups.Export(ctx)
	if err != nil {
		return fail(err)
	}
	if c.output == "" {
		if err := c.printJSON(bundle); err != nil {
			return fail(err)
		}
		return subcommands.ExitSuccess
	}
	raw, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fail(err)
	}
	if err := os.WriteFile(c.output, raw, 0o600); err != nil {
		return fail(err)
	}
	fmt.Fprintf(c.out, "Exported %d collections to %s (checksum %s)\n", len(bundle.Data), c.output, bundle.Checksum)
	return subcommands.ExitSuccess
}

type importCmd struct {
	*env
	input string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "replace the full state with a backup bundle" }
func (*importCmd) Usage() string {
	return `fsctl import -in <file>

  Validates the bundle and replaces every collection with its content.
  Nothing is written when the bundle is rejected.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.input, "in", "", "Bundle file")
}

func (c *importCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.input == "" {
		return usageError("-in is required")
	}
	raw, err := os.ReadFile(c.input)
	if err != nil {
		return fail(err)
	}
	var bundle backup.Bundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return fail(fmt.Errorf("read bundle: %w", err))
	}

	app, closeFn, err := c.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	ctx, inbox := withInbox(ctx)
	err = app.Backups.Import(ctx, &bundle)
	c.printNotifications(inbox)
	if err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

// planCmd previews a plan offline; it needs no store
type planCmd struct {
	*env
	total string
	count int
	first string
}

func (*planCmd) Name() string     { return "plan" }
func (*planCmd) Synopsis() string { return "preview an installment plan" }
func (*planCmd) Usage() string {
	return `fsctl plan -total <amount> -count <n> [-first <YYYY-MM-DD>]

  Splits the total into monthly installments. The first installment
  absorbs the rounding remainder.
`
}

func (c *planCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.total, "total", "", "Plan total")
	f.IntVar(&c.count, "count", 1, "Number of installments")
	f.StringVar(&c.first, "first", "", "First due date (defaults to today)")
}

func (c *planCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	total, err := decimal.NewFromString(c.total)
	if err != nil {
		return usageError("-total must be a decimal amount")
	}
	first, err := parseDate(c.first, time.Now())
	if err != nil {
		return usageError("%v", err)
	}
	amount := valueobject.NewMoney(total)
	plan, err := finance.GeneratePlan(amount, c.count, first)
	if err != nil {
		return fail(err)
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARCEL\tDUE\tAMOUNT")
	for _, p := range plan {
		fmt.Fprintf(w, "%d\t%s\t%s\n", p.ParcelNumber, p.DueDate.Format(dateLayout), p.Amount)
	}
	if err := w.Flush(); err != nil {
		return fail(err)
	}
	for _, problem := range finance.ValidatePlan(plan, amount).Errors {
		fmt.Fprintf(c.out, "warning: %s\n", problem)
	}
	return subcommands.ExitSuccess
}
