package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-planner/internal/app"
	"github.com/dvloznov/finance-planner/internal/config"
	"github.com/dvloznov/finance-planner/internal/domain"
	"github.com/dvloznov/finance-planner/internal/goals"
	"github.com/dvloznov/finance-planner/internal/insights"
	"github.com/dvloznov/finance-planner/internal/ledger"
	"github.com/dvloznov/finance-planner/internal/logger"
	"github.com/dvloznov/finance-planner/internal/planner"
	"github.com/dvloznov/finance-planner/internal/snapshot"
)

const dateFormat = "2006-01-02"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	commands := map[string]func(*env, []string) error{
		"list-payments":  runListPayments,
		"add-payment":    runAddPayment,
		"add-recurring":  runAddRecurring,
		"mark-paid":      runMarkPaid,
		"unmark-paid":    runUnmarkPaid,
		"delete-payment": runDeletePayment,
		"overdue":        runOverdue,
		"add-tx":         runAddTransaction,
		"insights":       runInsights,
		"repair":         runRepair,
		"export":         runExport,
		"export-csv":     runExportCSV,
		"import":         runImport,
		"backup":         runBackup,
		"restore":        runRestore,
		"reset":          runReset,
		"goals":          runListGoals,
		"add-goal":       runAddGoal,
		"contribute":     runContribute,
		"delete-goal":    runDeleteGoal,
		"goal-tip":       runGoalTip,
	}

	name := os.Args[1]
	switch name {
	case "help", "-h", "--help":
		printUsage()
		return
	}
	run, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	e, err := openEnv(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger")
	}
	defer e.close()

	if err := run(e, os.Args[2:]); err != nil {
		log.Fatal().Err(err).Str("command", name).Msg("Command failed")
	}
	if err := e.persist(); err != nil {
		log.Fatal().Err(err).Msg("Failed to save ledger file")
	}
}

func printUsage() {
	fmt.Println("Finance Planner CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  list-payments   List planned payments")
	fmt.Println("  add-payment     Add a planned payment (recurring ones create a series)")
	fmt.Println("  add-recurring   Add a recurring series of 12 payments")
	fmt.Println("  mark-paid       Mark a payment as paid and record its transaction")
	fmt.Println("  unmark-paid     Mark a payment as unpaid and remove its transaction")
	fmt.Println("  delete-payment  Delete a planned payment")
	fmt.Println("  overdue         List payments due on or before a date")
	fmt.Println("  add-tx          Record an income or expense")
	fmt.Println("  insights        Print the budget dashboard")
	fmt.Println("  repair          Check and fix payment to transaction links")
	fmt.Println("  export          Write a JSON snapshot of the ledger")
	fmt.Println("  export-csv      Write the monthly spending CSV")
	fmt.Println("  import          Replace the ledger with a JSON snapshot")
	fmt.Println("  backup          Upload a JSON snapshot to GCS")
	fmt.Println("  restore         Replace the ledger with a snapshot from GCS")
	fmt.Println("  reset           Delete every transaction, planned payment and goal")
	fmt.Println("  goals           List savings goals with progress")
	fmt.Println("  add-goal        Add a savings goal")
	fmt.Println("  contribute      Add a contribution to a goal")
	fmt.Println("  delete-goal     Delete a savings goal")
	fmt.Println("  goal-tip        Suggest how to reach a goal on time")
	fmt.Println("  help            Show this help message")
	fmt.Println("\nWith LEDGER_BACKEND=memory the ledger is kept in LEDGER_FILE (default ledger.json).")
	fmt.Println("Run 'cli <command> -h' for more information on a command.")
}

// env is what every command works against.
type env struct {
	ctx     context.Context
	cfg     config.Config
	log     zerolog.Logger
	store   ledger.Store
	svc     *planner.Service
	engine  *insights.Engine
	goalSvc *goals.Service

	closeStore func() error
	// ledgerFile is set for the memory backend; the ledger is loaded from it
	// at start and written back after a successful command.
	ledgerFile string
}

func openEnv(ctx context.Context, cfg config.Config, log zerolog.Logger) (*env, error) {
	store, closeStore, err := app.OpenLedger(ctx, cfg)
	if err != nil {
		return nil, err
	}
	e := &env{
		ctx:        ctx,
		cfg:        cfg,
		log:        log,
		store:      store,
		svc:        planner.NewService(store),
		engine:     insights.NewEngine(store, app.NewTipGenerator(ctx, cfg)),
		goalSvc:    goals.NewService(store),
		closeStore: closeStore,
	}

	if cfg.LedgerBackend == config.BackendMemory {
		e.ledgerFile = os.Getenv("LEDGER_FILE")
		if e.ledgerFile == "" {
			e.ledgerFile = "ledger.json"
		}
		if err := e.load(); err != nil {
			closeStore()
			return nil, err
		}
	}
	return e, nil
}

func (e *env) load() error {
	f, err := os.Open(e.ledgerFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	defer f.Close()

	snap, err := snapshot.Decode(f)
	if err != nil {
		return fmt.Errorf("load %s: %w", e.ledgerFile, err)
	}
	if _, err := snapshot.Import(e.ctx, e.store, snap); err != nil {
		return fmt.Errorf("load %s: %w", e.ledgerFile, err)
	}
	return nil
}

func (e *env) persist() error {
	if e.ledgerFile == "" {
		return nil
	}
	snap, err := snapshot.Export(e.ctx, e.store, time.Now(), snapshot.EncodeOptions{})
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, snap, snapshot.EncodeOptions{Indent: true}); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	if err := os.WriteFile(e.ledgerFile, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

func (e *env) close() {
	if err := e.closeStore(); err != nil {
		e.log.Warn().Err(err).Msg("Failed to close ledger")
	}
}

// paymentFlags are shared by add-payment and add-recurring.
type paymentFlags struct {
	title, amount, due, note, interval string
	remind                             string
}

func (p *paymentFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&p.title, "title", "", "Payment title")
	fs.StringVar(&p.amount, "amount", "", "Amount, e.g. 12.50")
	fs.StringVar(&p.due, "due", "", "Due date, YYYY-MM-DD or RFC3339")
	fs.StringVar(&p.note, "note", "", "Optional note")
	fs.StringVar(&p.interval, "interval", "", "Repeat interval: week, month or year")
	fs.StringVar(&p.remind, "remind", "", "Reminders, comma separated: 1d,3d,1w")
}

func (p *paymentFlags) newPayment() (planner.NewPayment, error) {
	amount, err := decimal.NewFromString(p.amount)
	if err != nil {
		return planner.NewPayment{}, domain.NewValidationError("amount", "not a number: "+p.amount)
	}
	due, err := parseTime(p.due)
	if err != nil {
		return planner.NewPayment{}, domain.NewValidationError("due", "expected YYYY-MM-DD or RFC3339: "+p.due)
	}
	in := planner.NewPayment{
		Title:   p.title,
		Amount:  amount,
		DueDate: due,
		Note:    p.note,
	}
	if p.interval != "" {
		in.IsRecurring = true
		if in.RecurringInterval, err = domain.ParseInterval(p.interval); err != nil {
			return planner.NewPayment{}, err
		}
	}
	for _, r := range strings.Split(p.remind, ",") {
		switch strings.TrimSpace(r) {
		case "":
		case "1d":
			in.Reminders.OneDay = true
		case "3d":
			in.Reminders.ThreeDays = true
		case "1w":
			in.Reminders.OneWeek = true
		default:
			return planner.NewPayment{}, domain.NewValidationError("remind", "unknown reminder: "+r)
		}
	}
	return in, nil
}

func runListPayments(e *env, args []string) error {
	fs := flag.NewFlagSet("list-payments", flag.ExitOnError)
	unpaid := fs.Bool("unpaid", false, "Only unpaid payments")
	limit := fs.Int("limit", 0, "Maximum number of payments")
	fs.Parse(args)

	filter := ledger.PaymentFilter{Limit: *limit}
	if *unpaid {
		filter.Paid = ledger.Bool(false)
	}
	payments, err := e.svc.PlannedPayments(e.ctx, filter)
	if err != nil {
		return err
	}
	printPayments(payments)
	return nil
}

func runAddPayment(e *env, args []string) error {
	fs := flag.NewFlagSet("add-payment", flag.ExitOnError)
	var pf paymentFlags
	pf.register(fs)
	fs.Parse(args)

	in, err := pf.newPayment()
	if err != nil {
		return err
	}
	created, err := e.svc.AddPlannedPayment(e.ctx, in)
	if err != nil {
		return err
	}
	fmt.Printf("Created %d planned payment(s).\n", len(created))
	printPayments(created)
	return nil
}

func runAddRecurring(e *env, args []string) error {
	fs := flag.NewFlagSet("add-recurring", flag.ExitOnError)
	var pf paymentFlags
	pf.register(fs)
	fs.Parse(args)

	if pf.interval == "" {
		return domain.NewValidationError("interval", "interval is required")
	}
	in, err := pf.newPayment()
	if err != nil {
		return err
	}
	series, err := e.svc.CreateRecurringSeries(e.ctx, planner.RecurringSpec{
		Title:     in.Title,
		Amount:    in.Amount,
		StartDate: in.DueDate,
		Interval:  in.RecurringInterval,
		Note:      in.Note,
		Reminders: in.Reminders,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Created a series of %d payments.\n", len(series))
	printPayments(series)
	return nil
}

func runMarkPaid(e *env, args []string) error {
	id, err := paymentIDArg("mark-paid", args)
	if err != nil {
		return err
	}
	res, err := e.svc.MarkPaid(e.ctx, id)
	if err != nil {
		return err
	}
	printLinkResult(res)
	return nil
}

func runUnmarkPaid(e *env, args []string) error {
	id, err := paymentIDArg("unmark-paid", args)
	if err != nil {
		return err
	}
	res, err := e.svc.UnmarkPaid(e.ctx, id)
	if err != nil {
		return err
	}
	printLinkResult(res)
	return nil
}

func runDeletePayment(e *env, args []string) error {
	id, err := paymentIDArg("delete-payment", args)
	if err != nil {
		return err
	}
	if err := e.svc.DeletePlannedPayment(e.ctx, id); err != nil {
		return err
	}
	fmt.Printf("Deleted planned payment %s.\n", id)
	return nil
}

func paymentIDArg(name string, args []string) (string, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	id := fs.String("id", "", "Planned payment ID")
	fs.Parse(args)
	if *id == "" {
		return "", domain.NewValidationError("id", "--id is required")
	}
	return *id, nil
}

func runOverdue(e *env, args []string) error {
	fs := flag.NewFlagSet("overdue", flag.ExitOnError)
	asOfFlag := fs.String("as-of", "", "Reference date (default now)")
	unpaid := fs.Bool("unpaid", false, "Only unpaid payments")
	fs.Parse(args)

	asOf, err := asOfArg(*asOfFlag)
	if err != nil {
		return err
	}
	overdue, err := e.svc.OverduePayments(e.ctx, asOf)
	if err != nil {
		return err
	}
	if *unpaid {
		overdue = planner.UnpaidOverdue(overdue, asOf)
	}
	fmt.Printf("%d payment(s) due on or before %s\n", len(overdue), asOf.Format(dateFormat))
	printPayments(overdue)
	return nil
}

func runAddTransaction(e *env, args []string) error {
	fs := flag.NewFlagSet("add-tx", flag.ExitOnError)
	title := fs.String("title", "", "Transaction title")
	amountFlag := fs.String("amount", "", "Amount, e.g. 12.50")
	kind := fs.String("kind", string(domain.KindExpense), "income or expense")
	category := fs.String("category", "", "Category (default "+domain.DefaultCategory+")")
	dateFlag := fs.String("date", "", "Date, YYYY-MM-DD or RFC3339 (default now)")
	note := fs.String("note", "", "Optional note")
	fs.Parse(args)

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		return domain.NewValidationError("amount", "not a number: "+*amountFlag)
	}
	date, err := asOfArg(*dateFlag)
	if err != nil {
		return err
	}
	tx, err := e.svc.RecordTransaction(e.ctx, domain.Transaction{
		Title:    *title,
		Amount:   amount,
		Kind:     domain.Kind(*kind),
		Category: *category,
		Date:     date,
		Note:     *note,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Recorded %s %s (%s) as %s.\n", tx.Kind, tx.Amount.StringFixed(2), tx.Category, tx.ID)
	return nil
}

func runInsights(e *env, args []string) error {
	fs := flag.NewFlagSet("insights", flag.ExitOnError)
	asOfFlag := fs.String("as-of", "", "Reference date (default now)")
	asJSON := fs.Bool("json", false, "Print the dashboard as JSON")
	fs.Parse(args)

	asOf, err := asOfArg(*asOfFlag)
	if err != nil {
		return err
	}
	d, err := e.engine.Refresh(e.ctx, asOf)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}

	fmt.Printf("Balance:  %s (income %s, expenses %s)\n",
		d.Balance.StringFixed(2), d.TotalIncome.StringFixed(2), d.TotalExpense.StringFixed(2))

	fmt.Printf("\n=== %s ===\n", asOf.Format("January 2006"))
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tTHIS MONTH\tLAST MONTH\tLIMIT\tTREND")
	for _, in := range d.Insights {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", in.Category,
			in.CurrentSpending.StringFixed(2), in.PreviousSpending.StringFixed(2),
			in.SuggestedLimit.StringFixed(2), in.Trend)
	}
	tw.Flush()

	if len(d.UnpaidOverdue) > 0 {
		fmt.Printf("\n%d unpaid payment(s) overdue.\n", len(d.UnpaidOverdue))
	}
	if d.Tip != "" {
		fmt.Printf("\nTip: %s\n", d.Tip)
	}
	return nil
}

func runRepair(e *env, args []string) error {
	fs := flag.NewFlagSet("repair", flag.ExitOnError)
	modeFlag := fs.String("mode", string(planner.RepairClearStale), "clear or recreate")
	dryRun := fs.Bool("dry-run", false, "Report without writing")
	fs.Parse(args)

	mode, err := planner.ParseRepairMode(*modeFlag)
	if err != nil {
		return err
	}
	report, err := e.svc.Repair(e.ctx, planner.RepairOptions{Mode: mode, DryRun: *dryRun})
	if err != nil {
		return err
	}

	fmt.Printf("Scanned %d, healthy %d, migrated %d, cleared %d, recreated %d, orphans %d\n",
		report.Scanned, report.Healthy, report.Migrated, report.Cleared, report.Recreated, report.Orphans)
	for _, issue := range report.Issues {
		fmt.Printf("  %s\n", issue)
	}
	if report.DryRun {
		fmt.Println("Dry run, nothing was written.")
	}
	return nil
}

func runExport(e *env, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "", "Output file (default stdout)")
	legacy := fs.Bool("legacy-markers", false, "Also write payment links into notes for older clients")
	fs.Parse(args)

	opts := snapshot.EncodeOptions{LegacyMarkers: *legacy, Indent: true}
	snap, err := snapshot.Export(e.ctx, e.store, time.Now(), opts)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, snap, opts); err != nil {
		return err
	}
	return writeOutput(*out, buf.Bytes())
}

func runExportCSV(e *env, args []string) error {
	fs := flag.NewFlagSet("export-csv", flag.ExitOnError)
	out := fs.String("out", "", "Output file (default stdout)")
	fs.Parse(args)

	txs, err := e.store.FetchTransactions(e.ctx, ledger.TransactionFilter{})
	if err != nil {
		return err
	}
	payments, err := e.store.FetchPlannedPayments(e.ctx, ledger.PaymentFilter{})
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := snapshot.WriteSpendingCSV(&buf, txs, payments); err != nil {
		return err
	}
	return writeOutput(*out, buf.Bytes())
}

func runImport(e *env, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	in := fs.String("file", "", "Snapshot file to import")
	fs.Parse(args)

	if *in == "" {
		return domain.NewValidationError("file", "--file is required")
	}
	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	defer f.Close()

	snap, err := snapshot.Decode(f)
	if err != nil {
		return err
	}
	return importSnapshot(e, snap)
}

func runBackup(e *env, args []string) error {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	bucket := fs.String("bucket", e.cfg.GCSBucket, "GCS bucket (or set GCS_BUCKET)")
	prefix := fs.String("prefix", "backups", "Object prefix")
	fs.Parse(args)

	if *bucket == "" {
		return domain.NewValidationError("bucket", "--bucket or GCS_BUCKET is required")
	}
	objects, err := snapshot.NewGCSStore(e.ctx)
	if err != nil {
		return err
	}
	defer objects.Close()

	snap, err := snapshot.Export(e.ctx, e.store, time.Now(), snapshot.EncodeOptions{})
	if err != nil {
		return err
	}
	uri, err := snapshot.Backup(e.ctx, objects, *bucket, *prefix, snap)
	if err != nil {
		return err
	}
	fmt.Printf("Backed up %d transactions and %d planned payments to %s\n",
		len(snap.Transactions), len(snap.PlannedPayments), uri)
	return nil
}

func runRestore(e *env, args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	uri := fs.String("gcs-uri", "", "gs:// URI of the backup")
	fs.Parse(args)

	if *uri == "" {
		return domain.NewValidationError("gcs-uri", "--gcs-uri is required")
	}
	objects, err := snapshot.NewGCSStore(e.ctx)
	if err != nil {
		return err
	}
	defer objects.Close()

	snap, err := snapshot.FetchBackup(e.ctx, objects, *uri)
	if err != nil {
		return err
	}
	return importSnapshot(e, snap)
}

func runReset(e *env, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	yes := fs.Bool("yes", false, "Confirm deleting the whole ledger")
	fs.Parse(args)

	if !*yes {
		return domain.NewValidationError("yes", "reset deletes everything; pass --yes to confirm")
	}
	if err := snapshot.Reset(e.ctx, e.store); err != nil {
		return err
	}
	fmt.Println("Ledger cleared.")
	return nil
}

func importSnapshot(e *env, snap snapshot.Snapshot) error {
	report, err := snapshot.Import(e.ctx, e.store, snap)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d transactions and %d planned payments.\n", report.Transactions, report.PlannedPayments)
	if report.Unlinked > 0 {
		fmt.Printf("%d paid payment(s) had no transaction and were imported as unpaid.\n", report.Unlinked)
	}
	return nil
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(dateFormat, s, time.Local)
}

// asOfArg parses an optional date flag, defaulting to now.
func asOfArg(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	t, err := parseTime(s)
	if err != nil {
		return time.Time{}, domain.NewValidationError("date", "expected YYYY-MM-DD or RFC3339: "+s)
	}
	return t, nil
}

func printPayments(payments []domain.PlannedPayment) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDUE\tTITLE\tAMOUNT\tPAID\tREPEATS")
	for _, p := range payments {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
			p.ID, p.DueDate.Format(dateFormat), p.Title, p.Amount.StringFixed(2), p.IsPaid, p.RecurringInterval)
	}
	tw.Flush()
}

func printLinkResult(res planner.LinkResult) {
	switch {
	case !res.Changed:
		fmt.Printf("Payment %s already in that state.\n", res.Payment.ID)
	case res.Payment.IsPaid:
		fmt.Printf("Payment %s paid by transaction %s.\n", res.Payment.ID, res.Payment.LinkedTransactionID)
	default:
		fmt.Printf("Payment %s is unpaid again.\n", res.Payment.ID)
	}
	if res.Issue != nil {
		fmt.Printf("Note: %s %s\n", res.Issue.Kind, res.Issue.TransactionID)
	}
}
