package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/smart-finance-tracker/internal/analytics"
	"github.com/dvloznov/smart-finance-tracker/internal/config"
	"github.com/dvloznov/smart-finance-tracker/internal/extract"
	"github.com/dvloznov/smart-finance-tracker/internal/ledger"
	"github.com/dvloznov/smart-finance-tracker/internal/logger"
	"github.com/dvloznov/smart-finance-tracker/internal/sheets"
	"github.com/dvloznov/smart-finance-tracker/internal/taxonomy"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(log)
	case "add":
		runAdd(log)
	case "pending":
		runPending(log)
	case "summary":
		runSummary(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Smart Finance Tracker CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  init      Create the ledger tables and verify sheet access")
	fmt.Println("  add       Record a transaction described in free text")
	fmt.Println("  pending   List pending receivables and payables")
	fmt.Println("  summary   Show income, expense, and category totals")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func newStore(ctx context.Context, log zerolog.Logger) (*sheets.Store, config.Config) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	store, err := sheets.NewStore(ctx, cfg.SheetID, cfg.CredentialsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create sheet store")
	}
	return store, cfg
}

func runInit(log zerolog.Logger) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, _ := newStore(ctx, log)

	if err := store.EnsureSchema(ctx, ledger.ExpensesTable, ledger.ExpensesHeader); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Expenses table")
	}
	if err := store.EnsureSchema(ctx, ledger.PendingTable, ledger.PendingHeader); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Pending table")
	}
	if err := store.VerifySchema(ctx, ledger.ExpensesTable, ledger.ExpensesHeader); err != nil {
		log.Fatal().Err(err).Msg("Expenses header verification failed")
	}
	if err := store.CheckAccess(ctx, ledger.ExpensesTable, len(ledger.ExpensesHeader)); err != nil {
		log.Fatal().Err(err).Msg("Spreadsheet is not writable")
	}

	fmt.Printf("Ledger ready: %s\n", store.SpreadsheetURL())
}

func runAdd(log zerolog.Logger) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	text := fs.String("text", "", "Transaction description, e.g. \"spent 40 on groceries yesterday\"")
	yes := fs.Bool("yes", false, "Save without asking for confirmation")
	fs.Parse(os.Args[2:])

	if *text == "" {
		log.Fatal().Msg("Error: --text is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, cfg := newStore(ctx, log)
	extractor := extract.New(extract.NewGeminiModel(cfg.GeminiAPIKey, cfg.GeminiModel))

	fields, err := extractor.Extract(ctx, *text)
	if err != nil {
		log.Fatal().Err(err).Msg("Extraction failed")
	}
	if !fields.HasRequiredFields() {
		log.Fatal().Msg("Could not find an amount and type in that description")
	}

	printFields(fields)

	if !*yes && !confirm("Save this transaction?") {
		fmt.Println("Discarded.")
		return
	}

	if taxonomy.IsDeferredType(fields["type"]) {
		err = savePending(ctx, store, fields)
	} else {
		err = saveTransaction(ctx, store, fields)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to save transaction")
	}

	fmt.Println("Saved.")
}

func runPending(log zerolog.Logger) {
	fs := flag.NewFlagSet("pending", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, _ := newStore(ctx, log)

	rows, err := store.ReadAll(ctx, ledger.PendingTable, "A1:G")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read pending records")
	}

	records := make([]ledger.PendingRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := ledger.ParsePendingRow(row)
		if err != nil {
			log.Warn().Err(err).Int("row", i+2).Msg("Skipping malformed pending row")
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		fmt.Println("Nothing pending.")
		return
	}

	today := civil.DateOf(time.Now())
	fmt.Printf("\n=== Pending (%d) ===\n", len(records))
	for i, rec := range records {
		overdue := ""
		if rec.Status == taxonomy.StatusPending && rec.DueDate.Before(today) {
			overdue = " (overdue)"
		}
		fmt.Printf("\n%d. %s\n", i+1, rec.Description)
		fmt.Printf("   Type:     %s\n", rec.Type)
		fmt.Printf("   Amount:   %s\n", rec.Amount.StringFixed(2))
		fmt.Printf("   Due:      %s%s\n", rec.DueDate, overdue)
		fmt.Printf("   Status:   %s\n", rec.Status)
	}

	summary := analytics.SummarizePending(records, today)
	fmt.Printf("\nTo receive: %s   To pay: %s   Overdue: %d\n",
		summary.ToReceive.StringFixed(2), summary.ToPay.StringFixed(2), summary.Overdue)
}

func runSummary(log zerolog.Logger) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, _ := newStore(ctx, log)

	rows, err := store.ReadAll(ctx, ledger.ExpensesTable, "A1:F")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read transactions")
	}

	records := make([]ledger.TransactionRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := ledger.ParseTransactionRow(row)
		if err != nil {
			log.Warn().Err(err).Int("row", i+2).Msg("Skipping malformed transaction row")
			continue
		}
		records = append(records, rec)
	}

	summary := analytics.Summarize(records)
	fmt.Println("\n=== Summary ===")
	fmt.Printf("Income:   %s\n", summary.TotalIncome.StringFixed(2))
	fmt.Printf("Expenses: %s\n", summary.TotalExpenses.StringFixed(2))
	fmt.Printf("Net:      %s\n", summary.NetBalance.StringFixed(2))

	printCategoryTotals("Expenses by category", analytics.ByCategory(records, taxonomy.TypeExpense))
	printCategoryTotals("Income by category", analytics.ByCategory(records, taxonomy.TypeIncome))

	monthly := analytics.Monthly(records)
	if len(monthly) > 0 {
		fmt.Println("\n=== Monthly ===")
		for _, m := range monthly {
			fmt.Printf("%s  income %s  expense %s  net %s\n",
				m.Month, m.Income.StringFixed(2), m.Expense.StringFixed(2), m.Net.StringFixed(2))
		}
	}
	fmt.Println()
}

func printCategoryTotals(title string, totals map[string]decimal.Decimal) {
	if len(totals) == 0 {
		return
	}

	categories := make([]string, 0, len(totals))
	for c := range totals {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	fmt.Printf("\n=== %s ===\n", title)
	for _, c := range categories {
		fmt.Printf("%-20s %s\n", c, totals[c].StringFixed(2))
	}
}

func printFields(fields extract.FieldMap) {
	fmt.Println("\n=== Extracted ===")
	fmt.Printf("Type:        %s\n", fields["type"])
	fmt.Printf("Amount:      %s\n", fields["amount"])
	fmt.Printf("Category:    %s\n", fields["category"])
	if fields["subcategory"] != "" {
		fmt.Printf("Subcategory: %s\n", fields["subcategory"])
	}
	fmt.Printf("Date:        %s\n", fields["date"])
	if taxonomy.IsDeferredType(fields["type"]) {
		fmt.Printf("Due date:    %s\n", fields["due_date"])
	}
	if fields["description"] != "" {
		fmt.Printf("Description: %s\n", fields["description"])
	}
	fmt.Println()
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func saveTransaction(ctx context.Context, store *sheets.Store, fields extract.FieldMap) error {
	amount, err := decimal.NewFromString(strings.TrimSpace(fields["amount"]))
	if err != nil {
		return fmt.Errorf("invalid amount %q", fields["amount"])
	}

	date, err := civil.ParseDate(fields["date"])
	if err != nil {
		date = civil.DateOf(time.Now())
	}

	rec := ledger.TransactionRecord{
		Date:        date,
		Amount:      amount,
		Type:        fields["type"],
		Category:    fields["category"],
		Subcategory: fields["subcategory"],
		Description: fields["description"],
	}
	if err := rec.Validate(taxonomy.NewValidator()); err != nil {
		return err
	}

	return store.Append(ctx, ledger.ExpensesTable, rec.Row())
}

func savePending(ctx context.Context, store *sheets.Store, fields extract.FieldMap) error {
	amount, err := decimal.NewFromString(strings.TrimSpace(fields["amount"]))
	if err != nil {
		return fmt.Errorf("invalid amount %q", fields["amount"])
	}

	date, err := civil.ParseDate(fields["date"])
	if err != nil {
		date = civil.DateOf(time.Now())
	}
	dueDate, err := civil.ParseDate(fields["due_date"])
	if err != nil {
		dueDate = civil.DateOf(time.Now().AddDate(0, 0, extract.DefaultDueDays))
	}

	rec := ledger.PendingRecord{
		Date:        date,
		Amount:      amount,
		Type:        fields["type"],
		Category:    fields["category"],
		Description: fields["description"],
		DueDate:     dueDate,
		Status:      taxonomy.StatusPending,
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	if err := store.VerifySchema(ctx, ledger.PendingTable, ledger.PendingHeader); err != nil {
		return err
	}
	return store.Append(ctx, ledger.PendingTable, rec.Row())
}
