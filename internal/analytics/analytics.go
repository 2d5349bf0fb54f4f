// Package analytics aggregates ledger rows into the totals and breakdowns
// the UI renders. Everything is computed in memory from the rows the store
// returns; charting is left to the consumer.
package analytics

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/smart-finance-tracker/internal/ledger"
	"github.com/dvloznov/smart-finance-tracker/internal/taxonomy"
)

// Summary holds the headline totals across all transactions.
type Summary struct {
	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	NetBalance    decimal.Decimal `json:"net_balance"`
}

// MonthlyRow is one row of the monthly summary, keyed by "YYYY-MM".
type MonthlyRow struct {
	Month   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// PendingSummary totals the open receivables and payables.
type PendingSummary struct {
	ToReceive decimal.Decimal `json:"to_receive"`
	ToPay     decimal.Decimal `json:"to_pay"`
	Overdue   int             `json:"overdue"`
}

// Summarize computes total income, total expenses and the net balance.
func Summarize(records []ledger.TransactionRecord) Summary {
	s := Summary{
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
	}

	for _, r := range records {
		switch r.Type {
		case taxonomy.TypeIncome:
			s.TotalIncome = s.TotalIncome.Add(r.Amount)
		case taxonomy.TypeExpense:
			s.TotalExpenses = s.TotalExpenses.Add(r.Amount)
		}
	}

	s.NetBalance = s.TotalIncome.Sub(s.TotalExpenses)
	return s
}

// ByCategory sums amounts per category for one transaction type.
func ByCategory(records []ledger.TransactionRecord, transactionType string) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)

	for _, r := range records {
		if r.Type != transactionType {
			continue
		}
		totals[r.Category] = totals[r.Category].Add(r.Amount)
	}

	return totals
}

// Monthly groups records by calendar month and returns rows sorted by
// month ascending.
func Monthly(records []ledger.TransactionRecord) []MonthlyRow {
	type bucket struct {
		income  decimal.Decimal
		expense decimal.Decimal
	}
	buckets := make(map[string]*bucket)

	for _, r := range records {
		key := r.Date.String()[:7] // YYYY-MM
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		switch r.Type {
		case taxonomy.TypeIncome:
			b.income = b.income.Add(r.Amount)
		case taxonomy.TypeExpense:
			b.expense = b.expense.Add(r.Amount)
		}
	}

	months := make([]string, 0, len(buckets))
	for m := range buckets {
		months = append(months, m)
	}
	sort.Strings(months)

	rows := make([]MonthlyRow, 0, len(months))
	for _, m := range months {
		b := buckets[m]
		rows = append(rows, MonthlyRow{
			Month:   m,
			Income:  b.income,
			Expense: b.expense,
			Net:     b.income.Sub(b.expense),
		})
	}

	return rows
}

// SummarizePending totals open receivables/payables and counts records past
// their due date as of today.
func SummarizePending(records []ledger.PendingRecord, today civil.Date) PendingSummary {
	s := PendingSummary{
		ToReceive: decimal.Zero,
		ToPay:     decimal.Zero,
	}

	for _, r := range records {
		if r.Status != taxonomy.StatusPending {
			continue
		}
		switch r.Type {
		case taxonomy.TypeToReceive:
			s.ToReceive = s.ToReceive.Add(r.Amount)
		case taxonomy.TypeToPay:
			s.ToPay = s.ToPay.Add(r.Amount)
		}
		if r.DueDate.Before(today) {
			s.Overdue++
		}
	}

	return s
}
