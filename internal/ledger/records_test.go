package ledger

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/smart-finance-tracker/internal/taxonomy"
)

func TestTransactionRecord_Validate(t *testing.T) {
	validator := taxonomy.NewValidator()

	valid := TransactionRecord{
		Date:        civil.Date{Year: 2025, Month: 6, Day: 15},
		Amount:      decimal.NewFromInt(500),
		Type:        taxonomy.TypeExpense,
		Category:    "Food",
		Subcategory: "Groceries",
		Description: "weekly shop",
	}

	tests := []struct {
		name    string
		mutate  func(r TransactionRecord) TransactionRecord
		wantErr bool
	}{
		{"valid record", func(r TransactionRecord) TransactionRecord { return r }, false},
		{"deferred type rejected", func(r TransactionRecord) TransactionRecord {
			r.Type = taxonomy.TypeToReceive
			return r
		}, true},
		{"negative amount", func(r TransactionRecord) TransactionRecord {
			r.Amount = decimal.NewFromInt(-1)
			return r
		}, true},
		{"zero date", func(r TransactionRecord) TransactionRecord {
			r.Date = civil.Date{}
			return r
		}, true},
		{"unknown category", func(r TransactionRecord) TransactionRecord {
			r.Category = "Lottery"
			return r
		}, true},
		{"subcategory from wrong category", func(r TransactionRecord) TransactionRecord {
			r.Subcategory = "Rent"
			return r
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mutate(valid).Validate(validator)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPendingRecord_Validate(t *testing.T) {
	valid := PendingRecord{
		Date:        civil.Date{Year: 2025, Month: 6, Day: 15},
		Amount:      decimal.NewFromInt(2000),
		Type:        taxonomy.TypeToReceive,
		Category:    "Freelance",
		Description: "project milestone",
		DueDate:     civil.Date{Year: 2025, Month: 6, Day: 22},
		Status:      taxonomy.StatusPending,
	}

	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() on valid record: %v", err)
	}

	bad := valid
	bad.Type = taxonomy.TypeExpense
	if err := bad.Validate(); err == nil {
		t.Error("Validate() should reject immediate types")
	}

	bad = valid
	bad.DueDate = civil.Date{}
	if err := bad.Validate(); err == nil {
		t.Error("Validate() should require a due date")
	}

	bad = valid
	bad.Status = "Done"
	if err := bad.Validate(); err == nil {
		t.Error("Validate() should reject unknown status values")
	}
}

func TestTransactionRowCodec(t *testing.T) {
	rec := TransactionRecord{
		Date:        civil.Date{Year: 2025, Month: 6, Day: 15},
		Amount:      decimal.RequireFromString("123.45"),
		Type:        taxonomy.TypeIncome,
		Category:    "Salary",
		Subcategory: "Bonus",
		Description: "Q2 bonus",
	}

	parsed, err := ParseTransactionRow(rec.Row())
	if err != nil {
		t.Fatalf("ParseTransactionRow: %v", err)
	}
	if parsed.Date != rec.Date || parsed.Type != rec.Type ||
		parsed.Category != rec.Category || parsed.Subcategory != rec.Subcategory ||
		parsed.Description != rec.Description || !parsed.Amount.Equal(rec.Amount) {
		t.Errorf("round trip mismatch: got %+v, want %+v", parsed, rec)
	}
}

func TestParseTransactionRow_ShortRow(t *testing.T) {
	// The store drops trailing empty cells, so a row without a description
	// comes back with five columns.
	row := []interface{}{"2025-06-15", "42", "Expense", "Food", "Coffee"}
	rec, err := ParseTransactionRow(row)
	if err != nil {
		t.Fatalf("ParseTransactionRow: %v", err)
	}
	if rec.Description != "" {
		t.Errorf("expected empty description, got %q", rec.Description)
	}
}

func TestParseTransactionRow_Invalid(t *testing.T) {
	if _, err := ParseTransactionRow([]interface{}{"junk", "42", "Expense", "Food", "Coffee", ""}); err == nil {
		t.Error("expected error for unparsable date")
	}
	if _, err := ParseTransactionRow([]interface{}{"2025-06-15", "lots", "Expense", "Food", "Coffee", ""}); err == nil {
		t.Error("expected error for unparsable amount")
	}
}

func TestPendingRowCodec(t *testing.T) {
	rec := PendingRecord{
		Date:        civil.Date{Year: 2025, Month: 6, Day: 15},
		Amount:      decimal.NewFromInt(2000),
		Type:        taxonomy.TypeToPay,
		Category:    "Bills",
		Description: "internet bill",
		DueDate:     civil.Date{Year: 2025, Month: 6, Day: 22},
		Status:      taxonomy.StatusPending,
	}

	parsed, err := ParsePendingRow(rec.Row())
	if err != nil {
		t.Fatalf("ParsePendingRow: %v", err)
	}
	if parsed.DueDate != rec.DueDate || parsed.Status != rec.Status || !parsed.Amount.Equal(rec.Amount) {
		t.Errorf("round trip mismatch: got %+v, want %+v", parsed, rec)
	}
}
