// Package ledger defines the two record types persisted to the backing
// spreadsheet and their row encodings.
package ledger

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/smart-finance-tracker/internal/taxonomy"
)

// Table names in the backing spreadsheet.
const (
	ExpensesTable = "Expenses"
	PendingTable  = "Pending"
)

// Fixed header rows. VerifySchema rewrites these when the first row of a
// table does not match.
var (
	ExpensesHeader = []string{"Date", "Amount", "Type", "Category", "Subcategory", "Description"}
	PendingHeader  = []string{"Date", "Amount", "Type", "Category", "Description", "Due Date", "Status"}
)

// TransactionRecord is one settled row in the Expenses table.
type TransactionRecord struct {
	Date        civil.Date
	Amount      decimal.Decimal
	Type        string // Income or Expense
	Category    string
	Subcategory string
	Description string
}

// PendingRecord is one deferred row in the Pending table.
type PendingRecord struct {
	Date        civil.Date
	Amount      decimal.Decimal
	Type        string // To Receive or To Pay
	Category    string
	Description string
	DueDate     civil.Date
	Status      string
}

// Validate checks the record against the taxonomy and the amount/type
// invariants. The taxonomy is static, so validity at save time is validity
// forever.
func (r TransactionRecord) Validate(v *taxonomy.Validator) error {
	if !taxonomy.IsImmediateType(r.Type) {
		return fmt.Errorf("transaction type must be Income or Expense, got %q", r.Type)
	}
	if r.Amount.IsNegative() {
		return fmt.Errorf("amount must be non-negative, got %s", r.Amount)
	}
	if !r.Date.IsValid() {
		return fmt.Errorf("transaction date is not set")
	}
	return v.ValidateCategory(r.Type, r.Category, r.Subcategory)
}

// Validate checks the pending record invariants. Categories of pending
// records are model-chosen free text and are not constrained by the
// taxonomy.
func (r PendingRecord) Validate() error {
	if !taxonomy.IsDeferredType(r.Type) {
		return fmt.Errorf("pending type must be To Receive or To Pay, got %q", r.Type)
	}
	if r.Amount.IsNegative() {
		return fmt.Errorf("amount must be non-negative, got %s", r.Amount)
	}
	if !r.DueDate.IsValid() {
		return fmt.Errorf("due date is required")
	}
	if r.Status != taxonomy.StatusPending && r.Status != taxonomy.StatusSettled {
		return fmt.Errorf("status must be Pending or Settled, got %q", r.Status)
	}
	return nil
}

// Row encodes the record as a spreadsheet row matching ExpensesHeader.
func (r TransactionRecord) Row() []interface{} {
	return []interface{}{
		r.Date.String(),
		r.Amount.String(),
		r.Type,
		r.Category,
		r.Subcategory,
		r.Description,
	}
}

// Row encodes the record as a spreadsheet row matching PendingHeader.
func (r PendingRecord) Row() []interface{} {
	return []interface{}{
		r.Date.String(),
		r.Amount.String(),
		r.Type,
		r.Category,
		r.Description,
		r.DueDate.String(),
		r.Status,
	}
}

// ParseTransactionRow decodes an Expenses data row. Short rows are padded
// with empty cells because the store drops trailing empty columns.
func ParseTransactionRow(row []interface{}) (TransactionRecord, error) {
	cells := stringCells(row, len(ExpensesHeader))

	date, err := civil.ParseDate(cells[0])
	if err != nil {
		return TransactionRecord{}, fmt.Errorf("ParseTransactionRow: invalid date %q: %w", cells[0], err)
	}

	amount, err := decimal.NewFromString(cells[1])
	if err != nil {
		return TransactionRecord{}, fmt.Errorf("ParseTransactionRow: invalid amount %q: %w", cells[1], err)
	}

	return TransactionRecord{
		Date:        date,
		Amount:      amount,
		Type:        cells[2],
		Category:    cells[3],
		Subcategory: cells[4],
		Description: cells[5],
	}, nil
}

// ParsePendingRow decodes a Pending data row.
func ParsePendingRow(row []interface{}) (PendingRecord, error) {
	cells := stringCells(row, len(PendingHeader))

	date, err := civil.ParseDate(cells[0])
	if err != nil {
		return PendingRecord{}, fmt.Errorf("ParsePendingRow: invalid date %q: %w", cells[0], err)
	}

	amount, err := decimal.NewFromString(cells[1])
	if err != nil {
		return PendingRecord{}, fmt.Errorf("ParsePendingRow: invalid amount %q: %w", cells[1], err)
	}

	dueDate, err := civil.ParseDate(cells[5])
	if err != nil {
		return PendingRecord{}, fmt.Errorf("ParsePendingRow: invalid due date %q: %w", cells[5], err)
	}

	return PendingRecord{
		Date:        date,
		Amount:      amount,
		Type:        cells[2],
		Category:    cells[3],
		Description: cells[4],
		DueDate:     dueDate,
		Status:      cells[6],
	}, nil
}

// stringCells converts raw sheet cells to trimmed strings, padding the row
// to want columns.
func stringCells(row []interface{}, want int) []string {
	cells := make([]string, want)
	for i := 0; i < want && i < len(row); i++ {
		if row[i] == nil {
			continue
		}
		cells[i] = strings.TrimSpace(fmt.Sprint(row[i]))
	}
	return cells
}
