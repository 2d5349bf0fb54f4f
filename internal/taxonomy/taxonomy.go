// Package taxonomy holds the static transaction type / category /
// subcategory tables and validation against them. The tables are pure data,
// loaded once at process start.
package taxonomy

// Transaction types for immediately settled records.
const (
	TypeExpense = "Expense"
	TypeIncome  = "Income"
)

// Transaction types for deferred (pending) records.
const (
	TypeToReceive = "To Receive"
	TypeToPay     = "To Pay"
)

// Status values for pending records. Only StatusPending is ever written by
// the extraction path; settlement has no code path here.
const (
	StatusPending = "Pending"
	StatusSettled = "Settled"
)

// Types lists the immediate transaction types in display order.
var Types = []string{TypeExpense, TypeIncome}

// Categories maps transaction type -> category -> subcategories.
var Categories = map[string]map[string][]string{
	TypeExpense: {
		"Food":           {"Groceries", "Dining Out", "Snacks", "Coffee", "Food Delivery"},
		"Transportation": {"Fuel", "Public Transport", "Maintenance", "Parking", "Ride Share"},
		"Housing":        {"Rent", "Utilities", "Maintenance", "Insurance", "Property Tax"},
		"Entertainment":  {"Movies", "Games", "Sports", "Streaming Services", "Hobbies"},
		"Shopping":       {"Clothes", "Electronics", "Home Items", "Gifts", "Personal Care"},
		"Healthcare":     {"Medicine", "Doctor Visits", "Insurance", "Lab Tests", "Dental"},
		"Bills":          {"Credit Card", "Internet", "Phone", "Subscriptions", "EMI"},
		"Academic":       {"Tuition", "Books", "Supplies", "Online Courses", "Software", "Others"},
		"Personal":       {"Grooming", "Gym", "Clothing", "Accessories", "Salon", "Others"},
		"Travel":         {"Flights", "Hotels", "Sightseeing", "Travel Insurance", "Visa"},
		"Investment":     {"Stocks", "Mutual Funds", "Fixed Deposits", "Cryptocurrency", "Gold"},
		"Others":         {"Miscellaneous", "Donations", "Gifts Given"},
	},
	TypeIncome: {
		"Salary":      {"Regular", "Bonus", "Overtime", "Allowances", "Reimbursements"},
		"Investments": {"Dividends", "Interest", "Capital Gains", "Rental Income", "Crypto"},
		"Freelance":   {"Consulting", "Project Work", "Commissions", "Tutoring", "Content Creation"},
		"Gifts":       {"Personal", "Professional", "Awards", "Inheritance"},
		"Academic":    {"Scholarships", "Grants", "Research Stipend", "Teaching Assistant", "Others"},
		"Business":    {"Sales", "Services", "Commissions", "Royalties"},
		"Others":      {"Miscellaneous", "Refunds", "Cashback"},
	},
}

// IsDeferredType reports whether the type describes a pending record.
func IsDeferredType(transactionType string) bool {
	return transactionType == TypeToReceive || transactionType == TypeToPay
}

// IsImmediateType reports whether the type describes a settled record.
func IsImmediateType(transactionType string) bool {
	return transactionType == TypeExpense || transactionType == TypeIncome
}

// SubcategoriesFor returns the subcategory list for a type/category pair, or
// nil when the pair is unknown.
func SubcategoriesFor(transactionType, category string) []string {
	cats, ok := Categories[transactionType]
	if !ok {
		return nil
	}
	return cats[category]
}
