package extract

import (
	"sort"
	"strings"

	"github.com/dvloznov/smart-finance-tracker/internal/taxonomy"
)

// buildPrompt constructs the directive prompt for one user utterance. The
// model is instructed to classify the transaction, pick a category from the
// taxonomy, resolve relative dates to absolute form, and answer in plain
// "key: value" lines.
func buildPrompt(userText string) string {
	var b strings.Builder

	b.WriteString("Extract transaction information from this text: '" + userText + "'\n\n")

	b.WriteString("If the text indicates a future receipt (e.g., \"will receive\", \"getting\", " +
		"\"coming\", \"pending\", \"next week\", \"tomorrow\"), " +
		"classify it as a pending transaction with type \"To Receive\".\n\n")
	b.WriteString("If the text indicates a future payment (e.g., \"need to pay\", \"will pay\", " +
		"\"have to give\", \"due\"), " +
		"classify it as a pending transaction with type \"To Pay\".\n\n")
	b.WriteString("For immediate transactions:\n")
	b.WriteString("- If it mentions receiving money now -> use 'Income' type\n")
	b.WriteString("- If it mentions spending money now -> use 'Expense' type\n\n")

	b.WriteString(categoriesSection())

	b.WriteString("Always convert relative dates to YYYY-MM-DD format:\n")
	b.WriteString("- \"next week\" -> date 7 days from today\n")
	b.WriteString("- \"tomorrow\" -> date 1 day from today\n")
	b.WriteString("- \"next month\" -> date 30 days from today\n\n")

	b.WriteString("Respond in this format only without any quotes:\n")
	b.WriteString("type: Income/Expense/To Receive/To Pay\n")
	b.WriteString("amount: <number>\n")
	b.WriteString("category: <category>\n")
	b.WriteString("description: <brief description>\n")
	b.WriteString("due_date: <YYYY-MM-DD format>\n")

	return b.String()
}

// categoriesSection renders the taxonomy as category hints, grouped by
// transaction type with categories in sorted order so the prompt is stable
// across runs.
func categoriesSection() string {
	var b strings.Builder
	b.WriteString("Use ONLY the following categories for Income and Expense transactions:\n\n")

	for _, transactionType := range taxonomy.Types {
		cats := taxonomy.Categories[transactionType]
		names := make([]string, 0, len(cats))
		for name := range cats {
			names = append(names, name)
		}
		sort.Strings(names)

		b.WriteString(transactionType + " categories:\n")
		for _, name := range names {
			b.WriteString("  - " + name + "\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}
