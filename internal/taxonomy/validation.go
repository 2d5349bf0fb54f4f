package taxonomy

import (
	"fmt"
	"strings"
)

// Validator validates transaction categories against the static taxonomy.
type Validator struct {
	categories    map[string]map[string]bool            // type -> set of category names
	subcategories map[string]map[string]map[string]bool // type -> category -> set of subcategories
	canonical     map[string]string                     // normalized -> canonical spelling
}

// NewValidator builds a validator from the Categories tables.
func NewValidator() *Validator {
	v := &Validator{
		categories:    make(map[string]map[string]bool),
		subcategories: make(map[string]map[string]map[string]bool),
		canonical:     make(map[string]string),
	}

	for transactionType, cats := range Categories {
		typeKey := normalize(transactionType)
		v.categories[typeKey] = make(map[string]bool)
		v.subcategories[typeKey] = make(map[string]map[string]bool)
		v.canonical[typeKey] = transactionType

		for cat, subs := range cats {
			catKey := normalize(cat)
			v.categories[typeKey][catKey] = true
			v.subcategories[typeKey][catKey] = make(map[string]bool)
			v.canonical[catKey] = cat
			for _, sub := range subs {
				subKey := normalize(sub)
				v.subcategories[typeKey][catKey][subKey] = true
				v.canonical[subKey] = sub
			}
		}
	}

	return v
}

// ValidateCategory checks that category and subcategory exist in the
// taxonomy for the given transaction type. Returns nil if valid.
func (v *Validator) ValidateCategory(transactionType, category, subcategory string) error {
	typeKey := normalize(transactionType)
	catKey := normalize(category)
	subKey := normalize(subcategory)

	cats, ok := v.categories[typeKey]
	if !ok {
		return fmt.Errorf("unknown transaction type: %q", transactionType)
	}
	if !cats[catKey] {
		return fmt.Errorf("invalid category %q for type %q", category, transactionType)
	}

	subs := v.subcategories[typeKey][catKey]
	if !subs[subKey] {
		valid := make([]string, 0, len(subs))
		for s := range subs {
			valid = append(valid, v.canonical[s])
		}
		return fmt.Errorf("invalid subcategory %q for category %q. Valid subcategories: %v",
			subcategory, category, valid)
	}

	return nil
}

// CanonicalCategory resolves a case-insensitive category name to its
// canonical spelling for the given type. The second result is false when the
// category is unknown.
func (v *Validator) CanonicalCategory(transactionType, category string) (string, bool) {
	typeKey := normalize(transactionType)
	catKey := normalize(category)
	if cats, ok := v.categories[typeKey]; ok && cats[catKey] {
		return v.canonical[catKey], true
	}
	return "", false
}

// normalize normalizes a name for case-insensitive comparison.
func normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
