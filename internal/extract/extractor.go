// Package extract turns one free-text user utterance into a FieldMap of
// transaction fields via an external text-understanding model, then
// normalizes the entry date and, for deferred types, the due date.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/smart-finance-tracker/internal/dateparse"
	"github.com/dvloznov/smart-finance-tracker/internal/taxonomy"
)

// DateLayout is the string form every date field is normalized to.
const DateLayout = "2006-01-02"

// DefaultDueDays is the fallback due-date offset for deferred transactions
// whose due date is missing or unparsable.
const DefaultDueDays = 7

// FieldMap maps extracted field names to string values for one transaction.
// After a successful Extract it always contains type, amount, category,
// description and date; due_date is present for To Receive / To Pay.
type FieldMap map[string]string

// Extractor wraps the model call, response parsing and normalization.
type Extractor struct {
	model TextModel
	now   func() time.Time
}

// New creates an Extractor on top of the given text model.
func New(model TextModel) *Extractor {
	return &Extractor{
		model: model,
		now:   time.Now,
	}
}

// NewWithClock creates an Extractor with an injected clock, for tests.
func NewWithClock(model TextModel, now func() time.Time) *Extractor {
	return &Extractor{
		model: model,
		now:   now,
	}
}

// Extract runs the full extraction for one utterance. A model failure is
// returned as-is; malformed lines in an otherwise successful response are
// dropped rather than failing the call.
func (e *Extractor) Extract(ctx context.Context, userText string) (FieldMap, error) {
	prompt := buildPrompt(userText)

	response, err := e.model.GenerateText(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("Extract: %w", err)
	}

	fields := ParseResponse(response)
	e.normalize(fields)

	return fields, nil
}

// ParseResponse parses the model's free-text response into a FieldMap.
// Lines are split on the first colon; keys and values are trimmed and stray
// quote characters are stripped from values. Lines without a colon are
// ignored.
func ParseResponse(response string) FieldMap {
	fields := make(FieldMap)

	for _, line := range strings.Split(stripFences(response), "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.ReplaceAll(value, `"`, "")
		value = strings.ReplaceAll(value, "'", "")
		fields[key] = value
	}

	return fields
}

// stripFences removes Markdown code fences the model sometimes wraps its
// answer in despite instructions.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	// Drop the opening fence line (``` or ```text).
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[idx+1:]
	} else {
		return s
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	return strings.TrimSpace(s)
}

// normalize applies the post-parse policies: the entry date is always
// "now" regardless of what the model returned, and deferred transactions
// get a parseable due date with a +7 day fallback.
func (e *Extractor) normalize(fields FieldMap) {
	now := e.now()
	fields["date"] = now.Format(DateLayout)

	if !taxonomy.IsDeferredType(fields["type"]) {
		return
	}

	fallback := now.AddDate(0, 0, DefaultDueDays).Format(DateLayout)

	raw, ok := fields["due_date"]
	if !ok || strings.TrimSpace(raw) == "" {
		fields["due_date"] = fallback
		return
	}

	if parsed, ok := dateparse.ParseGeneral(raw); ok {
		fields["due_date"] = parsed.Format(DateLayout)
		return
	}
	// The model occasionally leaves a relative phrase in the due date
	// despite being told to resolve it.
	if resolved, ok := dateparse.Match(raw, now); ok {
		fields["due_date"] = resolved.Format(DateLayout)
		return
	}
	fields["due_date"] = fallback
}

// HasRequiredFields reports whether the map carries the minimum fields
// needed to show a confirmation form.
func (f FieldMap) HasRequiredFields() bool {
	return strings.TrimSpace(f["amount"]) != "" && strings.TrimSpace(f["type"]) != ""
}
