// Package handlers implements the JSON API consumed by the chat form:
// utterance intake, transaction confirmation, and the read/analytics
// endpoints over the ledger tables.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/smart-finance-tracker/internal/analytics"
	"github.com/dvloznov/smart-finance-tracker/internal/extract"
	"github.com/dvloznov/smart-finance-tracker/internal/ledger"
	"github.com/dvloznov/smart-finance-tracker/internal/session"
	"github.com/dvloznov/smart-finance-tracker/internal/taxonomy"
	"github.com/dvloznov/smart-finance-tracker/internal/web/middleware"
)

const transactionsCacheKey = "expenses-rows"

// requestLog tags the base logger with the request ID when the middleware
// chain provided one.
func requestLog(base zerolog.Logger, r *http.Request) zerolog.Logger {
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return base.With().Str("request_id", id).Logger()
	}
	return base
}

// LedgerStore is the slice of the sheet store the handlers need. The
// interface exists so tests can run against a mock.
type LedgerStore interface {
	VerifySchema(ctx context.Context, table string, header []string) error
	Append(ctx context.Context, table string, row []interface{}) error
	ReadAll(ctx context.Context, table, columnRange string) ([][]interface{}, error)
}

// FieldExtractor turns one user utterance into a FieldMap.
type FieldExtractor interface {
	Extract(ctx context.Context, userText string) (extract.FieldMap, error)
}

// ChatHandler handles utterance intake.
type ChatHandler struct {
	extractor FieldExtractor
	sessions  *session.Store
	log       zerolog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(extractor FieldExtractor, sessions *session.Store, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		extractor: extractor,
		sessions:  sessions,
		log:       log,
	}
}

// HandleChat handles POST /api/chat. It runs extraction on the utterance
// and, when the result carries the required fields, parks it in the session
// for confirmation.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r)

	var req struct {
		SessionID string `json:"session_id"`
		Text      string `json:"text"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Text is required")
		return
	}

	ctx := r.Context()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = h.sessions.Create().ID
	} else if _, err := h.sessions.Get(sessionID); err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
		return
	}

	if err := h.sessions.AppendMessage(sessionID, session.RoleUser, req.Text); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to record message")
		middleware.WriteError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	fields, err := h.extractor.Extract(ctx, req.Text)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Extraction failed")
		middleware.WriteError(w, http.StatusBadGateway, "Could not process the transaction. Please try again.")
		return
	}

	if !fields.HasRequiredFields() {
		log.Warn().Str("session_id", sessionID).Msg("Extraction missing required fields")
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"session_id":            sessionID,
			"awaiting_confirmation": false,
			"message":               "I couldn't find an amount and type in that. Could you rephrase?",
		})
		return
	}

	if err := h.sessions.SetCurrent(sessionID, fields); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to store extracted transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	log.Info().
		Str("session_id", sessionID).
		Str("type", fields["type"]).
		Str("amount", fields["amount"]).
		Msg("Transaction extracted, awaiting confirmation")

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":            sessionID,
		"awaiting_confirmation": true,
		"fields":                fields,
	})
}

// LedgerHandler handles confirmation and the ledger read endpoints.
type LedgerHandler struct {
	store     LedgerStore
	sessions  *session.Store
	validator *taxonomy.Validator
	cache     *rowCache
	log       zerolog.Logger
	now       func() time.Time
}

// NewLedgerHandler creates a new ledger handler. cacheTTL bounds staleness
// of the transactions read endpoint.
func NewLedgerHandler(store LedgerStore, sessions *session.Store, cacheTTL time.Duration, log zerolog.Logger) (*LedgerHandler, error) {
	cache, err := newRowCache(cacheTTL)
	if err != nil {
		return nil, fmt.Errorf("NewLedgerHandler: creating cache: %w", err)
	}

	return &LedgerHandler{
		store:     store,
		sessions:  sessions,
		validator: taxonomy.NewValidator(),
		cache:     cache,
		log:       log,
		now:       time.Now,
	}, nil
}

// HandleConfirm handles POST /api/confirm. It merges the user's form
// overrides into the session's extracted fields, validates the result, and
// appends it to the matching ledger table.
func (h *LedgerHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r)

	var req struct {
		SessionID string            `json:"session_id"`
		Overrides map[string]string `json:"overrides"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SessionID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	ctx := r.Context()

	fields, err := h.sessions.Current(req.SessionID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "No transaction awaiting confirmation")
		return
	}
	for k, v := range req.Overrides {
		fields[k] = v
	}

	var saveErr error
	if taxonomy.IsDeferredType(fields["type"]) {
		saveErr = h.savePending(ctx, fields)
	} else {
		saveErr = h.saveTransaction(ctx, fields)
	}

	if saveErr != nil {
		if isValidationError(saveErr) {
			middleware.WriteError(w, http.StatusBadRequest, saveErr.Error())
			return
		}
		log.Error().Err(saveErr).Str("session_id", req.SessionID).Msg("Failed to save transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save the transaction. Please try again.")
		return
	}

	// The spreadsheet changed; cached reads are stale now.
	h.cache.Invalidate(transactionsCacheKey)

	if err := h.sessions.ClearCurrent(req.SessionID); err != nil {
		log.Warn().Err(err).Str("session_id", req.SessionID).Msg("Failed to clear confirmed transaction")
	}

	confirmation := fmt.Sprintf("Recorded %s of %s (%s)", fields["type"], fields["amount"], fields["category"])
	if err := h.sessions.AppendMessage(req.SessionID, session.RoleAssistant, confirmation); err != nil {
		log.Warn().Err(err).Str("session_id", req.SessionID).Msg("Failed to record confirmation message")
	}

	log.Info().
		Str("session_id", req.SessionID).
		Str("type", fields["type"]).
		Str("amount", fields["amount"]).
		Msg("Transaction saved")

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "saved",
		"fields": fields,
	})
}

// savePending builds and appends a pending record. The Pending table's
// header is verified before every append.
func (h *LedgerHandler) savePending(ctx context.Context, fields extract.FieldMap) error {
	rec, err := h.buildPendingRecord(fields)
	if err != nil {
		return err
	}

	if err := h.store.VerifySchema(ctx, ledger.PendingTable, ledger.PendingHeader); err != nil {
		return fmt.Errorf("savePending: %w", err)
	}
	if err := h.store.Append(ctx, ledger.PendingTable, rec.Row()); err != nil {
		return fmt.Errorf("savePending: %w", err)
	}
	return nil
}

func (h *LedgerHandler) saveTransaction(ctx context.Context, fields extract.FieldMap) error {
	rec, err := h.buildTransactionRecord(fields)
	if err != nil {
		return err
	}

	if err := h.store.Append(ctx, ledger.ExpensesTable, rec.Row()); err != nil {
		return fmt.Errorf("saveTransaction: %w", err)
	}
	return nil
}

func (h *LedgerHandler) buildTransactionRecord(fields extract.FieldMap) (ledger.TransactionRecord, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(fields["amount"]))
	if err != nil {
		return ledger.TransactionRecord{}, validationErrorf("invalid amount %q", fields["amount"])
	}

	date, err := civil.ParseDate(fields["date"])
	if err != nil {
		date = civil.DateOf(h.now())
	}

	rec := ledger.TransactionRecord{
		Date:        date,
		Amount:      amount,
		Type:        fields["type"],
		Category:    fields["category"],
		Subcategory: fields["subcategory"],
		Description: fields["description"],
	}

	if err := rec.Validate(h.validator); err != nil {
		return ledger.TransactionRecord{}, validationErrorf("%v", err)
	}
	return rec, nil
}

func (h *LedgerHandler) buildPendingRecord(fields extract.FieldMap) (ledger.PendingRecord, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(fields["amount"]))
	if err != nil {
		return ledger.PendingRecord{}, validationErrorf("invalid amount %q", fields["amount"])
	}

	date, err := civil.ParseDate(fields["date"])
	if err != nil {
		date = civil.DateOf(h.now())
	}

	dueDate, err := civil.ParseDate(fields["due_date"])
	if err != nil {
		dueDate = civil.DateOf(h.now().AddDate(0, 0, extract.DefaultDueDays))
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
		return ledger.PendingRecord{}, validationErrorf("%v", err)
	}
	return rec, nil
}

// HandleTransactions handles GET /api/transactions.
func (h *LedgerHandler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	records, err := h.readTransactions(r.Context())
	if err != nil {
		log := requestLog(h.log, r)
		log.Error().Err(err).Msg("Failed to read transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": records,
		"count":        len(records),
	})
}

// HandlePending handles GET /api/pending.
func (h *LedgerHandler) HandlePending(w http.ResponseWriter, r *http.Request) {
	records, err := h.readPending(r.Context())
	if err != nil {
		log := requestLog(h.log, r)
		log.Error().Err(err).Msg("Failed to read pending records")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read pending records")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"pending": records,
		"count":   len(records),
	})
}

// HandleAnalytics handles GET /api/analytics.
func (h *LedgerHandler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := h.readTransactions(ctx)
	if err != nil {
		log := requestLog(h.log, r)
		log.Error().Err(err).Msg("Failed to read transactions for analytics")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to generate analytics")
		return
	}

	pending, err := h.readPending(ctx)
	if err != nil {
		log := requestLog(h.log, r)
		log.Error().Err(err).Msg("Failed to read pending records for analytics")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to generate analytics")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"summary":             analytics.Summarize(records),
		"income_by_category":  analytics.ByCategory(records, taxonomy.TypeIncome),
		"expense_by_category": analytics.ByCategory(records, taxonomy.TypeExpense),
		"monthly":             analytics.Monthly(records),
		"pending":             analytics.SummarizePending(pending, civil.DateOf(h.now())),
	})
}

// HandleCategories handles GET /api/categories.
func (h *LedgerHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"types":      taxonomy.Types,
		"categories": taxonomy.Categories,
	})
}

// readTransactions reads the Expenses table through the TTL cache. Rows
// that fail to decode are skipped and logged rather than failing the read.
func (h *LedgerHandler) readTransactions(ctx context.Context) ([]ledger.TransactionRecord, error) {
	rows, ok := h.cache.Get(transactionsCacheKey)
	if !ok {
		var err error
		rows, err = h.store.ReadAll(ctx, ledger.ExpensesTable, "A1:F")
		if err != nil {
			return nil, err
		}
		h.cache.Set(transactionsCacheKey, rows)
	}

	records := make([]ledger.TransactionRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := ledger.ParseTransactionRow(row)
		if err != nil {
			h.log.Warn().Err(err).Int("row", i+2).Msg("Skipping malformed transaction row")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (h *LedgerHandler) readPending(ctx context.Context) ([]ledger.PendingRecord, error) {
	rows, err := h.store.ReadAll(ctx, ledger.PendingTable, "A1:G")
	if err != nil {
		return nil, err
	}

	records := make([]ledger.PendingRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := ledger.ParsePendingRow(row)
		if err != nil {
			h.log.Warn().Err(err).Int("row", i+2).Msg("Skipping malformed pending row")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// validationError marks user-correctable problems so they surface as 400s
// instead of generic failures.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func validationErrorf(format string, args ...interface{}) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

func isValidationError(err error) bool {
	var ve *validationError
	return errors.As(err, &ve)
}
