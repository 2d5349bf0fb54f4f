package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/smart-finance-tracker/internal/extract"
	"github.com/dvloznov/smart-finance-tracker/internal/ledger"
	"github.com/dvloznov/smart-finance-tracker/internal/logger"
	"github.com/dvloznov/smart-finance-tracker/internal/session"
	"github.com/dvloznov/smart-finance-tracker/internal/web/middleware"
)

// mockLedgerStore is a mock LedgerStore for testing.
type mockLedgerStore struct {
	appended     map[string][][]interface{}
	verifyCalls  []string
	readAllCalls int
	readAllRows  [][]interface{}
	appendErr    error
	readAllErr   error
	verifyErr    error
}

func newMockLedgerStore() *mockLedgerStore {
	return &mockLedgerStore{appended: make(map[string][][]interface{})}
}

func (m *mockLedgerStore) VerifySchema(ctx context.Context, table string, header []string) error {
	m.verifyCalls = append(m.verifyCalls, table)
	return m.verifyErr
}

func (m *mockLedgerStore) Append(ctx context.Context, table string, row []interface{}) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.appended[table] = append(m.appended[table], row)
	return nil
}

func (m *mockLedgerStore) ReadAll(ctx context.Context, table, columnRange string) ([][]interface{}, error) {
	m.readAllCalls++
	if m.readAllErr != nil {
		return nil, m.readAllErr
	}
	return m.readAllRows, nil
}

// mockExtractor is a mock FieldExtractor for testing.
type mockExtractor struct {
	fields extract.FieldMap
	err    error
}

func (m *mockExtractor) Extract(ctx context.Context, userText string) (extract.FieldMap, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.fields, nil
}

func newTestHandlers(t *testing.T, store *mockLedgerStore, ex *mockExtractor) (*ChatHandler, *LedgerHandler, *session.Store) {
	t.Helper()

	log := logger.NewWithWriter(&bytes.Buffer{})
	sessions := session.NewStore()

	chat := NewChatHandler(ex, sessions, log)
	ledgerh, err := NewLedgerHandler(store, sessions, time.Minute, log)
	if err != nil {
		t.Fatalf("NewLedgerHandler: %v", err)
	}
	return chat, ledgerh, sessions
}

func postJSON(t *testing.T, handler http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(buf))
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func TestChatThenConfirm_Expense(t *testing.T) {
	store := newMockLedgerStore()
	ex := &mockExtractor{fields: extract.FieldMap{
		"type":        "Expense",
		"amount":      "500",
		"category":    "Food",
		"description": "groceries",
		"date":        "2025-06-15",
	}}
	chat, ledgerh, _ := newTestHandlers(t, store, ex)

	rr := postJSON(t, chat.HandleChat, map[string]string{"text": "I spent 500 on groceries today"})
	if rr.Code != http.StatusOK {
		t.Fatalf("chat status = %d, body %s", rr.Code, rr.Body)
	}

	var chatResp struct {
		SessionID            string            `json:"session_id"`
		AwaitingConfirmation bool              `json:"awaiting_confirmation"`
		Fields               map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &chatResp); err != nil {
		t.Fatalf("decode chat response: %v", err)
	}
	if !chatResp.AwaitingConfirmation {
		t.Fatal("expected awaiting_confirmation = true")
	}
	if chatResp.Fields["type"] != "Expense" {
		t.Errorf("fields.type = %q, want Expense", chatResp.Fields["type"])
	}

	rr = postJSON(t, ledgerh.HandleConfirm, map[string]interface{}{
		"session_id": chatResp.SessionID,
		"overrides":  map[string]string{"subcategory": "Groceries"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, body %s", rr.Code, rr.Body)
	}

	rows := store.appended[ledger.ExpensesTable]
	if len(rows) != 1 {
		t.Fatalf("expected 1 appended expense row, got %d", len(rows))
	}
	if rows[0][2] != "Expense" || rows[0][3] != "Food" || rows[0][4] != "Groceries" {
		t.Errorf("unexpected row: %v", rows[0])
	}
	if len(store.verifyCalls) != 0 {
		t.Errorf("expense append must not verify the Pending schema, got %v", store.verifyCalls)
	}

	// The transaction is consumed; confirming again must fail.
	rr = postJSON(t, ledgerh.HandleConfirm, map[string]interface{}{"session_id": chatResp.SessionID})
	if rr.Code != http.StatusNotFound {
		t.Errorf("second confirm status = %d, want 404", rr.Code)
	}
}

func TestChatThenConfirm_Pending(t *testing.T) {
	store := newMockLedgerStore()
	ex := &mockExtractor{fields: extract.FieldMap{
		"type":        "To Receive",
		"amount":      "2000",
		"category":    "Freelance",
		"description": "freelance work",
		"date":        "2025-06-15",
		"due_date":    "2025-06-22",
	}}
	chat, ledgerh, _ := newTestHandlers(t, store, ex)

	rr := postJSON(t, chat.HandleChat, map[string]string{"text": "I will receive 2000 next week for freelance work"})
	var chatResp struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &chatResp); err != nil {
		t.Fatalf("decode chat response: %v", err)
	}

	rr = postJSON(t, ledgerh.HandleConfirm, map[string]interface{}{"session_id": chatResp.SessionID})
	if rr.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, body %s", rr.Code, rr.Body)
	}

	if len(store.verifyCalls) != 1 || store.verifyCalls[0] != ledger.PendingTable {
		t.Errorf("pending append must verify the Pending schema first, got %v", store.verifyCalls)
	}

	rows := store.appended[ledger.PendingTable]
	if len(rows) != 1 {
		t.Fatalf("expected 1 appended pending row, got %d", len(rows))
	}
	if rows[0][5] != "2025-06-22" || rows[0][6] != "Pending" {
		t.Errorf("unexpected pending row: %v", rows[0])
	}
}

func TestHandleChat_ExtractionFailure(t *testing.T) {
	store := newMockLedgerStore()
	ex := &mockExtractor{err: errors.New("service unavailable")}
	chat, _, _ := newTestHandlers(t, store, ex)

	rr := postJSON(t, chat.HandleChat, map[string]string{"text": "anything"})
	if rr.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rr.Code)
	}
	if len(store.appended) != 0 {
		t.Error("nothing may be appended when extraction fails")
	}
}

func TestHandleChat_MissingRequiredFields(t *testing.T) {
	store := newMockLedgerStore()
	ex := &mockExtractor{fields: extract.FieldMap{"description": "vague"}}
	chat, _, sessions := newTestHandlers(t, store, ex)

	rr := postJSON(t, chat.HandleChat, map[string]string{"text": "hello there"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp struct {
		SessionID            string `json:"session_id"`
		AwaitingConfirmation bool   `json:"awaiting_confirmation"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AwaitingConfirmation {
		t.Error("confirmation must not be offered without amount and type")
	}
	if _, err := sessions.Current(resp.SessionID); err == nil {
		t.Error("no transaction should be parked in the session")
	}
}

func TestHandleConfirm_InvalidCategory(t *testing.T) {
	store := newMockLedgerStore()
	ex := &mockExtractor{fields: extract.FieldMap{
		"type":     "Expense",
		"amount":   "50",
		"category": "Lottery",
		"date":     "2025-06-15",
	}}
	chat, ledgerh, _ := newTestHandlers(t, store, ex)

	rr := postJSON(t, chat.HandleChat, map[string]string{"text": "spent 50 on lottery"})
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	rr = postJSON(t, ledgerh.HandleConfirm, map[string]interface{}{
		"session_id": resp.SessionID,
		"overrides":  map[string]string{"subcategory": "Tickets"},
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for taxonomy violation", rr.Code)
	}
	if len(store.appended) != 0 {
		t.Error("invalid records must not be appended")
	}
}

func TestHandleConfirm_StoreFailure(t *testing.T) {
	store := newMockLedgerStore()
	store.appendErr = errors.New("store unreachable")
	ex := &mockExtractor{fields: extract.FieldMap{
		"type":        "Expense",
		"amount":      "50",
		"category":    "Food",
		"subcategory": "Coffee",
		"date":        "2025-06-15",
	}}
	chat, ledgerh, sessions := newTestHandlers(t, store, ex)

	rr := postJSON(t, chat.HandleChat, map[string]string{"text": "spent 50 on coffee"})
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	rr = postJSON(t, ledgerh.HandleConfirm, map[string]interface{}{"session_id": resp.SessionID})
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}

	// A failed append must not be treated as succeeded: the transaction
	// stays parked for another attempt.
	if _, err := sessions.Current(resp.SessionID); err != nil {
		t.Error("transaction must remain in the session after a failed append")
	}
}

func TestHandleChat_LogsRequestID(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logger.NewWithWriter(buf)
	sessions := session.NewStore()
	ex := &mockExtractor{fields: extract.FieldMap{"type": "Expense", "amount": "50"}}
	chat := NewChatHandler(ex, sessions, log)

	handler := middleware.RequestID(http.HandlerFunc(chat.HandleChat))

	body := bytes.NewReader([]byte(`{"text":"spent 50 on coffee"}`))
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	req.Header.Set("X-Request-ID", "req-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), `"request_id":"req-123"`) {
		t.Errorf("log output missing request_id field: %s", buf.String())
	}
}

func TestHandleTransactions_Cached(t *testing.T) {
	store := newMockLedgerStore()
	store.readAllRows = [][]interface{}{
		{"2025-06-15", "500", "Expense", "Food", "Groceries", "weekly shop"},
	}
	_, ledgerh, _ := newTestHandlers(t, store, &mockExtractor{})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
		rr := httptest.NewRecorder()
		ledgerh.HandleTransactions(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
	}

	if store.readAllCalls != 1 {
		t.Errorf("expected a single sheet read across cached requests, got %d", store.readAllCalls)
	}
}

func TestHandleTransactions_SkipsMalformedRows(t *testing.T) {
	store := newMockLedgerStore()
	store.readAllRows = [][]interface{}{
		{"2025-06-15", "500", "Expense", "Food", "Groceries", "ok"},
		{"not a date", "500", "Expense", "Food", "Groceries", "bad"},
	}
	_, ledgerh, _ := newTestHandlers(t, store, &mockExtractor{})

	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	rr := httptest.NewRecorder()
	ledgerh.HandleTransactions(rr, req)

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1 (malformed row skipped)", resp.Count)
	}
}
