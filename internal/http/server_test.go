package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"financas/internal/auth"
	"financas/internal/cache"
	"financas/internal/filters"
	"financas/internal/kv"
	"financas/internal/memories"
	"financas/internal/services"
	"financas/internal/storage/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store := memory.NewStore()
	kvStore := kv.NewMemoryStore()
	memo := cache.NewMemoCache[services.Summary](time.Minute)

	categories := services.NewCategoryService(store, memo, nil)
	return NewServer(":0", Deps{
		Users:        services.NewUserService(store, categories, nil),
		Transactions: services.NewTransactionService(store, memo, nil, nil),
		Categories:   categories,
		Goals:        services.NewGoalService(store, nil, nil),
		Memories:     memories.NewEngine(kvStore, nil),
		Filters:      filters.NewStore(kvStore, nil),
		Tokens:       auth.NewTokenIssuer("test-secret-0123456789abcdef", time.Hour),
	})
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.1:12345"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, srv *Server) (token string) {
	t.Helper()

	rec := doJSON(t, srv, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     "Ana Souza",
		"email":    "ana@example.com",
		"password": "s3cret-pass",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("register returned empty token")
	}
	return resp.Token
}

func firstCategoryID(t *testing.T, srv *Server, token, kind string) string {
	t.Helper()

	rec := doJSON(t, srv, http.MethodGet, "/api/categories", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list categories status = %d", rec.Code)
	}
	var cats []struct {
		ID   string `json:"id"`
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &cats); err != nil {
		t.Fatalf("decode categories: %v", err)
	}
	for _, c := range cats {
		if c.Kind == kind {
			return c.ID
		}
	}
	t.Fatalf("no %s category provisioned", kind)
	return ""
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, srv, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/transactions", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/transactions", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status with garbage token = %d, want 401", rec.Code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	srv := newTestServer(t)
	registerUser(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "ANA@example.com",
		"password": "s3cret-pass",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "ana@example.com",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     "Ana Again",
		"email":    "Ana@Example.com",
		"password": "another-pass",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate email status = %d, want 409", rec.Code)
	}
}

func TestMe(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv)

	rec := doJSON(t, srv, http.MethodGet, "/api/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d", rec.Code)
	}
	var user struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user.Email != "ana@example.com" {
		t.Fatalf("email = %q, want normalized ana@example.com", user.Email)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv)
	catID := firstCategoryID(t, srv, token, "expense")

	rec := doJSON(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
		"description": "Groceries",
		"amount":      "120.50",
		"kind":        "expense",
		"category_id": catID,
		"date":        "2026-08-10T00:00:00Z",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.Status != "confirmed" {
		t.Errorf("default status = %q, want confirmed", created.Status)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/transactions/"+created.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPatch, "/api/transactions/"+created.ID, token, map[string]any{
		"description": "Groceries and cleaning",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/transactions/summary", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rec.Code)
	}
	var summary struct {
		Expense string `json:"expense"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Expense != "120.5" {
		t.Errorf("summary expense = %q, want 120.5", summary.Expense)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/transactions/"+created.ID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
		"description": "",
		"amount":      "0",
		"kind":        "expense",
		"category_id": "",
		"date":        "2026-08-10T00:00:00Z",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Fields []struct {
			Field string `json:"field"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if len(body.Fields) == 0 {
		t.Fatal("expected field-level validation details")
	}
}

func TestCreateTransactionKindMismatch(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv)
	incomeCat := firstCategoryID(t, srv, token, "income")

	rec := doJSON(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
		"description": "Mismatched",
		"amount":      "10",
		"kind":        "expense",
		"category_id": incomeCat,
		"date":        "2026-08-10T00:00:00Z",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body %s", rec.Code, rec.Body.String())
	}
}

func TestCategoryLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/categories", token, map[string]any{
		"name":  "Subscriptions",
		"kind":  "expense",
		"color": "#AA00FF",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}

	// Duplicate name, case-insensitively.
	rec = doJSON(t, srv, http.MethodPost, "/api/categories", token, map[string]any{
		"name":  "  SUBSCRIPTIONS ",
		"kind":  "expense",
		"color": "#AA00FF",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPatch, "/api/categories/"+created.ID, token, map[string]any{
		"color": "#00FF00",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/categories/"+created.ID+"/recompute", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("recompute status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/categories/"+created.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
}

func TestGoalLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/goals", token, map[string]any{
		"title":         "Emergency fund",
		"kind":          "emergency-fund",
		"target_amount": "1000",
		"target_date":   time.Now().AddDate(1, 0, 0).Format(time.RFC3339),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var goal struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		Milestones []struct {
			Percentage int `json:"percentage"`
		} `json:"milestones"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &goal); err != nil {
		t.Fatalf("decode goal: %v", err)
	}
	if goal.Status != "active" {
		t.Errorf("default status = %q, want active", goal.Status)
	}
	if len(goal.Milestones) != 4 {
		t.Errorf("milestones = %d, want default ladder of 4", len(goal.Milestones))
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/goals/"+goal.ID+"/contributions", token, map[string]any{
		"amount": "1000",
		"date":   "2026-08-15T00:00:00Z",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("contribution status = %d, body %s", rec.Code, rec.Body.String())
	}
	var contributed struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &contributed); err != nil {
		t.Fatalf("decode contributed: %v", err)
	}
	if contributed.Status != "completed" {
		t.Errorf("status after full funding = %q, want completed", contributed.Status)
	}

	// Completion is one-directional.
	rec = doJSON(t, srv, http.MethodPatch, "/api/goals/"+goal.ID, token, map[string]any{
		"status": "active",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("reactivation status = %d, want 409", rec.Code)
	}
}

func TestInsightsFlow(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv)
	catID := firstCategoryID(t, srv, token, "expense")

	for i := 0; i < 3; i++ {
		rec := doJSON(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
			"description": fmt.Sprintf("Purchase %d", i),
			"amount":      "50",
			"kind":        "expense",
			"category_id": catID,
			"date":        time.Now().UTC().Format(time.RFC3339),
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create tx %d status = %d", i, rec.Code)
		}
	}

	rec := doJSON(t, srv, http.MethodPost, "/api/insights/snapshot", token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("snapshot status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/insights/analyze", token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("analyze status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/insights/generate", token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/insights?limit=5", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("recent status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/insights/history", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	var history []struct {
		Month string `json:"month"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history len = %d, want 1", len(history))
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/insights/export", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}

	other := newTestServer(t)
	otherToken := registerUser(t, other)
	req := httptest.NewRequest(http.MethodPost, "/api/insights/import", bytes.NewReader(rec.Body.Bytes()))
	req.RemoteAddr = "192.0.2.1:12345"
	req.Header.Set("Authorization", "Bearer "+otherToken)
	importRec := httptest.NewRecorder()
	other.Server.Handler.ServeHTTP(importRec, req)
	if importRec.Code != http.StatusNoContent {
		t.Fatalf("import status = %d, body %s", importRec.Code, importRec.Body.String())
	}

	rec = doJSON(t, other, http.MethodGet, "/api/insights/history", otherToken, nil)
	var imported []struct {
		Month string `json:"month"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &imported); err != nil {
		t.Fatalf("decode imported history: %v", err)
	}
	if len(imported) != 1 {
		t.Fatalf("imported history len = %d, want 1", len(imported))
	}
}

func TestFilterLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/filters", token, map[string]any{
		"name": "Big expenses",
		"criteria": map[string]any{
			"min_amount": "100",
			"kinds":      []string{"expense"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("save status = %d, body %s", rec.Code, rec.Body.String())
	}
	var saved struct {
		ID         string `json:"id"`
		UsageCount int    `json:"usage_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode saved: %v", err)
	}
	if saved.UsageCount != 0 {
		t.Errorf("initial usage count = %d, want 0", saved.UsageCount)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/filters/"+saved.ID+"/apply", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("apply status = %d", rec.Code)
	}
	var applied struct {
		UsageCount int `json:"usage_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &applied); err != nil {
		t.Fatalf("decode applied: %v", err)
	}
	if applied.UsageCount != 1 {
		t.Errorf("usage count after apply = %d, want 1", applied.UsageCount)
	}

	rec = doJSON(t, srv, http.MethodPatch, "/api/filters/"+saved.ID, token, map[string]any{
		"name": "Large expenses",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/filters/"+saved.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/filters/"+saved.ID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/categories", token, map[string]any{
		"name":   "Typo",
		"kind":   "expense",
		"color":  "#112233",
		"budgte": map[string]string{"monthly": "10"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown field", rec.Code)
	}
}
