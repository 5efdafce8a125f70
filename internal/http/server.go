// Package http exposes the application as a JSON REST API. Handlers stay
// thin: they decode, delegate to a service, and map errors to status
// codes. All business rules live behind the services.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"financas/internal/auth"
	"financas/internal/filters"
	"financas/internal/log"
	"financas/internal/memories"
	"financas/internal/services"
)

// Deps bundles everything the server needs. All fields are required
// except Logger, which falls back to a component default.
type Deps struct {
	Users        *services.UserService
	Transactions *services.TransactionService
	Categories   *services.CategoryService
	Goals        *services.GoalService
	Memories     *memories.Engine
	Filters      *filters.Store
	Tokens       *auth.TokenIssuer
	Logger       *log.Logger
}

type Server struct {
	http.Server

	users        *services.UserService
	transactions *services.TransactionService
	categories   *services.CategoryService
	goals        *services.GoalService
	memories     *memories.Engine
	filters      *filters.Store
	tokens       *auth.TokenIssuer

	rateLimiter  *rateLimiter
	logger       *log.Logger
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentHTTP})
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:           addr,
			Handler:        mux,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 16,
		},
		users:        deps.Users,
		transactions: deps.Transactions,
		categories:   deps.Categories,
		goals:        deps.Goals,
		memories:     deps.Memories,
		filters:      deps.Filters,
		tokens:       deps.Tokens,
		rateLimiter:  newRateLimiter(),
		logger:       logger.WithComponent(log.ComponentHTTP),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/auth/register", s.wrap(s.handleRegister))
	mux.HandleFunc("POST /api/auth/login", s.wrap(s.handleLogin))
	mux.HandleFunc("GET /api/me", s.wrapAuth(s.handleMe))

	mux.HandleFunc("GET /api/categories", s.wrapAuth(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.wrapAuth(s.handleCreateCategory))
	mux.HandleFunc("POST /api/categories/defaults", s.wrapAuth(s.handleCreateDefaultCategories))
	mux.HandleFunc("GET /api/categories/{id}", s.wrapAuth(s.handleGetCategory))
	mux.HandleFunc("PATCH /api/categories/{id}", s.wrapAuth(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.wrapAuth(s.handleDeleteCategory))
	mux.HandleFunc("POST /api/categories/{id}/recompute", s.wrapAuth(s.handleRecomputeCategory))

	mux.HandleFunc("GET /api/transactions", s.wrapAuth(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.wrapAuth(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/transactions/summary", s.wrapAuth(s.handleTransactionSummary))
	mux.HandleFunc("GET /api/transactions/{id}", s.wrapAuth(s.handleGetTransaction))
	mux.HandleFunc("PATCH /api/transactions/{id}", s.wrapAuth(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.wrapAuth(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/goals", s.wrapAuth(s.handleListGoals))
	mux.HandleFunc("POST /api/goals", s.wrapAuth(s.handleCreateGoal))
	mux.HandleFunc("GET /api/goals/{id}", s.wrapAuth(s.handleGetGoal))
	mux.HandleFunc("PATCH /api/goals/{id}", s.wrapAuth(s.handleUpdateGoal))
	mux.HandleFunc("DELETE /api/goals/{id}", s.wrapAuth(s.handleDeleteGoal))
	mux.HandleFunc("POST /api/goals/{id}/contributions", s.wrapAuth(s.handleAddContribution))

	mux.HandleFunc("GET /api/insights", s.wrapAuth(s.handleRecentInsights))
	mux.HandleFunc("GET /api/insights/history", s.wrapAuth(s.handleBalanceHistory))
	mux.HandleFunc("POST /api/insights/snapshot", s.wrapAuth(s.handleTakeSnapshot))
	mux.HandleFunc("POST /api/insights/analyze", s.wrapAuth(s.handleAnalyzePatterns))
	mux.HandleFunc("POST /api/insights/generate", s.wrapAuth(s.handleGenerateInsights))
	mux.HandleFunc("GET /api/insights/export", s.wrapAuth(s.handleExportMemories))
	mux.HandleFunc("POST /api/insights/import", s.wrapAuth(s.handleImportMemories))

	mux.HandleFunc("GET /api/filters", s.wrapAuth(s.handleListFilters))
	mux.HandleFunc("POST /api/filters", s.wrapAuth(s.handleSaveFilter))
	mux.HandleFunc("PATCH /api/filters/{id}", s.wrapAuth(s.handleUpdateFilter))
	mux.HandleFunc("DELETE /api/filters/{id}", s.wrapAuth(s.handleDeleteFilter))
	mux.HandleFunc("POST /api/filters/{id}/apply", s.wrapAuth(s.handleApplyFilter))

	return s
}

// Shutdown stops the rate limiter cleanup goroutine and then the HTTP
// server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
