// Package memories is a local analytics engine. It derives monthly
// snapshots, category spending patterns, and rule-based insights from raw
// transaction records kept in a key-value store, without touching the
// main persistence layer.
package memories

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/core"
	"financas/internal/kv"
	"financas/internal/log"
)

const (
	memoriesKey   = "financial_memories"
	incomeKey     = "receitas"
	expenseKey    = "despesas"
	categoriesKey = "categorias"

	uncategorized = "uncategorized"

	maxSnapshots = 24
	maxAnalyses  = 12
	maxInsights  = 50
)

type InsightKind string

const (
	InsightPositive      InsightKind = "positive"
	InsightWarning       InsightKind = "warning"
	InsightInformational InsightKind = "informational"
)

// RawEntry is one locally stored transaction-like record under the
// receitas or despesas keys.
type RawEntry struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category,omitempty"`
	Date        time.Time       `json:"date"`
	Recurring   bool            `json:"recurring,omitempty"`
}

// MemorySnapshot aggregates one calendar month.
type MemorySnapshot struct {
	Month        string          `json:"month"`
	Date         time.Time       `json:"date"`
	Income       decimal.Decimal `json:"income"`
	Expense      decimal.Decimal `json:"expense"`
	Balance      decimal.Decimal `json:"balance"`
	IncomeCount  int             `json:"income_count"`
	ExpenseCount int             `json:"expense_count"`
}

// CategoryPattern summarizes the entries of one category label.
type CategoryPattern struct {
	Category       string          `json:"category"`
	Total          decimal.Decimal `json:"total"`
	Count          int             `json:"count"`
	Average        decimal.Decimal `json:"average"`
	RecurringCount int             `json:"recurring_count"`
}

// CategoryAnalysis is one run of AnalyzeCategoryPatterns.
type CategoryAnalysis struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Expenses    []CategoryPattern `json:"expenses"`
	Incomes     []CategoryPattern `json:"incomes"`
}

// Insight is a generated, timestamped observation.
type Insight struct {
	Kind        InsightKind `json:"kind"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	CreatedAt   time.Time   `json:"created_at"`
}

// State is the full analytics blob stored under financial_memories.
type State struct {
	Balances   []MemorySnapshot   `json:"balances"`
	Categories []CategoryAnalysis `json:"categories"`
	Habits     []json.RawMessage  `json:"habits"`
	Goals      []core.Goal        `json:"goals"`
	Insights   []Insight          `json:"insights"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Backup is the export/import document. Keys absent from an imported
// blob leave the corresponding stored keys untouched.
type Backup struct {
	Memories   *State            `json:"financial_memories,omitempty"`
	Incomes    []RawEntry        `json:"receitas,omitempty"`
	Expenses   []RawEntry        `json:"despesas,omitempty"`
	Categories []json.RawMessage `json:"categorias,omitempty"`
	ExportedAt time.Time         `json:"exported_at"`
}

// Engine runs the analytics operations against a key-value store.
type Engine struct {
	mu     sync.Mutex
	kv     kv.Store
	logger *log.Logger
	now    func() time.Time
}

func NewEngine(kvStore kv.Store, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentMemories})
	}
	return &Engine{
		kv:     kvStore,
		logger: logger.WithComponent(log.ComponentMemories),
		now:    time.Now,
	}
}

// loadState reads the analytics blob. Missing or corrupt blobs come back
// as a fresh empty state; availability wins over strict fidelity here.
func (e *Engine) loadState() *State {
	raw, err := e.kv.GetItem(memoriesKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			e.logger.Warn("Failed to read analytics state, reinitializing", log.FieldError, err)
		}
		return &State{CreatedAt: e.now()}
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		e.logger.Warn("Corrupt analytics state, reinitializing", log.FieldError, err)
		return &State{CreatedAt: e.now()}
	}
	return &st
}

func (e *Engine) persistState(st *State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal analytics state: %w", err)
	}
	if err := e.kv.SetItem(memoriesKey, raw); err != nil {
		return fmt.Errorf("persist analytics state: %w", err)
	}
	return nil
}

func (e *Engine) loadEntries(key string) []RawEntry {
	raw, err := e.kv.GetItem(key)
	if err != nil {
		return nil
	}
	var entries []RawEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		e.logger.Warn("Corrupt raw entries, treating as empty", "key", key, log.FieldError, err)
		return nil
	}
	return entries
}

// TakeMonthlySnapshot aggregates the current calendar month from the raw
// entry arrays and upserts the result into the balance history. At most
// one snapshot exists per month; re-snapshotting overwrites. The history
// keeps the most recent 24 months.
func (e *Engine) TakeMonthlySnapshot() (*MemorySnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	month := core.MonthKey(now)

	snapshot := MemorySnapshot{Month: month, Date: now}
	for _, entry := range e.loadEntries(incomeKey) {
		if core.MonthKey(entry.Date) != month {
			continue
		}
		snapshot.Income = snapshot.Income.Add(entry.Amount)
		snapshot.IncomeCount++
	}
	for _, entry := range e.loadEntries(expenseKey) {
		if core.MonthKey(entry.Date) != month {
			continue
		}
		snapshot.Expense = snapshot.Expense.Add(entry.Amount)
		snapshot.ExpenseCount++
	}
	snapshot.Balance = snapshot.Income.Sub(snapshot.Expense)

	st := e.loadState()
	replaced := false
	for i := range st.Balances {
		if st.Balances[i].Month == month {
			st.Balances[i] = snapshot
			replaced = true
			break
		}
	}
	if !replaced {
		st.Balances = append(st.Balances, snapshot)
	}

	sort.Slice(st.Balances, func(i, j int) bool {
		return st.Balances[i].Date.After(st.Balances[j].Date)
	})
	if len(st.Balances) > maxSnapshots {
		st.Balances = st.Balances[:maxSnapshots]
	}

	if err := e.persistState(st); err != nil {
		return nil, err
	}

	e.logger.Debug("Monthly snapshot taken", log.FieldMonthKey, month,
		"income_count", snapshot.IncomeCount, "expense_count", snapshot.ExpenseCount)
	return &snapshot, nil
}

// AnalyzeCategoryPatterns groups the raw entries by category label and
// appends one analysis run, keeping the most recent 12.
func (e *Engine) AnalyzeCategoryPatterns() (*CategoryAnalysis, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	analysis := CategoryAnalysis{
		GeneratedAt: e.now(),
		Expenses:    groupByCategory(e.loadEntries(expenseKey)),
		Incomes:     groupByCategory(e.loadEntries(incomeKey)),
	}

	st := e.loadState()
	st.Categories = append(st.Categories, analysis)
	if len(st.Categories) > maxAnalyses {
		st.Categories = st.Categories[len(st.Categories)-maxAnalyses:]
	}

	if err := e.persistState(st); err != nil {
		return nil, err
	}
	return &analysis, nil
}

func groupByCategory(entries []RawEntry) []CategoryPattern {
	byLabel := make(map[string]*CategoryPattern)
	var order []string
	for _, entry := range entries {
		label := entry.Category
		if label == "" {
			label = uncategorized
		}
		p, ok := byLabel[label]
		if !ok {
			p = &CategoryPattern{Category: label}
			byLabel[label] = p
			order = append(order, label)
		}
		p.Total = p.Total.Add(entry.Amount)
		p.Count++
		if entry.Recurring {
			p.RecurringCount++
		}
	}

	out := make([]CategoryPattern, 0, len(order))
	for _, label := range order {
		p := byLabel[label]
		p.Average = p.Total.Div(decimal.NewFromInt(int64(p.Count))).Round(2)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Total.GreaterThan(out[j].Total) })
	return out
}

// GenerateInsights re-derives rule-based observations from the current
// snapshots and category analyses and appends them to the insight log,
// keeping the most recent 50.
func (e *Engine) GenerateInsights() ([]Insight, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.loadState()
	now := e.now()

	var generated []Insight
	if ins := balanceTrendInsight(st.Balances, now); ins != nil {
		generated = append(generated, *ins)
	}
	if len(st.Categories) > 0 {
		latest := st.Categories[len(st.Categories)-1]
		if ins := topExpenseInsight(latest, now); ins != nil {
			generated = append(generated, *ins)
		}
		if ins := savingsRateInsight(latest, now); ins != nil {
			generated = append(generated, *ins)
		}
	}

	st.Insights = append(st.Insights, generated...)
	if len(st.Insights) > maxInsights {
		st.Insights = st.Insights[len(st.Insights)-maxInsights:]
	}

	if err := e.persistState(st); err != nil {
		return nil, err
	}
	return generated, nil
}

// balanceTrendInsight compares the two most recent snapshots. Needs at
// least two months of history.
func balanceTrendInsight(balances []MemorySnapshot, now time.Time) *Insight {
	if len(balances) < 2 {
		return nil
	}
	latest, previous := balances[0], balances[1]
	delta := latest.Balance.Sub(previous.Balance)

	switch {
	case delta.IsPositive():
		return &Insight{
			Kind:        InsightPositive,
			Title:       "Balance is growing",
			Description: fmt.Sprintf("Your monthly balance rose by %s compared to the previous month.", delta.String()),
			CreatedAt:   now,
		}
	case delta.IsNegative():
		return &Insight{
			Kind:        InsightWarning,
			Title:       "Balance is shrinking",
			Description: fmt.Sprintf("Your monthly balance fell by %s compared to the previous month.", delta.Abs().String()),
			CreatedAt:   now,
		}
	default:
		return nil
	}
}

// topExpenseInsight names the single largest expense category from the
// latest analysis.
func topExpenseInsight(analysis CategoryAnalysis, now time.Time) *Insight {
	if len(analysis.Expenses) == 0 {
		return nil
	}
	top := analysis.Expenses[0]
	return &Insight{
		Kind:        InsightInformational,
		Title:       "Top expense category",
		Description: fmt.Sprintf("Most of your spending goes to %s, totalling %s.", top.Category, top.Total.String()),
		CreatedAt:   now,
	}
}

// savingsRateInsight classifies (income - expense) / income. Zero income
// yields no insight, and the band from 0% up to 10% deliberately emits
// nothing.
func savingsRateInsight(analysis CategoryAnalysis, now time.Time) *Insight {
	var income, expense decimal.Decimal
	for _, p := range analysis.Incomes {
		income = income.Add(p.Total)
	}
	for _, p := range analysis.Expenses {
		expense = expense.Add(p.Total)
	}
	if income.IsZero() {
		return nil
	}

	rate := income.Sub(expense).Div(income).Mul(decimal.NewFromInt(100))
	switch {
	case rate.GreaterThanOrEqual(decimal.NewFromInt(20)):
		return &Insight{
			Kind:        InsightPositive,
			Title:       "Excellent savings rate",
			Description: fmt.Sprintf("You are saving %s%% of your income. Keep it up.", rate.Round(1).String()),
			CreatedAt:   now,
		}
	case rate.GreaterThanOrEqual(decimal.NewFromInt(10)):
		return &Insight{
			Kind:        InsightPositive,
			Title:       "Good savings rate",
			Description: fmt.Sprintf("You are saving %s%% of your income.", rate.Round(1).String()),
			CreatedAt:   now,
		}
	case rate.IsNegative():
		return &Insight{
			Kind:        InsightWarning,
			Title:       "Spending more than you earn",
			Description: fmt.Sprintf("Your expenses exceed your income by %s%%.", rate.Abs().Round(1).String()),
			CreatedAt:   now,
		}
	default:
		return nil
	}
}

// RecentInsights returns up to n insights, newest first.
func (e *Engine) RecentInsights(n int) []Insight {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.loadState()
	out := make([]Insight, 0, n)
	for i := len(st.Insights) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, st.Insights[i])
	}
	return out
}

// BalanceHistory returns the stored snapshots, newest first.
func (e *Engine) BalanceHistory() []MemorySnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.loadState()
	out := make([]MemorySnapshot, len(st.Balances))
	copy(out, st.Balances)
	return out
}

// RecordEntry appends a raw record to the income or expense array, the
// feed the snapshot and pattern operations read from.
func (e *Engine) RecordEntry(kind core.TransactionKind, entry RawEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := expenseKey
	if kind == core.Income {
		key = incomeKey
	}

	entries := append(e.loadEntries(key), entry)
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal raw entries: %w", err)
	}
	if err := e.kv.SetItem(key, raw); err != nil {
		return fmt.Errorf("persist raw entries: %w", err)
	}
	return nil
}

// ExportSnapshot serializes the full local state as one backup document.
func (e *Engine) ExportSnapshot() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	backup := Backup{
		Memories:   e.loadState(),
		Incomes:    e.loadEntries(incomeKey),
		Expenses:   e.loadEntries(expenseKey),
		ExportedAt: e.now(),
	}
	if raw, err := e.kv.GetItem(categoriesKey); err == nil {
		var cats []json.RawMessage
		if err := json.Unmarshal(raw, &cats); err == nil {
			backup.Categories = cats
		}
	}

	out, err := json.Marshal(backup)
	if err != nil {
		return nil, fmt.Errorf("marshal backup: %w", err)
	}
	return out, nil
}

// ImportSnapshot restores a backup document. Only keys present in the
// blob are overwritten; a backup lacking categorias leaves the stored
// categories intact.
func (e *Engine) ImportSnapshot(blob []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var backup Backup
	if err := json.Unmarshal(blob, &backup); err != nil {
		return fmt.Errorf("parse backup: %w", err)
	}

	if backup.Memories != nil {
		if err := e.persistState(backup.Memories); err != nil {
			return err
		}
	}
	if backup.Incomes != nil {
		if err := e.setEntries(incomeKey, backup.Incomes); err != nil {
			return err
		}
	}
	if backup.Expenses != nil {
		if err := e.setEntries(expenseKey, backup.Expenses); err != nil {
			return err
		}
	}
	if backup.Categories != nil {
		raw, err := json.Marshal(backup.Categories)
		if err != nil {
			return fmt.Errorf("marshal imported categories: %w", err)
		}
		if err := e.kv.SetItem(categoriesKey, raw); err != nil {
			return fmt.Errorf("persist imported categories: %w", err)
		}
	}

	e.logger.Info("Backup imported",
		"memories", backup.Memories != nil,
		"incomes", len(backup.Incomes),
		"expenses", len(backup.Expenses))
	return nil
}

func (e *Engine) setEntries(key string, entries []RawEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal raw entries: %w", err)
	}
	if err := e.kv.SetItem(key, raw); err != nil {
		return fmt.Errorf("persist raw entries: %w", err)
	}
	return nil
}
