package services

import (
	"context"
	"testing"
	"time"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/storage"
	"financas/internal/storage/memory"
)

func seedRecurringTransaction(t *testing.T, store storage.Store, categoryID string, next time.Time, endDate *time.Time) *core.Transaction {
	t.Helper()
	tx := &core.Transaction{
		ID:          "template-" + next.Format("2006-01-02"),
		Description: "monthly rent",
		Amount:      dec("1200"),
		Kind:        core.Expense,
		CategoryID:  categoryID,
		UserID:      "u1",
		Date:        next.AddDate(0, -1, 0),
		Status:      core.StatusConfirmed,
		Source:      core.SourceManual,
		Recurrence: &core.Recurrence{
			Frequency:      core.Monthly,
			Interval:       1,
			NextOccurrence: &next,
			EndDate:        endDate,
		},
	}
	if err := store.SaveTransaction(context.Background(), tx); err != nil {
		t.Fatalf("seed recurring transaction: %v", err)
	}
	return tx
}

func TestRecurringProcessor_MaterializesDueTransaction(t *testing.T) {
	store := memory.NewStore()
	publisher := &capturingPublisher{}
	goals := NewGoalService(store, publisher, nil)
	proc := NewRecurringProcessor(store, goals, publisher, nil)

	category := seedCategory(t, store, "u1", core.Expense, "Housing")
	due := date(2026, 8, 1)
	seedRecurringTransaction(t, store, category.ID, due, nil)

	now := date(2026, 8, 1).Add(9 * time.Hour)
	processed, err := proc.ProcessDue(context.Background(), now)
	if err != nil {
		t.Fatalf("ProcessDue() error: %v", err)
	}
	if processed != 1 {
		t.Fatalf("processed = %d, want 1", processed)
	}

	txs, _ := store.FindTransactions(context.Background(), storage.TransactionQuery{UserID: "u1"})
	var child *core.Transaction
	var template *core.Transaction
	for i := range txs {
		if txs[i].Source == core.SourceRecurring {
			child = &txs[i]
		}
		if txs[i].IsRecurring() {
			template = &txs[i]
		}
	}
	if child == nil {
		t.Fatal("no materialized child transaction")
	}
	if !child.Date.Equal(due) {
		t.Errorf("child date = %v, want the due date %v", child.Date, due)
	}
	if child.IsRecurring() {
		t.Error("child must not carry the recurrence descriptor")
	}
	if child.Installments.ParentID != "template-2026-08-01" {
		t.Errorf("child parent link = %q", child.Installments.ParentID)
	}

	// Pointer advances one period from its own value.
	if template == nil || template.Recurrence.NextOccurrence == nil {
		t.Fatal("template lost its recurrence pointer")
	}
	if !template.Recurrence.NextOccurrence.Equal(date(2026, 9, 1)) {
		t.Errorf("advanced pointer = %v, want 2026-09-01", template.Recurrence.NextOccurrence)
	}

	// Category stats include the child.
	got, _ := store.FindCategory(context.Background(), "u1", category.ID)
	if got.Stats.TotalTransactions != 2 {
		t.Errorf("category stats count = %d, want template + child", got.Stats.TotalTransactions)
	}

	found := false
	for _, msg := range publisher.messages {
		if msg.Event == amqp.EventRecurrenceMaterialized && msg.TxnID == child.ID {
			found = true
		}
	}
	if !found {
		t.Error("no materialization notification published")
	}
}

func TestRecurringProcessor_NotYetDue(t *testing.T) {
	store := memory.NewStore()
	proc := NewRecurringProcessor(store, NewGoalService(store, nil, nil), nil, nil)

	category := seedCategory(t, store, "u1", core.Expense, "Housing")
	seedRecurringTransaction(t, store, category.ID, date(2026, 9, 1), nil)

	processed, err := proc.ProcessDue(context.Background(), date(2026, 8, 15))
	if err != nil {
		t.Fatalf("ProcessDue() error: %v", err)
	}
	if processed != 0 {
		t.Errorf("processed = %d, want 0 for a future pointer", processed)
	}
}

func TestRecurringProcessor_EndDateSkips(t *testing.T) {
	store := memory.NewStore()
	proc := NewRecurringProcessor(store, NewGoalService(store, nil, nil), nil, nil)

	category := seedCategory(t, store, "u1", core.Expense, "Housing")
	end := date(2026, 7, 15)
	due := date(2026, 8, 1) // already past the end date
	seedRecurringTransaction(t, store, category.ID, due, &end)

	processed, err := proc.ProcessDue(context.Background(), date(2026, 8, 2))
	if err != nil {
		t.Fatalf("ProcessDue() error: %v", err)
	}
	if processed != 0 {
		t.Errorf("processed = %d, want 0 for a schedule past its end date", processed)
	}

	txs, _ := store.FindTransactions(context.Background(), storage.TransactionQuery{UserID: "u1"})
	if len(txs) != 1 {
		t.Fatalf("transactions = %d, want only the template (no child past end date)", len(txs))
	}
	if !txs[0].Recurrence.NextOccurrence.Equal(due) {
		t.Errorf("pointer = %v, want unchanged %v", txs[0].Recurrence.NextOccurrence, due)
	}
}

func TestRecurringProcessor_PartialFailureIsolation(t *testing.T) {
	store := memory.NewStore()
	proc := NewRecurringProcessor(store, NewGoalService(store, nil, nil), nil, nil)

	category := seedCategory(t, store, "u1", core.Expense, "Housing")

	// One healthy template and one with a dangling category reference.
	seedRecurringTransaction(t, store, category.ID, date(2026, 8, 1), nil)
	broken := seedRecurringTransaction(t, store, category.ID, date(2026, 8, 2), nil)
	broken.ID = "broken-template"
	broken.CategoryID = "deleted-category"
	if err := store.SaveTransaction(context.Background(), broken); err != nil {
		t.Fatal(err)
	}

	processed, err := proc.ProcessDue(context.Background(), date(2026, 8, 3))
	if err != nil {
		t.Fatalf("ProcessDue() error: %v", err)
	}
	// Both materialize; the broken one only fails its stats recompute,
	// which is logged, not fatal. The healthy one must be untouched by
	// the neighbor's trouble either way.
	if processed < 1 {
		t.Errorf("processed = %d, want at least the healthy template", processed)
	}

	txs, _ := store.FindTransactions(context.Background(), storage.TransactionQuery{
		UserID: "u1",
		Status: core.StatusConfirmed,
	})
	var healthyChild bool
	for _, tx := range txs {
		if tx.Source == core.SourceRecurring && tx.CategoryID == category.ID {
			healthyChild = true
		}
	}
	if !healthyChild {
		t.Error("healthy template was not materialized")
	}
}

func TestRecurringProcessor_GoalContribution(t *testing.T) {
	store := memory.NewStore()
	goals := NewGoalService(store, nil, nil)
	goals.now = func() time.Time { return date(2026, 7, 1) }
	proc := NewRecurringProcessor(store, goals, nil, nil)

	created, err := goals.Create(context.Background(), core.Goal{
		Title:        "Vacation",
		Kind:         core.GoalSavings,
		TargetAmount: dec("5000"),
		TargetDate:   date(2027, 12, 31),
		UserID:       "u1",
		Recurring:    &core.GoalRecurrence{Frequency: core.Monthly, Amount: dec("200")},
	})
	if err != nil {
		t.Fatal(err)
	}
	// Pointer was derived to 2026-08-01 at creation.

	processed, err := proc.ProcessDue(context.Background(), date(2026, 8, 1))
	if err != nil {
		t.Fatalf("ProcessDue() error: %v", err)
	}
	if processed != 1 {
		t.Fatalf("processed = %d, want 1 goal contribution", processed)
	}

	goal, _ := store.FindGoal(context.Background(), "u1", created.ID)
	if !goal.CurrentAmount.Equal(dec("200")) {
		t.Errorf("CurrentAmount = %s, want 200", goal.CurrentAmount)
	}
	if len(goal.Contributions) != 1 || goal.Contributions[0].Description != "Automatic contribution" {
		t.Errorf("Contributions = %+v", goal.Contributions)
	}
	if goal.Recurring.NextContribution == nil || !goal.Recurring.NextContribution.Equal(date(2026, 9, 1)) {
		t.Errorf("NextContribution = %v, want advanced to 2026-09-01", goal.Recurring.NextContribution)
	}

	// Paused goals are never contributed to.
	paused := core.GoalPaused
	if _, err := goals.Update(context.Background(), "u1", created.ID, GoalPatch{Status: &paused}); err != nil {
		t.Fatal(err)
	}
	processed, err = proc.ProcessDue(context.Background(), date(2026, 9, 1))
	if err != nil {
		t.Fatal(err)
	}
	if processed != 0 {
		t.Errorf("processed = %d for a paused goal, want 0", processed)
	}
}
