package core

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	Income  TransactionKind = "income"
	Expense TransactionKind = "expense"
)

const (
	StatusPending   TransactionStatus = "pending"
	StatusConfirmed TransactionStatus = "confirmed"
	StatusCancelled TransactionStatus = "cancelled"
)

const (
	SourceManual    Source = "manual"
	SourceRecurring Source = "recurring"
	SourceImport    Source = "import"
)

type (
	Frequency         string
	TransactionKind   string
	TransactionStatus string
	Source            string

	// Recurrence describes the schedule of a recurring transaction.
	// NextOccurrence is a running forward pointer derived from
	// (Date, Frequency, Interval); it is never anchored to "now".
	Recurrence struct {
		Frequency      Frequency  `json:"frequency"`
		Interval       int        `json:"interval"`
		EndDate        *time.Time `json:"end_date,omitempty"`
		NextOccurrence *time.Time `json:"next_occurrence,omitempty"`
	}

	// Installments links a transaction to its parent when it is one
	// slice of a larger split purchase.
	Installments struct {
		Current  int    `json:"current"`
		Total    int    `json:"total"`
		ParentID string `json:"parent_id,omitempty"`
	}

	Transaction struct {
		ID           string            `json:"id"`
		Description  string            `json:"description"`
		Amount       decimal.Decimal   `json:"amount"`
		Kind         TransactionKind   `json:"kind"`
		CategoryID   string            `json:"category_id"`
		UserID       string            `json:"user_id"`
		Date         time.Time         `json:"date"`
		Recurrence   *Recurrence       `json:"recurrence,omitempty"`
		Tags         []string          `json:"tags,omitempty"`
		Status       TransactionStatus `json:"status"`
		Installments Installments      `json:"installments"`
		Source       Source            `json:"source"`
		CreatedAt    time.Time         `json:"created_at"`
		UpdatedAt    time.Time         `json:"updated_at"`
	}
)

var (
	ErrNotFound             = errors.New("record not found")
	ErrCategoryNotOwned     = errors.New("category not found or not owned by user")
	ErrCategoryKindMismatch = errors.New("transaction kind does not match category kind")
	ErrDuplicateCategory    = errors.New("a category with this name already exists")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrDuplicateEmail       = errors.New("an account with this email already exists")
)

// FieldError carries a single field-level validation message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field-level validation failures so callers
// can surface them individually.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// AsValidation reports whether err is (or wraps) a ValidationError.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func (k TransactionKind) Valid() bool {
	return k == Income || k == Expense
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (r *Recurrence) Validate() error {
	ve := &ValidationError{}
	if !r.Frequency.Valid() {
		ve.add("recurrence.frequency", "must be daily, weekly, monthly or yearly")
	}
	if r.Interval < 1 {
		ve.add("recurrence.interval", "must be at least 1")
	}
	return ve.orNil()
}

func (t Transaction) Validate() error {
	ve := &ValidationError{}

	desc := strings.TrimSpace(t.Description)
	if len(desc) < 3 {
		ve.add("description", "must have at least 3 characters")
	}
	if len(desc) > 200 {
		ve.add("description", "must have at most 200 characters")
	}
	if !t.Amount.IsPositive() {
		ve.add("amount", "must be greater than zero")
	}
	if !t.Kind.Valid() {
		ve.add("kind", "must be income or expense")
	}
	if t.CategoryID == "" {
		ve.add("category_id", "is required")
	}
	if t.UserID == "" {
		ve.add("user_id", "is required")
	}
	if t.Date.IsZero() {
		ve.add("date", "is required")
	}
	if t.Status != "" && !t.Status.Valid() {
		ve.add("status", "must be pending, confirmed or cancelled")
	}
	for _, tag := range t.Tags {
		if len(tag) > 30 {
			ve.add("tags", "each tag must have at most 30 characters")
			break
		}
	}
	if t.Installments.Total > 1 && t.Installments.Current > t.Installments.Total {
		ve.add("installments", "current installment cannot exceed total")
	}
	if t.Recurrence != nil {
		if err := t.Recurrence.Validate(); err != nil {
			if rve, ok := AsValidation(err); ok {
				ve.Fields = append(ve.Fields, rve.Fields...)
			}
		}
		if t.Recurrence.EndDate != nil && t.Recurrence.EndDate.Before(t.Date) {
			ve.add("recurrence.end_date", "must not be before the transaction date")
		}
	}

	return ve.orNil()
}

// IsRecurring reports whether the transaction is a recurring template.
func (t Transaction) IsRecurring() bool {
	return t.Recurrence != nil
}

// IsInstallment reports whether the transaction is one slice of a split.
func (t Transaction) IsInstallment() bool {
	return t.Installments.Total > 1
}

var hexColorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
