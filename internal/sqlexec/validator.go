package sqlexec

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"

	"github.com/costlens/costlens/internal/sqlconn"
)

// Category classifies a validation failure.
type Category string

const (
	CategoryNotSelect       Category = "not_select"
	CategoryUnknownColumn   Category = "unknown_column"
	CategoryUnknownTable    Category = "unknown_table"
	CategorySyntaxError     Category = "syntax_error"
	CategoryAmbiguousColumn Category = "ambiguous_column"
	CategoryAccessDenied    Category = "access_denied"
	CategoryOperational     Category = "operational"
	CategoryUnknown         Category = "unknown"
	CategoryOther           Category = "other"
)

// ValidationError carries the database's error code and message verbatim
// alongside the classified category.
type ValidationError struct {
	Code     int      `json:"code"`
	Message  string   `json:"message"`
	Category Category `json:"category"`
}

// ValidationResult is the structured outcome of a dry-run validation.
// Failures are returned here, never raised, so callers can branch without
// error handling.
type ValidationResult struct {
	Valid bool             `json:"is_valid"`
	Error *ValidationError `json:"error,omitempty"`
}

// Validator dry-runs candidate SQL with EXPLAIN against the live warehouse.
// It reuses one lazily opened handle across sequential calls; the contract is
// one caller at a time, and the internal mutex makes concurrent misuse
// degrade to serialization instead of a race.
type Validator struct {
	open sqlconn.Opener

	mu sync.Mutex
	db *sql.DB
}

// NewValidator builds a validator over the given opener.
func NewValidator(open sqlconn.Opener) *Validator {
	return &Validator{open: open}
}

// Validate checks that sql is a read-only, syntactically and referentially
// valid SELECT. The not-SELECT rejection is purely textual and happens
// before any database access.
func (v *Validator) Validate(ctx context.Context, sqlText string) ValidationResult {
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sqlText)), "SELECT") {
		return ValidationResult{
			Valid: false,
			Error: &ValidationError{
				Code:     -1,
				Message:  "only SELECT statements are allowed",
				Category: CategoryNotSelect,
			},
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	db, err := v.handle(ctx)
	if err != nil {
		return ValidationResult{
			Valid: false,
			Error: &ValidationError{Code: -1, Message: err.Error(), Category: CategoryOperational},
		}
	}

	rows, err := db.QueryContext(ctx, "EXPLAIN "+sqlText)
	if err != nil {
		return ValidationResult{Valid: false, Error: classifyError(err)}
	}
	defer func() { _ = rows.Close() }()

	return ValidationResult{Valid: true}
}

// handle returns the shared warehouse handle, opening it on first use and
// reopening it after Close.
func (v *Validator) handle(ctx context.Context) (*sql.DB, error) {
	if v.db != nil {
		return v.db, nil
	}
	db, err := v.open(ctx)
	if err != nil {
		return nil, err
	}
	v.db = db
	return db, nil
}

// Close releases the warehouse handle. The next Validate reopens it.
func (v *Validator) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.db == nil {
		return nil
	}
	err := v.db.Close()
	v.db = nil
	return err
}

func classifyError(err error) *ValidationError {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return &ValidationError{
			Code:     int(mysqlErr.Number),
			Message:  mysqlErr.Message,
			Category: classifyMessage(mysqlErr.Message),
		}
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) || errors.As(err, &netErr) {
		return &ValidationError{Code: -1, Message: err.Error(), Category: CategoryOperational}
	}

	return &ValidationError{Code: -1, Message: err.Error(), Category: CategoryUnknown}
}

// classifyMessage maps a server error message to a category by
// case-insensitive substring, first match wins.
func classifyMessage(message string) Category {
	lowered := strings.ToLower(message)
	switch {
	case strings.Contains(lowered, "unknown column"):
		return CategoryUnknownColumn
	case strings.Contains(lowered, "table") && strings.Contains(lowered, "doesn't exist"):
		return CategoryUnknownTable
	case strings.Contains(lowered, "syntax"):
		return CategorySyntaxError
	case strings.Contains(lowered, "ambiguous"):
		return CategoryAmbiguousColumn
	case strings.Contains(lowered, "access denied"):
		return CategoryAccessDenied
	default:
		return CategoryOther
	}
}

var suggestions = map[Category]string{
	CategoryNotSelect:       "Only SELECT statements can be executed.",
	CategoryUnknownColumn:   "Check the column name; if you used a table alias, make sure it is correct.",
	CategoryUnknownTable:    "Check the table name and re-query the schema catalog.",
	CategorySyntaxError:     "Check the SQL syntax: parentheses, quotes, and reserved words.",
	CategoryAmbiguousColumn: "The column exists in several tables; qualify it as table.column.",
	CategoryAccessDenied:    "You do not have access to this table.",
}

// Suggestion returns a fix hint for the category, echoing the raw message
// for unmapped categories.
func Suggestion(category Category, message string) string {
	if hint, ok := suggestions[category]; ok {
		return hint
	}
	return "Check the error: " + message
}
