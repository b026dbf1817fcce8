package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrRecordNotFound = errors.New("record not found")

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type DB interface {
	Execer
	Getter
	Selecter
}

const dateLayout = "2006-01-02"

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func derefStringPtr(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// contactNameSQL renders "first last" for a contacts alias, trimmed.
func contactNameSQL(alias string) string {
	return "TRIM(COALESCE(" + alias + ".first_name, '') || ' ' || COALESCE(" + alias + ".last_name, ''))"
}
