// Package repository implements the domain repository interfaces on SQLite.
package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"arcdiff/internal/domain"
)

func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Message: "resource not found"}
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return &domain.ConflictError{Message: "resource already exists"}
	}
	return err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// clock returns the current time; replaced in tests.
type clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// limitOffset renders LIMIT/OFFSET for a page. SQLite requires a LIMIT
// whenever OFFSET is used, so an unbounded page with an offset uses -1.
func limitOffset(page domain.Page) (string, []any) {
	switch {
	case page.Limit > 0 && page.Offset > 0:
		return " LIMIT ? OFFSET ?", []any{page.Limit, page.Offset}
	case page.Limit > 0:
		return " LIMIT ?", []any{page.Limit}
	case page.Offset > 0:
		return " LIMIT -1 OFFSET ?", []any{page.Offset}
	default:
		return "", nil
	}
}
