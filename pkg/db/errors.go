package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolationCode = "23505"

// IsUniqueViolation reports whether the provided error is a Postgres unique
// violation. When fragment is given, the violated constraint name (or the
// error text) must contain it. SQLite, used by repository tests, reports
// uniqueness failures as plain errors, so the helper falls back to message
// inspection there.
func IsUniqueViolation(err error, fragment string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolationCode {
			return false
		}
		return fragment == "" || strings.Contains(pgErr.ConstraintName, fragment)
	}

	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") && !strings.Contains(msg, "duplicate key value") {
		return false
	}
	return fragment == "" || strings.Contains(msg, fragment)
}
