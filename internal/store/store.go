package store

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Executor is satisfied by *sqlx.DB and *sqlx.Tx, so callers decide the transaction scope.
type Executor = sqlx.ExtContext

// pick falls back to the store's own connection when no executor is supplied.
func pick(q Executor, db *sqlx.DB) Executor {
	if q != nil {
		return q
	}
	return db
}

// checkAffectedRows turns an update that touched nothing into sql.ErrNoRows.
func checkAffectedRows(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
