package migration

import (
	"context"
	"database/sql"
	"fmt"
)

// LedgerTables are the tables the ledger service needs at startup
var LedgerTables = []string{"donation_projects", "donations", "annual_goals"}

const tableExistsQuery = `SELECT EXISTS (
	SELECT 1 FROM information_schema.tables
	WHERE table_schema = current_schema() AND table_name = $1
)`

// MissingTables returns the entries of tables absent from the current schema
func MissingTables(ctx context.Context, db *sql.DB, tables ...string) ([]string, error) {
	var missing []string
	for _, table := range tables {
		var exists bool
		if err := db.QueryRowContext(ctx, tableExistsQuery, table).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check table %s: %w", table, err)
		}
		if !exists {
			missing = append(missing, table)
		}
	}
	return missing, nil
}
