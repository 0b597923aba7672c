package database

import (
	"context"
	"fmt"
)

// Maintain reclaims free pages and refreshes planner statistics. Safe to run
// while the application serves traffic, though sqlite blocks writers for the
// duration of the vacuum.
func (d *DB) Maintain(ctx context.Context) error {
	statements := []string{"VACUUM", "ANALYZE"}
	if d.Driver == "postgres" {
		statements = []string{"VACUUM (ANALYZE)"}
	}
	for _, stmt := range statements {
		if _, err := d.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}

// RowCounts returns the current row count of every schema table.
func (d *DB) RowCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(Tables))
	for _, table := range Tables {
		var count int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table.Name)
		if err := d.QueryRowContext(ctx, query).Scan(&count); err != nil {
			return nil, fmt.Errorf("count %s: %w", table.Name, err)
		}
		counts[table.Name] = count
	}
	return counts, nil
}
