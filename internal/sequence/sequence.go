// Package sequence assigns the year-scoped human-readable numbers carried by
// permits, applications and invoices (SUP-2025-0007, INV-2025-0012, ...).
package sequence

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/permitkit/permitflow/internal/database"
)

// Generator produces the next sequential number for a given prefix.
type Generator interface {
	Next(ctx context.Context, prefix string) (string, error)
}

// Common errors.
var (
	ErrCounterUpdateFailed = errors.New("failed to update sequence counter")
)

// minDigits is the zero-pad width of the numeric suffix. Sequences past 9999
// simply widen the field; the pad is a floor, not a cap.
const minDigits = 4

// YearPrefix builds the year-scoped prefix for a number kind, e.g.
// YearPrefix("INV", t) == "INV-2025-".
func YearPrefix(kind string, t time.Time) string {
	return fmt.Sprintf("%s-%d-", kind, t.Year())
}

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// ScanGenerator derives the next number by scanning existing rows for the
// prefix and incrementing the maximum numeric suffix found.
//
// The scan and the subsequent insert are not atomic: two creations racing
// through the same window can compute the same suffix and one of them will
// fail the column's uniqueness constraint. The CounterGenerator closes that
// race at the cost of a counter table.
type ScanGenerator struct {
	db     *sqlx.DB
	table  string
	column string
}

// NewScanGenerator creates a scan-based generator over table.column.
func NewScanGenerator(db *sqlx.DB, table, column string) *ScanGenerator {
	return &ScanGenerator{db: db, table: table, column: column}
}

// Next returns prefix + (max existing suffix + 1), zero-padded.
func (g *ScanGenerator) Next(ctx context.Context, prefix string) (string, error) {
	query := database.ConvertPlaceholders(fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s LIKE ?`, g.column, g.table, g.column))

	var numbers []string
	if err := g.db.SelectContext(ctx, &numbers, query, prefix+"%"); err != nil {
		return "", fmt.Errorf("failed to scan %s.%s: %w", g.table, g.column, err)
	}

	max := 0
	for _, n := range numbers {
		m := trailingDigits.FindString(n)
		if m == "" {
			continue
		}
		var v int
		if _, err := fmt.Sscanf(m, "%d", &v); err == nil && v > max {
			max = v
		}
	}

	return fmt.Sprintf("%s%0*d", prefix, minDigits, max+1), nil
}

// CounterGenerator assigns numbers from a per-prefix counter row, incremented
// in a single statement so concurrent creations cannot collide.
type CounterGenerator struct {
	db *sqlx.DB
}

// NewCounterGenerator creates a counter-backed generator. It expects a
// sequence_counters table with (prefix, counter) columns.
func NewCounterGenerator(db *sqlx.DB) *CounterGenerator {
	return &CounterGenerator{db: db}
}

// Next atomically increments the counter for prefix and formats the result.
func (g *CounterGenerator) Next(ctx context.Context, prefix string) (string, error) {
	var counter int64

	if database.IsPostgreSQL() {
		err := g.db.QueryRowContext(ctx, database.ConvertPlaceholders(`
			INSERT INTO sequence_counters (prefix, counter)
			VALUES (?, 1)
			ON CONFLICT (prefix) DO UPDATE
			SET counter = sequence_counters.counter + 1
			RETURNING counter
		`), prefix).Scan(&counter)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCounterUpdateFailed, err)
		}
		return fmt.Sprintf("%s%0*d", prefix, minDigits, counter), nil
	}

	// MySQL/SQLite: upsert then read back inside the same connection.
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, database.ConvertPlaceholders(`
		INSERT INTO sequence_counters (prefix, counter)
		VALUES (?, 1)
		ON DUPLICATE KEY UPDATE counter = counter + 1
	`), prefix); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCounterUpdateFailed, err)
	}

	if err = tx.QueryRowContext(ctx, database.ConvertPlaceholders(`
		SELECT counter FROM sequence_counters WHERE prefix = ?
	`), prefix).Scan(&counter); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCounterUpdateFailed, err)
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit counter update: %w", err)
	}

	return fmt.Sprintf("%s%0*d", prefix, minDigits, counter), nil
}
