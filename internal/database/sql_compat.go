package database

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/permitkit/permitflow/internal/config"
)

// Driver returns the active database driver name, lowercased.
func Driver() string {
	if cfg := config.Get(); cfg != nil && cfg.Database.Driver != "" {
		return strings.ToLower(cfg.Database.Driver)
	}
	if d := os.Getenv("DB_DRIVER"); d != "" {
		return strings.ToLower(d)
	}
	return "mysql"
}

// IsPostgreSQL reports whether the active driver is PostgreSQL.
func IsPostgreSQL() bool {
	d := Driver()
	return d == "postgres" || d == "postgresql"
}

var dollarPlaceholder = regexp.MustCompile(`\$\d+`)

// ConvertPlaceholders rewrites ? placeholders for the active driver.
// All queries must be written with ? placeholders; $N placeholders are
// rejected so queries stay portable.
//
//	query := database.ConvertPlaceholders("SELECT id FROM parks WHERE id = ?")
//	err := db.Get(&park, query, id)
func ConvertPlaceholders(query string) string {
	if dollarPlaceholder.MatchString(query) {
		panic(fmt.Sprintf("ConvertPlaceholders: $N placeholders are not allowed, use ?\nQuery: %s", query))
	}

	if !IsPostgreSQL() {
		// MySQL and SQLite take ? directly.
		return query
	}

	var b strings.Builder
	n := 1
	for _, c := range query {
		if c == '?' {
			fmt.Fprintf(&b, "$%d", n)
			n++
		} else {
			b.WriteRune(c)
		}
	}
	return b.String()
}
