// Package repository holds the SQL data access layer. Every repository is an
// interface over *sqlx.DB so services and handlers can be tested with sqlmock
// or stubs.
package repository

import "errors"

// Sentinel errors shared across repositories.
var (
	ErrNotFound  = errors.New("record not found")
	ErrParkInUse = errors.New("park still owns permits")
)
