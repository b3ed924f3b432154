package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/permitkit/permitflow/internal/database"
	"github.com/permitkit/permitflow/internal/models"
)

// ApprovedWithInvoice pairs an approved application with its invoice for the
// billing dashboard.
type ApprovedWithInvoice struct {
	Application models.Application `json:"application"`
	Invoice     models.Invoice     `json:"invoice"`
}

// InvoiceWithPark carries an invoice together with the park it resolves to
// through its application or permit. ParkID is 0 for unlinked invoices.
type InvoiceWithPark struct {
	models.Invoice
	ParkID int `db:"resolved_park_id" json:"park_id"`
}

// InvoiceRepository defines invoice operations.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	GetByID(ctx context.Context, id int) (*models.Invoice, error)
	GetByNumber(ctx context.Context, number string) (*models.Invoice, error)
	List(ctx context.Context) ([]*models.Invoice, error)
	ListWithPark(ctx context.Context) ([]*InvoiceWithPark, error)
	UpdateStatus(ctx context.Context, id int, status string, paymentDate *time.Time, transactionID *string) error
	Delete(ctx context.Context, id int) error
	ListApprovedWithInvoices(ctx context.Context) ([]*ApprovedWithInvoice, error)
}

// InvoiceSQLRepository is the SQL implementation of InvoiceRepository.
type InvoiceSQLRepository struct {
	db *sqlx.DB
}

// NewInvoiceRepository creates a new invoice repository.
func NewInvoiceRepository(db *sqlx.DB) *InvoiceSQLRepository {
	return &InvoiceSQLRepository{db: db}
}

const invoiceColumns = `id, invoice_number, application_id, permit_id, amount, status,
	issue_date, due_date, payment_date, transaction_id, create_time, change_time`

// Create inserts a new invoice. InvoiceNumber must already be assigned by the
// sequence generator.
func (r *InvoiceSQLRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	now := time.Now()
	query := database.ConvertPlaceholders(`
		INSERT INTO invoices (invoice_number, application_id, permit_id, amount, status,
			issue_date, due_date, payment_date, transaction_id, create_time, change_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	result, err := r.db.ExecContext(ctx, query,
		invoice.InvoiceNumber, invoice.ApplicationID, invoice.PermitID,
		invoice.Amount, invoice.Status, invoice.IssueDate, invoice.DueDate,
		invoice.PaymentDate, invoice.TransactionID, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		invoice.ID = int(id)
	}
	invoice.CreatedAt = now
	invoice.UpdatedAt = now
	return nil
}

// GetByID retrieves an invoice by ID.
func (r *InvoiceSQLRepository) GetByID(ctx context.Context, id int) (*models.Invoice, error) {
	query := database.ConvertPlaceholders(`SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`)

	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query invoice %d: %w", id, err)
	}
	return &invoice, nil
}

// GetByNumber retrieves an invoice by its sequential number. Used by the
// public payment webhook.
func (r *InvoiceSQLRepository) GetByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	query := database.ConvertPlaceholders(`SELECT ` + invoiceColumns + ` FROM invoices WHERE invoice_number = ?`)

	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, number); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query invoice %q: %w", number, err)
	}
	return &invoice, nil
}

// List retrieves all invoices, newest first.
func (r *InvoiceSQLRepository) List(ctx context.Context) ([]*models.Invoice, error) {
	query := database.ConvertPlaceholders(`SELECT ` + invoiceColumns + ` FROM invoices ORDER BY create_time DESC`)

	var invoices []*models.Invoice
	if err := r.db.SelectContext(ctx, &invoices, query); err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

// ListWithPark retrieves all invoices with the park each one belongs to,
// resolved through the application or, for manual invoices, the permit.
func (r *InvoiceSQLRepository) ListWithPark(ctx context.Context) ([]*InvoiceWithPark, error) {
	query := database.ConvertPlaceholders(`
		SELECT i.id, i.invoice_number, i.application_id, i.permit_id, i.amount, i.status,
			i.issue_date, i.due_date, i.payment_date, i.transaction_id,
			i.create_time, i.change_time,
			COALESCE(a.park_id, p.park_id, 0) AS resolved_park_id
		FROM invoices i
		LEFT JOIN applications a ON a.id = i.application_id
		LEFT JOIN permits p ON p.id = i.permit_id
		ORDER BY i.create_time DESC`)

	var invoices []*InvoiceWithPark
	if err := r.db.SelectContext(ctx, &invoices, query); err != nil {
		return nil, fmt.Errorf("failed to list invoices with parks: %w", err)
	}
	return invoices, nil
}

// UpdateStatus writes the invoice status. The payment date and transaction
// reference are written only on the transition to paid; other status changes
// leave the recorded payment history alone.
func (r *InvoiceSQLRepository) UpdateStatus(ctx context.Context, id int, status string, paymentDate *time.Time, transactionID *string) error {
	var (
		query string
		args  []interface{}
	)
	if status == models.InvoicePaid {
		query = database.ConvertPlaceholders(`
			UPDATE invoices SET status = ?, payment_date = ?, transaction_id = ?, change_time = ?
			WHERE id = ?`)
		args = []interface{}{status, paymentDate, transactionID, time.Now(), id}
	} else {
		query = database.ConvertPlaceholders(`
			UPDATE invoices SET status = ?, change_time = ? WHERE id = ?`)
		args = []interface{}{status, time.Now(), id}
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update invoice %d: %w", id, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an invoice.
func (r *InvoiceSQLRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx,
		database.ConvertPlaceholders(`DELETE FROM invoices WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete invoice %d: %w", id, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListApprovedWithInvoices joins approved applications with their invoices for
// the billing dashboard. Park scoping is applied by the caller; a user with no
// assignments sees an empty list like everywhere else.
func (r *InvoiceSQLRepository) ListApprovedWithInvoices(ctx context.Context) ([]*ApprovedWithInvoice, error) {
	query := database.ConvertPlaceholders(`
		SELECT
			a.id AS "application.id",
			a.application_number AS "application.application_number",
			a.park_id AS "application.park_id",
			a.applicant_name AS "application.applicant_name",
			a.event_title AS "application.event_title",
			a.status AS "application.status",
			a.is_paid AS "application.is_paid",
			a.create_time AS "application.create_time",
			i.id AS "invoice.id",
			i.invoice_number AS "invoice.invoice_number",
			i.amount AS "invoice.amount",
			i.status AS "invoice.status",
			i.issue_date AS "invoice.issue_date",
			i.due_date AS "invoice.due_date"
		FROM applications a
		INNER JOIN invoices i ON i.application_id = a.id
		WHERE a.status = ?
		ORDER BY i.issue_date DESC`)

	rows, err := r.db.QueryxContext(ctx, query, models.ApplicationApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to query approved applications with invoices: %w", err)
	}
	defer rows.Close()

	var out []*ApprovedWithInvoice
	for rows.Next() {
		var rec ApprovedWithInvoice
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("failed to scan dashboard row: %w", err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}
