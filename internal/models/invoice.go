package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Invoice statuses.
const (
	InvoicePending   = "pending"
	InvoicePaid      = "paid"
	InvoiceCancelled = "cancelled"
)

// Invoice is a billing record for a permit fee. Amount is stored in integer
// minor currency units (cents), never floats.
type Invoice struct {
	ID            int        `db:"id" json:"id"`
	InvoiceNumber string     `db:"invoice_number" json:"invoice_number"`
	ApplicationID *int       `db:"application_id" json:"application_id"`
	PermitID      *int       `db:"permit_id" json:"permit_id"`
	Amount        int64      `db:"amount" json:"amount"`
	Status        string     `db:"status" json:"status"`
	IssueDate     time.Time  `db:"issue_date" json:"issue_date"`
	DueDate       time.Time  `db:"due_date" json:"due_date"`
	PaymentDate   *time.Time `db:"payment_date" json:"payment_date"`
	TransactionID *string    `db:"transaction_id" json:"transaction_id"`
	CreatedAt     time.Time  `db:"create_time" json:"created_at"`
	UpdatedAt     time.Time  `db:"change_time" json:"updated_at"`
}

// ValidInvoiceStatus reports whether status is a known invoice status.
func ValidInvoiceStatus(status string) bool {
	switch status {
	case InvoicePending, InvoicePaid, InvoiceCancelled:
		return true
	}
	return false
}

// AmountDisplay formats the minor-unit amount as a decimal string ("35.00").
func (i *Invoice) AmountDisplay() string {
	return fmt.Sprintf("%d.%02d", i.Amount/100, i.Amount%100)
}

// FeeToMinorUnits converts a decimal fee string such as "35.00" or "35" into
// integer minor units (3500). Fees are carried as strings end to end so no
// float rounding can creep in.
func FeeToMinorUnits(fee string) (int64, error) {
	fee = strings.TrimSpace(fee)
	if fee == "" {
		return 0, fmt.Errorf("empty fee")
	}
	whole, frac, _ := strings.Cut(fee, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fee %q: %w", fee, err)
	}
	if len(frac) > 2 {
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fee %q: %w", fee, err)
	}
	if units < 0 {
		return units*100 - cents, nil
	}
	return units*100 + cents, nil
}
