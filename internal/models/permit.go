package models

import "time"

// Sequential number prefixes. Each is year-scoped: the 4-digit suffix counts
// up independently per calendar year (SUP-2025-0007, SUP-2026-0001, ...).
const (
	PermitNumberPrefix      = "SUP"
	TemplateNumberPrefix    = "TEMPLATE"
	ApplicationNumberPrefix = "APP"
	InvoiceNumberPrefix     = "INV"
)

// Permit describes a permit type offered by a park: its fee schedule,
// participant cap and insurance requirement. A permit row with IsTemplate set
// is used to pre-populate new applications and is numbered TEMPLATE- instead
// of SUP-.
type Permit struct {
	ID                int       `db:"id" json:"id"`
	ParkID            int       `db:"park_id" json:"park_id"`
	PermitNumber      string    `db:"permit_number" json:"permit_number"`
	Name              string    `db:"name" json:"name"`
	ApplicationFee    *string   `db:"application_fee" json:"application_fee"`
	PermitFee         *string   `db:"permit_fee" json:"permit_fee"`
	RefundableDeposit *string   `db:"refundable_deposit" json:"refundable_deposit"`
	ParticipantCap    *int      `db:"participant_cap" json:"participant_cap"`
	InsuranceRequired bool      `db:"insurance_required" json:"insurance_required"`
	IsTemplate        bool      `db:"is_template" json:"is_template"`
	ValidID           int       `db:"valid_id" json:"valid_id"`
	CreatedAt         time.Time `db:"create_time" json:"created_at"`
	UpdatedAt         time.Time `db:"change_time" json:"updated_at"`
}

// NumberPrefix returns the sequential-number prefix for this permit row.
func (p *Permit) NumberPrefix() string {
	if p.IsTemplate {
		return TemplateNumberPrefix
	}
	return PermitNumberPrefix
}
