package models

import "time"

// Application statuses.
const (
	ApplicationPending     = "pending"
	ApplicationApproved    = "approved"
	ApplicationDisapproved = "disapproved"
)

// Disapproval messaging methods.
const (
	MethodEmail = "email"
	MethodSMS   = "sms"
	MethodBoth  = "both"
)

// Application is a submission from an applicant requesting a permit for an
// event at a park. Applications are created externally; staff only approve,
// disapprove, annotate or delete them.
type Application struct {
	ID                int       `db:"id" json:"id"`
	ApplicationNumber string    `db:"application_number" json:"application_number"`
	ParkID            int       `db:"park_id" json:"park_id"`
	PermitID          *int      `db:"permit_id" json:"permit_id"`
	Location          *string   `db:"location" json:"location"`
	ApplicantName     string    `db:"applicant_name" json:"applicant_name"`
	Organization      *string   `db:"organization" json:"organization"`
	Email             *string   `db:"email" json:"email"`
	Phone             *string   `db:"phone" json:"phone"`
	EventTitle        string    `db:"event_title" json:"event_title"`
	EventDate         *time.Time `db:"event_date" json:"event_date"`
	Participants      *int      `db:"participants" json:"participants"`
	ApplicationFee    *string   `db:"application_fee" json:"application_fee"`
	PermitFee         *string   `db:"permit_fee" json:"permit_fee"`
	Status            string    `db:"status" json:"status"`
	IsPaid            bool      `db:"is_paid" json:"is_paid"`
	Notes             string    `db:"notes" json:"notes"`
	CreatedAt         time.Time `db:"create_time" json:"created_at"`
	UpdatedAt         time.Time `db:"change_time" json:"updated_at"`
}

// ValidApplicationStatus reports whether status is a known application status.
func ValidApplicationStatus(status string) bool {
	switch status {
	case ApplicationPending, ApplicationApproved, ApplicationDisapproved:
		return true
	}
	return false
}

// ValidMessagingMethod reports whether method is a known disapproval channel.
func ValidMessagingMethod(method string) bool {
	switch method {
	case MethodEmail, MethodSMS, MethodBoth:
		return true
	}
	return false
}

// Deletable reports whether the application may be deleted. The one guarded
// case is a paid application still awaiting a decision.
func (a *Application) Deletable() bool {
	return !(a.IsPaid && a.Status == ApplicationPending)
}
