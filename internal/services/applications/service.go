// Package applications implements the staff-facing application lifecycle:
// approve, disapprove, annotate and delete. Status flips commit first;
// notifications go out afterwards and are never allowed to undo them.
package applications

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/permitkit/permitflow/internal/access"
	"github.com/permitkit/permitflow/internal/models"
	"github.com/permitkit/permitflow/internal/notifications"
	"github.com/permitkit/permitflow/internal/repository"
	"github.com/permitkit/permitflow/internal/sequence"
)

// Lifecycle errors. Handlers translate these into API error codes.
var (
	ErrForbidden      = errors.New("no access to the application's park")
	ErrNotPending     = errors.New("application is not pending")
	ErrPaidPending    = errors.New("paid pending application cannot be deleted")
	ErrEmptyReason    = errors.New("disapproval reason is required")
	ErrInvalidMethod  = errors.New("messaging method must be email, sms or both")
	ErrMissingContact = errors.New("application is missing the required contact channel")
)

// invoiceDueDays is how long applicants have to pay a permit-fee invoice.
const invoiceDueDays = 30

// noteTimeFormat is the stamp prefixed to appended notes.
const noteTimeFormat = "Jan 2, 2006 3:04 PM"

// Service coordinates application state transitions and their side effects.
type Service struct {
	apps       repository.ApplicationRepository
	invoices   repository.InvoiceRepository
	access     *access.Service
	invoiceSeq sequence.Generator
	dispatcher *notifications.Dispatcher
	logger     *log.Logger
	now        func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets a custom logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the lifecycle service.
func NewService(
	apps repository.ApplicationRepository,
	invoices repository.InvoiceRepository,
	accessSvc *access.Service,
	invoiceSeq sequence.Generator,
	dispatcher *notifications.Dispatcher,
	opts ...Option,
) *Service {
	s := &Service{
		apps:       apps,
		invoices:   invoices,
		access:     accessSvc,
		invoiceSeq: invoiceSeq,
		dispatcher: dispatcher,
		logger:     log.New(log.Writer(), "[APPLICATIONS] ", log.LstdFlags),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// loadAuthorized fetches the application and verifies park access for user.
// Existence is checked before access so callers can distinguish 404 from 403.
func (s *Service) loadAuthorized(ctx context.Context, user *models.User, id int) (*models.Application, error) {
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.access.HasAccess(ctx, user, app.ParkID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	return app, nil
}

// Approve flips a pending application to approved. If the application carries
// a permit fee an invoice is created for it (due 30 days after issue), and a
// best-effort approval email goes out afterwards.
func (s *Service) Approve(ctx context.Context, user *models.User, id int) (*models.Application, *models.Invoice, error) {
	app, err := s.loadAuthorized(ctx, user, id)
	if err != nil {
		return nil, nil, err
	}
	if app.Status != models.ApplicationPending {
		return nil, nil, ErrNotPending
	}

	if err := s.apps.UpdateStatus(ctx, app.ID, models.ApplicationApproved); err != nil {
		return nil, nil, err
	}
	app.Status = models.ApplicationApproved

	var invoice *models.Invoice
	if app.PermitFee != nil && strings.TrimSpace(*app.PermitFee) != "" {
		invoice, err = s.createFeeInvoice(ctx, app)
		if err != nil {
			// The approval already committed; surface the invoice failure.
			return app, nil, fmt.Errorf("application approved but invoice creation failed: %w", err)
		}
	}

	if app.Email != nil && *app.Email != "" {
		body := fmt.Sprintf("Your application %s has been approved.", app.ApplicationNumber)
		if invoice != nil {
			body += fmt.Sprintf(" An invoice (%s) for $%s has been issued, due %s.",
				invoice.InvoiceNumber, invoice.AmountDisplay(), invoice.DueDate.Format("January 2, 2006"))
		}
		s.dispatcher.DispatchEmail(notifications.EmailMessage{
			To:      []string{*app.Email},
			Subject: "Permit application approved",
			Body:    body,
		})
	}

	return app, invoice, nil
}

func (s *Service) createFeeInvoice(ctx context.Context, app *models.Application) (*models.Invoice, error) {
	amount, err := models.FeeToMinorUnits(*app.PermitFee)
	if err != nil {
		return nil, err
	}

	number, err := s.invoiceSeq.Next(ctx, sequence.YearPrefix(models.InvoiceNumberPrefix, s.now()))
	if err != nil {
		return nil, err
	}

	issue := s.now()
	invoice := &models.Invoice{
		InvoiceNumber: number,
		ApplicationID: &app.ID,
		PermitID:      app.PermitID,
		Amount:        amount,
		Status:        models.InvoicePending,
		IssueDate:     issue,
		DueDate:       issue.AddDate(0, 0, invoiceDueDays),
	}
	if err := s.invoices.Create(ctx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// Disapprove flips a pending application to disapproved and notifies the
// applicant over the requested channel(s). The reason is mandatory; so is the
// contact detail the chosen channel needs.
func (s *Service) Disapprove(ctx context.Context, user *models.User, id int, reason, method string) (*models.Application, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrEmptyReason
	}
	if !models.ValidMessagingMethod(method) {
		return nil, ErrInvalidMethod
	}

	app, err := s.loadAuthorized(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if app.Status != models.ApplicationPending {
		return nil, ErrNotPending
	}

	wantEmail := method == models.MethodEmail || method == models.MethodBoth
	wantSMS := method == models.MethodSMS || method == models.MethodBoth
	if wantEmail && (app.Email == nil || *app.Email == "") {
		return nil, ErrMissingContact
	}
	if wantSMS && (app.Phone == nil || *app.Phone == "") {
		return nil, ErrMissingContact
	}

	if err := s.apps.UpdateStatus(ctx, app.ID, models.ApplicationDisapproved); err != nil {
		return nil, err
	}
	app.Status = models.ApplicationDisapproved

	body := fmt.Sprintf("Your application %s has been disapproved. Reason: %s", app.ApplicationNumber, reason)
	if wantEmail {
		s.dispatcher.DispatchEmail(notifications.EmailMessage{
			To:      []string{*app.Email},
			Subject: "Permit application disapproved",
			Body:    body,
		})
	}
	if wantSMS {
		s.dispatcher.DispatchSMS(notifications.SMSMessage{To: *app.Phone, Body: body})
	}

	return app, nil
}

// Delete removes an application. The one rejected case is an application that
// has been paid for but is still awaiting a decision.
func (s *Service) Delete(ctx context.Context, user *models.User, id int) error {
	app, err := s.loadAuthorized(ctx, user, id)
	if err != nil {
		return err
	}
	if !app.Deletable() {
		return ErrPaidPending
	}
	return s.apps.Delete(ctx, app.ID)
}

// AppendNote appends a stamped note to the application. Existing notes are
// never edited or truncated; the new entry is concatenated after a blank line.
func (s *Service) AppendNote(ctx context.Context, user *models.User, id int, text string) (*models.Application, error) {
	app, err := s.loadAuthorized(ctx, user, id)
	if err != nil {
		return nil, err
	}

	entry := fmt.Sprintf("%s by %s: %s", s.now().Format(noteTimeFormat), user.Login, text)
	if app.Notes == "" {
		app.Notes = entry
	} else {
		app.Notes = app.Notes + "\n\n" + entry
	}

	if err := s.apps.UpdateNotes(ctx, app.ID, app.Notes); err != nil {
		return nil, err
	}
	return app, nil
}
