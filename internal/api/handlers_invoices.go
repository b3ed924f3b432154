package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xeonx/timeago"

	"github.com/permitkit/permitflow/internal/apierrors"
	"github.com/permitkit/permitflow/internal/export"
	"github.com/permitkit/permitflow/internal/models"
	"github.com/permitkit/permitflow/internal/repository"
	"github.com/permitkit/permitflow/internal/sequence"
)

// visibleInvoices returns the invoices the user may see, resolved through the
// park each invoice belongs to. Unlinked invoices (no application or permit)
// are visible only to admins and managers.
func (router *APIRouter) visibleInvoices(c *gin.Context, user *models.User) ([]*repository.InvoiceWithPark, bool) {
	invoices, err := router.invoices.ListWithPark(c.Request.Context())
	if err != nil {
		apierrors.Error(c, apierrors.CodeInternalError)
		return nil, false
	}
	return filterByPark(c, router, user, invoices, func(i *repository.InvoiceWithPark) int { return i.ParkID })
}

func (router *APIRouter) handleListInvoices(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		return
	}
	invoices, ok := router.visibleInvoices(c, user)
	if !ok {
		return
	}
	sendSuccess(c, gin.H{"invoices": invoices, "total": len(invoices)})
}

func (router *APIRouter) handleGetInvoice(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	invoice, err := router.invoices.GetByID(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}

	parkID, err := router.invoiceParkID(c, invoice)
	if err != nil {
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	if !router.mayAccessPark(c, user, parkID) {
		return
	}
	sendSuccess(c, gin.H{"invoice": invoice})
}

// invoiceParkID resolves the park an invoice belongs to. Unlinked invoices
// resolve to park 0, which no assignment ever matches.
func (router *APIRouter) invoiceParkID(c *gin.Context, invoice *models.Invoice) (int, error) {
	switch {
	case invoice.ApplicationID != nil:
		app, err := router.apps.GetByID(c.Request.Context(), *invoice.ApplicationID)
		if err != nil {
			return 0, err
		}
		return app.ParkID, nil
	case invoice.PermitID != nil:
		permit, err := router.permits.GetByID(c.Request.Context(), *invoice.PermitID)
		if err != nil {
			return 0, err
		}
		return permit.ParkID, nil
	}
	return 0, nil
}

// handleExportInvoices streams the user's visible invoices as an xlsx
// download.
func (router *APIRouter) handleExportInvoices(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		return
	}
	withPark, ok := router.visibleInvoices(c, user)
	if !ok {
		return
	}

	invoices := make([]*models.Invoice, 0, len(withPark))
	for _, i := range withPark {
		inv := i.Invoice
		invoices = append(invoices, &inv)
	}

	filename := fmt.Sprintf("invoices-%s.xlsx", router.now().Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := export.WriteInvoicesXLSX(invoices, c.Writer); err != nil {
		router.logger.Printf("failed to export invoices: %v", err)
		c.Status(http.StatusInternalServerError)
	}
}

// handleInvoiceDashboard lists approved applications with their invoices.
// Scoping is strict: a staff user with no park assignments gets an empty
// list, never the full set.
func (router *APIRouter) handleInvoiceDashboard(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		return
	}
	records, err := router.invoices.ListApprovedWithInvoices(c.Request.Context())
	if err != nil {
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	records, ok = filterByPark(c, router, user, records, func(r *repository.ApprovedWithInvoice) int { return r.Application.ParkID })
	if !ok {
		return
	}

	type dashboardRow struct {
		*repository.ApprovedWithInvoice
		SubmittedAge string `json:"submitted_age"`
	}
	rows := make([]dashboardRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, dashboardRow{
			ApprovedWithInvoice: rec,
			SubmittedAge:        timeago.English.Format(rec.Application.CreatedAt),
		})
	}
	sendSuccess(c, gin.H{"records": rows, "total": len(rows)})
}

// handleCreateInvoice creates a manual invoice. The amount arrives as a
// decimal fee string and is stored in minor units. The acting user needs
// access to the park the invoice resolves to through its application or
// permit; an unlinked invoice resolves to park 0, so only admins can create
// one.
func (router *APIRouter) handleCreateInvoice(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		return
	}
	var req struct {
		ApplicationID *int   `json:"application_id"`
		PermitID      *int   `json:"permit_id"`
		Amount        string `json:"amount" binding:"required"`
		DueDate       string `json:"due_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ErrorWithMessage(c, apierrors.CodeInvalidRequest, "Amount is required")
		return
	}

	parkID, err := router.invoiceParkID(c, &models.Invoice{ApplicationID: req.ApplicationID, PermitID: req.PermitID})
	if err != nil {
		respondRepoError(c, err)
		return
	}
	if !router.mayAccessPark(c, user, parkID) {
		return
	}

	amount, err := models.FeeToMinorUnits(req.Amount)
	if err != nil {
		apierrors.ErrorWithMessage(c, apierrors.CodeValidationFailed, "Amount must be a decimal string such as 35.00")
		return
	}

	issue := router.now()
	due := issue.AddDate(0, 0, 30)
	if req.DueDate != "" {
		parsed, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			apierrors.ErrorWithMessage(c, apierrors.CodeValidationFailed, "Due date must be YYYY-MM-DD")
			return
		}
		due = parsed
	}

	number, err := router.invoiceSeq.Next(c.Request.Context(), sequence.YearPrefix(models.InvoiceNumberPrefix, issue))
	if err != nil {
		router.logger.Printf("failed to assign invoice number: %v", err)
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}

	invoice := &models.Invoice{
		InvoiceNumber: number,
		ApplicationID: req.ApplicationID,
		PermitID:      req.PermitID,
		Amount:        amount,
		Status:        models.InvoicePending,
		IssueDate:     issue,
		DueDate:       due,
	}
	if err := router.invoices.Create(c.Request.Context(), invoice); err != nil {
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	sendCreated(c, gin.H{"invoice": invoice})
}

// handleUpdateInvoice changes invoice status. Marking paid stamps the payment
// date and flags the owning application paid, same as the payment webhook, so
// a staff-recorded payment shields the application from the stale reaper.
// Payment history is written only on the transition to paid; cancelling a
// paid invoice keeps its payment date and transaction reference.
func (router *APIRouter) handleUpdateInvoice(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req struct {
		Status        string  `json:"status" binding:"required"`
		TransactionID *string `json:"transaction_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ErrorWithMessage(c, apierrors.CodeInvalidRequest, "Status is required")
		return
	}
	if !models.ValidInvoiceStatus(req.Status) {
		apierrors.Error(c, apierrors.CodeInvalidStatus)
		return
	}

	invoice, err := router.invoices.GetByID(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	parkID, err := router.invoiceParkID(c, invoice)
	if err != nil {
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	if !router.mayAccessPark(c, user, parkID) {
		return
	}

	var paymentDate *time.Time
	if req.Status == models.InvoicePaid {
		now := router.now()
		paymentDate = &now
	}
	if err := router.invoices.UpdateStatus(c.Request.Context(), id, req.Status, paymentDate, req.TransactionID); err != nil {
		respondRepoError(c, err)
		return
	}
	if req.Status == models.InvoicePaid {
		router.markApplicationPaid(c, invoice)
	}

	invoice, err = router.invoices.GetByID(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	sendSuccess(c, gin.H{"invoice": invoice})
}

// markApplicationPaid flags the application an invoice belongs to as paid.
// Best effort: a failure is logged, never surfaced, since the payment itself
// is already recorded.
func (router *APIRouter) markApplicationPaid(c *gin.Context, invoice *models.Invoice) {
	if invoice.ApplicationID == nil {
		return
	}
	app, err := router.apps.GetByID(c.Request.Context(), *invoice.ApplicationID)
	if err != nil || app.IsPaid {
		return
	}
	app.IsPaid = true
	if err := router.apps.Update(c.Request.Context(), app); err != nil {
		router.logger.Printf("failed to flag application %d paid for invoice %s: %v", app.ID, invoice.InvoiceNumber, err)
	}
}

func (router *APIRouter) handleDeleteInvoice(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	invoice, err := router.invoices.GetByID(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	parkID, err := router.invoiceParkID(c, invoice)
	if err != nil {
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	if !router.mayAccessPark(c, user, parkID) {
		return
	}
	if err := router.invoices.Delete(c.Request.Context(), id); err != nil {
		respondRepoError(c, err)
		return
	}
	sendSuccess(c, gin.H{"deleted": id})
}
