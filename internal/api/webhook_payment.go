package api

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/permitkit/permitflow/internal/apierrors"
	"github.com/permitkit/permitflow/internal/models"
)

// paymentWebhookSchema validates the payment provider callback body before
// anything touches the database. The endpoint is unauthenticated, so the
// schema is the first line of defense.
const paymentWebhookSchema = `{
	"type": "object",
	"required": ["status"],
	"additionalProperties": false,
	"properties": {
		"status": {"type": "string", "enum": ["paid", "failed", "pending"]},
		"paymentDate": {"type": "string", "format": "date-time"},
		"transactionId": {"type": "string", "maxLength": 128}
	}
}`

var paymentSchema = gojsonschema.NewStringLoader(paymentWebhookSchema)

type paymentWebhookBody struct {
	Status        string  `json:"status"`
	PaymentDate   *string `json:"paymentDate"`
	TransactionID *string `json:"transactionId"`
}

// handlePaymentWebhook is the unauthenticated callback the payment provider
// hits when an invoice payment settles. Invoices are addressed by their
// public sequential number, never by row ID. Only pending invoices accept a
// payment; "failed" and "pending" callbacks leave the invoice untouched so
// the applicant can retry.
func (router *APIRouter) handlePaymentWebhook(c *gin.Context) {
	correlationID := uuid.NewString()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 4096))
	if err != nil {
		apierrors.Error(c, apierrors.CodeInvalidRequest)
		return
	}

	result, err := gojsonschema.Validate(paymentSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		apierrors.ErrorWithMessage(c, apierrors.CodeInvalidRequest, "Body must be valid JSON")
		return
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		apierrors.ErrorWithMessage(c, apierrors.CodeValidationFailed, strings.Join(details, "; "))
		return
	}

	var payload paymentWebhookBody
	if err := json.Unmarshal(body, &payload); err != nil {
		apierrors.Error(c, apierrors.CodeInvalidRequest)
		return
	}

	number := c.Param("invoiceNumber")
	invoice, err := router.invoices.GetByNumber(c.Request.Context(), number)
	if err != nil {
		respondRepoError(c, err)
		return
	}

	router.logger.Printf("payment webhook %s: invoice %s status %s", correlationID, number, payload.Status)

	if payload.Status != models.InvoicePaid {
		sendSuccess(c, gin.H{
			"invoice":        invoice,
			"correlation_id": correlationID,
			"applied":        false,
		})
		return
	}

	if invoice.Status != models.InvoicePending {
		apierrors.Error(c, apierrors.CodeInvoiceNotPending)
		return
	}

	paymentDate := router.now()
	if payload.PaymentDate != nil {
		if parsed, err := time.Parse(time.RFC3339, *payload.PaymentDate); err == nil {
			paymentDate = parsed
		}
	}

	if err := router.invoices.UpdateStatus(c.Request.Context(), invoice.ID, models.InvoicePaid, &paymentDate, payload.TransactionID); err != nil {
		respondRepoError(c, err)
		return
	}

	// Mark the owning application paid so the stale-application reaper never
	// touches it.
	router.markApplicationPaid(c, invoice)

	invoice, err = router.invoices.GetByID(c.Request.Context(), invoice.ID)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	sendSuccess(c, gin.H{
		"invoice":        invoice,
		"correlation_id": correlationID,
		"applied":        true,
	})
}
