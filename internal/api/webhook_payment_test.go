package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permitkit/permitflow/internal/models"
)

func TestPaymentWebhookRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	number, _ := env.seedApprovedWithInvoices(t)

	w := env.do(t, nil, http.MethodPatch, "/api/public/invoices/"+number+"/payment",
		map[string]string{"status": "refunded"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentWebhookRejectsExtraFields(t *testing.T) {
	env := newTestEnv(t)
	number, _ := env.seedApprovedWithInvoices(t)

	w := env.do(t, nil, http.MethodPatch, "/api/public/invoices/"+number+"/payment",
		map[string]string{"status": "paid", "amount": "0.01"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentWebhookUnknownInvoice(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, nil, http.MethodPatch, "/api/public/invoices/INV-2025-9999/payment",
		map[string]string{"status": "paid"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentWebhookAppliesPayment(t *testing.T) {
	env := newTestEnv(t)
	number, _ := env.seedApprovedWithInvoices(t)

	w := env.do(t, nil, http.MethodPatch, "/api/public/invoices/"+number+"/payment",
		map[string]string{
			"status":        "paid",
			"paymentDate":   "2025-06-10T12:00:00Z",
			"transactionId": "pay_abc123",
		})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := dataField(t, w)
	assert.Equal(t, true, data["applied"])
	assert.NotEmpty(t, data["correlation_id"])

	inv := env.invoices.byID[1]
	assert.Equal(t, models.InvoicePaid, inv.Status)
	require.NotNil(t, inv.TransactionID)
	assert.Equal(t, "pay_abc123", *inv.TransactionID)
	require.NotNil(t, inv.PaymentDate)
	assert.Equal(t, "2025-06-10", inv.PaymentDate.Format("2006-01-02"))

	// The owning application is flagged paid so the reaper skips it.
	assert.True(t, env.apps.byID[*inv.ApplicationID].IsPaid)
}

func TestPaymentWebhookFailedLeavesInvoicePending(t *testing.T) {
	env := newTestEnv(t)
	number, _ := env.seedApprovedWithInvoices(t)

	w := env.do(t, nil, http.MethodPatch, "/api/public/invoices/"+number+"/payment",
		map[string]string{"status": "failed"})
	require.Equal(t, http.StatusOK, w.Code)

	data := dataField(t, w)
	assert.Equal(t, false, data["applied"])
	assert.Equal(t, models.InvoicePending, env.invoices.byID[1].Status)
}

func TestPaymentWebhookRejectsDoublePayment(t *testing.T) {
	env := newTestEnv(t)
	number, _ := env.seedApprovedWithInvoices(t)

	first := env.do(t, nil, http.MethodPatch, "/api/public/invoices/"+number+"/payment",
		map[string]string{"status": "paid"})
	require.Equal(t, http.StatusOK, first.Code)

	second := env.do(t, nil, http.MethodPatch, "/api/public/invoices/"+number+"/payment",
		map[string]string{"status": "paid"})
	assert.Equal(t, http.StatusConflict, second.Code)
}
