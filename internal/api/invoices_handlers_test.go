package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permitkit/permitflow/internal/models"
)

func TestStaffCanRecordPaymentInAssignedPark(t *testing.T) {
	env := newTestEnv(t)
	env.seedApprovedWithInvoices(t)

	w := env.do(t, env.staff, http.MethodPatch, "/api/invoices/1", map[string]interface{}{
		"status":         models.InvoicePaid,
		"transaction_id": "txn-staff-001",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	inv := env.invoices.byID[1]
	assert.Equal(t, models.InvoicePaid, inv.Status)
	require.NotNil(t, inv.TransactionID)
	assert.Equal(t, "txn-staff-001", *inv.TransactionID)
	assert.NotNil(t, inv.PaymentDate)
}

func TestStaffInvoiceMutationOutsideParkForbidden(t *testing.T) {
	env := newTestEnv(t)
	env.seedApprovedWithInvoices(t)

	// Invoice 2 belongs to an application in park 2, outside staff's parks.
	w := env.do(t, env.staff, http.MethodPatch, "/api/invoices/2", map[string]interface{}{
		"status": models.InvoicePaid,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, models.InvoicePending, env.invoices.byID[2].Status)

	w = env.do(t, env.staff, http.MethodDelete, "/api/invoices/2", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, env.invoices.byID, 2)
}

func TestStaffCreatesInvoiceForAssignedParkApplication(t *testing.T) {
	env := newTestEnv(t)
	app := seedPendingApplication(t, env, 1, nil)

	w := env.do(t, env.staff, http.MethodPost, "/api/invoices", map[string]interface{}{
		"application_id": app.ID,
		"amount":         "42.50",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	data := dataField(t, w)
	invoice := data["invoice"].(map[string]interface{})
	assert.Equal(t, float64(4250), invoice["amount"])

	// The same request from a user with no assignments is refused.
	w = env.do(t, env.staffNone, http.MethodPost, "/api/invoices", map[string]interface{}{
		"application_id": app.ID,
		"amount":         "42.50",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRecordedPaymentFlagsApplicationPaid(t *testing.T) {
	env := newTestEnv(t)
	env.seedApprovedWithInvoices(t)
	require.False(t, env.apps.byID[1].IsPaid)

	w := env.do(t, env.staff, http.MethodPatch, "/api/invoices/1", map[string]interface{}{
		"status": models.InvoicePaid,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.True(t, env.apps.byID[1].IsPaid)
}

func TestCancellingPaidInvoiceKeepsPaymentHistory(t *testing.T) {
	env := newTestEnv(t)
	env.seedApprovedWithInvoices(t)

	w := env.do(t, env.staff, http.MethodPatch, "/api/invoices/1", map[string]interface{}{
		"status":         models.InvoicePaid,
		"transaction_id": "txn-keep-me",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, env.staff, http.MethodPatch, "/api/invoices/1", map[string]interface{}{
		"status": models.InvoiceCancelled,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	inv := env.invoices.byID[1]
	assert.Equal(t, models.InvoiceCancelled, inv.Status)
	require.NotNil(t, inv.TransactionID)
	assert.Equal(t, "txn-keep-me", *inv.TransactionID)
	assert.NotNil(t, inv.PaymentDate)
}
