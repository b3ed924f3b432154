package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/permitkit/permitflow/internal/models"
)

func TestWriteInvoicesXLSX(t *testing.T) {
	appID := 42
	txn := "pay_abc123"
	paid := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	invoices := []*models.Invoice{
		{
			InvoiceNumber: "INV-2025-0001",
			ApplicationID: &appID,
			Amount:        3500,
			Status:        models.InvoicePaid,
			IssueDate:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			DueDate:       time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
			PaymentDate:   &paid,
			TransactionID: &txn,
		},
		{
			InvoiceNumber: "INV-2025-0002",
			Amount:        12050,
			Status:        models.InvoicePending,
			IssueDate:     time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
			DueDate:       time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteInvoicesXLSX(invoices, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(invoiceSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, invoiceHeaders, rows[0])
	assert.Equal(t, "INV-2025-0001", rows[1][0])
	assert.Equal(t, "35.00", rows[1][2])
	assert.Equal(t, "2025-06-10", rows[1][6])
	assert.Equal(t, "pay_abc123", rows[1][7])
	assert.Equal(t, "120.50", rows[2][2])
	assert.Equal(t, "pending", rows[2][3])
}

func TestWriteInvoicesXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteInvoicesXLSX(nil, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(invoiceSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, invoiceHeaders, rows[0])
}
