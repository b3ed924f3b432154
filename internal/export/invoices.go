// Package export produces spreadsheet downloads for back-office data.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/permitkit/permitflow/internal/models"
)

const invoiceSheet = "Invoices"

var invoiceHeaders = []string{
	"Invoice Number", "Application", "Amount", "Status",
	"Issue Date", "Due Date", "Payment Date", "Transaction ID",
}

// WriteInvoicesXLSX renders invoices as an xlsx workbook and writes it
// to w. Rows keep the order of the input slice.
func WriteInvoicesXLSX(invoices []*models.Invoice, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(invoiceSheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}

	for col, header := range invoiceHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(invoiceSheet, cell, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, inv := range invoices {
		row := i + 2
		values := []interface{}{
			inv.InvoiceNumber,
			derefInt(inv.ApplicationID),
			inv.AmountDisplay(),
			inv.Status,
			formatDate(&inv.IssueDate),
			formatDate(&inv.DueDate),
			formatDate(inv.PaymentDate),
			deref(inv.TransactionID),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(invoiceSheet, cell, v); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}
	}

	if err := f.SetColWidth(invoiceSheet, "A", "H", 18); err != nil {
		return fmt.Errorf("failed to set column widths: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) interface{} {
	if n == nil {
		return ""
	}
	return *n
}
