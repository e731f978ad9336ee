package excel

import (
	"fmt"
	"sort"

	"pos-service/internal/domain"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet  = "Summary"
	salesSheet    = "Sales"
	productsSheet = "Top products"
)

// WriteDailyReport renders a daily report and its sales as an xlsx workbook
func WriteDailyReport(report *domain.DailyReport, sales []*domain.Sale) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{salesSheet, productsSheet} {
		if _, err := file.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}
	header, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	summary := [][]interface{}{
		{"Date", report.Date},
		{"Sales", report.SaleCount},
		{"Items sold", report.ItemsSold},
		{"Revenue", report.Revenue.StringFixed(2)},
		{"Tax", report.Tax.StringFixed(2)},
		{"Discounts", report.Discounts.StringFixed(2)},
		{"Average ticket", report.AverageTicket.StringFixed(2)},
	}
	methods := make([]string, 0, len(report.ByPaymentMethod))
	for method := range report.ByPaymentMethod {
		methods = append(methods, string(method))
	}
	sort.Strings(methods)
	for _, method := range methods {
		amount := report.ByPaymentMethod[domain.PaymentMethod(method)]
		summary = append(summary, []interface{}{"Paid by " + method, amount.StringFixed(2)})
	}
	if err := writeRows(file, summarySheet, summary); err != nil {
		return nil, err
	}
	if err := file.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(summary)), header); err != nil {
		return nil, fmt.Errorf("style summary: %w", err)
	}

	saleRows := [][]interface{}{{"Receipt", "Time", "Items", "Subtotal", "Tax", "Discount", "Total", "Paid", "Change", "Payment", "Customer", "Sync"}}
	for _, sale := range sales {
		saleRows = append(saleRows, []interface{}{
			sale.ReceiptNumber,
			sale.CreatedAt.Format("15:04:05"),
			sale.ItemCount(),
			sale.Subtotal.StringFixed(2),
			sale.Tax.StringFixed(2),
			sale.DiscountAmount.StringFixed(2),
			sale.Total.StringFixed(2),
			sale.AmountPaid.StringFixed(2),
			sale.Change.StringFixed(2),
			string(sale.PaymentMethod),
			sale.CustomerID,
			string(sale.SyncStatus),
		})
	}
	if err := writeRows(file, salesSheet, saleRows); err != nil {
		return nil, err
	}
	if err := file.SetCellStyle(salesSheet, "A1", "L1", header); err != nil {
		return nil, fmt.Errorf("style sales header: %w", err)
	}

	productRows := [][]interface{}{{"Product", "Quantity", "Revenue"}}
	for _, seller := range report.TopProducts {
		productRows = append(productRows, []interface{}{seller.Name, seller.Quantity, seller.Revenue.StringFixed(2)})
	}
	if err := writeRows(file, productsSheet, productRows); err != nil {
		return nil, err
	}
	if err := file.SetCellStyle(productsSheet, "A1", "C1", header); err != nil {
		return nil, fmt.Errorf("style products header: %w", err)
	}
	if err := file.SetColWidth(summarySheet, "A", "B", 18); err != nil {
		return nil, fmt.Errorf("size columns: %w", err)
	}

	buffer, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buffer.Bytes(), nil
}

func writeRows(file *excelize.File, sheet string, rows [][]interface{}) error {
	for index, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, index+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		values := row
		if err := file.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, index+1, err)
		}
	}
	return nil
}
