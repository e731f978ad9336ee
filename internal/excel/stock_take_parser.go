package excel

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"pos-service/internal/commands"

	"github.com/xuri/excelize/v2"
)

var headerAliases = map[string]string{
	"product id":      "product_id",
	"product":         "product_id",
	"id":              "product_id",
	"رقم المنتج":      "product_id",
	"barcode":         "barcode",
	"bar code":        "barcode",
	"ean":             "barcode",
	"الباركود":        "barcode",
	"باركود":          "barcode",
	"actual quantity": "actual_quantity",
	"actual":          "actual_quantity",
	"counted":         "actual_quantity",
	"count":           "actual_quantity",
	"quantity":        "actual_quantity",
	"qty":             "actual_quantity",
	"الكمية الفعلية":  "actual_quantity",
	"الكمية":          "actual_quantity",
}

var arabicDigitsReplacer = strings.NewReplacer(
	"٠", "0",
	"١", "1",
	"٢", "2",
	"٣", "3",
	"٤", "4",
	"٥", "5",
	"٦", "6",
	"٧", "7",
	"٨", "8",
	"٩", "9",
)

// ParseStockTake reads counted quantities from the first sheet of an xlsx
// file. Each row needs a product id or a barcode and an actual quantity.
func ParseStockTake(reader io.Reader) ([]commands.StockCountCommand, error) {
	file, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("open excel file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("excel file has no sheets")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("excel file is empty")
	}

	colMap := mapColumns(rows[0])
	_, hasID := colMap["product_id"]
	_, hasBarcode := colMap["barcode"]
	if !hasID && !hasBarcode {
		return nil, fmt.Errorf("missing required column: product_id or barcode")
	}
	if _, ok := colMap["actual_quantity"]; !ok {
		return nil, fmt.Errorf("missing required column: actual_quantity")
	}

	result := make([]commands.StockCountCommand, 0, len(rows)-1)
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		productID := ""
		if idx, ok := colMap["product_id"]; ok {
			productID = strings.TrimSpace(readCell(cells, idx))
		}
		barcode := ""
		if idx, ok := colMap["barcode"]; ok {
			barcode = strings.TrimSpace(arabicDigitsReplacer.Replace(readCell(cells, idx)))
		}
		if productID == "" && barcode == "" {
			continue
		}

		actual, err := parseInt(readCell(cells, colMap["actual_quantity"]))
		if err != nil {
			return nil, fmt.Errorf("row %d invalid actual_quantity: %w", index+1, err)
		}
		if actual < 0 {
			return nil, fmt.Errorf("row %d invalid actual_quantity: must be >= 0", index+1)
		}

		result = append(result, commands.StockCountCommand{
			ProductID: productID,
			Barcode:   barcode,
			Actual:    actual,
		})
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("excel file has no valid data rows")
	}
	return result, nil
}

func mapColumns(header []string) map[string]int {
	mapped := make(map[string]int)
	for idx, col := range header {
		normalized := normalizeHeader(col)
		if normalized == "" {
			continue
		}
		canonical, ok := headerAliases[normalized]
		if !ok {
			continue
		}
		if _, exists := mapped[canonical]; !exists {
			mapped[canonical] = idx
		}
	}
	return mapped
}

func normalizeHeader(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", " ")
	value = strings.Join(strings.Fields(value), " ")
	return value
}

func readCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseInt(raw string) (int, error) {
	value := strings.TrimSpace(arabicDigitsReplacer.Replace(raw))
	if value == "" {
		return 0, fmt.Errorf("value is empty")
	}

	asFloat, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.Mod(asFloat, 1) != 0 {
		return 0, fmt.Errorf("must be an integer")
	}
	return int(asFloat), nil
}
