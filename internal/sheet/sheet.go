// Package sheet reads and writes carts as XLSX workbooks.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ikkim/storefront-cart/internal/cart"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet written by WriteCart.
const SheetName = "Cart"

var ErrNoRows = errors.New("no data found in XLSX file")

var header = []interface{}{
	"Line Item Key", "Product ID", "Name", "Color", "Size", "Material", "RAM",
	"Unit Price", "Original Price", "Quantity", "Line Total", "Selected",
	"Image", "Description",
}

// column indexes shared by WriteCart and ReadCart
const (
	colKey = iota
	colID
	colName
	colColor
	colSize
	colMaterial
	colRAM
	colPrice
	colOriginalPrice
	colQuantity
	colLineTotal
	colSelected
	colImage
	colDescription
)

// WriteCart renders items as one row each plus a totals row.
func WriteCart(items []cart.LineItem) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, item := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{
			item.LineItemKey,
			item.ID,
			item.Name,
			item.SelectedColor,
			item.SelectedSize,
			item.SelectedMaterial,
			item.SelectedRam,
			item.Price,
			item.OriginalPrice,
			item.Quantity,
			cart.Total([]cart.LineItem{item}),
			item.Selected,
			item.Image,
			item.Description,
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	totalRow := len(items) + 3
	summary := []interface{}{"Items", cart.ItemsCount(items), "Total", cart.Total(items), "Selected Total", cart.SelectedTotal(items)}
	cell, err := excelize.CoordinatesToCellName(1, totalRow)
	if err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(SheetName, cell, &summary); err != nil {
		return nil, fmt.Errorf("failed to write totals: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadCart parses the first sheet of a workbook in WriteCart's layout back
// into raw products. Rows without a product id or name are skipped, and
// reading stops at the first blank row so the totals row is ignored.
// Callers still sanitize the result.
func ReadCart(r io.Reader) ([]cart.RawProduct, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, ErrNoRows
	}

	var products []cart.RawProduct
	for _, row := range rows[1:] {
		if isBlank(row) {
			break
		}
		id := cellAt(row, colID)
		name := cellAt(row, colName)
		if id == "" && name == "" {
			continue
		}
		products = append(products, cart.RawProduct{
			ID:               id,
			Name:             name,
			SelectedColor:    cellAt(row, colColor),
			SelectedSize:     cellAt(row, colSize),
			SelectedMaterial: cellAt(row, colMaterial),
			SelectedRam:      cellAt(row, colRAM),
			Price:            cellAt(row, colPrice),
			OriginalPrice:    cellAt(row, colOriginalPrice),
			Quantity:         cellAt(row, colQuantity),
			Selected:         parseSelected(cellAt(row, colSelected)),
			Image:            cellAt(row, colImage),
			Description:      cellAt(row, colDescription),
		})
	}
	if len(products) == 0 {
		return nil, ErrNoRows
	}
	return products, nil
}

func cellAt(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseSelected(v string) bool {
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return true
	}
	return b
}
