package billing

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/domain"
)

const orderDateLayout = "02/01/2006"

// SpreadsheetBuilder renders the invoice summary workbook from a payer's
// template column layout.
type SpreadsheetBuilder struct{}

// NewSpreadsheetBuilder returns a SpreadsheetBuilder.
func NewSpreadsheetBuilder() *SpreadsheetBuilder {
	return &SpreadsheetBuilder{}
}

// Build renders one worksheet named after the payer, with one header row from
// the template columns (ascending Position) and one row per order. A nil or
// empty column set falls back to the default layout. An unknown template
// field renders as an empty cell.
func (b *SpreadsheetBuilder) Build(payer domain.Payer, columns []domain.TemplateColumn, orders []domain.Order) ([]byte, error) {
	if len(columns) == 0 {
		columns = domain.DefaultTemplateColumns()
	}
	cols := make([]domain.TemplateColumn, len(columns))
	copy(cols, columns)
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Position < cols[j].Position })

	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(payer.Name)
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if sheet != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("failed to drop default sheet: %w", err)
		}
	}

	for i, col := range cols {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, col.Header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for rowIdx, order := range orders {
		for colIdx, col := range cols {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, fmt.Errorf("failed to compute cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, fieldValue(col.Field, order)); err != nil {
				return nil, fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetName folds the payer name into a legal worksheet name: forbidden
// characters are replaced and the result is capped at the 31-character
// worksheet limit.
func sheetName(payerName string) string {
	name := payerName
	if name == "" {
		name = "Facturación"
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return ' '
		}
		return r
	}, name)
	runes := []rune(name)
	if len(runes) > 31 {
		name = string(runes[:31])
	}
	return name
}

func fieldValue(field string, order domain.Order) string {
	switch field {
	case domain.FieldPatientName:
		return order.PatientLabel()
	case domain.FieldPatientDNI:
		return order.PatientDNI
	case domain.FieldOrderDate:
		return order.OrderDate.Format(orderDateLayout)
	case domain.FieldTotalSessions:
		return strconv.Itoa(int(order.TotalSessions))
	case domain.FieldUsedSessions:
		return strconv.Itoa(int(order.UsedSessions))
	case domain.FieldPrescriber:
		return order.PrescriberName
	default:
		return ""
	}
}
