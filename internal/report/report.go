// Package report renders day statistics as downloadable documents.
package report

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/mrkadirov2005/shopPos/internal/domain"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"

	salesSheet = "Sales"
)

var salesHeaders = []string{"Sale ID", "Time", "Admin", "Payment", "Total", "Net", "Profit"}

// FileName is the attachment name used for a day export.
func FileName(stats domain.DayStatistics, ext string) string {
	return fmt.Sprintf("sales_%s_%s.%s", stats.ShopID, stats.Date.String(), ext)
}

func DayStatisticsXLSX(stats domain.DayStatistics) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", salesSheet); err != nil {
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}

	headers := make([]any, len(salesHeaders))
	for i, h := range salesHeaders {
		headers[i] = h
	}
	if err := setRow(f, 1, headers); err != nil {
		return nil, err
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(salesHeaders), 1)
	if err := f.SetCellStyle(salesSheet, "A1", lastHeader, headerStyle); err != nil {
		return nil, err
	}

	row := 2
	for _, sale := range stats.Sales {
		values := []any{
			sale.ID,
			sale.CreatedAt.Format("15:04"),
			sale.AdminName,
			sale.PaymentMethod,
			sale.TotalPrice.InexactFloat64(),
			sale.TotalNetPrice.InexactFloat64(),
			sale.Profit.InexactFloat64(),
		}
		if err := setRow(f, row, values); err != nil {
			return nil, err
		}
		row++
	}

	totals := []any{
		"Total",
		stats.Date.String(),
		fmt.Sprintf("%d sales", stats.Count),
		"",
		stats.Sale.InexactFloat64(),
		stats.NetSale.InexactFloat64(),
		stats.Profit.InexactFloat64(),
	}
	if err := setRow(f, row, totals); err != nil {
		return nil, err
	}
	firstTotal, _ := excelize.CoordinatesToCellName(1, row)
	lastTotal, _ := excelize.CoordinatesToCellName(len(salesHeaders), row)
	if err := f.SetCellStyle(salesSheet, firstTotal, lastTotal, headerStyle); err != nil {
		return nil, err
	}

	if err := f.SetPanes(salesSheet, &excelize.Panes{Freeze: true, Split: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, row int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(salesSheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func DayStatisticsPDF(stats domain.DayStatistics) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, fmt.Sprintf("Sales Report %s", stats.Date.String()), "", 1, "C", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Shop: %s", stats.ShopID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Sales: %d", stats.Count), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Total: %s  Net: %s  Profit: %s",
		stats.Sale.StringFixed(2), stats.NetSale.StringFixed(2), stats.Profit.StringFixed(2)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	widths := []float64{52, 16, 36, 22, 22, 22, 20}
	pdf.SetFont("Arial", "B", 10)
	for i, h := range salesHeaders {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, sale := range stats.Sales {
		cells := []string{
			shorten(sale.ID, 28),
			sale.CreatedAt.Format("15:04"),
			shorten(sale.AdminName, 20),
			shorten(sale.PaymentMethod, 12),
			sale.TotalPrice.StringFixed(2),
			sale.TotalNetPrice.StringFixed(2),
			sale.Profit.StringFixed(2),
		}
		for i, c := range cells {
			align := "L"
			if i >= 4 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 7, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func shorten(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "~"
}
