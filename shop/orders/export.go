package orders

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/m3rciful/storebot/shop/order"
)

// ExportSheet is the worksheet name used by ExportXLSX.
const ExportSheet = "Замовлення"

var exportHeaders = []string{
	"ID", "Дата", "Ім'я", "Прізвище", "По батькові", "Телефон",
	"Вид оплати", "Адреса доставки", "Товари", "Сума, грн",
}

// ExportXLSX renders one row per order into an XLSX workbook.
func ExportXLSX(list []order.Order) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(ExportSheet)
	if err != nil {
		return nil, fmt.Errorf("orders: new sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("orders: drop default sheet: %w", err)
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(ExportSheet, cell, h); err != nil {
			return nil, fmt.Errorf("orders: header %s: %w", cell, err)
		}
	}

	for i, o := range list {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{
			o.ID.String(),
			o.CreatedAt.Format("02.01.2006 15:04"),
			o.CustomerName,
			o.CustomerSurname,
			o.CustomerPatronymic,
			o.CustomerPhone,
			o.PaymentMethod,
			o.DeliveryAddress,
			itemsSummary(o.Lines),
			o.Total,
		}
		if err := f.SetSheetRow(ExportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("orders: row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("orders: write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func itemsSummary(lines []order.Line) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("%s x%d", l.ProductName, l.Quantity))
	}
	return strings.Join(parts, "; ")
}
