package export

import (
	"fmt"
	"io"
	"time"

	"dnakit/internal/models"

	"github.com/xuri/excelize/v2"
)

const SheetName = "Kits"

var kitColumns = []struct {
	title string
	width float64
	value func(k models.KitView) string
}{
	{"Mã kit", 12, func(k models.KitView) string { return k.KitID }},
	{"Mã lịch hẹn", 14, func(k models.KitView) string { return k.BookingID }},
	{"Khách hàng", 25, func(k models.KitView) string { return k.CustomerName }},
	{"Nhân viên", 25, func(k models.KitView) string { return k.StaffName }},
	{"Mô tả", 30, func(k models.KitView) string { return k.Description }},
	{"Ngày nhận", 14, func(k models.KitView) string { return k.ReceiveDate }},
	{"Địa chỉ", 35, func(k models.KitView) string { return k.Address }},
	{"Trạng thái", 18, func(k models.KitView) string { return string(k.Status) }},
}

// WriteKits renders the staff kit table as an XLSX workbook.
func WriteKits(w io.Writer, kits []models.KitView, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(SheetName, "A1", fmt.Sprintf("Danh sách kit - %s", generatedAt.Format("02/01/2006 15:04")))
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	lastCol, _ := excelize.ColumnNumberToName(len(kitColumns))
	_ = f.MergeCell(SheetName, "A1", lastCol+"1")
	_ = f.SetCellStyle(SheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, col := range kitColumns {
		name, _ := excelize.ColumnNumberToName(i + 1)
		cell := name + "2"
		_ = f.SetCellValue(SheetName, cell, col.title)
		_ = f.SetCellStyle(SheetName, cell, cell, headerStyle)
		_ = f.SetColWidth(SheetName, name, name, col.width)
	}

	for r, kit := range kits {
		for c, col := range kitColumns {
			cell, err := excelize.CoordinatesToCellName(c+1, r+3)
			if err != nil {
				return err
			}
			if err := f.SetCellStr(SheetName, cell, col.value(kit)); err != nil {
				return fmt.Errorf("write %s: %w", cell, err)
			}
		}
	}

	_ = f.DeleteSheet("Sheet1")

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}
