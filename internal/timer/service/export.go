package service

import (
	"fmt"
	"io"
	"time"

	"github.com/medflow/shift-timer/internal/reconcile"
	"github.com/xuri/excelize/v2"
)

const exportDateLayout = "2006-01-02"

// WriteHoursXLSX renders the report as a spreadsheet with one row per entry
// and a closing total. Times are shown in loc.
func WriteHoursXLSX(w io.Writer, report *HoursReport, loc *time.Location) error {
	file := excelize.NewFile()
	defer file.Close()

	sheet := file.GetSheetName(0)
	headers := []string{"Date", "Start", "End", "Hours", "Status"}

	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := file.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("set excel header %s: %w", cell, err)
		}
	}

	row := 2
	for _, entry := range report.Entries {
		if entry.UserID != report.UserID {
			continue
		}

		start := reconcile.UTCToLocal(reconcile.UTCClock(entry.StartTime), loc)
		values := []string{
			start.Format(exportDateLayout),
			start.Format("15:04:05"),
			"",
			"",
			"open",
		}
		if hours, ok := reconcile.EntryDuration(entry); ok {
			values[2] = reconcile.UTCToLocal(reconcile.UTCClock(*entry.EndTime), loc).Format("15:04:05")
			values[3] = reconcile.FormatHours(hours)
			values[4] = "closed"
		}

		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("set excel value %s: %w", cell, err)
			}
		}
		row++
	}

	totals := map[int]string{1: "Total", 4: report.Hours}
	for col, value := range totals {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		if err := file.SetCellValue(sheet, cell, value); err != nil {
			return fmt.Errorf("set excel total %s: %w", cell, err)
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write excel report: %w", err)
	}

	return nil
}
