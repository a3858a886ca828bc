// Package export renders reservation lists as Excel workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"zenbook/internal/models"
)

var reservationColumns = []string{
	"Date", "Time", "End", "Customer", "Phone", "Email",
	"Staff", "Status", "Source", "Notes",
}

// WriteReservations writes one sheet of reservations to wr in xlsx format.
// staffNames maps staff member ids to display names; unknown ids are
// rendered as the raw id.
func WriteReservations(wr io.Writer, reservations []models.Reservation, staffNames map[string]string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Reservations"
	f.SetSheetName("Sheet1", sheet)

	for i, col := range reservationColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(reservationColumns), 1)
		_ = f.SetCellStyle(sheet, startCell, endCell, style)
	}

	for rowIdx, r := range reservations {
		staff := r.StaffMemberID
		if name, ok := staffNames[r.StaffMemberID]; ok {
			staff = name
		}
		row := []interface{}{
			r.Date, r.Time, r.EndTime, r.CustomerName, r.CustomerPhone, r.CustomerEmail,
			staff, r.Status, r.Source, r.Notes,
		}
		for i, val := range row {
			cell, err := excelize.CoordinatesToCellName(i+1, rowIdx+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return err
			}
		}
	}

	if err := f.Write(wr); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
