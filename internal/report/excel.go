// Package report generates monthly attendance workbooks.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"smartattend/internal/attendance"
	"smartattend/internal/student"
)

const (
	sheetLog     = "Attendance Log"
	sheetStudent = "Student Summary"
	sheetDaily   = "Daily Summary"
)

// Filename returns the download name for an institute's current-month report.
func Filename(instituteName string, today time.Time) string {
	safe := make([]rune, 0, len(instituteName))
	for _, r := range instituteName {
		if r == ' ' {
			r = '_'
		}
		safe = append(safe, r)
	}
	return fmt.Sprintf("Attendance_%s_%s_%d.xlsx", string(safe), today.Month().String(), today.Year())
}

// Monthly builds the three-sheet workbook: the full attendance log, a
// per-student summary and a date-wise summary, all for the current month.
func Monthly(entries []attendance.DayEntry, students []student.Student) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"3A4A44"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}

	if err := writeLogSheet(f, entries, headerStyle); err != nil {
		return nil, err
	}
	if err := writeStudentSheet(f, entries, students, headerStyle); err != nil {
		return nil, err
	}
	if err := writeDailySheet(f, entries, headerStyle); err != nil {
		return nil, err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeLogSheet(f *excelize.File, entries []attendance.DayEntry, headerStyle int) error {
	if _, err := f.NewSheet(sheetLog); err != nil {
		return err
	}
	headers := []string{"Date", "Day", "Student Name", "Roll Number", "Department", "Time", "Status", "Face Match", "Dress Code"}
	widths := []float64{12, 12, 20, 15, 15, 12, 25, 12, 15}
	if err := writeHeader(f, sheetLog, headers, widths, headerStyle); err != nil {
		return err
	}

	for i, e := range entries {
		dress := "Compliant"
		if !e.DressMatch {
			dress = "Violation"
		}
		faceMatch := "No"
		if e.FaceMatch {
			faceMatch = "Yes"
		}
		row := []any{
			e.Date.Format("2006-01-02"),
			e.Date.Weekday().String(),
			e.StudentName,
			e.RollNumber,
			e.Department,
			e.Time,
			e.Status,
			faceMatch,
			dress,
		}
		if err := writeRow(f, sheetLog, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeStudentSheet(f *excelize.File, entries []attendance.DayEntry, students []student.Student, headerStyle int) error {
	if _, err := f.NewSheet(sheetStudent); err != nil {
		return err
	}
	headers := []string{"Roll Number", "Student Name", "Department", "Total Present", "Dress Code Compliant", "Dress Code Violations", "Attendance %"}
	widths := []float64{15, 20, 15, 15, 20, 20, 15}
	if err := writeHeader(f, sheetStudent, headers, widths, headerStyle); err != nil {
		return err
	}

	// distinct working dates seen this month drive the percentage
	dates := make(map[string]bool)
	for _, e := range entries {
		dates[e.Date.Format("2006-01-02")] = true
	}
	workingDays := len(dates)

	byStudent := make(map[int64][]attendance.DayEntry)
	for _, e := range entries {
		byStudent[e.StudentID] = append(byStudent[e.StudentID], e)
	}

	for i, st := range students {
		recs := byStudent[st.ID]
		present := len(recs)
		compliant := 0
		for _, r := range recs {
			if r.DressMatch {
				compliant++
			}
		}
		pct := 0.0
		if workingDays > 0 {
			pct = float64(present) / float64(workingDays) * 100
		}
		row := []any{
			st.RollNumber,
			st.Name,
			st.Department,
			present,
			compliant,
			present - compliant,
			fmt.Sprintf("%.1f%%", pct),
		}
		if err := writeRow(f, sheetStudent, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeDailySheet(f *excelize.File, entries []attendance.DayEntry, headerStyle int) error {
	if _, err := f.NewSheet(sheetDaily); err != nil {
		return err
	}
	headers := []string{"Date", "Day", "Total Present", "Dress Code Violations", "Compliant"}
	widths := []float64{12, 12, 15, 22, 15}
	if err := writeHeader(f, sheetDaily, headers, widths, headerStyle); err != nil {
		return err
	}

	type daily struct {
		date       time.Time
		present    int
		violations int
	}
	byDate := make(map[string]*daily)
	for _, e := range entries {
		key := e.Date.Format("2006-01-02")
		d, ok := byDate[key]
		if !ok {
			d = &daily{date: e.Date}
			byDate[key] = d
		}
		d.present++
		if !e.DressMatch {
			d.violations++
		}
	}

	keys := make([]string, 0, len(byDate))
	for k := range byDate {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	for i, k := range keys {
		d := byDate[k]
		row := []any{
			d.date.Format("2006-01-02"),
			d.date.Weekday().String(),
			d.present,
			d.violations,
			d.present - d.violations,
		}
		if err := writeRow(f, sheetDaily, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, widths []float64, style int) error {
	for i, h := range headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, col+"1", h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, col+"1", col+"1", style); err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, widths[i]); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, values []any) error {
	for i, v := range values {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, rowNum), v); err != nil {
			return err
		}
	}
	return nil
}
