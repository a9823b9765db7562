// Package report renders the pickup audit trail as an XLSX workbook.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
)

const (
	pickupsSheet = "Pickups"
	summarySheet = "Summary"
)

var pickupHeader = []any{"Timestamp (UTC)", "Guardian ID", "Guardian", "Student ID", "Student", "Teacher email", "Verified image"}

// Row is one pickup log joined with the names it references. Names are empty
// when the referenced record no longer exists.
type Row struct {
	Timestamp         time.Time
	GuardianID        string
	GuardianName      string
	StudentID         string
	StudentName       string
	TeacherEmail      string
	VerifiedImagePath string
}

// BuildRows joins logs with guardian and student names, keeping log order.
func BuildRows(logs []database.PickupLog, guardians []database.Guardian, students []database.Student) []Row {
	gNames := make(map[string]string, len(guardians))
	for _, g := range guardians {
		gNames[g.ID] = g.Name
	}
	sByID := make(map[string]database.Student, len(students))
	for _, s := range students {
		sByID[s.ID] = s
	}

	rows := make([]Row, 0, len(logs))
	for _, l := range logs {
		s := sByID[l.StudentID]
		rows = append(rows, Row{
			Timestamp:         l.Timestamp.UTC(),
			GuardianID:        l.GuardianID,
			GuardianName:      gNames[l.GuardianID],
			StudentID:         l.StudentID,
			StudentName:       s.Name,
			TeacherEmail:      s.TeacherEmail,
			VerifiedImagePath: l.VerifiedImagePath,
		})
	}
	return rows
}

// WriteXLSX writes a workbook with a "Pickups" sheet holding one row per log
// and a "Summary" sheet counting pickups per student.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", pickupsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetRow(pickupsSheet, "A1", &pickupHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			r.Timestamp.Format(time.DateTime),
			r.GuardianID,
			r.GuardianName,
			r.StudentID,
			r.StudentName,
			r.TeacherEmail,
			r.VerifiedImagePath,
		}
		if err := f.SetSheetRow(pickupsSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetCellStyle(pickupsSheet, "A1", "G1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(pickupsSheet, "A", "G", 22); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetPanes(pickupsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := writeSummary(f, rows, headerStyle); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type studentCount struct {
	id, name string
	count    int
	last     time.Time
}

func writeSummary(f *excelize.File, rows []Row, headerStyle int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	counts := make(map[string]*studentCount)
	for _, r := range rows {
		c, ok := counts[r.StudentID]
		if !ok {
			c = &studentCount{id: r.StudentID, name: r.StudentName}
			counts[r.StudentID] = c
		}
		c.count++
		if r.Timestamp.After(c.last) {
			c.last = r.Timestamp
		}
	}
	sorted := make([]*studentCount, 0, len(counts))
	for _, c := range counts {
		sorted = append(sorted, c)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].id < sorted[j].id
	})

	header := []any{"Student ID", "Student", "Pickups", "Last pickup (UTC)"}
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	for i, c := range sorted {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{c.id, c.name, c.count, c.last.Format(time.DateTime)}
		if err := f.SetSheetRow(summarySheet, cell, &values); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+2, err)
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", "D1", headerStyle); err != nil {
		return fmt.Errorf("style summary header: %w", err)
	}
	return nil
}
