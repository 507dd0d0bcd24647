package interfaces

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	directory "child-monitoring/internal/directory/domain"
)

type rosterRow struct {
	ChildID     string
	ChildName   string
	DeviceID    string
	RecipientID string
	Role        string
	Active      string
}

// buildRosterRows joins children with their recipient mappings, one row
// per mapping. Children without mappings still get a row.
func buildRosterRows(children []directory.Child, mappings []directory.RecipientMapping) []rosterRow {
	byChild := make(map[string][]directory.RecipientMapping, len(children))
	for _, mapping := range mappings {
		byChild[mapping.ChildID] = append(byChild[mapping.ChildID], mapping)
	}

	sorted := make([]directory.Child, len(children))
	copy(sorted, children)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var rows []rosterRow
	for _, child := range sorted {
		childMappings := byChild[child.ID]
		if len(childMappings) == 0 {
			rows = append(rows, rosterRow{ChildID: child.ID, ChildName: child.Name, DeviceID: child.DeviceID})
			continue
		}
		sort.Slice(childMappings, func(i, j int) bool {
			return childMappings[i].RecipientID < childMappings[j].RecipientID
		})
		for _, mapping := range childMappings {
			active := "no"
			if mapping.Active {
				active = "yes"
			}
			rows = append(rows, rosterRow{
				ChildID:     child.ID,
				ChildName:   child.Name,
				DeviceID:    child.DeviceID,
				RecipientID: mapping.RecipientID,
				Role:        string(mapping.Role),
				Active:      active,
			})
		}
	}
	return rows
}

// BuildRosterXLSX renders the roster workbook.
func BuildRosterXLSX(children []directory.Child, mappings []directory.RecipientMapping, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	rosterSheet := "roster"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(rosterSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Pickup Roster")
	_ = f.SetCellValue(summarySheet, "A3", "Children")
	_ = f.SetCellValue(summarySheet, "B3", len(children))
	_ = f.SetCellValue(summarySheet, "A4", "Mappings")
	_ = f.SetCellValue(summarySheet, "B4", len(mappings))
	_ = f.SetCellValue(summarySheet, "A5", "Generated")
	_ = f.SetCellValue(summarySheet, "B5", generatedAt.UTC().Format(time.RFC3339))

	headers := []string{"Child ID", "Child Name", "Device", "Recipient", "Role", "Active"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(rosterSheet, cell, header)
	}
	for i, row := range buildRosterRows(children, mappings) {
		values := []string{row.ChildID, row.ChildName, row.DeviceID, row.RecipientID, row.Role, row.Active}
		for j, value := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			_ = f.SetCellValue(rosterSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildRosterPDF renders a printable roster sheet.
func BuildRosterPDF(children []directory.Child, mappings []directory.RecipientMapping, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Pickup Roster")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Children: %d", len(children)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Mappings: %d", len(mappings)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Child", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Name", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Device", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Recipient", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Role", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Active", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, row := range buildRosterRows(children, mappings) {
		pdf.CellFormat(30, 6, row.ChildID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, row.ChildName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, row.DeviceID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, row.RecipientID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, row.Role, "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, row.Active, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
