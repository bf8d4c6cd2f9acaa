// server/internal/report/excel.go
package report

import (
	"fmt"
	"strings"
	"time"

	"garage-repair-api-server/internal/models"
	"garage-repair-api-server/internal/workflow"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Progress"

var itemHeaders = []string{
	"#", "Item", "Group", "Type", "Status", "Worker", "Estimate (min)", "Started", "Completed", "Photos",
}

var typeLabels = map[string]string{
	models.RepairTypeMechanical: "Sửa chữa",
	models.RepairTypePaint:      "Đồng sơn",
}

// OrderWorkbook xuất tiến độ một đơn sửa chữa ra file xlsx.
func OrderWorkbook(order models.RepairOrder, roots []*workflow.Node, progress workflow.Progress, roster []models.RepairWorker) (*excelize.File, string, error) {
	names := make(map[string]string, len(roster))
	for _, w := range roster {
		names[w.ID] = w.Name
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, "", err
	}

	boldStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, "", err
	}

	// Phần đầu: thông tin đơn
	header := [][2]interface{}{
		{"Order", order.Code},
		{"License plate", order.LicensePlate},
		{"Customer", order.CustomerName},
		{"Vehicle", order.VehicleName},
		{"Status", order.Status},
		{"Progress", fmt.Sprintf("%d/%d (%d%%)", progress.Completed, progress.Total, progress.Percentage)},
	}
	for i, kv := range header {
		row := i + 1
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), kv[0])
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), kv[1])
		f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), boldStyle)
	}

	headRow := len(header) + 2
	for i, h := range itemHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := fmt.Sprintf("%s%d", col, headRow)
		f.SetCellValue(sheetName, cell, h)
		f.SetCellStyle(sheetName, cell, cell, boldStyle)
	}

	row := headRow + 1
	write := func(n *workflow.Node, group string, idx string) {
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), idx)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), n.Name)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), group)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), typeLabels[n.RepairType])
		if n.HasChildren() {
			row++
			return
		}
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), n.Status)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), names[n.WorkerID])
		if n.EstimatedDurationMinutes != nil {
			f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), *n.EstimatedDurationMinutes)
		}
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), formatTime(n.StartedAt))
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), formatTime(n.CompletedAt))
		f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), len(n.Images))
		row++
	}
	for i, n := range roots {
		idx := fmt.Sprintf("%d", i+1)
		write(n, "", idx)
		for j, c := range n.Children {
			write(c, n.Name, fmt.Sprintf("%s.%d", idx, j+1))
		}
	}

	colWidths := []float64{6, 28, 20, 12, 12, 18, 14, 18, 18, 8}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, w)
	}

	filename := fmt.Sprintf("%s_%s.xlsx", order.Code, strings.ReplaceAll(order.LicensePlate, " ", ""))
	return f, filename, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
