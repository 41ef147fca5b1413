package reports

import (
	"fmt"

	"bitbucket.org/mmdatafocus/houseplan_backend/models"
	"github.com/xuri/excelize/v2"
)

const (
	XlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	boqSheet   = "Bill of Quantities"
	roomsSheet = "Rooms"
)

var boqHeadings = []interface{}{"Stage", "Item", "Specification", "Unit", "Quantity", "Unit Price", "Total"}

// ExportBOQ writes the stored bill of quantities as an xlsx workbook: one
// sheet of stages and line items with totals, one sheet of rooms per floor.
func ExportBOQ(plan *models.HousePlan) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", boqSheet); err != nil {
		return nil, err
	}
	styles, err := newBoqStyles(f, plan.Currency)
	if err != nil {
		return nil, err
	}

	row := 1
	setRow := func(values ...interface{}) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		row++
		return f.SetSheetRow(boqSheet, cell, &values)
	}

	if err := setRow(plan.Name); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(boqSheet, "A1", "A1", styles.title); err != nil {
		return nil, err
	}
	for _, info := range [][]interface{}{
		{"House type", string(plan.HouseType)},
		{"Location", string(plan.Location)},
		{"Finishing", string(plan.FinishingLevel)},
		{"Total floor area (m2)", plan.TotalFloorArea},
		{"Currency", plan.Currency},
	} {
		if err := setRow(info...); err != nil {
			return nil, err
		}
	}
	row++

	headerRow := row
	if err := setRow(boqHeadings...); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(boqSheet, cellName(1, headerRow), cellName(len(boqHeadings), headerRow), styles.header); err != nil {
		return nil, err
	}
	firstDataRow := row

	var subtotalRows []int
	for _, stage := range plan.ConstructionStages {
		for _, item := range stage.LineItems {
			if err := setRow(
				stage.StageName, item.ItemName, item.Specification, item.Unit,
				item.Quantity.InexactFloat64(), item.UnitPrice.InexactFloat64(), item.TotalPrice.InexactFloat64(),
			); err != nil {
				return nil, err
			}
		}
		subtotalRows = append(subtotalRows, row)
		if err := setRow(stage.StageName+" subtotal", "", "", "", "", "", stage.TotalCost.InexactFloat64()); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(boqSheet, cellName(6, firstDataRow), cellName(7, row-1), styles.money); err != nil {
		return nil, err
	}
	for _, r := range subtotalRows {
		if err := f.SetCellStyle(boqSheet, cellName(1, r), cellName(7, r), styles.subtotal); err != nil {
			return nil, err
		}
	}
	row++

	summaryStart := row
	for _, total := range [][]interface{}{
		{"Materials", plan.TotalMaterialsCost.InexactFloat64()},
		{"Labor", plan.LaborCost.InexactFloat64()},
		{"Total project cost", plan.TotalProjectCost.InexactFloat64()},
	} {
		if err := setRow(total[0], "", "", "", "", "", total[1]); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(boqSheet, cellName(1, summaryStart), cellName(7, row-1), styles.subtotal); err != nil {
		return nil, err
	}
	if err := setRow("Estimated duration (days)", "", "", "", "", "", plan.EstimatedDurationDays); err != nil {
		return nil, err
	}

	for col, width := range map[string]float64{"A": 26, "B": 30, "C": 30, "D": 12, "E": 12, "F": 14, "G": 16} {
		if err := f.SetColWidth(boqSheet, col, col, width); err != nil {
			return nil, err
		}
	}
	if err := f.SetPanes(boqSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      headerRow,
		TopLeftCell: cellName(1, headerRow+1),
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, err
	}

	if err := writeRoomsSheet(f, plan, styles); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRoomsSheet(f *excelize.File, plan *models.HousePlan, styles boqStyles) error {
	if _, err := f.NewSheet(roomsSheet); err != nil {
		return err
	}
	headings := []interface{}{"Floor", "Room", "Type", "Length (m)", "Width (m)", "Height (m)", "Area (m2)"}
	if err := f.SetSheetRow(roomsSheet, "A1", &headings); err != nil {
		return err
	}
	if err := f.SetCellStyle(roomsSheet, "A1", cellName(len(headings), 1), styles.header); err != nil {
		return err
	}
	row := 2
	for _, floor := range plan.Floors {
		for _, room := range floor.Rooms {
			values := []interface{}{floor.FloorName, room.Name, string(room.Type), room.Length, room.Width, room.Height, room.Area}
			if err := f.SetSheetRow(roomsSheet, cellName(1, row), &values); err != nil {
				return err
			}
			row++
		}
	}
	return f.SetColWidth(roomsSheet, "A", "C", 20)
}

type boqStyles struct {
	title, header, subtotal, money int
}

func newBoqStyles(f *excelize.File, currency string) (boqStyles, error) {
	var s boqStyles
	var err error
	if s.title, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}); err != nil {
		return s, err
	}
	s.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return s, err
	}
	moneyFormat := fmt.Sprintf(`#,##0 "%s"`, currency)
	if s.subtotal, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, CustomNumFmt: &moneyFormat}); err != nil {
		return s, err
	}
	if s.money, err = f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFormat}); err != nil {
		return s, err
	}
	return s, nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
