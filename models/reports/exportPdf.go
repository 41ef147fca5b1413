package reports

import (
	"bytes"
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/houseplan_backend/models"
	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

const PdfContentType = "application/pdf"

const (
	pageWidth  = 190.0 // A4 minus 10 mm margins
	lineHeight = 6.0
	maxImageH  = 200.0
)

// ExportPDF renders a plan document from stored data only. floorImages maps
// a floor index to its PNG; floors without an image are listed as not
// available.
func ExportPDF(plan *models.HousePlan, floorImages map[int][]byte) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("%s - page %d", tr(plan.Name), pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 9, tr(plan.Name), "", "L", false)
	if plan.Description != "" {
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(plan.Description), "", "L", false)
	}
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "", 10)
	for _, kv := range [][2]string{
		{"House type", string(plan.HouseType)},
		{"Location", string(plan.Location)},
		{"Foundation", plan.FoundationType},
		{"Walls", plan.WallType},
		{"Roofing", plan.RoofingType},
		{"Finishing", string(plan.FinishingLevel)},
		{"Total floor area", fmt.Sprintf("%.2f m2", plan.TotalFloorArea)},
		{"Total built area", fmt.Sprintf("%.2f m2", plan.TotalBuiltArea)},
		{"Estimated duration", fmt.Sprintf("%d days", plan.EstimatedDurationDays)},
	} {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(45, lineHeight, kv[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, lineHeight, tr(kv[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	writeCostSummary(pdf, plan)
	writeBoqTable(pdf, plan, tr)

	for i, floor := range plan.Floors {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 8, tr(fmt.Sprintf("%s (floor %d)", floor.FloorName, floor.FloorNumber)), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, lineHeight, fmt.Sprintf("Floor area %.2f m2, wall area %.2f m2", floor.FloorArea, floor.WallArea), "", 1, "L", false, 0, "")
		pdf.Ln(2)

		data, ok := floorImages[i]
		if !ok || len(data) == 0 {
			pdf.SetFont("Helvetica", "I", 10)
			pdf.CellFormat(0, lineHeight, "Floor plan drawing not available", "", 1, "L", false, 0, "")
		} else {
			name := fmt.Sprintf("floor-%d", i)
			info := pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(data))
			if pdf.Ok() && info != nil && info.Width() > 0 {
				w, h := pageWidth, pageWidth*info.Height()/info.Width()
				if h > maxImageH {
					w, h = w*maxImageH/h, maxImageH
				}
				pdf.ImageOptions(name, 10, pdf.GetY(), w, h, true, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
			}
		}
		pdf.Ln(3)
		writeRoomTable(pdf, floor, tr)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeCostSummary(pdf *fpdf.Fpdf, plan *models.HousePlan) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Cost summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, kv := range []struct {
		label string
		value decimal.Decimal
	}{
		{"Materials", plan.TotalMaterialsCost},
		{"Labor", plan.LaborCost},
		{"Total project cost", plan.TotalProjectCost},
	} {
		pdf.CellFormat(60, lineHeight, kv.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(60, lineHeight, FormatMoney(kv.value, plan.Currency), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
}

func writeBoqTable(pdf *fpdf.Fpdf, plan *models.HousePlan, tr func(string) string) {
	widths := []float64{62, 22, 22, 40, 44}
	header := []string{"Item", "Unit", "Quantity", "Unit price", "Total"}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Bill of quantities", "", 1, "L", false, 0, "")
	for _, stage := range plan.ConstructionStages {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(230, 243, 255)
		pdf.CellFormat(pageWidth, lineHeight, tr(fmt.Sprintf("%d. %s (%d days)", stage.StageOrder, stage.StageName, stage.DurationDays)), "1", 1, "L", true, 0, "")
		for i, h := range header {
			pdf.CellFormat(widths[i], lineHeight, h, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Helvetica", "", 9)
		for _, item := range stage.LineItems {
			pdf.CellFormat(widths[0], lineHeight, tr(item.ItemName), "1", 0, "L", false, 0, "")
			pdf.CellFormat(widths[1], lineHeight, tr(item.Unit), "1", 0, "L", false, 0, "")
			pdf.CellFormat(widths[2], lineHeight, item.Quantity.String(), "1", 0, "R", false, 0, "")
			pdf.CellFormat(widths[3], lineHeight, FormatMoney(item.UnitPrice, ""), "1", 0, "R", false, 0, "")
			pdf.CellFormat(widths[4], lineHeight, FormatMoney(item.TotalPrice, ""), "1", 1, "R", false, 0, "")
		}
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(pageWidth-widths[4], lineHeight, "Subtotal", "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], lineHeight, FormatMoney(stage.TotalCost, plan.Currency), "1", 1, "R", false, 0, "")
		pdf.Ln(2)
	}
}

func writeRoomTable(pdf *fpdf.Fpdf, floor models.Floor, tr func(string) string) {
	widths := []float64{60, 40, 30, 30, 30}
	pdf.SetFont("Helvetica", "B", 9)
	for i, h := range []string{"Room", "Type", "Length (m)", "Width (m)", "Area (m2)"} {
		pdf.CellFormat(widths[i], lineHeight, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
	for _, room := range floor.Rooms {
		pdf.CellFormat(widths[0], lineHeight, tr(room.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], lineHeight, strings.ReplaceAll(string(room.Type), "_", " "), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], lineHeight, fmt.Sprintf("%.2f", room.Length), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], lineHeight, fmt.Sprintf("%.2f", room.Width), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], lineHeight, fmt.Sprintf("%.2f", room.Area), "1", 1, "R", false, 0, "")
	}
}

// FormatMoney groups thousands with spaces and keeps up to two decimals,
// e.g. 5704493 -> "5 704 493 XAF".
func FormatMoney(amount decimal.Decimal, currency string) string {
	s := amount.Round(2).String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	out := sign + b.String()
	if frac != "" {
		out += "." + frac
	}
	if currency != "" {
		out += " " + currency
	}
	return out
}
