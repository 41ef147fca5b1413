// estimate-plan prices a house plan specification offline, without a
// database, and optionally writes the PDF report and BOQ workbook.
//
// Usage:
//   go run ./cmd/estimate-plan -template bungalow_2_bed
//   go run ./cmd/estimate-plan -spec plan.json -catalog catalog.json -pdf plan.pdf -boq plan.xlsx
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/houseplan_backend/catalog"
	"bitbucket.org/mmdatafocus/houseplan_backend/config"
	"bitbucket.org/mmdatafocus/houseplan_backend/floorplan"
	"bitbucket.org/mmdatafocus/houseplan_backend/houseplan"
	"bitbucket.org/mmdatafocus/houseplan_backend/models"
	"bitbucket.org/mmdatafocus/houseplan_backend/models/reports"
	"bitbucket.org/mmdatafocus/houseplan_backend/utils"
)

func main() {
	specPath := flag.String("spec", "", "Path to a plan specification JSON file")
	templateKey := flag.String("template", "", "Built-in template key (ignored if -spec is set)")
	catalogPath := flag.String("catalog", os.Getenv("CATALOG_PATH"), "Catalog JSON file; empty uses the built-in catalog")
	asJSON := flag.Bool("json", false, "Print the full plan as JSON")
	pdfOut := flag.String("pdf", "", "Optional: write the PDF report to this path")
	boqOut := flag.String("boq", "", "Optional: write the BOQ workbook to this path")
	flag.Parse()

	spec, err := loadSpec(*specPath, *templateKey)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cat, err := catalog.LoadFile(*catalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load catalog: %v\n", err)
		os.Exit(1)
	}

	renderer := floorplan.NewRenderer(config.LoadSettings())
	repo := houseplan.NewRepository(houseplan.Dependencies{
		Catalog:  cat,
		Renderer: renderer,
		Logger:   config.GetLogger(),
	})
	plan, err := repo.Estimate(context.Background(), spec)
	if err != nil {
		if specErr, ok := utils.AsSpecError(err); ok {
			fmt.Fprintf(os.Stderr, "%s (%s)\n", specErr.Error(), specErr.Code())
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "estimate: %v\n", err)
		os.Exit(1)
	}

	images := map[int][]byte{}
	if *pdfOut != "" {
		for i := range plan.Floors {
			img, err := renderer.Rasterize(renderer.Layout(floorplan.RoomsFromFloor(plan.Floors[i])))
			if err != nil {
				fmt.Fprintf(os.Stderr, "floor %d: %v\n", i, err)
				continue
			}
			images[i] = img
		}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(plan); err != nil {
			fmt.Fprintf(os.Stderr, "encode: %v\n", err)
			os.Exit(1)
		}
	} else {
		printSummary(plan)
	}

	if *pdfOut != "" {
		data, err := reports.ExportPDF(plan, images)
		if err == nil {
			err = os.WriteFile(*pdfOut, data, 0o644)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "pdf: %v\n", err)
			os.Exit(1)
		}
	}
	if *boqOut != "" {
		data, err := reports.ExportBOQ(plan)
		if err == nil {
			err = os.WriteFile(*boqOut, data, 0o644)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "boq: %v\n", err)
			os.Exit(1)
		}
	}
}

func loadSpec(path, templateKey string) (*models.NewHousePlan, error) {
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read spec: %w", err)
		}
		var spec models.NewHousePlan
		if err := json.Unmarshal(raw, &spec); err != nil {
			return nil, fmt.Errorf("decode spec: %w", err)
		}
		return &spec, nil
	}
	keys := make([]string, 0)
	for _, tpl := range models.Templates() {
		if tpl.Key == templateKey {
			spec := tpl.Spec
			return &spec, nil
		}
		keys = append(keys, tpl.Key)
	}
	return nil, fmt.Errorf("-spec or -template is required (templates: %s)", strings.Join(keys, ", "))
}

func printSummary(plan *models.HousePlan) {
	fmt.Printf("%s (%s, %s, %s)\n", plan.Name, plan.HouseType, plan.Location, plan.FinishingLevel)
	fmt.Printf("floor area %.2f m2, built area %.2f m2\n\n", plan.TotalFloorArea, plan.TotalBuiltArea)
	for _, stage := range plan.ConstructionStages {
		fmt.Printf("%-24s %18s %4d days\n", stage.StageName, reports.FormatMoney(stage.TotalCost, plan.Currency), stage.DurationDays)
	}
	fmt.Println()
	fmt.Printf("%-24s %18s\n", "Materials", reports.FormatMoney(plan.TotalMaterialsCost, plan.Currency))
	fmt.Printf("%-24s %18s\n", "Labor", reports.FormatMoney(plan.LaborCost, plan.Currency))
	fmt.Printf("%-24s %18s\n", "Total", reports.FormatMoney(plan.TotalProjectCost, plan.Currency))
	fmt.Printf("%-24s %13d days\n", "Duration", plan.EstimatedDurationDays)
}
