// Package estimator turns a house plan specification into geometry, a staged
// bill of quantities, costs and a schedule. Everything here is a pure function
// of the specification and the catalog.
package estimator

import (
	"strings"
	"sync"

	"bitbucket.org/mmdatafocus/houseplan_backend/catalog"
	"bitbucket.org/mmdatafocus/houseplan_backend/models"
	"github.com/shopspring/decimal"
)

// Estimate validates spec and computes every derived field of a plan. The
// result has no id, owner, timestamps or floor layout yet.
func Estimate(spec *models.NewHousePlan, cat *catalog.Catalog) (*models.HousePlan, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	geo, err := Measure(spec.Floors, cat.StructuralOverheadFactor().InexactFloat64())
	if err != nil {
		return nil, err
	}
	takeoff, err := Takeoff(spec, geo, cat)
	if err != nil {
		return nil, err
	}
	laborRate, err := cat.LaborRate(spec.HouseType, spec.FinishingLevel)
	if err != nil {
		return nil, err
	}

	// both only read the takeoff
	var (
		costs     Costs
		durations []int
		totalDays int
		wg        sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		costs = AggregateCosts(takeoff.Stages, laborRate, cat.CurrencyPrecision())
	}()
	go func() {
		defer wg.Done()
		durations, totalDays = StageDurations(takeoff)
	}()
	wg.Wait()

	stages := takeoff.Stages
	for i := range stages {
		stages[i].DurationDays = durations[i]
	}

	plan := &models.HousePlan{
		Name:                  strings.TrimSpace(spec.Name),
		Description:           strings.TrimSpace(spec.Description),
		HouseType:             spec.HouseType,
		Location:              spec.Location,
		FoundationType:        spec.FoundationType,
		WallType:              spec.WallType,
		RoofingType:           spec.RoofingType,
		FinishingLevel:        spec.FinishingLevel,
		Currency:              cat.Currency(),
		TotalFloorArea:        geo.TotalFloorArea,
		TotalBuiltArea:        geo.TotalBuiltArea,
		TotalMaterialsCost:    costs.TotalMaterialsCost,
		LaborCost:             costs.LaborCost,
		TotalProjectCost:      costs.TotalProjectCost,
		EstimatedDurationDays: totalDays,
		Floors:                buildFloors(spec.Floors, geo),
		ConstructionStages:    stages,
	}
	return plan, nil
}

func buildFloors(input []models.NewFloor, geo *Geometry) []models.Floor {
	floors := make([]models.Floor, len(input))
	for i, f := range input {
		fg := geo.Floors[i]
		rooms := make([]models.Room, len(f.Rooms))
		for j, r := range f.Rooms {
			rooms[j] = models.Room{
				Position:  j,
				Name:      strings.TrimSpace(r.Name),
				Type:      r.Type,
				Length:    r.Length,
				Width:     r.Width,
				Height:    r.Height,
				Area:      fg.Rooms[j].Area,
				Perimeter: fg.Rooms[j].Perimeter,
			}
		}
		floors[i] = models.Floor{
			Position:    i,
			FloorNumber: f.FloorNumber,
			FloorName:   strings.TrimSpace(f.FloorName),
			FloorArea:   fg.Area,
			WallArea:    fg.WallArea,
			Rooms:       rooms,
		}
	}
	return floors
}

// ReconcileCosts reports whether the stored totals still add up: each stage
// equals its line items and the plan totals equal the stages plus labor.
func ReconcileCosts(plan *models.HousePlan) bool {
	materials := decimal.Zero
	for _, stage := range plan.ConstructionStages {
		sum := decimal.Zero
		for _, item := range stage.LineItems {
			if !item.Quantity.Mul(item.UnitPrice).Equal(item.TotalPrice) {
				return false
			}
			sum = sum.Add(item.TotalPrice)
		}
		if !sum.Equal(stage.TotalCost) {
			return false
		}
		materials = materials.Add(stage.TotalCost)
	}
	return materials.Equal(plan.TotalMaterialsCost) &&
		plan.TotalMaterialsCost.Add(plan.LaborCost).Equal(plan.TotalProjectCost)
}
