package estimator

import (
	"bitbucket.org/mmdatafocus/houseplan_backend/catalog"
	"bitbucket.org/mmdatafocus/houseplan_backend/models"
	"github.com/shopspring/decimal"
)

// driver quantities are fixed to this many decimals before multiplying, so
// float noise in the geometry never changes a rounded-up quantity
const driverScale = 6

// TakeoffResult is the ordered BOQ. ProductivityRates[i] belongs to Stages[i].
type TakeoffResult struct {
	Stages            []models.ConstructionStage
	ProductivityRates []decimal.Decimal
}

// Takeoff builds the stages in canonical order: Foundation, Walls, Roofing,
// Finishing, then any extra stages from the catalog. Quantities are always
// rounded up to whole purchase units.
func Takeoff(spec *models.NewHousePlan, geo *Geometry, cat *catalog.Catalog) (*TakeoffResult, error) {
	recipes := make([]catalog.Recipe, 0, len(catalog.Kinds())+len(cat.ExtraStages()))
	for _, kind := range catalog.Kinds() {
		recipe, err := cat.Recipe(kind, choiceFor(spec, kind))
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, recipe)
	}
	recipes = append(recipes, cat.ExtraStages()...)

	result := &TakeoffResult{
		Stages:            make([]models.ConstructionStage, 0, len(recipes)),
		ProductivityRates: make([]decimal.Decimal, 0, len(recipes)),
	}
	for i, recipe := range recipes {
		stage, err := buildStage(i+1, recipe, spec.Location, geo, cat)
		if err != nil {
			return nil, err
		}
		result.Stages = append(result.Stages, stage)
		result.ProductivityRates = append(result.ProductivityRates, recipe.LaborProductivityRate)
	}
	return result, nil
}

func choiceFor(spec *models.NewHousePlan, kind catalog.Kind) string {
	switch kind {
	case catalog.KindFoundation:
		return spec.FoundationType
	case catalog.KindWall:
		return spec.WallType
	case catalog.KindRoofing:
		return spec.RoofingType
	case catalog.KindFinishing:
		return string(spec.FinishingLevel)
	}
	return ""
}

func buildStage(order int, recipe catalog.Recipe, location models.Region, geo *Geometry, cat *catalog.Catalog) (models.ConstructionStage, error) {
	stage := models.ConstructionStage{
		StageOrder:     order,
		StageName:      recipe.Stage,
		Driver:         string(recipe.Driver),
		DriverQuantity: driverQuantity(geo, recipe.Driver).InexactFloat64(),
		TotalCost:      decimal.Zero,
		LineItems:      make([]models.MaterialLineItem, 0, len(recipe.Items)),
	}

	for _, item := range recipe.Items {
		driver := recipe.Driver
		if item.Driver != "" {
			driver = item.Driver
		}
		material, err := cat.Material(item.Material)
		if err != nil {
			return stage, err
		}

		quantity := PurchaseQuantity(driverQuantity(geo, driver), item.Yield, material.PackagingUnitSize)
		if !quantity.IsPositive() {
			continue
		}
		unitPrice, err := cat.Price(item.Material, location)
		if err != nil {
			return stage, err
		}

		line := models.MaterialLineItem{
			Position:      len(stage.LineItems),
			MaterialCode:  material.Code,
			ItemName:      material.Name,
			Specification: material.Specification,
			Unit:          material.PurchaseUnit,
			Quantity:      quantity,
			UnitPrice:     unitPrice,
			TotalPrice:    quantity.Mul(unitPrice),
		}
		stage.LineItems = append(stage.LineItems, line)
		stage.TotalCost = stage.TotalCost.Add(line.TotalPrice)
	}
	return stage, nil
}

// driverQuantity is zero for a non-finite driver; Measure never produces one.
func driverQuantity(geo *Geometry, d catalog.Driver) decimal.Decimal {
	v := geo.Driver(d)
	if !isFinite(v) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(driverScale)
}

// PurchaseQuantity converts driver x yield base units into whole purchase
// units, rounding up so the order never falls short.
func PurchaseQuantity(driver decimal.Decimal, yield decimal.Decimal, packagingUnitSize decimal.Decimal) decimal.Decimal {
	if !packagingUnitSize.IsPositive() {
		return decimal.Zero
	}
	return driver.Mul(yield).Div(packagingUnitSize).Ceil()
}
