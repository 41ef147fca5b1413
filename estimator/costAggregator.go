package estimator

import (
	"bitbucket.org/mmdatafocus/houseplan_backend/models"
	"github.com/shopspring/decimal"
)

type Costs struct {
	TotalMaterialsCost decimal.Decimal
	LaborCost          decimal.Decimal
	TotalProjectCost   decimal.Decimal
}

// AggregateCosts rolls stage totals up into materials, labor and project cost.
// Labor is materials x laborRate rounded to the currency precision. There is
// no contingency margin.
func AggregateCosts(stages []models.ConstructionStage, laborRate decimal.Decimal, precision int32) Costs {
	materials := decimal.Zero
	for _, stage := range stages {
		materials = materials.Add(stage.TotalCost)
	}
	labor := materials.Mul(laborRate).Round(precision)
	return Costs{
		TotalMaterialsCost: materials,
		LaborCost:          labor,
		TotalProjectCost:   materials.Add(labor),
	}
}
