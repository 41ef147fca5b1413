package estimator

import (
	"github.com/shopspring/decimal"
)

// StageDurations returns ceil(driver quantity / crew rate) days per stage and
// their sum. Stages are modelled as strictly sequential, so the total is a
// plain sum with no overlap.
func StageDurations(takeoff *TakeoffResult) ([]int, int) {
	durations := make([]int, len(takeoff.Stages))
	total := 0
	for i, stage := range takeoff.Stages {
		rate := takeoff.ProductivityRates[i]
		if !rate.IsPositive() {
			continue
		}
		days := decimal.NewFromFloat(stage.DriverQuantity).Round(driverScale).Div(rate).Ceil()
		durations[i] = int(days.IntPart())
		total += durations[i]
	}
	return durations, total
}
