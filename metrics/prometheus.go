// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/houseplan_backend/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PlansCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "houseplan_plans_created_total",
			Help: "Plans persisted, by house type and finishing level",
		},
		[]string{"house_type", "finishing_level"},
	)

	PlansDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "houseplan_plans_deleted_total",
			Help: "Plans deleted",
		},
	)

	OperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "houseplan_operation_errors_total",
			Help: "Failed operations by operation and error kind",
		},
		[]string{"operation", "kind"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "houseplan_operation_duration_seconds",
			Help:    "Time spent in plan operations",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	FloorRenders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "houseplan_floor_renders_total",
			Help: "Floor plan rasterizations by result",
		},
		[]string{"status"},
	)

	PlanCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "houseplan_plan_cache_lookups_total",
			Help: "Plan cache lookups by result",
		},
		[]string{"result"},
	)

	ExportsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "houseplan_exports_total",
			Help: "Exports served, by format and whether a stored copy was reused",
		},
		[]string{"format", "source"},
	)
)

// ObserveOperation records the duration of an operation and, when err is
// non-nil, an error under its kind.
func ObserveOperation(operation string, start time.Time, err error) {
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		OperationErrors.WithLabelValues(operation, ErrorKind(err)).Inc()
	}
}

func ErrorKind(err error) string {
	switch {
	case errors.Is(err, utils.ErrInvalidGeometry):
		return "invalid_geometry"
	case errors.Is(err, utils.ErrUnknownMaterial):
		return "unknown_material"
	case errors.Is(err, utils.ErrInvalidSpec):
		return "invalid_spec"
	case errors.Is(err, utils.ErrorRecordNotFound):
		return "not_found"
	case errors.Is(err, utils.ErrForbidden):
		return "forbidden"
	case errors.Is(err, utils.ErrRenderFailure):
		return "render_failure"
	case errors.Is(err, utils.ErrPersistenceFailure):
		return "persistence_failure"
	}
	return "internal"
}
