package houseplan

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/houseplan_backend/config"
	"bitbucket.org/mmdatafocus/houseplan_backend/estimator"
	"bitbucket.org/mmdatafocus/houseplan_backend/metrics"
	"bitbucket.org/mmdatafocus/houseplan_backend/models"
	"bitbucket.org/mmdatafocus/houseplan_backend/models/reports"
	"bitbucket.org/mmdatafocus/houseplan_backend/utils"
	"github.com/sirupsen/logrus"
)

// ExportPDF returns the plan document built from stored data. The first
// export is kept as an artifact and reused afterwards.
func (r *Repository) ExportPDF(ctx context.Context, id string, requesterId string) ([]byte, error) {
	return r.export(ctx, id, requesterId, "pdf", utils.PlanPdfKey(id), reports.PdfContentType, func(plan *models.HousePlan) ([]byte, error) {
		return reports.ExportPDF(plan, r.floorImages(ctx, plan))
	})
}

// ExportBOQ returns the bill of quantities as an xlsx workbook.
func (r *Repository) ExportBOQ(ctx context.Context, id string, requesterId string) ([]byte, error) {
	return r.export(ctx, id, requesterId, "xlsx", utils.PlanBoqKey(id), reports.XlsxContentType, reports.ExportBOQ)
}

// export serves key from the artifact store, building and storing it on a
// miss. Concurrent builds of the same export are coalesced with a redis lock
// when one is available; without the lock each request builds its own copy.
func (r *Repository) export(ctx context.Context, id, requesterId, format, key, contentType string, build func(*models.HousePlan) ([]byte, error)) (data []byte, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "houseplan.Export."+format)
	defer func() {
		recordSpanError(span, err)
		span.End()
		metrics.ObserveOperation("export_"+format, start, err)
	}()

	plan, err := r.Get(ctx, id, requesterId)
	if err != nil {
		return nil, err
	}
	if data, ok := r.storedArtifact(ctx, key); ok {
		metrics.ExportsServed.WithLabelValues(format, "stored").Inc()
		return data, nil
	}

	release, lockErr := utils.ObtainLock(ctx, r.locker, r.logger, "export-"+format, id, r.exportLockTTL, r.exportLockTTL)
	if lockErr != nil {
		r.logger.WithFields(logrus.Fields{"field": "houseplan.export", "plan_id": id, "format": format}).
			Warn("export lock not obtained; building without it: " + lockErr.Error())
	} else {
		defer release()
		// another request may have finished while we waited
		if data, ok := r.storedArtifact(ctx, key); ok {
			metrics.ExportsServed.WithLabelValues(format, "stored").Inc()
			return data, nil
		}
	}

	if !estimator.ReconcileCosts(plan) {
		r.logger.WithFields(logrus.Fields{"field": "houseplan.export", "plan_id": id}).Warn("stored plan totals do not reconcile with its line items")
	}
	data, err = build(plan)
	if err != nil {
		return nil, err
	}
	// a Delete may have run while we were building
	if ok, err := r.stillStored(ctx, id); err != nil {
		return nil, err
	} else if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	if err := r.artifacts.Put(ctx, key, data, contentType); err != nil {
		config.LogError(r.logger, "houseplan", "export", "store "+format, id, err)
	}
	if ok, err := r.stillStored(ctx, id); err == nil && !ok {
		if err := r.artifacts.DeletePrefix(ctx, utils.PlanArtifactPrefix(id)); err != nil {
			config.LogError(r.logger, "houseplan", "export", "delete artifacts", id, err)
		}
		return nil, utils.ErrorRecordNotFound
	}
	metrics.ExportsServed.WithLabelValues(format, "built").Inc()
	return data, nil
}

func (r *Repository) storedArtifact(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.artifacts.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, utils.ErrArtifactNotFound) {
			config.LogError(r.logger, "houseplan", "storedArtifact", "get", key, err)
		}
		return nil, false
	}
	return data, true
}

func (r *Repository) floorImages(ctx context.Context, plan *models.HousePlan) map[int][]byte {
	images := make(map[int][]byte, len(plan.Floors))
	for i, floor := range plan.Floors {
		if floor.RenderStatus != models.RenderStatusRendered {
			continue
		}
		if data, ok := r.storedArtifact(ctx, utils.FloorImageKey(plan.ID, i)); ok {
			images[i] = data
		}
	}
	return images
}
