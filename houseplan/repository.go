// Package houseplan is the plan service: it creates plans from
// specifications, persists them with their floor drawings and serves reads,
// deletes and exports to the plan's owner.
package houseplan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/houseplan_backend/catalog"
	"bitbucket.org/mmdatafocus/houseplan_backend/config"
	"bitbucket.org/mmdatafocus/houseplan_backend/estimator"
	"bitbucket.org/mmdatafocus/houseplan_backend/floorplan"
	"bitbucket.org/mmdatafocus/houseplan_backend/metrics"
	"bitbucket.org/mmdatafocus/houseplan_backend/models"
	"bitbucket.org/mmdatafocus/houseplan_backend/utils"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("houseplan")

const eventPublishTimeout = 10 * time.Second

type FloorRenderer interface {
	Layout(rooms []floorplan.Room) floorplan.Layout
	Rasterize(layout floorplan.Layout) ([]byte, error)
}

// EventPublisher matches config.PublishPlanEvent.
type EventPublisher func(ctx context.Context, evt config.PlanEvent) (string, error)

type Dependencies struct {
	Catalog   *catalog.Catalog
	Store     models.PlanStore
	Artifacts utils.ArtifactStore
	// optional
	Cache         *models.PlanCache
	Renderer      FloorRenderer
	Locker        *redislock.Client
	Publish       EventPublisher
	Logger        *logrus.Logger
	ExportLockTTL time.Duration
}

type Repository struct {
	catalog       *catalog.Catalog
	store         models.PlanStore
	artifacts     utils.ArtifactStore
	cache         *models.PlanCache
	renderer      FloorRenderer
	locker        *redislock.Client
	publish       EventPublisher
	logger        *logrus.Logger
	exportLockTTL time.Duration
}

func NewRepository(deps Dependencies) *Repository {
	r := &Repository{
		catalog:       deps.Catalog,
		store:         deps.Store,
		artifacts:     deps.Artifacts,
		cache:         deps.Cache,
		renderer:      deps.Renderer,
		locker:        deps.Locker,
		publish:       deps.Publish,
		logger:        deps.Logger,
		exportLockTTL: deps.ExportLockTTL,
	}
	if r.renderer == nil {
		r.renderer = floorplan.NewRenderer(config.LoadSettings())
	}
	if r.logger == nil {
		r.logger = config.GetLogger()
	}
	if r.exportLockTTL <= 0 {
		r.exportLockTTL = 30 * time.Second
	}
	return r
}

// Estimate runs the engine and lays out the floors without rendering or
// persisting anything.
func (r *Repository) Estimate(ctx context.Context, spec *models.NewHousePlan) (*models.HousePlan, error) {
	_, span := tracer.Start(ctx, "houseplan.Estimate")
	defer span.End()

	plan, err := estimator.Estimate(spec, r.catalog)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	for i := range plan.Floors {
		applyLayout(&plan.Floors[i], r.renderer.Layout(floorplan.RoomsFromFloor(plan.Floors[i])))
	}
	return plan, nil
}

// Create computes, renders and persists a new plan owned by ownerId. Floor
// rendering is best-effort; anything else failing leaves nothing behind.
func (r *Repository) Create(ctx context.Context, ownerId string, spec *models.NewHousePlan) (plan *models.HousePlan, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "houseplan.Create", trace.WithSpanKind(trace.SpanKindInternal))
	defer func() {
		recordSpanError(span, err)
		span.End()
		metrics.ObserveOperation("create", start, err)
	}()

	if ownerId == "" {
		return nil, fmt.Errorf("%w: missing owner", utils.ErrForbidden)
	}
	plan, err = estimator.Estimate(spec, r.catalog)
	if err != nil {
		return nil, err
	}
	plan.ID = uuid.NewString()
	plan.OwnerId = ownerId
	plan.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	plan.UpdatedAt = plan.CreatedAt
	span.SetAttributes(attribute.String("plan.id", plan.ID), attribute.Int("plan.floors", len(plan.Floors)))

	images := r.renderFloors(plan)
	r.storeFloorImages(ctx, plan, images)

	if err := r.store.Create(ctx, plan); err != nil {
		if cleanupErr := r.artifacts.DeletePrefix(ctx, utils.PlanArtifactPrefix(plan.ID)); cleanupErr != nil {
			config.LogError(r.logger, "houseplan", "Create", "cleanup artifacts", plan.ID, cleanupErr)
		}
		config.LogError(r.logger, "houseplan", "Create", "persist plan", plan.ID, err)
		if !errors.Is(err, utils.ErrPersistenceFailure) {
			err = fmt.Errorf("%w: %v", utils.ErrPersistenceFailure, err)
		}
		return nil, err
	}

	if err := r.cache.Set(ctx, plan); err != nil {
		r.logger.WithFields(logrus.Fields{"field": "houseplan.Create", "plan_id": plan.ID}).Warn("plan cache write failed: " + err.Error())
	}
	metrics.PlansCreated.WithLabelValues(string(plan.HouseType), string(plan.FinishingLevel)).Inc()
	r.publishEvent(ctx, plan, config.PlanEventCreated)
	return plan, nil
}

// renderFloors lays out and rasterizes every floor in parallel. Each
// goroutine only touches its own index.
func (r *Repository) renderFloors(plan *models.HousePlan) [][]byte {
	layouts := make([]floorplan.Layout, len(plan.Floors))
	images := make([][]byte, len(plan.Floors))
	errs := make([]error, len(plan.Floors))

	var g errgroup.Group
	for i := range plan.Floors {
		rooms := floorplan.RoomsFromFloor(plan.Floors[i])
		g.Go(func() error {
			layouts[i] = r.renderer.Layout(rooms)
			images[i], errs[i] = r.renderer.Rasterize(layouts[i])
			return nil
		})
	}
	_ = g.Wait()

	for i := range plan.Floors {
		floor := &plan.Floors[i]
		applyLayout(floor, layouts[i])
		if errs[i] != nil {
			markRenderFailed(floor, errs[i])
			images[i] = nil
			metrics.FloorRenders.WithLabelValues(string(models.RenderStatusFailed)).Inc()
			r.logger.WithFields(logrus.Fields{
				"field":       "houseplan.renderFloors",
				"plan_id":     plan.ID,
				"floor_index": i,
			}).Warn("floor plan render failed: " + errs[i].Error())
			continue
		}
		floor.RenderStatus = models.RenderStatusRendered
		floor.RenderError = ""
		metrics.FloorRenders.WithLabelValues(string(models.RenderStatusRendered)).Inc()
	}
	return images
}

func (r *Repository) storeFloorImages(ctx context.Context, plan *models.HousePlan, images [][]byte) {
	for i, data := range images {
		if data == nil {
			continue
		}
		if err := r.artifacts.Put(ctx, utils.FloorImageKey(plan.ID, i), data, "image/png"); err != nil {
			markRenderFailed(&plan.Floors[i], fmt.Errorf("store image: %w", err))
			config.LogError(r.logger, "houseplan", "storeFloorImages", "put floor image", i, err)
		}
	}
}

func applyLayout(floor *models.Floor, layout floorplan.Layout) {
	floor.LayoutWidth = layout.Width
	floor.LayoutHeight = layout.Height
	for j := range floor.Rooms {
		if j < len(layout.Placements) {
			floor.Rooms[j].X = layout.Placements[j].Rect.X
			floor.Rooms[j].Y = layout.Placements[j].Rect.Y
		}
	}
}

func markRenderFailed(floor *models.Floor, err error) {
	msg := err.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	floor.RenderStatus = models.RenderStatusFailed
	floor.RenderError = msg
}

// Get returns the plan if requesterId owns it.
func (r *Repository) Get(ctx context.Context, id string, requesterId string) (*models.HousePlan, error) {
	plan, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.OwnerId != requesterId {
		return nil, utils.ErrForbidden
	}
	return plan, nil
}

func (r *Repository) load(ctx context.Context, id string) (*models.HousePlan, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	plan, ok, err := r.cache.Get(ctx, id)
	if err != nil {
		r.logger.WithFields(logrus.Fields{"field": "houseplan.load", "plan_id": id}).Warn("plan cache read failed: " + err.Error())
	}
	if ok {
		metrics.PlanCacheLookups.WithLabelValues("hit").Inc()
		return plan, nil
	}
	metrics.PlanCacheLookups.WithLabelValues("miss").Inc()

	plan, err = r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	stored, err := r.cache.Fill(ctx, plan)
	if err != nil {
		r.logger.WithFields(logrus.Fields{"field": "houseplan.load", "plan_id": id}).Warn("plan cache write failed: " + err.Error())
	}
	if !stored {
		// deleted while we were reading it
		return nil, utils.ErrorRecordNotFound
	}
	return plan, nil
}

// stillStored reports whether the plan survived any Delete that ran since it
// was loaded.
func (r *Repository) stillStored(ctx context.Context, id string) (bool, error) {
	deleted, err := r.cache.Deleted(ctx, id)
	if err != nil {
		r.logger.WithFields(logrus.Fields{"field": "houseplan.stillStored", "plan_id": id}).Warn("plan cache read failed: " + err.Error())
	}
	if deleted {
		return false, nil
	}
	if _, err := r.store.Get(ctx, id); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns the owner's plans, newest first.
func (r *Repository) List(ctx context.Context, ownerId string) ([]*models.HousePlan, error) {
	return r.store.ListByOwner(ctx, ownerId)
}

// Delete removes the plan, its cached copy and every stored artifact. The
// cache keeps a deleted marker so in-flight reads cannot restore the plan.
// Artifact cleanup failures are logged; the plan is already gone by then.
func (r *Repository) Delete(ctx context.Context, id string, requesterId string) (err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "houseplan.Delete")
	defer func() {
		recordSpanError(span, err)
		span.End()
		metrics.ObserveOperation("delete", start, err)
	}()

	plan, err := r.Get(ctx, id, requesterId)
	if err != nil {
		return err
	}
	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := r.cache.Remove(ctx, id); err != nil {
		config.LogError(r.logger, "houseplan", "Delete", "remove cached plan", id, err)
	}
	if err := r.artifacts.DeletePrefix(ctx, utils.PlanArtifactPrefix(id)); err != nil {
		config.LogError(r.logger, "houseplan", "Delete", "delete artifacts", id, err)
	}
	metrics.PlansDeleted.Inc()
	r.publishEvent(ctx, plan, config.PlanEventDeleted)
	return nil
}

// FloorPlanImage returns the PNG drawing of the floor at floorIndex (input
// order). A floor whose render failed yields utils.ErrRenderFailure.
func (r *Repository) FloorPlanImage(ctx context.Context, id string, requesterId string, floorIndex int) ([]byte, error) {
	plan, err := r.Get(ctx, id, requesterId)
	if err != nil {
		return nil, err
	}
	if floorIndex < 0 || floorIndex >= len(plan.Floors) {
		return nil, fmt.Errorf("%w: floor %d", utils.ErrorRecordNotFound, floorIndex)
	}
	floor := plan.Floors[floorIndex]
	if floor.RenderStatus != models.RenderStatusRendered {
		return nil, fmt.Errorf("%w: %s", utils.ErrRenderFailure, floor.RenderError)
	}
	data, err := r.artifacts.Get(ctx, utils.FloorImageKey(id, floorIndex))
	if errors.Is(err, utils.ErrArtifactNotFound) {
		return nil, fmt.Errorf("%w: image missing", utils.ErrRenderFailure)
	}
	return data, err
}

func (r *Repository) publishEvent(ctx context.Context, plan *models.HousePlan, action string) {
	if r.publish == nil {
		return
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	evt := config.PlanEvent{
		PlanId:        plan.ID,
		OwnerId:       plan.OwnerId,
		Action:        action,
		Currency:      plan.Currency,
		OccurredAt:    time.Now().UTC(),
		CorrelationId: cid,
	}
	if action == config.PlanEventCreated {
		evt.TotalProjectCost = plan.TotalProjectCost.String()
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	go func() {
		defer cancel()
		if _, err := r.publish(publishCtx, evt); err != nil {
			config.LogError(r.logger, "houseplan", "publishEvent", action, evt, err)
		}
	}()
}

// Templates returns ready-made specifications.
func (r *Repository) Templates() []models.PlanTemplate {
	return models.Templates()
}

func (r *Repository) CatalogOptions() catalog.Options {
	return r.catalog.Options()
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
