package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/houseplan_backend/catalog"
	"bitbucket.org/mmdatafocus/houseplan_backend/config"
	"bitbucket.org/mmdatafocus/houseplan_backend/models"
	"bitbucket.org/mmdatafocus/houseplan_backend/models/reports"
	"bitbucket.org/mmdatafocus/houseplan_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type planService interface {
	Create(ctx context.Context, ownerId string, spec *models.NewHousePlan) (*models.HousePlan, error)
	Estimate(ctx context.Context, spec *models.NewHousePlan) (*models.HousePlan, error)
	Get(ctx context.Context, id string, requesterId string) (*models.HousePlan, error)
	List(ctx context.Context, ownerId string) ([]*models.HousePlan, error)
	Delete(ctx context.Context, id string, requesterId string) error
	ExportPDF(ctx context.Context, id string, requesterId string) ([]byte, error)
	ExportBOQ(ctx context.Context, id string, requesterId string) ([]byte, error)
	FloorPlanImage(ctx context.Context, id string, requesterId string, floorIndex int) ([]byte, error)
	Templates() []models.PlanTemplate
	CatalogOptions() catalog.Options
}

type housePlanHandlers struct {
	// set once before the readiness gate opens
	plans  planService
	logger *logrus.Logger
}

func newHousePlanHandlers(plans planService, logger *logrus.Logger) *housePlanHandlers {
	return &housePlanHandlers{plans: plans, logger: logger}
}

// register mounts the plan API on g.
func (h *housePlanHandlers) register(g *gin.RouterGroup) {
	g.POST("/create", h.create)
	g.POST("/estimate", h.estimate)
	g.GET("/my-plans", h.list)
	g.GET("/templates", h.templates)
	g.GET("/catalog", h.catalog)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.delete)
	g.GET("/:id/download-pdf", h.downloadPDF)
	g.GET("/:id/download-boq", h.downloadBOQ)
	g.GET("/:id/floor-plan/:floorIndex", h.floorPlan)
}

func (h *housePlanHandlers) bindSpec(c *gin.Context) (*models.NewHousePlan, bool) {
	var input models.NewHousePlan
	if err := c.ShouldBindJSON(&input); err != nil {
		h.writeBindError(c, err)
		return nil, false
	}
	return &input, true
}

func (h *housePlanHandlers) create(c *gin.Context) {
	input, ok := h.bindSpec(c)
	if !ok {
		return
	}
	owner, _ := utils.GetOwnerIdFromContext(c.Request.Context())
	plan, err := h.plans.Create(c.Request.Context(), owner, input)
	if err != nil {
		h.writeError(c, "create", err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (h *housePlanHandlers) estimate(c *gin.Context) {
	input, ok := h.bindSpec(c)
	if !ok {
		return
	}
	plan, err := h.plans.Estimate(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, "estimate", err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *housePlanHandlers) list(c *gin.Context) {
	owner, _ := utils.GetOwnerIdFromContext(c.Request.Context())
	plans, err := h.plans.List(c.Request.Context(), owner)
	if err != nil {
		h.writeError(c, "list", err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (h *housePlanHandlers) templates(c *gin.Context) {
	c.JSON(http.StatusOK, h.plans.Templates())
}

func (h *housePlanHandlers) catalog(c *gin.Context) {
	c.JSON(http.StatusOK, h.plans.CatalogOptions())
}

func (h *housePlanHandlers) get(c *gin.Context) {
	owner, _ := utils.GetOwnerIdFromContext(c.Request.Context())
	plan, err := h.plans.Get(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		h.writeError(c, "get", err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *housePlanHandlers) delete(c *gin.Context) {
	owner, _ := utils.GetOwnerIdFromContext(c.Request.Context())
	if err := h.plans.Delete(c.Request.Context(), c.Param("id"), owner); err != nil {
		h.writeError(c, "delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *housePlanHandlers) downloadPDF(c *gin.Context) {
	owner, _ := utils.GetOwnerIdFromContext(c.Request.Context())
	id := c.Param("id")
	data, err := h.plans.ExportPDF(c.Request.Context(), id, owner)
	if err != nil {
		h.writeError(c, "download-pdf", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="house-plan-%s.pdf"`, id))
	c.Data(http.StatusOK, reports.PdfContentType, data)
}

func (h *housePlanHandlers) downloadBOQ(c *gin.Context) {
	owner, _ := utils.GetOwnerIdFromContext(c.Request.Context())
	id := c.Param("id")
	data, err := h.plans.ExportBOQ(c.Request.Context(), id, owner)
	if err != nil {
		h.writeError(c, "download-boq", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="house-plan-%s-boq.xlsx"`, id))
	c.Data(http.StatusOK, reports.XlsxContentType, data)
}

func (h *housePlanHandlers) floorPlan(c *gin.Context) {
	floorIndex, err := strconv.Atoi(c.Param("floorIndex"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "floor index must be an integer", "code": utils.ErrCodeInvalidSpec, "field": "floorIndex"})
		return
	}
	owner, _ := utils.GetOwnerIdFromContext(c.Request.Context())
	data, err := h.plans.FloorPlanImage(c.Request.Context(), c.Param("id"), owner, floorIndex)
	if err != nil {
		h.writeError(c, "floor-plan", err)
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

func (h *housePlanHandlers) writeBindError(c *gin.Context, err error) {
	if field, tag, ok := utils.FirstValidationError(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: failed %s", field, tag), "code": utils.ErrCodeInvalidSpec, "field": field})
		return
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: expected %s", typeErr.Field, typeErr.Type), "code": utils.ErrCodeInvalidSpec, "field": typeErr.Field})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "code": utils.ErrCodeInvalidSpec, "field": ""})
}

func (h *housePlanHandlers) writeError(c *gin.Context, op string, err error) {
	if specErr, ok := utils.AsSpecError(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": specErr.Error(), "code": specErr.Code(), "field": specErr.Field})
		return
	}
	switch {
	case errors.Is(err, utils.ErrInvalidSpec):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": utils.ErrCodeInvalidSpec, "field": ""})
	case errors.Is(err, utils.ErrRenderFailure):
		c.JSON(http.StatusNotFound, gin.H{"status": "not_available"})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "house plan not found"})
	case errors.Is(err, utils.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	default:
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogError(h.logger, "housePlanHandlers", op, "correlation_id="+cid, c.Param("id"), err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
