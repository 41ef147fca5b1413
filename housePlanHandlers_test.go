package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"bitbucket.org/mmdatafocus/houseplan_backend/catalog"
	"bitbucket.org/mmdatafocus/houseplan_backend/config"
	"bitbucket.org/mmdatafocus/houseplan_backend/floorplan"
	"bitbucket.org/mmdatafocus/houseplan_backend/houseplan"
	"bitbucket.org/mmdatafocus/houseplan_backend/models"
	"bitbucket.org/mmdatafocus/houseplan_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type handlerStore struct {
	mu    sync.Mutex
	plans map[string]*models.HousePlan
}

func (s *handlerStore) Create(ctx context.Context, plan *models.HousePlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = plan
	return nil
}

func (s *handlerStore) Get(ctx context.Context, id string) (*models.HousePlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	return plan, nil
}

func (s *handlerStore) ListByOwner(ctx context.Context, ownerId string) ([]*models.HousePlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plans := make([]*models.HousePlan, 0)
	for _, p := range s.plans {
		if p.OwnerId == ownerId {
			plans = append(plans, p)
		}
	}
	return plans, nil
}

func (s *handlerStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[id]; !ok {
		return utils.ErrorRecordNotFound
	}
	delete(s.plans, id)
	return nil
}

type brokenRenderer struct {
	*floorplan.Renderer
}

func (brokenRenderer) Rasterize(floorplan.Layout) ([]byte, error) {
	return nil, errors.New("rasterizer unavailable")
}

type apiFixture struct {
	router *gin.Engine
	ready  *atomic.Bool
}

func newAPIFixture(t *testing.T, renderer houseplan.FloorRenderer) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("API_SECRET", "handler-secret")
	t.Setenv("RATE_LIMIT_ENABLED", "")

	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	artifacts, err := utils.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	if renderer == nil {
		renderer = &floorplan.Renderer{MaxRowWidth: 12, PixelsPerMetre: 20, Margin: 10}
	}
	repo := houseplan.NewRepository(houseplan.Dependencies{
		Catalog:   cat,
		Store:     &handlerStore{plans: map[string]*models.HousePlan{}},
		Artifacts: artifacts,
		Renderer:  renderer,
		Logger:    logger,
	})

	ready := &atomic.Bool{}
	ready.Store(true)
	h := newHousePlanHandlers(repo, logger)
	return &apiFixture{router: newRouter(logger, config.Settings{}, h, ready, nil), ready: ready}
}

func (f *apiFixture) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		token, err := utils.JwtGenerate(user, "owner")
		if err != nil {
			t.Fatalf("JwtGenerate: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func bungalowSpec() models.NewHousePlan {
	return models.Templates()[0].Spec
}

func createPlan(t *testing.T, f *apiFixture, user string) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/house-plans/create", user, bungalowSpec())
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", w.Code, w.Body.String())
	}
	id, _ := decodeBody(t, w)["id"].(string)
	if id == "" {
		t.Fatalf("create returned no id: %s", w.Body.String())
	}
	return id
}

func TestCreateAndFetchPlan(t *testing.T) {
	f := newAPIFixture(t, nil)
	id := createPlan(t, f, "alice")

	w := f.do(t, http.MethodGet, "/house-plans/"+id, "alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["total_project_cost"] != float64(5704493) {
		t.Fatalf("total_project_cost = %v", body["total_project_cost"])
	}
	if body["estimated_duration_days"] != float64(45) {
		t.Fatalf("estimated_duration_days = %v", body["estimated_duration_days"])
	}

	w = f.do(t, http.MethodGet, "/house-plans/my-plans", "alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var plans []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &plans); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(plans) != 1 || plans[0]["id"] != id {
		t.Fatalf("list = %v", plans)
	}
}

func TestCreateRejectsInvalidSpec(t *testing.T) {
	f := newAPIFixture(t, nil)

	missingName := bungalowSpec()
	missingName.Name = ""
	w := f.do(t, http.MethodPost, "/house-plans/create", "alice", missingName)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decodeBody(t, w)["field"]; got != "name" {
		t.Fatalf("field = %v, want name", got)
	}

	badType := bungalowSpec()
	badType.HouseType = "castle"
	w = f.do(t, http.MethodPost, "/house-plans/create", "alice", badType)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["field"] != "house_type" || body["code"] != utils.ErrCodeInvalidSpec {
		t.Fatalf("body = %v", body)
	}

	unknownWall := bungalowSpec()
	unknownWall.WallType = "glass_brick"
	w = f.do(t, http.MethodPost, "/house-plans/create", "alice", unknownWall)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decodeBody(t, w)["code"]; got != utils.ErrCodeUnknownMaterial {
		t.Fatalf("code = %v", got)
	}

	w = f.do(t, http.MethodGet, "/house-plans/my-plans", "alice", nil)
	if w.Body.String() != "[]" {
		t.Fatalf("list after rejected creates = %s", w.Body.String())
	}
}

func TestPlanAccessIsOwnerOnly(t *testing.T) {
	f := newAPIFixture(t, nil)
	id := createPlan(t, f, "alice")

	if w := f.do(t, http.MethodGet, "/house-plans/"+id, "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", w.Code)
	}
	for _, path := range []string{"/house-plans/" + id, "/house-plans/" + id + "/download-pdf", "/house-plans/" + id + "/floor-plan/0"} {
		if w := f.do(t, http.MethodGet, path, "bob", nil); w.Code != http.StatusForbidden {
			t.Fatalf("GET %s as bob status = %d", path, w.Code)
		}
	}
	if w := f.do(t, http.MethodDelete, "/house-plans/"+id, "bob", nil); w.Code != http.StatusForbidden {
		t.Fatalf("delete as bob status = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/house-plans/"+id, "alice", nil); w.Code != http.StatusOK {
		t.Fatalf("plan gone after forbidden delete: %d", w.Code)
	}
}

func TestDeletePlan(t *testing.T) {
	f := newAPIFixture(t, nil)
	id := createPlan(t, f, "alice")

	if w := f.do(t, http.MethodDelete, "/house-plans/"+id, "alice", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/house-plans/"+id, "alice", nil); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", w.Code)
	}
	if w := f.do(t, http.MethodDelete, "/house-plans/"+id, "alice", nil); w.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/house-plans/not-a-uuid", "alice", nil); w.Code != http.StatusNotFound {
		t.Fatalf("malformed id status = %d", w.Code)
	}
}

func TestDownloadsAndFloorPlan(t *testing.T) {
	f := newAPIFixture(t, nil)
	id := createPlan(t, f, "alice")

	w := f.do(t, http.MethodGet, "/house-plans/"+id+"/download-pdf", "alice", nil)
	if w.Code != http.StatusOK || !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("pdf status = %d", w.Code)
	}
	if w.Header().Get("Content-Disposition") == "" {
		t.Fatal("pdf missing Content-Disposition")
	}

	w = f.do(t, http.MethodGet, "/house-plans/"+id+"/download-boq", "alice", nil)
	if w.Code != http.StatusOK || !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Fatalf("boq status = %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/house-plans/"+id+"/floor-plan/0", "alice", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("floor plan status = %d type=%q", w.Code, w.Header().Get("Content-Type"))
	}
	if w := f.do(t, http.MethodGet, "/house-plans/"+id+"/floor-plan/3", "alice", nil); w.Code != http.StatusNotFound {
		t.Fatalf("out of range floor status = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/house-plans/"+id+"/floor-plan/first", "alice", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric floor status = %d", w.Code)
	}
}

func TestFloorPlanNotAvailableWhenRenderFailed(t *testing.T) {
	f := newAPIFixture(t, brokenRenderer{&floorplan.Renderer{MaxRowWidth: 12, PixelsPerMetre: 20, Margin: 10}})
	id := createPlan(t, f, "alice")

	w := f.do(t, http.MethodGet, "/house-plans/"+id+"/floor-plan/0", "alice", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decodeBody(t, w)["status"]; got != "not_available" {
		t.Fatalf("status field = %v", got)
	}
}

func TestReadinessGate(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.ready.Store(false)

	if w := f.do(t, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("healthz status = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/house-plans/templates", "alice", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("templates before ready status = %d", w.Code)
	}
	f.ready.Store(true)
	w := f.do(t, http.MethodGet, "/house-plans/templates", "alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("templates status = %d", w.Code)
	}
	var templates []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &templates); err != nil || len(templates) != 3 {
		t.Fatalf("templates = %s (%v)", w.Body.String(), err)
	}
	if w := f.do(t, http.MethodGet, "/metrics", "", nil); w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
}

func TestEstimateDoesNotPersist(t *testing.T) {
	f := newAPIFixture(t, nil)
	w := f.do(t, http.MethodPost, "/house-plans/estimate", "alice", bungalowSpec())
	if w.Code != http.StatusOK {
		t.Fatalf("estimate status = %d body=%s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["total_materials_cost"]; got != float64(4225550) {
		t.Fatalf("total_materials_cost = %v", got)
	}
	w = f.do(t, http.MethodGet, "/house-plans/my-plans", "alice", nil)
	if w.Body.String() != "[]" {
		t.Fatalf("list after estimate = %s", w.Body.String())
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" https://a.example , ,https://b.example")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("splitAndTrim = %v", got)
	}
	if splitAndTrim("  ") != nil {
		t.Fatal("blank csv should be nil")
	}
}
