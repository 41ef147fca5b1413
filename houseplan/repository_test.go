package houseplan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/houseplan_backend/catalog"
	"bitbucket.org/mmdatafocus/houseplan_backend/config"
	"bitbucket.org/mmdatafocus/houseplan_backend/floorplan"
	"bitbucket.org/mmdatafocus/houseplan_backend/models"
	"bitbucket.org/mmdatafocus/houseplan_backend/utils"
	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type memStore struct {
	mu        sync.Mutex
	plans     map[string]*models.HousePlan
	createErr error
}

func newMemStore() *memStore {
	return &memStore{plans: map[string]*models.HousePlan{}}
}

func (s *memStore) Create(ctx context.Context, plan *models.HousePlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.plans[plan.ID] = plan
	return nil
}

func (s *memStore) Get(ctx context.Context, id string) (*models.HousePlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	return plan, nil
}

func (s *memStore) ListByOwner(ctx context.Context, ownerId string) ([]*models.HousePlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plans := make([]*models.HousePlan, 0)
	for _, p := range s.plans {
		if p.OwnerId == ownerId {
			plans = append(plans, p)
		}
	}
	sort.Slice(plans, func(i, j int) bool {
		if !plans[i].CreatedAt.Equal(plans[j].CreatedAt) {
			return plans[i].CreatedAt.After(plans[j].CreatedAt)
		}
		return plans[i].ID > plans[j].ID
	})
	return plans, nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[id]; !ok {
		return utils.ErrorRecordNotFound
	}
	delete(s.plans, id)
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plans)
}

type failingRenderer struct {
	*floorplan.Renderer
}

func (failingRenderer) Rasterize(floorplan.Layout) ([]byte, error) {
	return nil, fmt.Errorf("%w: boom", utils.ErrRenderFailure)
}

type fixture struct {
	repo  *Repository
	store *memStore
	root  string
}

func newFixture(t *testing.T, mutate func(*Dependencies)) *fixture {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	root := t.TempDir()
	artifacts, err := utils.NewLocalStore(root)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := newMemStore()
	deps := Dependencies{
		Catalog:   cat,
		Store:     store,
		Artifacts: artifacts,
		Renderer:  &floorplan.Renderer{MaxRowWidth: 12, PixelsPerMetre: 20, Margin: 10},
		Logger:    logger,
	}
	if mutate != nil {
		mutate(&deps)
	}
	return &fixture{repo: NewRepository(deps), store: store, root: root}
}

func (f *fixture) planDir(id string) string {
	return filepath.Join(f.root, filepath.FromSlash(utils.PlanArtifactPrefix(id)))
}

func bungalowSpec() *models.NewHousePlan {
	spec := models.Templates()[0].Spec
	return &spec
}

func duplexSpec() *models.NewHousePlan {
	spec := models.Templates()[1].Spec
	return &spec
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.repo.Create(ctx, "owner-1", duplexSpec())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" || created.OwnerId != "owner-1" {
		t.Fatalf("created = %q owned by %q", created.ID, created.OwnerId)
	}
	got, err := f.repo.Get(ctx, created.ID, "owner-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.TotalProjectCost.Equal(created.TotalProjectCost) || got.EstimatedDurationDays != created.EstimatedDurationDays {
		t.Fatalf("round trip changed totals")
	}

	for i, floor := range got.Floors {
		if floor.RenderStatus != models.RenderStatusRendered {
			t.Fatalf("floor %d status = %q (%s)", i, floor.RenderStatus, floor.RenderError)
		}
		if floor.LayoutWidth <= 0 || floor.LayoutHeight <= 0 {
			t.Fatalf("floor %d has no layout", i)
		}
		data, err := f.repo.FloorPlanImage(ctx, created.ID, "owner-1", i)
		if err != nil {
			t.Fatalf("FloorPlanImage(%d): %v", i, err)
		}
		if _, err := png.Decode(bytes.NewReader(data)); err != nil {
			t.Fatalf("floor %d image is not a PNG: %v", i, err)
		}
	}
}

func TestCreateIdenticalSpecsGivesDistinctPlans(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	a, err := f.repo.Create(ctx, "owner-1", bungalowSpec())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err := f.repo.Create(ctx, "owner-1", bungalowSpec())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == b.ID {
		t.Fatalf("duplicate creates share id %s", a.ID)
	}
	if !a.TotalProjectCost.Equal(b.TotalProjectCost) || a.TotalFloorArea != b.TotalFloorArea || a.EstimatedDurationDays != b.EstimatedDurationDays {
		t.Fatalf("identical specs produced different estimates")
	}
	if f.store.count() != 2 {
		t.Fatalf("store has %d plans, want 2", f.store.count())
	}
}

func TestGetChecksOwnership(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	plan, err := f.repo.Create(ctx, "owner-1", bungalowSpec())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := f.repo.Get(ctx, plan.ID, "owner-2"); !errors.Is(err, utils.ErrForbidden) {
		t.Fatalf("Get by other owner: err = %v, want forbidden", err)
	}
	if err := f.repo.Delete(ctx, plan.ID, "owner-2"); !errors.Is(err, utils.ErrForbidden) {
		t.Fatalf("Delete by other owner: err = %v, want forbidden", err)
	}
	if _, err := f.repo.ExportPDF(ctx, plan.ID, "owner-2"); !errors.Is(err, utils.ErrForbidden) {
		t.Fatalf("ExportPDF by other owner: err = %v, want forbidden", err)
	}
	if _, err := f.repo.Get(ctx, "8f7c6f4e-0000-4000-8000-000000000000", "owner-1"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("Get unknown: err = %v, want not found", err)
	}
	if _, err := f.repo.Get(ctx, "not-a-uuid", "owner-1"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("Get malformed id: err = %v, want not found", err)
	}
}

func TestDeleteRemovesPlanAndArtifacts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	plan, err := f.repo.Create(ctx, "owner-1", bungalowSpec())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.repo.ExportPDF(ctx, plan.ID, "owner-1"); err != nil {
		t.Fatalf("ExportPDF: %v", err)
	}
	if _, err := os.Stat(f.planDir(plan.ID)); err != nil {
		t.Fatalf("artifacts missing before delete: %v", err)
	}

	if err := f.repo.Delete(ctx, plan.ID, "owner-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.repo.Get(ctx, plan.ID, "owner-1"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("Get after delete: err = %v, want not found", err)
	}
	if _, err := os.Stat(f.planDir(plan.ID)); !os.IsNotExist(err) {
		t.Fatalf("artifacts still present after delete: %v", err)
	}
	if err := f.repo.Delete(ctx, plan.ID, "owner-1"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("second Delete: err = %v, want not found", err)
	}
}

func TestCreateInvalidSpecWritesNothing(t *testing.T) {
	f := newFixture(t, nil)
	spec := bungalowSpec()
	spec.Floors[0].Rooms[1].Width = 0

	_, err := f.repo.Create(context.Background(), "owner-1", spec)
	if !errors.Is(err, utils.ErrInvalidGeometry) {
		t.Fatalf("err = %v, want InvalidGeometry", err)
	}
	if f.store.count() != 0 {
		t.Fatalf("invalid spec was persisted")
	}
	entries, _ := os.ReadDir(f.root)
	if len(entries) != 0 {
		t.Fatalf("invalid spec wrote %d artifacts", len(entries))
	}
}

func TestCreatePersistenceFailureLeavesNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.store.createErr = fmt.Errorf("%w: connection reset", utils.ErrPersistenceFailure)

	_, err := f.repo.Create(context.Background(), "owner-1", duplexSpec())
	if !errors.Is(err, utils.ErrPersistenceFailure) {
		t.Fatalf("err = %v, want PersistenceFailure", err)
	}
	plans, _ := f.repo.List(context.Background(), "owner-1")
	if len(plans) != 0 {
		t.Fatalf("failed create is visible in list")
	}
	entries, _ := os.ReadDir(filepath.Join(f.root, "house-plans"))
	if len(entries) != 0 {
		t.Fatalf("floor images left behind after failed create: %d", len(entries))
	}
}

func TestCreateWrapsUnclassifiedStoreErrors(t *testing.T) {
	f := newFixture(t, nil)
	f.store.createErr = errors.New("disk full")
	if _, err := f.repo.Create(context.Background(), "owner-1", bungalowSpec()); !errors.Is(err, utils.ErrPersistenceFailure) {
		t.Fatalf("err = %v, want PersistenceFailure", err)
	}
}

func TestRenderFailureDoesNotFailCreate(t *testing.T) {
	f := newFixture(t, func(d *Dependencies) {
		d.Renderer = failingRenderer{&floorplan.Renderer{MaxRowWidth: 12}}
	})
	ctx := context.Background()

	plan, err := f.repo.Create(ctx, "owner-1", bungalowSpec())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	floor := plan.Floors[0]
	if floor.RenderStatus != models.RenderStatusFailed || floor.RenderError == "" {
		t.Fatalf("floor status = %q %q, want failed", floor.RenderStatus, floor.RenderError)
	}
	// layout is still computed even when the drawing fails
	if floor.LayoutWidth != 10.5 || floor.Rooms[2].Y != 4 {
		t.Fatalf("layout = %v wide, bedroom 2 at y=%v", floor.LayoutWidth, floor.Rooms[2].Y)
	}
	if _, err := f.repo.FloorPlanImage(ctx, plan.ID, "owner-1", 0); !errors.Is(err, utils.ErrRenderFailure) {
		t.Fatalf("FloorPlanImage: err = %v, want RenderFailure", err)
	}
	// the PDF still builds, listing the drawing as unavailable
	if _, err := f.repo.ExportPDF(ctx, plan.ID, "owner-1"); err != nil {
		t.Fatalf("ExportPDF: %v", err)
	}
}

func TestFloorPlanImageOutOfRange(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	plan, err := f.repo.Create(ctx, "owner-1", bungalowSpec())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, idx := range []int{-1, 1} {
		if _, err := f.repo.FloorPlanImage(ctx, plan.ID, "owner-1", idx); !errors.Is(err, utils.ErrorRecordNotFound) {
			t.Fatalf("FloorPlanImage(%d): err = %v, want not found", idx, err)
		}
	}
}

func TestExportsAreStoredAndReused(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	plan, err := f.repo.Create(ctx, "owner-1", bungalowSpec())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := f.repo.ExportPDF(ctx, plan.ID, "owner-1")
	if err != nil {
		t.Fatalf("ExportPDF: %v", err)
	}
	if !bytes.HasPrefix(first, []byte("%PDF-")) {
		t.Fatalf("not a PDF")
	}
	stored, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(utils.PlanPdfKey(plan.ID))))
	if err != nil {
		t.Fatalf("pdf artifact not stored: %v", err)
	}
	if !bytes.Equal(stored, first) {
		t.Fatalf("stored pdf differs from the one returned")
	}
	second, err := f.repo.ExportPDF(ctx, plan.ID, "owner-1")
	if err != nil {
		t.Fatalf("ExportPDF again: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("second export was rebuilt instead of reused")
	}

	boq, err := f.repo.ExportBOQ(ctx, plan.ID, "owner-1")
	if err != nil {
		t.Fatalf("ExportBOQ: %v", err)
	}
	// xlsx is a zip archive
	if !bytes.HasPrefix(boq, []byte("PK")) {
		t.Fatalf("boq is not an xlsx archive")
	}
}

func TestListNewestFirst(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		plan, err := f.repo.Create(ctx, "owner-1", bungalowSpec())
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, plan.ID)
		time.Sleep(2 * time.Millisecond)
	}
	if _, err := f.repo.Create(ctx, "owner-2", bungalowSpec()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	plans, err := f.repo.List(ctx, "owner-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(plans) != 3 {
		t.Fatalf("List returned %d plans, want 3", len(plans))
	}
	for i, p := range plans {
		if p.ID != ids[len(ids)-1-i] {
			t.Fatalf("plan %d = %s, want %s", i, p.ID, ids[len(ids)-1-i])
		}
	}
}

func TestRepositoryWithRedisCacheAndLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var (
		mu     sync.Mutex
		events []config.PlanEvent
	)
	f := newFixture(t, func(d *Dependencies) {
		d.Cache = models.NewPlanCache(client, time.Hour)
		d.Locker = redislock.New(client)
		d.Publish = func(ctx context.Context, evt config.PlanEvent) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, evt)
			return "msg-1", nil
		}
	})
	ctx := context.Background()

	plan, err := f.repo.Create(ctx, "owner-1", bungalowSpec())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !mr.Exists("HousePlan:" + plan.ID) {
		t.Fatalf("created plan was not cached")
	}

	// served from the cache, not the store
	f.store.mu.Lock()
	changed := *plan
	changed.Name = "changed behind the cache"
	f.store.plans[plan.ID] = &changed
	f.store.mu.Unlock()
	got, err := f.repo.Get(ctx, plan.ID, "owner-1")
	if err != nil {
		t.Fatalf("Get from cache: %v", err)
	}
	if got.Name != plan.Name || !got.TotalProjectCost.Equal(plan.TotalProjectCost) {
		t.Fatalf("Get did not serve the cached plan: %q", got.Name)
	}

	var wg sync.WaitGroup
	results := make([][]byte, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := f.repo.ExportPDF(ctx, plan.ID, "owner-1")
			if err != nil {
				t.Errorf("ExportPDF: %v", err)
				return
			}
			results[i] = data
		}()
	}
	wg.Wait()
	for i := 1; i < len(results); i++ {
		if !bytes.Equal(results[0], results[i]) {
			t.Fatalf("concurrent exports were not coalesced")
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(events)
		mu.Unlock()
		if n == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 || events[0].Action != config.PlanEventCreated || events[0].PlanId != plan.ID {
		t.Fatalf("events = %+v, want one created event", events)
	}
}

// gate blocks the first call made after it is armed until released.
type gate struct {
	armed   atomic.Bool
	reached chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{reached: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) wait() {
	if g.armed.CompareAndSwap(true, false) {
		close(g.reached)
		<-g.release
	}
}

// gatedStore returns the plan it read, after holding the caller at the gate.
type gatedStore struct {
	*memStore
	gate *gate
}

func (s *gatedStore) Get(ctx context.Context, id string) (*models.HousePlan, error) {
	plan, err := s.memStore.Get(ctx, id)
	s.gate.wait()
	return plan, err
}

type gatedArtifacts struct {
	utils.ArtifactStore
	key  string
	gate *gate
}

func (a *gatedArtifacts) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := a.ArtifactStore.Get(ctx, key)
	if key == a.key {
		a.gate.wait()
	}
	return data, err
}

func TestGetRacingDeleteDoesNotRestorePlan(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	g := newGate()
	f := newFixture(t, func(d *Dependencies) {
		d.Cache = models.NewPlanCache(client, time.Hour)
		d.Store = &gatedStore{memStore: d.Store.(*memStore), gate: g}
	})
	ctx := context.Background()
	plan, err := f.repo.Create(ctx, "owner-1", bungalowSpec())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// force the next Get through the store
	mr.Del("HousePlan:" + plan.ID)

	g.armed.Store(true)
	done := make(chan error, 1)
	go func() {
		_, err := f.repo.Get(ctx, plan.ID, "owner-1")
		done <- err
	}()
	<-g.reached
	if err := f.repo.Delete(ctx, plan.ID, "owner-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	close(g.release)

	if err := <-done; !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("Get that read before Delete: err = %v, want not found", err)
	}
	if mr.Exists("HousePlan:" + plan.ID) {
		t.Fatalf("deleted plan was written back to the cache")
	}
	if _, err := f.repo.Get(ctx, plan.ID, "owner-1"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("Get after Delete: err = %v, want not found", err)
	}
}

func TestExportRacingDeleteLeavesNoArtifacts(t *testing.T) {
	for _, withCache := range []bool{true, false} {
		t.Run(fmt.Sprintf("cache=%v", withCache), func(t *testing.T) {
			g := newGate()
			f := newFixture(t, func(d *Dependencies) {
				if withCache {
					mr := miniredis.RunT(t)
					client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
					t.Cleanup(func() { _ = client.Close() })
					d.Cache = models.NewPlanCache(client, time.Hour)
				}
				d.Artifacts = &gatedArtifacts{ArtifactStore: d.Artifacts, gate: g}
			})
			ctx := context.Background()
			plan, err := f.repo.Create(ctx, "owner-1", bungalowSpec())
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			f.repo.artifacts.(*gatedArtifacts).key = utils.PlanPdfKey(plan.ID)

			g.armed.Store(true)
			done := make(chan error, 1)
			go func() {
				_, err := f.repo.ExportPDF(ctx, plan.ID, "owner-1")
				done <- err
			}()
			<-g.reached
			if err := f.repo.Delete(ctx, plan.ID, "owner-1"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			close(g.release)

			if err := <-done; !errors.Is(err, utils.ErrorRecordNotFound) {
				t.Fatalf("ExportPDF racing Delete: err = %v, want not found", err)
			}
			if _, err := os.Stat(f.planDir(plan.ID)); !os.IsNotExist(err) {
				t.Fatalf("export re-created artifacts of a deleted plan: %v", err)
			}
		})
	}
}

func TestEstimateDoesNotPersist(t *testing.T) {
	f := newFixture(t, nil)
	plan, err := f.repo.Estimate(context.Background(), bungalowSpec())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if plan.ID != "" || f.store.count() != 0 {
		t.Fatalf("Estimate persisted a plan")
	}
	if plan.Floors[0].LayoutWidth != 10.5 {
		t.Fatalf("layout width = %v, want 10.5", plan.Floors[0].LayoutWidth)
	}
	entries, _ := os.ReadDir(f.root)
	if len(entries) != 0 {
		t.Fatalf("Estimate wrote artifacts")
	}
}
