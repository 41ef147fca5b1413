package floorplan

import (
	"bytes"
	"errors"
	"image/png"
	"testing"

	"bitbucket.org/mmdatafocus/houseplan_backend/models"
	"bitbucket.org/mmdatafocus/houseplan_backend/utils"
)

func bungalowRooms() []Room {
	return []Room{
		{Name: "Living Room", Type: models.RoomTypeLivingRoom, Length: 5, Width: 4},
		{Name: "Bedroom 1", Type: models.RoomTypeBedroom, Length: 4, Width: 3.5},
		{Name: "Bedroom 2", Type: models.RoomTypeBedroom, Length: 4, Width: 3.5},
		{Name: "Kitchen", Type: models.RoomTypeKitchen, Length: 4, Width: 3},
		{Name: "Bathroom", Type: models.RoomTypeBathroom, Length: 2.5, Width: 2},
	}
}

func TestPackWrapsRowsAndNeverOverlaps(t *testing.T) {
	layout := Pack(bungalowRooms(), 12)

	want := []Rect{
		{X: 0, Y: 0, Width: 5, Height: 4},
		{X: 5, Y: 0, Width: 4, Height: 3.5},
		{X: 0, Y: 4, Width: 4, Height: 3.5}, // 9 + 4 > 12 wraps
		{X: 4, Y: 4, Width: 4, Height: 3},
		{X: 8, Y: 4, Width: 2.5, Height: 2},
	}
	for i, p := range layout.Placements {
		if p.Rect != want[i] {
			t.Fatalf("placement %d = %+v, want %+v", i, p.Rect, want[i])
		}
		if p.Room.Name != bungalowRooms()[i].Name {
			t.Fatalf("placement %d is %q, order not kept", i, p.Room.Name)
		}
	}
	if layout.Width != 10.5 || layout.Height != 7.5 {
		t.Fatalf("layout = %vx%v, want 10.5x7.5", layout.Width, layout.Height)
	}
	assertNoOverlap(t, layout)
}

func TestPackOversizedRoomGetsItsOwnRow(t *testing.T) {
	rooms := []Room{
		{Name: "a", Length: 3, Width: 3},
		{Name: "hall", Length: 20, Width: 6},
		{Name: "b", Length: 3, Width: 2},
	}
	layout := Pack(rooms, 12)
	if got := layout.Placements[1].Rect; got.X != 0 || got.Y != 3 {
		t.Fatalf("hall at %+v, want its own row at y=3", got)
	}
	if got := layout.Placements[2].Rect; got.X != 0 || got.Y != 9 {
		t.Fatalf("b at %+v, want next row at y=9", got)
	}
	if layout.Width != 20 || layout.Height != 11 {
		t.Fatalf("layout = %vx%v, want 20x11", layout.Width, layout.Height)
	}
	assertNoOverlap(t, layout)
}

func TestPackWithoutRowLimitUsesOneRow(t *testing.T) {
	layout := Pack(bungalowRooms(), 0)
	for _, p := range layout.Placements {
		if p.Rect.Y != 0 {
			t.Fatalf("%s at y=%v, want single row", p.Room.Name, p.Rect.Y)
		}
	}
	if layout.Width != 19.5 || layout.Height != 4 {
		t.Fatalf("layout = %vx%v, want 19.5x4", layout.Width, layout.Height)
	}
}

func TestPackIsDeterministic(t *testing.T) {
	a := Pack(bungalowRooms(), 9)
	b := Pack(bungalowRooms(), 9)
	for i := range a.Placements {
		if a.Placements[i] != b.Placements[i] {
			t.Fatalf("placement %d differs", i)
		}
	}
}

func TestRasterizeProducesPNG(t *testing.T) {
	r := &Renderer{MaxRowWidth: 12, PixelsPerMetre: 40, Margin: 10}
	data, err := r.Rasterize(r.Layout(bungalowRooms()))
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	// 10.5 x 7.5 m at 40 px/m plus a 10 px margin on each side
	if b := img.Bounds(); b.Dx() != 440 || b.Dy() != 320 {
		t.Fatalf("image = %dx%d, want 440x320", b.Dx(), b.Dy())
	}
}

func TestRasterizeRejectsOversizedImage(t *testing.T) {
	r := &Renderer{PixelsPerMetre: 100, MaxPixels: 10_000}
	_, err := r.Rasterize(r.Layout(bungalowRooms()))
	if !errors.Is(err, utils.ErrRenderFailure) {
		t.Fatalf("err = %v, want ErrRenderFailure", err)
	}
}

func TestRasterizeRejectsEmptyLayout(t *testing.T) {
	r := &Renderer{}
	if _, err := r.Rasterize(Layout{}); !errors.Is(err, utils.ErrRenderFailure) {
		t.Fatalf("err = %v, want ErrRenderFailure", err)
	}
}

func assertNoOverlap(t *testing.T, layout Layout) {
	t.Helper()
	for i := range layout.Placements {
		for j := i + 1; j < len(layout.Placements); j++ {
			if layout.Placements[i].Rect.Overlaps(layout.Placements[j].Rect) {
				t.Fatalf("rooms %d and %d overlap", i, j)
			}
		}
	}
}
