package estimator

import (
	"fmt"
	"math"

	"bitbucket.org/mmdatafocus/houseplan_backend/catalog"
	"bitbucket.org/mmdatafocus/houseplan_backend/models"
	"bitbucket.org/mmdatafocus/houseplan_backend/utils"
)

// MaxRoomDimension caps room length, width and height in metres. It keeps
// every derived area finite and within the decimal(20,4) money columns.
const MaxRoomDimension = 1000.0

type RoomGeometry struct {
	Area      float64
	Perimeter float64
	WallArea  float64
}

type FloorGeometry struct {
	FloorNumber int
	Area        float64
	WallArea    float64
	Rooms       []RoomGeometry
}

// Geometry holds the areas every takeoff driver is derived from. Floors keep
// the input order.
type Geometry struct {
	Floors         []FloorGeometry
	TotalFloorArea float64
	TotalBuiltArea float64
	// FootprintArea is the area of the lowest floor.
	FootprintArea float64
	// RoofArea is the area of the highest floor; the roof covers its footprint.
	RoofArea float64
	WallArea float64
}

// Measure computes room, floor and building areas.
//
// Wall surface is the sum of perimeter x height over every room. Walls shared
// by two adjacent rooms are counted once per room and NOT subtracted; this is
// a deliberate simplification of the wall takeoff, not a defect.
//
// total_built_area = total_floor_area x (1 + overheadFactor), where the factor
// covers wall thickness and circulation not otherwise modelled.
func Measure(floors []models.NewFloor, overheadFactor float64) (*Geometry, error) {
	if len(floors) == 0 {
		return nil, utils.NewInvalidGeometry("floors", "at least one floor is required")
	}

	geo := &Geometry{Floors: make([]FloorGeometry, len(floors))}
	lowest, highest := 0, 0
	for i, floor := range floors {
		field := fmt.Sprintf("floors[%d]", i)
		if len(floor.Rooms) == 0 {
			return nil, utils.NewInvalidGeometry(field+".rooms", "a floor needs at least one room")
		}

		fg := FloorGeometry{FloorNumber: floor.FloorNumber, Rooms: make([]RoomGeometry, len(floor.Rooms))}
		for j, room := range floor.Rooms {
			roomField := fmt.Sprintf("%s.rooms[%d]", field, j)
			for _, dim := range []struct {
				name  string
				value float64
			}{{"length", room.Length}, {"width", room.Width}, {"height", room.Height}} {
				if !(dim.value > 0) || math.IsInf(dim.value, 0) {
					return nil, utils.NewInvalidGeometry(roomField+"."+dim.name, "must be a positive number of metres, got %v", dim.value)
				}
				if dim.value > MaxRoomDimension {
					return nil, utils.NewInvalidGeometry(roomField+"."+dim.name, "must be at most %v metres, got %v", MaxRoomDimension, dim.value)
				}
			}

			rg := RoomGeometry{
				Area:      room.Length * room.Width,
				Perimeter: 2 * (room.Length + room.Width),
			}
			rg.WallArea = rg.Perimeter * room.Height
			fg.Rooms[j] = rg
			fg.Area += rg.Area
			fg.WallArea += rg.WallArea
		}

		geo.Floors[i] = fg
		geo.TotalFloorArea += fg.Area
		geo.WallArea += fg.WallArea
		if floor.FloorNumber < floors[lowest].FloorNumber {
			lowest = i
		}
		if floor.FloorNumber > floors[highest].FloorNumber {
			highest = i
		}
	}

	geo.FootprintArea = geo.Floors[lowest].Area
	geo.RoofArea = geo.Floors[highest].Area
	geo.TotalBuiltArea = geo.TotalFloorArea * (1 + overheadFactor)
	for _, area := range []float64{geo.TotalFloorArea, geo.TotalBuiltArea, geo.WallArea} {
		if !isFinite(area) {
			return nil, utils.NewInvalidGeometry("floors", "building areas are too large to cost")
		}
	}
	return geo, nil
}

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Driver returns the quantity a recipe with driver d scales with.
func (g *Geometry) Driver(d catalog.Driver) float64 {
	switch d {
	case catalog.DriverFootprintArea:
		return g.FootprintArea
	case catalog.DriverWallArea:
		return g.WallArea
	case catalog.DriverRoofArea:
		return g.RoofArea
	case catalog.DriverFloorArea:
		return g.TotalFloorArea
	case catalog.DriverBuiltArea:
		return g.TotalBuiltArea
	}
	return 0
}
