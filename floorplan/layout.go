// Package floorplan lays out the rooms of a floor and rasterizes the layout
// to a PNG image.
package floorplan

import (
	"bitbucket.org/mmdatafocus/houseplan_backend/models"
)

// Room is the input to layout: a rectangle of Length (x) by Width (y) metres.
type Room struct {
	Name   string
	Type   models.RoomType
	Length float64
	Width  float64
}

type Rect struct {
	X, Y          float64
	Width, Height float64
}

func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

type Placement struct {
	Room Room
	Rect Rect
}

// Layout places rooms on a floor in metres. Placements keep the input order.
type Layout struct {
	Width      float64
	Height     float64
	Placements []Placement
}

// Pack places rooms left to right in rows (shelf packing). A room wraps to a
// new row when it would push the row past maxRowWidth; a room wider than
// maxRowWidth gets a row of its own. Each row is as tall as its deepest room.
// maxRowWidth <= 0 puts every room on a single row.
//
// Rooms never overlap and the result only depends on the order of rooms.
func Pack(rooms []Room, maxRowWidth float64) Layout {
	layout := Layout{Placements: make([]Placement, len(rooms))}
	var x, y, rowHeight float64
	for i, room := range rooms {
		if maxRowWidth > 0 && x > 0 && x+room.Length > maxRowWidth {
			y += rowHeight
			x, rowHeight = 0, 0
		}
		layout.Placements[i] = Placement{
			Room: room,
			Rect: Rect{X: x, Y: y, Width: room.Length, Height: room.Width},
		}
		x += room.Length
		rowHeight = max(rowHeight, room.Width)
		layout.Width = max(layout.Width, x)
	}
	layout.Height = y + rowHeight
	return layout
}

// RoomsFromFloor converts stored rooms, in their stored order.
func RoomsFromFloor(floor models.Floor) []Room {
	rooms := make([]Room, len(floor.Rooms))
	for i, r := range floor.Rooms {
		rooms[i] = Room{Name: r.Name, Type: r.Type, Length: r.Length, Width: r.Width}
	}
	return rooms
}
