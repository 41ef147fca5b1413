package models

import (
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/houseplan_backend/utils"
	"github.com/shopspring/decimal"
)

func init() {
	// money is rendered as JSON numbers, not strings
	decimal.MarshalJSONWithoutQuotes = true
}

// HousePlan is immutable once created; any change is a new plan.
type HousePlan struct {
	ID                    string              `gorm:"primaryKey;size:36" json:"id"`
	OwnerId               string              `gorm:"index:idx_house_plans_owner_created,priority:1;size:64;not null" json:"owner_id"`
	Name                  string              `gorm:"size:255;not null" json:"name"`
	Description           string              `gorm:"type:text" json:"description"`
	HouseType             HouseType           `gorm:"type:enum('bungalow','duplex','multi_story','apartment');not null" json:"house_type"`
	Location              Region              `gorm:"size:32;not null" json:"location"`
	FoundationType        string              `gorm:"size:64;not null" json:"foundation_type"`
	WallType              string              `gorm:"size:64;not null" json:"wall_type"`
	RoofingType           string              `gorm:"size:64;not null" json:"roofing_type"`
	FinishingLevel        FinishingLevel      `gorm:"type:enum('basic','standard','luxury');not null" json:"finishing_level"`
	Currency              string              `gorm:"size:3;not null" json:"currency"`
	TotalFloorArea        float64             `gorm:"not null" json:"total_floor_area"`
	TotalBuiltArea        float64             `gorm:"not null" json:"total_built_area"`
	TotalMaterialsCost    decimal.Decimal     `gorm:"type:decimal(20,4);not null" json:"total_materials_cost"`
	LaborCost             decimal.Decimal     `gorm:"type:decimal(20,4);not null" json:"labor_cost"`
	TotalProjectCost      decimal.Decimal     `gorm:"type:decimal(20,4);not null" json:"total_project_cost"`
	EstimatedDurationDays int                 `gorm:"not null" json:"estimated_duration_days"`
	Floors                []Floor             `gorm:"foreignKey:HousePlanId;constraint:OnDelete:CASCADE" json:"floors"`
	ConstructionStages    []ConstructionStage `gorm:"foreignKey:HousePlanId;constraint:OnDelete:CASCADE" json:"construction_stages"`
	CreatedAt             time.Time           `gorm:"index:idx_house_plans_owner_created,priority:2;autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

type Floor struct {
	ID           int          `gorm:"primary_key" json:"-"`
	HousePlanId  string       `gorm:"index;size:36;not null" json:"-"`
	Position     int          `gorm:"not null" json:"-"`
	FloorNumber  int          `gorm:"not null" json:"floor_number"`
	FloorName    string       `gorm:"size:100;not null" json:"floor_name"`
	FloorArea    float64      `gorm:"not null" json:"floor_area"`
	WallArea     float64      `gorm:"not null" json:"wall_area"`
	LayoutWidth  float64      `gorm:"not null;default:0" json:"layout_width"`
	LayoutHeight float64      `gorm:"not null;default:0" json:"layout_height"`
	RenderStatus RenderStatus `gorm:"size:20;not null" json:"render_status"`
	RenderError  string       `gorm:"size:500" json:"render_error,omitempty"`
	Rooms        []Room       `gorm:"foreignKey:FloorId;constraint:OnDelete:CASCADE" json:"rooms"`
}

type Room struct {
	ID        int      `gorm:"primary_key" json:"-"`
	FloorId   int      `gorm:"index;not null" json:"-"`
	Position  int      `gorm:"not null" json:"-"`
	Name      string   `gorm:"size:100;not null" json:"name"`
	Type      RoomType `gorm:"size:32;not null" json:"type"`
	Length    float64  `gorm:"not null" json:"length"`
	Width     float64  `gorm:"not null" json:"width"`
	Height    float64  `gorm:"not null" json:"height"`
	Area      float64  `gorm:"not null" json:"area"`
	Perimeter float64  `gorm:"not null" json:"perimeter"`
	// placement on the floor layout, metres from the top-left corner
	X float64 `gorm:"not null;default:0" json:"x"`
	Y float64 `gorm:"not null;default:0" json:"y"`
}

type ConstructionStage struct {
	ID             int                `gorm:"primary_key" json:"-"`
	HousePlanId    string             `gorm:"index;size:36;not null" json:"-"`
	StageOrder     int                `gorm:"not null" json:"stage_order"`
	StageName      string             `gorm:"size:100;not null" json:"stage_name"`
	Driver         string             `gorm:"size:32;not null" json:"driver"`
	DriverQuantity float64            `gorm:"not null" json:"driver_quantity"`
	DurationDays   int                `gorm:"not null" json:"duration_days"`
	TotalCost      decimal.Decimal    `gorm:"type:decimal(20,4);not null" json:"total_cost"`
	LineItems      []MaterialLineItem `gorm:"foreignKey:StageId;constraint:OnDelete:CASCADE" json:"line_items"`
}

type MaterialLineItem struct {
	ID            int             `gorm:"primary_key" json:"-"`
	StageId       int             `gorm:"index;not null" json:"-"`
	Position      int             `gorm:"not null" json:"-"`
	MaterialCode  string          `gorm:"size:64;not null" json:"material_code"`
	ItemName      string          `gorm:"size:255;not null" json:"item_name"`
	Specification string          `gorm:"size:255" json:"specification"`
	Unit          string          `gorm:"size:32;not null" json:"unit"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	TotalPrice    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_price"`
}

// request DTOs

type NewRoom struct {
	Name   string   `json:"name" binding:"required"`
	Type   RoomType `json:"type" binding:"required"`
	Length float64  `json:"length"`
	Width  float64  `json:"width"`
	Height float64  `json:"height"`
}

type NewFloor struct {
	FloorNumber int       `json:"floor_number"`
	FloorName   string    `json:"floor_name" binding:"required"`
	Rooms       []NewRoom `json:"rooms" binding:"dive"`
}

type NewHousePlan struct {
	Name           string         `json:"name" binding:"required"`
	Description    string         `json:"description"`
	HouseType      HouseType      `json:"house_type" binding:"required"`
	Location       Region         `json:"location" binding:"required"`
	Floors         []NewFloor     `json:"floors" binding:"dive"`
	FoundationType string         `json:"foundation_type" binding:"required"`
	WallType       string         `json:"wall_type" binding:"required"`
	RoofingType    string         `json:"roofing_type" binding:"required"`
	FinishingLevel FinishingLevel `json:"finishing_level" binding:"required"`
}

// Validate checks names and enum values. Room dimensions and empty floors
// are checked by the geometry step so they are reported as InvalidGeometry.
func (input *NewHousePlan) Validate() error {
	if strings.TrimSpace(input.Name) == "" {
		return utils.NewInvalidSpec("name", "is required")
	}
	if len(input.Name) > 255 {
		return utils.NewInvalidSpec("name", "must be at most 255 characters")
	}
	if !input.HouseType.IsValid() {
		return utils.NewInvalidSpec("house_type", "unsupported value %q", input.HouseType)
	}
	if !input.Location.IsValid() {
		return utils.NewInvalidSpec("location", "unsupported value %q", input.Location)
	}
	if !input.FinishingLevel.IsValid() {
		return utils.NewInvalidSpec("finishing_level", "unsupported value %q", input.FinishingLevel)
	}
	for _, choice := range []struct{ field, value string }{
		{"foundation_type", input.FoundationType},
		{"wall_type", input.WallType},
		{"roofing_type", input.RoofingType},
	} {
		if strings.TrimSpace(choice.value) == "" {
			return utils.NewInvalidSpec(choice.field, "is required")
		}
	}
	if len(input.Floors) == 0 {
		return utils.NewInvalidSpec("floors", "at least one floor is required")
	}

	seen := make(map[int]int, len(input.Floors))
	for i, floor := range input.Floors {
		field := fmt.Sprintf("floors[%d]", i)
		if floor.FloorNumber < 0 {
			return utils.NewInvalidSpec(field+".floor_number", "must be >= 0")
		}
		if prev, ok := seen[floor.FloorNumber]; ok {
			return utils.NewInvalidSpec(field+".floor_number", "duplicates floors[%d]", prev)
		}
		seen[floor.FloorNumber] = i
		if strings.TrimSpace(floor.FloorName) == "" {
			return utils.NewInvalidSpec(field+".floor_name", "is required")
		}
		for j, room := range floor.Rooms {
			roomField := fmt.Sprintf("%s.rooms[%d]", field, j)
			if strings.TrimSpace(room.Name) == "" {
				return utils.NewInvalidSpec(roomField+".name", "is required")
			}
			if !room.Type.IsValid() {
				return utils.NewInvalidSpec(roomField+".type", "unsupported value %q", room.Type)
			}
		}
	}
	return nil
}
