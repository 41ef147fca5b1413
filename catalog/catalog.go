// Package catalog holds the material, recipe, price and labor tables used to
// price a house plan. A Catalog is built once at startup and never mutated,
// so it is safe to share between goroutines without locking.
package catalog

import (
	"sort"

	"bitbucket.org/mmdatafocus/houseplan_backend/models"
	"bitbucket.org/mmdatafocus/houseplan_backend/utils"
	"github.com/shopspring/decimal"
)

// Driver names the geometric quantity a recipe is proportional to.
type Driver string

const (
	DriverFootprintArea Driver = "footprint_area"
	DriverWallArea      Driver = "wall_area"
	DriverRoofArea      Driver = "roof_area"
	DriverFloorArea     Driver = "floor_area"
	DriverBuiltArea     Driver = "built_area"
)

func (d Driver) IsValid() bool {
	switch d {
	case DriverFootprintArea, DriverWallArea, DriverRoofArea, DriverFloorArea, DriverBuiltArea:
		return true
	}
	return false
}

// Kind is the plan field that selects a recipe.
type Kind string

const (
	KindFoundation Kind = "foundation_type"
	KindWall       Kind = "wall_type"
	KindRoofing    Kind = "roofing_type"
	KindFinishing  Kind = "finishing_level"
)

// Kinds in canonical stage order.
func Kinds() []Kind {
	return []Kind{KindFoundation, KindWall, KindRoofing, KindFinishing}
}

type Material struct {
	Name          string `json:"name"`
	Specification string `json:"specification"`
	// BaseUnit is the unit yields are expressed in (kg, m3, pcs).
	BaseUnit string `json:"base_unit"`
	// PurchaseUnit is what is bought and priced (bag, truckload).
	PurchaseUnit string `json:"purchase_unit"`
	// PackagingUnitSize is the number of base units in one purchase unit.
	PackagingUnitSize decimal.Decimal                   `json:"packaging_unit_size"`
	Prices            map[models.Region]decimal.Decimal `json:"prices"`
}

type RecipeItem struct {
	Material string `json:"material"`
	// Driver overrides the recipe driver for this item when set.
	Driver Driver `json:"driver,omitempty"`
	// Yield is base units per driver unit.
	Yield decimal.Decimal `json:"yield"`
}

type Recipe struct {
	Stage  string `json:"stage"`
	Label  string `json:"label"`
	Driver Driver `json:"driver"`
	// LaborProductivityRate is driver units one crew completes per day.
	LaborProductivityRate decimal.Decimal `json:"labor_productivity_rate"`
	Items                 []RecipeItem    `json:"items"`
}

// ChoiceTable maps kind -> choice value -> recipe.
type ChoiceTable map[Kind]map[string]Recipe

// LaborRateTable maps house type -> finishing level -> labor fraction of materials cost.
type LaborRateTable map[models.HouseType]map[models.FinishingLevel]decimal.Decimal

// Document is the on-disk catalog format.
type Document struct {
	Currency                 string              `json:"currency"`
	CurrencyPrecision        int32               `json:"currency_precision"`
	DefaultLocation          models.Region       `json:"default_location"`
	StructuralOverheadFactor decimal.Decimal     `json:"structural_overhead_factor"`
	Materials                map[string]Material `json:"materials"`
	Choices                  ChoiceTable         `json:"choices"`
	ExtraStages              []Recipe            `json:"extra_stages"`
	LaborRates               LaborRateTable      `json:"labor_rates"`
}

type Catalog struct {
	doc Document
}

// MaterialInfo is a Material without its price table.
type MaterialInfo struct {
	Code              string
	Name              string
	Specification     string
	BaseUnit          string
	PurchaseUnit      string
	PackagingUnitSize decimal.Decimal
}

func (c *Catalog) Currency() string {
	return c.doc.Currency
}

func (c *Catalog) CurrencyPrecision() int32 {
	return c.doc.CurrencyPrecision
}

func (c *Catalog) DefaultLocation() models.Region {
	return c.doc.DefaultLocation
}

func (c *Catalog) StructuralOverheadFactor() decimal.Decimal {
	return c.doc.StructuralOverheadFactor
}

// Recipe returns the recipe selected by choice for kind.
func (c *Catalog) Recipe(kind Kind, choice string) (Recipe, error) {
	recipe, ok := c.doc.Choices[kind][choice]
	if !ok {
		return Recipe{}, utils.NewUnknownMaterial(string(kind), "no catalog entry for %q", choice)
	}
	return cloneRecipe(recipe), nil
}

// ExtraStages are appended after the canonical stages for every plan.
func (c *Catalog) ExtraStages() []Recipe {
	out := make([]Recipe, len(c.doc.ExtraStages))
	for i, r := range c.doc.ExtraStages {
		out[i] = cloneRecipe(r)
	}
	return out
}

func (c *Catalog) Material(code string) (MaterialInfo, error) {
	m, ok := c.doc.Materials[code]
	if !ok {
		return MaterialInfo{}, utils.NewUnknownMaterial("material", "no catalog entry for %q", code)
	}
	return MaterialInfo{
		Code:              code,
		Name:              m.Name,
		Specification:     m.Specification,
		BaseUnit:          m.BaseUnit,
		PurchaseUnit:      m.PurchaseUnit,
		PackagingUnitSize: m.PackagingUnitSize,
	}, nil
}

// Price is the purchase-unit price of code at location, falling back to the
// default location when the region has no entry of its own.
func (c *Catalog) Price(code string, location models.Region) (decimal.Decimal, error) {
	m, ok := c.doc.Materials[code]
	if !ok {
		return decimal.Zero, utils.NewUnknownMaterial("material", "no catalog entry for %q", code)
	}
	if price, ok := m.Prices[location]; ok {
		return price, nil
	}
	if price, ok := m.Prices[c.doc.DefaultLocation]; ok {
		return price, nil
	}
	return decimal.Zero, utils.NewUnknownMaterial("location", "no price for %q in %q", code, location)
}

// LaborRate is the labor cost as a fraction of materials cost.
func (c *Catalog) LaborRate(houseType models.HouseType, level models.FinishingLevel) (decimal.Decimal, error) {
	rate, ok := c.doc.LaborRates[houseType][level]
	if !ok {
		return decimal.Zero, utils.NewUnknownMaterial("house_type", "no labor rate for %q/%q", houseType, level)
	}
	return rate, nil
}

type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Stage string `json:"stage"`
}

// Choices lists the values accepted for kind, sorted by value.
func (c *Catalog) Choices(kind Kind) []Choice {
	recipes := c.doc.Choices[kind]
	out := make([]Choice, 0, len(recipes))
	for value, r := range recipes {
		out = append(out, Choice{Value: value, Label: r.Label, Stage: r.Stage})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

// Options is what a client needs to build the creation form.
type Options struct {
	Currency        string             `json:"currency"`
	DefaultLocation models.Region      `json:"default_location"`
	HouseTypes      []models.HouseType `json:"house_types"`
	Locations       []models.Region    `json:"locations"`
	RoomTypes       []models.RoomType  `json:"room_types"`
	Choices         map[Kind][]Choice  `json:"choices"`
}

func (c *Catalog) Options() Options {
	choices := make(map[Kind][]Choice, len(c.doc.Choices))
	for _, kind := range Kinds() {
		choices[kind] = c.Choices(kind)
	}
	return Options{
		Currency:        c.doc.Currency,
		DefaultLocation: c.doc.DefaultLocation,
		HouseTypes:      models.HouseTypes(),
		Locations:       models.Regions(),
		RoomTypes:       models.RoomTypes(),
		Choices:         choices,
	}
}

func cloneRecipe(r Recipe) Recipe {
	items := make([]RecipeItem, len(r.Items))
	copy(items, r.Items)
	r.Items = items
	return r
}
