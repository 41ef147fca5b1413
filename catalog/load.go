package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"bitbucket.org/mmdatafocus/houseplan_backend/models"
	"github.com/shopspring/decimal"
)

//go:embed default_catalog.json
var defaultCatalogJSON []byte

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Load(bytes.NewReader(defaultCatalogJSON))
}

// LoadFile reads a catalog from path, or the built-in catalog when path is empty.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func Load(r io.Reader) (*Catalog, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(doc)
}

// New validates doc and wraps it. The catalog keeps its own copy of doc.
func New(doc Document) (*Catalog, error) {
	if err := validate(&doc); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return &Catalog{doc: cloneDocument(doc)}, nil
}

func validate(doc *Document) error {
	if len(doc.Currency) != 3 {
		return fmt.Errorf("currency must be a 3 letter code, got %q", doc.Currency)
	}
	if doc.CurrencyPrecision < 0 || doc.CurrencyPrecision > 4 {
		return fmt.Errorf("currency_precision must be between 0 and 4")
	}
	if !doc.DefaultLocation.IsValid() {
		return fmt.Errorf("default_location %q is not a known region", doc.DefaultLocation)
	}
	if doc.StructuralOverheadFactor.IsNegative() {
		return fmt.Errorf("structural_overhead_factor must be >= 0")
	}

	for _, code := range sortedKeys(doc.Materials) {
		m := doc.Materials[code]
		if m.Name == "" || m.BaseUnit == "" || m.PurchaseUnit == "" {
			return fmt.Errorf("materials.%s: name, base_unit and purchase_unit are required", code)
		}
		if !m.PackagingUnitSize.IsPositive() {
			return fmt.Errorf("materials.%s: packaging_unit_size must be > 0", code)
		}
		if _, ok := m.Prices[doc.DefaultLocation]; !ok {
			return fmt.Errorf("materials.%s: missing price for default location %q", code, doc.DefaultLocation)
		}
		for region, price := range m.Prices {
			if !region.IsValid() {
				return fmt.Errorf("materials.%s: unknown region %q", code, region)
			}
			if price.IsNegative() {
				return fmt.Errorf("materials.%s.prices.%s: must be >= 0", code, region)
			}
			// unit prices are stored in decimal(20,4) columns
			if price.Exponent() < -4 {
				return fmt.Errorf("materials.%s.prices.%s: at most 4 decimal places, got %s", code, region, price)
			}
		}
	}

	for _, kind := range Kinds() {
		recipes := doc.Choices[kind]
		if len(recipes) == 0 {
			return fmt.Errorf("choices.%s: at least one choice is required", kind)
		}
		for _, choice := range sortedKeys(recipes) {
			if err := validateRecipe(doc, recipes[choice]); err != nil {
				return fmt.Errorf("choices.%s.%s: %w", kind, choice, err)
			}
		}
	}
	for kind := range doc.Choices {
		if !isKnownKind(kind) {
			return fmt.Errorf("choices: unknown kind %q", kind)
		}
	}
	for _, level := range models.FinishingLevels() {
		if _, ok := doc.Choices[KindFinishing][string(level)]; !ok {
			return fmt.Errorf("choices.%s: missing level %q", KindFinishing, level)
		}
	}
	for choice := range doc.Choices[KindFinishing] {
		if !models.FinishingLevel(choice).IsValid() {
			return fmt.Errorf("choices.%s: unknown level %q", KindFinishing, choice)
		}
	}
	for i, recipe := range doc.ExtraStages {
		if err := validateRecipe(doc, recipe); err != nil {
			return fmt.Errorf("extra_stages[%d]: %w", i, err)
		}
	}

	// labor rates must cover every house type and never decrease with finishing level
	for _, houseType := range models.HouseTypes() {
		rates, ok := doc.LaborRates[houseType]
		if !ok {
			return fmt.Errorf("labor_rates: missing house type %q", houseType)
		}
		var prev *models.FinishingLevel
		for _, level := range models.FinishingLevels() {
			rate, ok := rates[level]
			if !ok {
				return fmt.Errorf("labor_rates.%s: missing level %q", houseType, level)
			}
			if rate.IsNegative() {
				return fmt.Errorf("labor_rates.%s.%s: must be >= 0", houseType, level)
			}
			if prev != nil && rate.LessThan(rates[*prev]) {
				return fmt.Errorf("labor_rates.%s.%s: lower than %s", houseType, level, *prev)
			}
			l := level
			prev = &l
		}
	}
	return nil
}

func validateRecipe(doc *Document, r Recipe) error {
	if r.Stage == "" {
		return fmt.Errorf("stage is required")
	}
	if !r.Driver.IsValid() {
		return fmt.Errorf("unknown driver %q", r.Driver)
	}
	if !r.LaborProductivityRate.IsPositive() {
		return fmt.Errorf("labor_productivity_rate must be > 0")
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("at least one item is required")
	}
	for i, item := range r.Items {
		if _, ok := doc.Materials[item.Material]; !ok {
			return fmt.Errorf("items[%d]: unknown material %q", i, item.Material)
		}
		if item.Driver != "" && !item.Driver.IsValid() {
			return fmt.Errorf("items[%d]: unknown driver %q", i, item.Driver)
		}
		if !item.Yield.IsPositive() {
			return fmt.Errorf("items[%d]: yield must be > 0", i)
		}
	}
	return nil
}

func isKnownKind(kind Kind) bool {
	for _, k := range Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneDocument(doc Document) Document {
	out := doc

	out.Materials = make(map[string]Material, len(doc.Materials))
	for code, m := range doc.Materials {
		prices := make(map[models.Region]decimal.Decimal, len(m.Prices))
		for region, price := range m.Prices {
			prices[region] = price
		}
		m.Prices = prices
		out.Materials[code] = m
	}

	out.Choices = make(ChoiceTable, len(doc.Choices))
	for kind, recipes := range doc.Choices {
		copied := make(map[string]Recipe, len(recipes))
		for choice, r := range recipes {
			copied[choice] = cloneRecipe(r)
		}
		out.Choices[kind] = copied
	}

	out.ExtraStages = make([]Recipe, len(doc.ExtraStages))
	for i, r := range doc.ExtraStages {
		out.ExtraStages[i] = cloneRecipe(r)
	}

	out.LaborRates = make(LaborRateTable, len(doc.LaborRates))
	for houseType, rates := range doc.LaborRates {
		copied := make(map[models.FinishingLevel]decimal.Decimal, len(rates))
		for level, rate := range rates {
			copied[level] = rate
		}
		out.LaborRates[houseType] = copied
	}
	return out
}
