package cart

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	UnspecifiedID      = "item_unspecified"
	DefaultName        = "Unnamed product"
	DefaultImage       = "/images/placeholder-product.png"
	DefaultDescription = "No description available"

	MinQuantity = 1
	MaxQuantity = 99
)

// DefectKind names a data-quality problem absorbed by the sanitizer.
type DefectKind string

const (
	DefectIDMissing       DefectKind = "id_missing"
	DefectNameMissing     DefectKind = "name_missing"
	DefectPriceDefaulted  DefectKind = "price_defaulted"
	DefectQuantityClamped DefectKind = "quantity_clamped"
)

// Defect describes one absorbed input problem.
type Defect struct {
	Kind  DefectKind
	Field string
	Value any
}

func (d Defect) String() string {
	return fmt.Sprintf("%s: %s=%v", d.Kind, d.Field, d.Value)
}

// HasDefect reports whether defects contains kind.
func HasDefect(defects []Defect, kind DefectKind) bool {
	for _, d := range defects {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

// Sanitize turns any product-shaped input into a valid LineItem. It never
// fails: malformed fields fall back to defaults.
func Sanitize(raw RawProduct) LineItem {
	item, _ := SanitizeWithDefects(raw)
	return item
}

// SanitizeWithDefects is Sanitize plus the list of problems it absorbed.
func SanitizeWithDefects(raw RawProduct) (LineItem, []Defect) {
	var defects []Defect

	id := firstID(raw.ID, raw.LegacyID)
	if id == "" {
		id = UnspecifiedID
		defects = append(defects, Defect{Kind: DefectIDMissing, Field: "id", Value: raw.ID})
	}

	name := text(raw.Name)
	if name == "" {
		name = DefaultName
		defects = append(defects, Defect{Kind: DefectNameMissing, Field: "name", Value: raw.Name})
	}

	price := nonNegative(toNumber(raw.Price))
	if price == 0 && raw.Price != nil && !isLiteralZero(raw.Price) {
		defects = append(defects, Defect{Kind: DefectPriceDefaulted, Field: "price", Value: raw.Price})
	}

	originalPrice := price
	if raw.OriginalPrice != nil {
		if n := toNumber(raw.OriginalPrice); n > 0 && !math.IsInf(n, 0) {
			originalPrice = n
		}
	}

	quantity := MinQuantity
	if n := toNumber(raw.Quantity); n != 0 && !math.IsNaN(n) {
		switch {
		case n < MinQuantity:
			quantity = MinQuantity
		case n > MaxQuantity:
			quantity = MaxQuantity
		default:
			quantity = int(math.Floor(n))
		}
		if n < MinQuantity || n > MaxQuantity {
			defects = append(defects, Defect{Kind: DefectQuantityClamped, Field: "quantity", Value: raw.Quantity})
		}
	}

	selected := true
	if b, ok := raw.Selected.(bool); ok && !b {
		selected = false
	}

	image := text(raw.Image)
	if image == "" {
		for _, candidate := range raw.Images {
			if candidate = strings.TrimSpace(candidate); candidate != "" {
				image = candidate
				break
			}
		}
	}
	if image == "" {
		image = DefaultImage
	}

	description := text(raw.Description)
	if description == "" {
		description = DefaultDescription
	}

	item := LineItem{
		ID:               id,
		Name:             name,
		Price:            price,
		OriginalPrice:    originalPrice,
		Quantity:         quantity,
		Selected:         selected,
		Image:            image,
		Description:      description,
		SelectedColor:    text(raw.SelectedColor),
		SelectedSize:     text(raw.SelectedSize),
		SelectedMaterial: text(raw.SelectedMaterial),
		SelectedRam:      text(raw.SelectedRam),
	}
	item.LineItemKey = LineItemKey(item)
	return item, defects
}

func firstID(candidates ...any) string {
	for _, c := range candidates {
		if s := text(c); s != "" {
			return s
		}
	}
	return ""
}

// text renders a display or customization value. Only strings and finite
// numbers count; anything else is treated as absent.
func text(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case bool, nil:
		return ""
	default:
		n := toNumber(t)
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return ""
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
}

// toNumber mirrors JavaScript's Number(): nil and "" are 0, unparseable
// strings are NaN, booleans are 0/1.
func toNumber(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case json.Number:
		return parseNumber(string(t))
	case string:
		return parseNumber(t)
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return math.NaN()
	}
}

func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return n
}

// nonNegative collapses NaN, infinities and negatives to 0.
func nonNegative(n float64) float64 {
	if math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
		return 0
	}
	return n
}

func isLiteralZero(v any) bool {
	switch t := v.(type) {
	case string, json.Number:
		n, err := strconv.ParseFloat(strings.TrimSpace(fmt.Sprint(t)), 64)
		return err == nil && n == 0
	case bool:
		return !t
	default:
		n := toNumber(v)
		return !math.IsNaN(n) && n == 0
	}
}
