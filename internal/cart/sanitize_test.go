package cart

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize_Defaults(t *testing.T) {
	item, defects := SanitizeWithDefects(RawProduct{})

	assert.Equal(t, UnspecifiedID, item.ID)
	assert.Equal(t, UnspecifiedID, item.LineItemKey)
	assert.Equal(t, DefaultName, item.Name)
	assert.Equal(t, DefaultImage, item.Image)
	assert.Equal(t, DefaultDescription, item.Description)
	assert.Equal(t, 0.0, item.Price)
	assert.Equal(t, 0.0, item.OriginalPrice)
	assert.Equal(t, 1, item.Quantity)
	assert.True(t, item.Selected)

	assert.True(t, HasDefect(defects, DefectIDMissing))
	assert.True(t, HasDefect(defects, DefectNameMissing))
	assert.False(t, HasDefect(defects, DefectPriceDefaulted), "absent price is not a defect")
}

func TestSanitize_IDFallback(t *testing.T) {
	assert.Equal(t, "a", Sanitize(RawProduct{ID: "a", LegacyID: "b"}).ID)
	assert.Equal(t, "b", Sanitize(RawProduct{ID: "", LegacyID: "b"}).ID)
	assert.Equal(t, "42", Sanitize(RawProduct{LegacyID: float64(42)}).ID)
	assert.Equal(t, UnspecifiedID, Sanitize(RawProduct{ID: map[string]any{"x": 1}}).ID)
}

func TestSanitize_Price(t *testing.T) {
	tests := []struct {
		name       string
		price      any
		want       float64
		wantDefect bool
	}{
		{name: "Number", price: 100, want: 100},
		{name: "Float", price: 19.99, want: 19.99},
		{name: "Numeric string", price: "250", want: 250},
		{name: "Literal zero", price: 0, want: 0},
		{name: "Zero string", price: "0", want: 0},
		{name: "Garbage string", price: "abc", want: 0, wantDefect: true},
		{name: "Empty string", price: "", want: 0, wantDefect: true},
		{name: "NaN", price: math.NaN(), want: 0, wantDefect: true},
		{name: "Negative", price: -5, want: 0, wantDefect: true},
		{name: "Infinity", price: math.Inf(1), want: 0, wantDefect: true},
		{name: "Object", price: map[string]any{}, want: 0, wantDefect: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, defects := SanitizeWithDefects(RawProduct{ID: "p1", Name: "x", Price: tt.price})
			assert.Equal(t, tt.want, item.Price)
			assert.GreaterOrEqual(t, item.Price, 0.0)
			assert.Equal(t, tt.wantDefect, HasDefect(defects, DefectPriceDefaulted))
		})
	}
}

func TestSanitize_Quantity(t *testing.T) {
	tests := []struct {
		name     string
		quantity any
		want     int
	}{
		{name: "Absent", quantity: nil, want: 1},
		{name: "Zero falls back to one", quantity: 0, want: 1},
		{name: "Negative", quantity: -3, want: 1},
		{name: "In range", quantity: 7, want: 7},
		{name: "String", quantity: "12", want: 12},
		{name: "Fraction floors", quantity: 2.7, want: 2},
		{name: "Upper bound", quantity: 99, want: 99},
		{name: "Too many", quantity: 1000, want: 99},
		{name: "Garbage", quantity: "lots", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := Sanitize(RawProduct{ID: "p1", Quantity: tt.quantity})
			assert.Equal(t, tt.want, item.Quantity)
		})
	}
}

func TestSanitize_Selected(t *testing.T) {
	assert.True(t, Sanitize(RawProduct{}).Selected)
	assert.True(t, Sanitize(RawProduct{Selected: true}).Selected)
	assert.True(t, Sanitize(RawProduct{Selected: "false"}).Selected, "only boolean false deselects")
	assert.True(t, Sanitize(RawProduct{Selected: 0}).Selected)
	assert.False(t, Sanitize(RawProduct{Selected: false}).Selected)
}

func TestSanitize_DisplayFields(t *testing.T) {
	item := Sanitize(RawProduct{
		ID:            "p1",
		Name:          "  Lamp ",
		Price:         80,
		OriginalPrice: "100",
		Images:        []string{"", "https://cdn.example.com/lamp.jpg"},
		Description:   "Desk lamp",
		SelectedColor: "Black",
		SelectedSize:  float64(42),
	})

	assert.Equal(t, "Lamp", item.Name)
	assert.Equal(t, 100.0, item.OriginalPrice)
	assert.Equal(t, "https://cdn.example.com/lamp.jpg", item.Image)
	assert.Equal(t, "Desk lamp", item.Description)
	assert.Equal(t, "42", item.SelectedSize)
	assert.Equal(t, "p1_Black_42", item.LineItemKey)

	assert.Equal(t, 80.0, Sanitize(RawProduct{ID: "p1", Price: 80}).OriginalPrice, "originalPrice defaults to price")
}

func TestSanitize_FromLooseJSON(t *testing.T) {
	inputs := []string{
		`{}`,
		`{"id": null, "price": null, "quantity": null, "name": null}`,
		`{"_id": 7, "price": -10, "quantity": 1000, "selected": "yes"}`,
		`{"id": "p1", "price": "NaN", "quantity": 0, "image": 5}`,
		`{"id": true, "price": [], "quantity": {}, "extra": {"nested": 1}}`,
	}

	for _, in := range inputs {
		var raw RawProduct
		require.NoError(t, json.Unmarshal([]byte(in), &raw), in)

		item := Sanitize(raw)
		assert.NotEmpty(t, item.ID, in)
		assert.NotEmpty(t, item.LineItemKey, in)
		assert.NotEmpty(t, item.Name, in)
		assert.NotEmpty(t, item.Image, in)
		assert.NotEmpty(t, item.Description, in)
		assert.GreaterOrEqual(t, item.Price, 0.0, in)
		assert.GreaterOrEqual(t, item.Quantity, MinQuantity, in)
		assert.LessOrEqual(t, item.Quantity, MaxQuantity, in)
	}
}
