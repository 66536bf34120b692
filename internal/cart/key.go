package cart

import "strings"

// CustomizationField is one customization axis of a line item.
type CustomizationField struct {
	Name string
	get  func(*LineItem) string
	set  func(*LineItem, string)
}

// CustomizationFields lists the customization axes in key order. A new
// axis is a LineItem field plus one entry here.
var CustomizationFields = []CustomizationField{
	{
		Name: "selectedColor",
		get:  func(i *LineItem) string { return i.SelectedColor },
		set:  func(i *LineItem, v string) { i.SelectedColor = v },
	},
	{
		Name: "selectedSize",
		get:  func(i *LineItem) string { return i.SelectedSize },
		set:  func(i *LineItem, v string) { i.SelectedSize = v },
	},
	{
		Name: "selectedMaterial",
		get:  func(i *LineItem) string { return i.SelectedMaterial },
		set:  func(i *LineItem, v string) { i.SelectedMaterial = v },
	},
	{
		Name: "selectedRam",
		get:  func(i *LineItem) string { return i.SelectedRam },
		set:  func(i *LineItem, v string) { i.SelectedRam = v },
	},
}

const keySeparator = "_"

// LineItemKey derives the identity of a cart row from the product id and
// its non-empty customization values, in CustomizationFields order.
func LineItemKey(item LineItem) string {
	var b strings.Builder
	b.WriteString(item.ID)
	for _, f := range CustomizationFields {
		if v := f.get(&item); v != "" {
			b.WriteString(keySeparator)
			b.WriteString(v)
		}
	}
	return b.String()
}

// Customization returns the item's non-empty customization values by field name.
func (i LineItem) Customization() map[string]string {
	out := make(map[string]string, len(CustomizationFields))
	for _, f := range CustomizationFields {
		if v := f.get(&i); v != "" {
			out[f.Name] = v
		}
	}
	return out
}

// applyCustomization merges fields into item. Unknown names are ignored;
// an empty value clears the axis.
func applyCustomization(item *LineItem, fields map[string]string) {
	for _, f := range CustomizationFields {
		if v, ok := fields[f.Name]; ok {
			f.set(item, v)
		}
	}
}
