package cart

import "github.com/shopspring/decimal"

// SelectedItems returns the rows that take part in the next checkout.
func SelectedItems(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		if item.Selected {
			out = append(out, item)
		}
	}
	return out
}

// ItemsCount is the sum of quantities over all rows.
func ItemsCount(items []LineItem) int {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count
}

// Total is sum(price * quantity) over all rows.
func Total(items []LineItem) float64 {
	return sum(items, func(LineItem) bool { return true })
}

// SelectedTotal is sum(price * quantity) over the selected rows.
func SelectedTotal(items []LineItem) float64 {
	return sum(items, func(i LineItem) bool { return i.Selected })
}

func sum(items []LineItem, include func(LineItem) bool) float64 {
	total := decimal.Zero
	for _, item := range items {
		if !include(item) {
			continue
		}
		line := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
	}
	return total.InexactFloat64()
}
