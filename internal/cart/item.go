package cart

// LineItem is one cart row: a catalog product plus a customization
// selection and a quantity. The JSON shape is the persisted storage shape.
type LineItem struct {
	ID               string  `json:"id"`
	LineItemKey      string  `json:"lineItemKey"`
	Name             string  `json:"name"`
	Price            float64 `json:"price"`
	OriginalPrice    float64 `json:"originalPrice"`
	Quantity         int     `json:"quantity"`
	Selected         bool    `json:"selected"`
	Image            string  `json:"image"`
	Description      string  `json:"description"`
	SelectedColor    string  `json:"selectedColor"`
	SelectedSize     string  `json:"selectedSize"`
	SelectedMaterial string  `json:"selectedMaterial"`
	SelectedRam      string  `json:"selectedRam"`
}

// RawProduct is anything product-shaped handed to the cart: catalog
// documents, wishlist rows, buy-now payloads. Every field is optional and
// the loosely typed ones accept any JSON scalar; Sanitize is the only way
// to turn one into a LineItem.
type RawProduct struct {
	ID            any      `json:"id,omitempty"`
	LegacyID      any      `json:"_id,omitempty"`
	Name          any      `json:"name,omitempty"`
	Price         any      `json:"price,omitempty"`
	OriginalPrice any      `json:"originalPrice,omitempty"`
	Quantity      any      `json:"quantity,omitempty"`
	Selected      any      `json:"selected,omitempty"`
	Image         any      `json:"image,omitempty"`
	Images        []string `json:"images,omitempty"`
	Description   any      `json:"description,omitempty"`

	SelectedColor    any `json:"selectedColor,omitempty"`
	SelectedSize     any `json:"selectedSize,omitempty"`
	SelectedMaterial any `json:"selectedMaterial,omitempty"`
	SelectedRam      any `json:"selectedRam,omitempty"`
}

// Raw converts a line item back into its loose form, e.g. to re-validate
// a row read from storage.
func (i LineItem) Raw() RawProduct {
	return RawProduct{
		ID:               i.ID,
		Name:             i.Name,
		Price:            i.Price,
		OriginalPrice:    i.OriginalPrice,
		Quantity:         i.Quantity,
		Selected:         i.Selected,
		Image:            i.Image,
		Description:      i.Description,
		SelectedColor:    i.SelectedColor,
		SelectedSize:     i.SelectedSize,
		SelectedMaterial: i.SelectedMaterial,
		SelectedRam:      i.SelectedRam,
	}
}

// NotificationType is the flavour of a transient toast.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
)

// Notification is the transient toast attached to the cart state. It is
// never persisted.
type Notification struct {
	Show    bool             `json:"show"`
	Message string           `json:"message"`
	Type    NotificationType `json:"type"`
}

func normalizeNotificationType(t NotificationType) NotificationType {
	if t == NotificationError {
		return NotificationError
	}
	return NotificationSuccess
}

// State is everything the reducer owns.
type State struct {
	Items        []LineItem   `json:"items"`
	Notification Notification `json:"notification"`
}

// EmptyState returns a cart with no items and a hidden notification.
func EmptyState() State {
	return State{
		Items:        []LineItem{},
		Notification: Notification{Type: NotificationSuccess},
	}
}
