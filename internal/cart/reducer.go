package cart

// Action is a cart state transition. The concrete types below are the only
// ones Reduce understands; anything else is a no-op.
type Action interface {
	ActionType() string
}

const (
	TypeAdd                 = "ADD_TO_CART"
	TypeRemove              = "REMOVE_FROM_CART"
	TypeUpdateQuantity      = "UPDATE_QUANTITY"
	TypeUpdateCustomization = "UPDATE_CUSTOMIZATION"
	TypeToggleSelect        = "TOGGLE_SELECT"
	TypeSelectAll           = "SELECT_ALL"
	TypeDeselectAll         = "DESELECT_ALL"
	TypeClear               = "CLEAR_CART"
	TypeLoad                = "LOAD_CART"
	TypeShowNotification    = "SHOW_NOTIFICATION"
	TypeHideNotification    = "HIDE_NOTIFICATION"
)

type (
	Add struct {
		Product RawProduct `json:"product"`
	}
	Remove struct {
		Key string `json:"lineItemKey"`
	}
	UpdateQuantity struct {
		Key      string `json:"lineItemKey"`
		Quantity int    `json:"quantity"`
	}
	UpdateCustomization struct {
		Key    string            `json:"lineItemKey"`
		Fields map[string]string `json:"fields"`
	}
	ToggleSelect struct {
		Key string `json:"lineItemKey"`
	}
	SelectAll   struct{}
	DeselectAll struct{}
	Clear       struct{}
	Load        struct {
		Items []RawProduct `json:"items"`
	}
	ShowNotification struct {
		Message string           `json:"message"`
		Type    NotificationType `json:"type"`
	}
	HideNotification struct{}
)

func (Add) ActionType() string                 { return TypeAdd }
func (Remove) ActionType() string              { return TypeRemove }
func (UpdateQuantity) ActionType() string      { return TypeUpdateQuantity }
func (UpdateCustomization) ActionType() string { return TypeUpdateCustomization }
func (ToggleSelect) ActionType() string        { return TypeToggleSelect }
func (SelectAll) ActionType() string           { return TypeSelectAll }
func (DeselectAll) ActionType() string         { return TypeDeselectAll }
func (Clear) ActionType() string               { return TypeClear }
func (Load) ActionType() string                { return TypeLoad }
func (ShowNotification) ActionType() string    { return TypeShowNotification }
func (HideNotification) ActionType() string    { return TypeHideNotification }

// Reduce applies action to state and returns the next state. It is pure:
// state is never mutated, and the items slice is shared with the input
// whenever the action leaves the items untouched.
func Reduce(state State, action Action) State {
	switch a := action.(type) {
	case Add:
		return withItems(state, addItem(state.Items, Sanitize(a.Product)))
	case Remove:
		idx := indexOf(state.Items, a.Key)
		if idx < 0 {
			return state
		}
		return withItems(state, removeAt(state.Items, idx))
	case UpdateQuantity:
		idx := indexOf(state.Items, a.Key)
		if idx < 0 {
			return state
		}
		if a.Quantity <= 0 {
			return withItems(state, removeAt(state.Items, idx))
		}
		items := clone(state.Items)
		items[idx].Quantity = a.Quantity
		return withItems(state, items)
	case UpdateCustomization:
		return withItems(state, updateCustomization(state.Items, a.Key, a.Fields))
	case ToggleSelect:
		idx := indexOf(state.Items, a.Key)
		if idx < 0 {
			return state
		}
		items := clone(state.Items)
		items[idx].Selected = !items[idx].Selected
		return withItems(state, items)
	case SelectAll:
		return withItems(state, setSelected(state.Items, true))
	case DeselectAll:
		return withItems(state, setSelected(state.Items, false))
	case Clear:
		return withItems(state, []LineItem{})
	case Load:
		return withItems(state, loadItems(a.Items))
	case ShowNotification:
		state.Notification = Notification{
			Show:    true,
			Message: a.Message,
			Type:    normalizeNotificationType(a.Type),
		}
		return state
	case HideNotification:
		state.Notification = Notification{Type: NotificationSuccess}
		return state
	default:
		return state
	}
}

func withItems(state State, items []LineItem) State {
	state.Items = items
	return state
}

func indexOf(items []LineItem, key string) int {
	for i := range items {
		if items[i].LineItemKey == key {
			return i
		}
	}
	return -1
}

func clone(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

func removeAt(items []LineItem, idx int) []LineItem {
	out := make([]LineItem, 0, len(items)-1)
	out = append(out, items[:idx]...)
	return append(out, items[idx+1:]...)
}

func addItem(items []LineItem, item LineItem) []LineItem {
	if idx := indexOf(items, item.LineItemKey); idx >= 0 {
		out := clone(items)
		out[idx].Quantity += item.Quantity
		return out
	}
	item.Selected = true
	out := make([]LineItem, 0, len(items)+1)
	out = append(out, items...)
	return append(out, item)
}

func updateCustomization(items []LineItem, key string, fields map[string]string) []LineItem {
	idx := indexOf(items, key)
	if idx < 0 {
		return items
	}

	updated := items[idx]
	applyCustomization(&updated, fields)
	updated.LineItemKey = LineItemKey(updated)

	if updated.LineItemKey == key {
		out := clone(items)
		out[idx] = updated
		return out
	}

	if target := indexOf(items, updated.LineItemKey); target >= 0 {
		out := clone(items)
		out[target].Quantity += updated.Quantity
		return removeAt(out, idx)
	}

	out := clone(items)
	out[idx] = updated
	return out
}

func setSelected(items []LineItem, selected bool) []LineItem {
	out := clone(items)
	for i := range out {
		out[i].Selected = selected
	}
	return out
}

// loadItems sanitizes incoming rows and merges any whose keys collide.
func loadItems(rows []RawProduct) []LineItem {
	out := make([]LineItem, 0, len(rows))
	for _, raw := range rows {
		item := Sanitize(raw)
		if idx := indexOf(out, item.LineItemKey); idx >= 0 {
			out[idx].Quantity += item.Quantity
			continue
		}
		out = append(out, item)
	}
	return out
}
