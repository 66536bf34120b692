package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reduceAll(state State, actions ...Action) State {
	for _, a := range actions {
		state = Reduce(state, a)
	}
	return state
}

func TestReduce_AddMergesByKey(t *testing.T) {
	state := reduceAll(EmptyState(),
		Add{Product: RawProduct{ID: "p1", Price: 100, SelectedColor: "Red", Quantity: 1}},
		Add{Product: RawProduct{ID: "p1", Price: 100, SelectedColor: "Red", Quantity: 2}},
	)

	require.Len(t, state.Items, 1)
	assert.Equal(t, "p1_Red", state.Items[0].LineItemKey)
	assert.Equal(t, 3, state.Items[0].Quantity)
	assert.Equal(t, 300.0, Total(state.Items))
}

func TestReduce_AddDistinctCustomizationAppends(t *testing.T) {
	state := reduceAll(EmptyState(),
		Add{Product: RawProduct{ID: "p1", SelectedColor: "Red"}},
		Add{Product: RawProduct{ID: "p1", SelectedColor: "Blue"}},
		Add{Product: RawProduct{ID: "p1"}},
	)

	require.Len(t, state.Items, 3)
	assert.Equal(t, []string{"p1_Red", "p1_Blue", "p1"}, keys(state.Items))
}

func TestReduce_AddForcesSelected(t *testing.T) {
	state := Reduce(EmptyState(), Add{Product: RawProduct{ID: "p1", Selected: false}})
	require.Len(t, state.Items, 1)
	assert.True(t, state.Items[0].Selected)
}

func TestReduce_AddBadPriceDefaultsToZero(t *testing.T) {
	state := Reduce(EmptyState(), Add{Product: RawProduct{ID: "p1", Price: "abc"}})
	require.Len(t, state.Items, 1)
	assert.Equal(t, 0.0, state.Items[0].Price)
}

func TestReduce_Remove(t *testing.T) {
	state := reduceAll(EmptyState(),
		Add{Product: RawProduct{ID: "p1"}},
		Add{Product: RawProduct{ID: "p2"}},
	)

	next := Reduce(state, Remove{Key: "p1"})
	assert.Equal(t, []string{"p2"}, keys(next.Items))

	unchanged := Reduce(next, Remove{Key: "missing"})
	assert.Equal(t, next, unchanged)
}

func TestReduce_UpdateQuantity(t *testing.T) {
	state := reduceAll(EmptyState(),
		Add{Product: RawProduct{ID: "p1"}},
		Add{Product: RawProduct{ID: "p2"}},
	)

	t.Run("Sets quantity", func(t *testing.T) {
		next := Reduce(state, UpdateQuantity{Key: "p1", Quantity: 5})
		assert.Equal(t, 5, next.Items[0].Quantity)
		assert.Equal(t, 1, state.Items[0].Quantity, "input state must not be mutated")
	})

	t.Run("Zero removes the row", func(t *testing.T) {
		next := Reduce(state, UpdateQuantity{Key: "p1", Quantity: 0})
		assert.Len(t, next.Items, len(state.Items)-1)
	})

	t.Run("Negative removes the row", func(t *testing.T) {
		next := Reduce(state, UpdateQuantity{Key: "p2", Quantity: -1})
		assert.Equal(t, []string{"p1"}, keys(next.Items))
	})

	t.Run("Unknown key is a no-op", func(t *testing.T) {
		next := Reduce(state, UpdateQuantity{Key: "nope", Quantity: 0})
		assert.Len(t, next.Items, len(state.Items))
	})

	// UpdateQuantity does not apply the [1,99] clamp that Add does.
	t.Run("Not clamped to the add limit", func(t *testing.T) {
		next := Reduce(state, UpdateQuantity{Key: "p1", Quantity: 250})
		assert.Equal(t, 250, next.Items[0].Quantity)

		added := Reduce(EmptyState(), Add{Product: RawProduct{ID: "p1", Quantity: 250}})
		assert.Equal(t, MaxQuantity, added.Items[0].Quantity)
	})
}

func TestReduce_UpdateCustomization(t *testing.T) {
	t.Run("Renames in place", func(t *testing.T) {
		state := reduceAll(EmptyState(),
			Add{Product: RawProduct{ID: "p1", SelectedColor: "Red"}},
			Add{Product: RawProduct{ID: "p2"}},
		)
		next := Reduce(state, UpdateCustomization{Key: "p1_Red", Fields: map[string]string{"selectedColor": "Green", "selectedSize": "L"}})

		assert.Equal(t, []string{"p1_Green_L", "p2"}, keys(next.Items))
		assert.Equal(t, "Green", next.Items[0].SelectedColor)
		assert.Equal(t, "L", next.Items[0].SelectedSize)
	})

	t.Run("Collision merges into the existing row", func(t *testing.T) {
		state := reduceAll(EmptyState(),
			Add{Product: RawProduct{ID: "p1", SelectedColor: "Red", Quantity: 2}},
			Add{Product: RawProduct{ID: "p1", SelectedColor: "Blue", Quantity: 3}},
		)
		next := Reduce(state, UpdateCustomization{Key: "p1_Red", Fields: map[string]string{"selectedColor": "Blue"}})

		require.Len(t, next.Items, 1)
		assert.Equal(t, "p1_Blue", next.Items[0].LineItemKey)
		assert.Equal(t, 5, next.Items[0].Quantity)
	})

	t.Run("Same key updates fields only", func(t *testing.T) {
		state := Reduce(EmptyState(), Add{Product: RawProduct{ID: "p1", SelectedColor: "Red"}})
		next := Reduce(state, UpdateCustomization{Key: "p1_Red", Fields: map[string]string{"selectedColor": "Red"}})
		assert.Equal(t, state.Items, next.Items)
	})

	t.Run("Missing row is a no-op", func(t *testing.T) {
		state := Reduce(EmptyState(), Add{Product: RawProduct{ID: "p1"}})
		next := Reduce(state, UpdateCustomization{Key: "p9", Fields: map[string]string{"selectedColor": "Red"}})
		assert.Equal(t, state, next)
	})
}

func TestReduce_Selection(t *testing.T) {
	state := reduceAll(EmptyState(),
		Add{Product: RawProduct{ID: "p1", Price: 50, Quantity: 1, Selected: true}},
		Add{Product: RawProduct{ID: "p2", Price: 10, Quantity: 2}},
	)

	toggled := Reduce(state, ToggleSelect{Key: "p1"})
	assert.False(t, toggled.Items[0].Selected)
	assert.Equal(t, 20.0, SelectedTotal(toggled.Items))

	none := Reduce(state, DeselectAll{})
	assert.Empty(t, SelectedItems(none.Items))
	assert.Equal(t, 0.0, SelectedTotal(none.Items))

	all := Reduce(none, SelectAll{})
	assert.Len(t, SelectedItems(all.Items), 2)
	assert.Equal(t, 70.0, SelectedTotal(all.Items))
}

func TestReduce_ClearKeepsNotification(t *testing.T) {
	state := reduceAll(EmptyState(),
		Add{Product: RawProduct{ID: "p1"}},
		ShowNotification{Message: "Added"},
		Clear{},
	)

	assert.Empty(t, state.Items)
	assert.NotNil(t, state.Items)
	assert.True(t, state.Notification.Show)
	assert.Equal(t, "Added", state.Notification.Message)
}

func TestReduce_Load(t *testing.T) {
	state := Reduce(EmptyState(), Add{Product: RawProduct{ID: "old"}})

	next := Reduce(state, Load{Items: []RawProduct{
		{ID: "p1", SelectedColor: "Red", Quantity: 2, Selected: true},
		{ID: "p2", Quantity: 1, Selected: false},
		{ID: "p1", SelectedColor: "Red", Quantity: 3, Selected: true},
	}})

	assert.Equal(t, []string{"p1_Red", "p2"}, keys(next.Items))
	assert.Equal(t, 5, next.Items[0].Quantity)
	assert.False(t, next.Items[1].Selected)
}

func TestReduce_LoadSanitizesRows(t *testing.T) {
	env := Envelope{
		Type:    TypeLoad,
		Payload: []byte(`{"items":[{"id":"p1","price":-50,"quantity":500},{"id":"p2","price":10,"quantity":0},{"price":"abc"}]}`),
	}
	action, err := DecodeAction(env)
	require.NoError(t, err)

	next := Reduce(EmptyState(), action)
	require.Len(t, next.Items, 3)

	p1 := next.Items[0]
	assert.Equal(t, "p1", p1.LineItemKey)
	assert.Equal(t, 0.0, p1.Price)
	assert.Equal(t, MaxQuantity, p1.Quantity)
	assert.True(t, p1.Selected)
	assert.Equal(t, DefaultName, p1.Name)
	assert.Equal(t, DefaultImage, p1.Image)
	assert.Equal(t, DefaultDescription, p1.Description)

	p2 := next.Items[1]
	assert.Equal(t, 10.0, p2.Price)
	assert.Equal(t, MinQuantity, p2.Quantity)
	assert.True(t, p2.Selected)

	assert.Equal(t, UnspecifiedID, next.Items[2].ID)

	assert.Equal(t, 10.0, Total(next.Items))
	assert.Equal(t, 10.0, SelectedTotal(next.Items))
	assert.Equal(t, MaxQuantity+MinQuantity+MinQuantity, ItemsCount(next.Items))
}

func TestReduce_Notification(t *testing.T) {
	shown := Reduce(EmptyState(), ShowNotification{Message: "Saved"})
	assert.Equal(t, Notification{Show: true, Message: "Saved", Type: NotificationSuccess}, shown.Notification)

	errored := Reduce(EmptyState(), ShowNotification{Message: "Nope", Type: NotificationError})
	assert.Equal(t, NotificationError, errored.Notification.Type)

	hidden := Reduce(shown, HideNotification{})
	assert.False(t, hidden.Notification.Show)
	assert.Empty(t, hidden.Notification.Message)
}

func TestReduce_UnknownActionIsNoop(t *testing.T) {
	state := Reduce(EmptyState(), Add{Product: RawProduct{ID: "p1"}})
	assert.Equal(t, state, Reduce(state, Noop{Type: "SOMETHING_ELSE"}))
	assert.Equal(t, state, Reduce(state, nil))
}

func TestReduce_KeysStayUnique(t *testing.T) {
	colors := []string{"Red", "Blue", "Red", "", "Blue", "Green"}
	state := EmptyState()
	for i, c := range colors {
		state = Reduce(state, Add{Product: RawProduct{ID: "p1", SelectedColor: c, Quantity: i + 1}})
	}
	state = Reduce(state, UpdateCustomization{Key: "p1_Green", Fields: map[string]string{"selectedColor": "Red"}})
	state = Reduce(state, UpdateCustomization{Key: "p1", Fields: map[string]string{"selectedColor": "Blue"}})

	seen := map[string]bool{}
	for _, item := range state.Items {
		assert.False(t, seen[item.LineItemKey], "duplicate %s", item.LineItemKey)
		seen[item.LineItemKey] = true
	}
	assert.Equal(t, 1+2+3+4+5+6, ItemsCount(state.Items))
}

func keys(items []LineItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.LineItemKey)
	}
	return out
}
