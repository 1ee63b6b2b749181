package model

import "fmt"

// ListKind tags a per-user recipe membership set. Favorites and the shopping
// cart share one storage table and one service, distinguished by this tag.
type ListKind string

const (
	ListFavorite     ListKind = "favorite"
	ListShoppingCart ListKind = "shopping_cart"
)

// Valid reports whether k is a known list kind.
func (k ListKind) Valid() bool {
	switch k {
	case ListFavorite, ListShoppingCart:
		return true
	}
	return false
}

// Label is the human-readable name used in error messages.
func (k ListKind) Label() string {
	switch k {
	case ListFavorite:
		return "favorites"
	case ListShoppingCart:
		return "shopping cart"
	}
	return fmt.Sprintf("list %q", string(k))
}

// ShoppingListItem is one aggregated line of the shopping list.
type ShoppingListItem struct {
	Name            string
	MeasurementUnit string
	Amount          int64
}
