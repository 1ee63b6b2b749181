package model

// Page is one page of a paginated collection together with the total count
// of the unpaginated collection.
type Page[T any] struct {
	Items []T
	Total int
}
