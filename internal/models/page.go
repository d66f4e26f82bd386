package models

// Page is one offset/total window of a paginated collection.
//
// Offset+Fetched <= Total is expected but not guaranteed; a short final page is normal.
type Page[T any] struct {
	Offset int
	Total  int
	Items  []T
	// Fetched is the number of raw items the service returned for this window, counting items
	// dropped during conversion. Zero means len(Items).
	Fetched int
}

// Count is the number of positions the page covers in the collection.
func (p Page[T]) Count() int {
	if p.Fetched > 0 {
		return p.Fetched
	}
	return len(p.Items)
}

// End is the offset immediately after the last position covered by the page.
func (p Page[T]) End() int {
	return p.Offset + p.Count()
}

// Last reports whether no further page should be requested.
func (p Page[T]) Last() bool {
	return p.Count() == 0 || p.End() >= p.Total
}
