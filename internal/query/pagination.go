package query

// Pagination is the wire-shape pagination block attached to every listing.
type Pagination struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalItems   int  `json:"totalItems"`
	ItemsPerPage int  `json:"itemsPerPage"`
	HasNextPage  bool `json:"hasNextPage"`
	HasPrevPage  bool `json:"hasPrevPage"`
}

// Paginate derives the pagination block from a page request and the exact
// total. A page past the end yields an empty item list upstream but keeps
// the true totals here, with HasNextPage false.
func Paginate(p Page, total int) Pagination {
	totalPages := (total + p.Limit - 1) / p.Limit
	return Pagination{
		CurrentPage:  p.Number,
		TotalPages:   totalPages,
		TotalItems:   total,
		ItemsPerPage: p.Limit,
		HasNextPage:  p.Number < totalPages,
		HasPrevPage:  p.Number > 1,
	}
}
