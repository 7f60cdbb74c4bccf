package dto

type ProductFilters struct {
	IsActive    *bool
	LowStock    bool // quantity_on_hand <= reorder_level, reorder_level > 0
	SearchQuery string
	SortBy      string
	SortOrder   string
	Page        int
	PageSize    int
}
