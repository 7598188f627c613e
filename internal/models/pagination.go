package models

// Page is the pagination envelope used by list endpoints.
type Page[T any] struct {
	List       []T    `json:"list"`
	Total      int64  `json:"total"`
	TotalPages int64  `json:"totalPages"`
	Page       int64  `json:"page"`
	Limit      int64  `json:"limit"`
	NextPage   *int64 `json:"nextPage"`
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
	// MaxPage keeps Skip far from overflowing int64.
	MaxPage = 1_000_000
)

// NormalizePage clamps page and limit to sane values.
func NormalizePage(page, limit int64) (int64, int64) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// Skip is the number of items before the page. Arguments are normalized first so
// the result is never negative.
func Skip(page, limit int64) int64 {
	page, limit = NormalizePage(page, limit)
	return (page - 1) * limit
}

func NewPage[T any](list []T, total, page, limit int64) Page[T] {
	if list == nil {
		list = []T{}
	}
	totalPages := int64(0)
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	p := Page[T]{List: list, Total: total, TotalPages: totalPages, Page: page, Limit: limit}
	if page < totalPages {
		next := page + 1
		p.NextPage = &next
	}
	return p
}
