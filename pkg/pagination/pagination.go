package pagination

// Default and bound values for page sizes.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Window is the slice of a result set that one page covers.
type Window struct {
	Page    int
	PerPage int
	Offset  int
	// Limit is the number of rows to fetch; zero when the page lies past
	// the end of the result set.
	Limit int
}

// NewWindow computes the window for page over a result set of total rows.
// Page and perPage are expected to be normalized (page >= 1, perPage >= 1).
func NewWindow(page, perPage, total int) Window {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	w := Window{Page: page, PerPage: perPage, Offset: (page - 1) * perPage}
	if remaining := total - w.Offset; remaining > 0 {
		w.Limit = min(perPage, remaining)
	}
	return w
}

// Empty reports whether no rows need to be fetched for the window.
func (w Window) Empty() bool {
	return w.Limit <= 0
}

// LastPage returns ceil(total/perPage); zero for an empty result set.
func LastPage(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

// Bounds returns the 1-based positions of the first and last item on a page
// holding count items starting at offset. Both are zero when count is zero.
func Bounds(offset, count int) (from, to int) {
	if count <= 0 {
		return 0, 0
	}
	return offset + 1, offset + count
}
