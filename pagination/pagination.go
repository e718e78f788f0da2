// Package pagination slices ordered sequences into fixed-size pages.
package pagination

// TotalPages returns ceil(n/size). An empty sequence has zero pages.
func TotalPages(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// Slice returns items[(page-1)*size : page*size] clipped to the sequence.
// Out-of-range pages yield an empty slice.
func Slice[T any](items []T, size, page int) []T {
	if size <= 0 || page < 1 {
		return []T{}
	}
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// Cursor is a 1-based page position with a fixed page size.
type Cursor struct {
	Page int
	Size int
}

func NewCursor(size int) Cursor {
	return Cursor{Page: 1, Size: size}
}

func (c *Cursor) HasPrev() bool {
	return c.Page > 1
}

func (c *Cursor) HasNext(total int) bool {
	return c.Page < TotalPages(total, c.Size)
}

// Prev moves back one page. It is a no-op on page 1.
func (c *Cursor) Prev() bool {
	if !c.HasPrev() {
		return false
	}
	c.Page--
	return true
}

// Next moves forward one page. It is a no-op on the last page.
func (c *Cursor) Next(total int) bool {
	if !c.HasNext(total) {
		return false
	}
	c.Page++
	return true
}

func (c *Cursor) Reset() {
	c.Page = 1
}

// View returns the page of items the cursor points at.
func View[T any](c Cursor, items []T) []T {
	return Slice(items, c.Size, c.Page)
}
