// internal/catalog/domain.go
package catalog

// Item represents a lendable catalog entry.
type Item struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Available bool   `json:"available"`
}

// NewItem creates an item that is available for borrowing.
func NewItem(id, title, author string) *Item {
	return &Item{
		ID:        id,
		Title:     title,
		Author:    author,
		Available: true,
	}
}

// MarkBorrowed flags the item as held. The caller has already checked availability.
func (i *Item) MarkBorrowed() {
	i.Available = false
}

// MarkReturned flags the item as available again.
func (i *Item) MarkReturned() {
	i.Available = true
}

// ItemRegisteredEvent is journaled when a new item joins the catalog.
type ItemRegisteredEvent struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
}
