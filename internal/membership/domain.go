// internal/membership/domain.go
package membership

import (
	"encoding/json"
	"sort"
)

// DefaultMaxItems is the borrowing cap applied when none is given at registration.
const DefaultMaxItems = 3

// Member represents a library member and the items they currently hold.
type Member struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MaxItems int    `json:"max_items"`

	held map[string]struct{}
}

// NewMember creates a member holding nothing.
func NewMember(id, name string, maxItems int) *Member {
	return &Member{
		ID:       id,
		Name:     name,
		MaxItems: maxItems,
		held:     make(map[string]struct{}),
	}
}

// CanBorrow reports whether the member is below their cap.
func (m *Member) CanBorrow() bool {
	return len(m.held) < m.MaxItems
}

// AddHeldItem records itemID as held. Adding an id twice is a no-op.
func (m *Member) AddHeldItem(itemID string) {
	if m.held == nil {
		m.held = make(map[string]struct{})
	}
	m.held[itemID] = struct{}{}
}

// RemoveHeldItem drops itemID and reports whether it was held.
func (m *Member) RemoveHeldItem(itemID string) bool {
	if _, ok := m.held[itemID]; !ok {
		return false
	}
	delete(m.held, itemID)
	return true
}

// HasItem reports whether the member holds itemID.
func (m *Member) HasItem(itemID string) bool {
	_, ok := m.held[itemID]
	return ok
}

// HeldCount returns the number of items held.
func (m *Member) HeldCount() int {
	return len(m.held)
}

// HeldItems returns the held item ids in ascending order.
func (m *Member) HeldItems() []string {
	ids := make([]string, 0, len(m.held))
	for id := range m.held {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy; changes to the copy never reach the original.
func (m *Member) Clone() Member {
	c := *m
	c.held = make(map[string]struct{}, len(m.held))
	for id := range m.held {
		c.held[id] = struct{}{}
	}
	return c
}

// MarshalJSON includes the held item ids alongside the exported fields.
func (m Member) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string   `json:"id"`
		Name      string   `json:"name"`
		MaxItems  int      `json:"max_items"`
		HeldItems []string `json:"held_items"`
	}{
		ID:        m.ID,
		Name:      m.Name,
		MaxItems:  m.MaxItems,
		HeldItems: m.HeldItems(),
	})
}

// MemberRegisteredEvent is journaled when a member joins the roster.
type MemberRegisteredEvent struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MaxItems int    `json:"max_items"`
}
