// internal/circulation/domain.go
package circulation

// Journal aggregate types.
const (
	aggregateItem   = "item"
	aggregateMember = "member"
)

// Journal event types.
const (
	EventItemRegistered   = "ItemRegistered"
	EventMemberRegistered = "MemberRegistered"
	EventItemBorrowed     = "ItemBorrowed"
	EventItemReturned     = "ItemReturned"
)

// ItemBorrowedEvent is journaled when a member borrows an item.
type ItemBorrowedEvent struct {
	ItemID   string `json:"item_id"`
	MemberID string `json:"member_id"`
}

// ItemReturnedEvent is journaled when a member returns an item.
type ItemReturnedEvent struct {
	ItemID   string `json:"item_id"`
	MemberID string `json:"member_id"`
}
