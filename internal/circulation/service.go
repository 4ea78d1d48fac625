// internal/circulation/service.go
package circulation

import (
	"context"

	"lendingregistry/internal/catalog"
	"lendingregistry/internal/journal"
	"lendingregistry/internal/membership"
)

// Registry owns the catalog and the roster and is the only place either changes.
// Lookups return copies, so holding a returned value never exposes registry state.
type Registry interface {
	RegisterItem(ctx context.Context, id, title, author string) (catalog.Item, error)
	RegisterMember(ctx context.Context, id, name string, maxItems int) (membership.Member, error)
	FindItem(ctx context.Context, id string) (catalog.Item, bool)
	FindMember(ctx context.Context, id string) (membership.Member, bool)
	ListItems(ctx context.Context) []catalog.Item
	ListMembers(ctx context.Context) []membership.Member
	Borrow(ctx context.Context, memberID, itemID string) error
	Return(ctx context.Context, memberID, itemID string) error
	AvailableCount(ctx context.Context) int
	History(ctx context.Context, itemID string) ([]journal.Event, error)
	Events(ctx context.Context, fromSequence int64, batchSize int) []journal.Event
	CheckInvariants(ctx context.Context) error
}
