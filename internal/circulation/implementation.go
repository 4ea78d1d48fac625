// internal/circulation/implementation.go
package circulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"lendingregistry/internal/catalog"
	"lendingregistry/internal/journal"
	"lendingregistry/internal/membership"
	"lendingregistry/internal/notify"
)

const instrumentationName = "lendingregistry/circulation"

// registry implements the Registry interface.
//
// mu guards both maps together: availability and holdership are two views of
// one fact and must change under the same critical section.
type registry struct {
	mu      sync.RWMutex
	items   map[string]*catalog.Item
	members map[string]*membership.Member

	notifier        notify.Channel
	journal         *journal.Journal
	defaultMaxItems int

	logger *slog.Logger
	tracer trace.Tracer
	meter  metric.Meter

	borrows    metric.Int64Counter
	returns    metric.Int64Counter
	rejections metric.Int64Counter
}

// NewRegistry creates an empty registry reporting transitions to notifier.
// The notifier is owned by the caller and must stay usable for the registry's lifetime.
func NewRegistry(notifier notify.Channel, opts ...Option) Registry {
	if notifier == nil {
		notifier = notify.Discard
	}

	r := &registry{
		items:           make(map[string]*catalog.Item),
		members:         make(map[string]*membership.Member),
		notifier:        notifier,
		defaultMaxItems: membership.DefaultMaxItems,
		logger:          slog.Default(),
		tracer:          otel.Tracer(instrumentationName),
		meter:           otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.journal == nil {
		r.journal = journal.New()
	}

	r.borrows = r.counter("circulation.borrows", "Successful borrows")
	r.returns = r.counter("circulation.returns", "Successful returns")
	r.rejections = r.counter("circulation.rejections", "Rejected registry operations by reason")

	return r
}

func (r *registry) counter(name, description string) metric.Int64Counter {
	c, err := r.meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		r.logger.Warn("failed to create counter, using no-op", slog.String("counter", name), slog.String("error", err.Error()))
		c, _ = noop.Meter{}.Int64Counter(name)
	}
	return c
}

// RegisterItem adds a new available item to the catalog.
func (r *registry) RegisterItem(ctx context.Context, id, title, author string) (catalog.Item, error) {
	ctx, span := r.tracer.Start(ctx, "circulation.register_item",
		trace.WithAttributes(attribute.String("item.id", id)),
	)
	defer span.End()

	if id == "" {
		err := fmt.Errorf("%w: item id is empty", ErrInvalidArgument)
		r.reject(ctx, span, "register_item", err)
		return catalog.Item{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[id]; exists {
		err := fmt.Errorf("%w: item %s", ErrDuplicateID, id)
		r.reject(ctx, span, "register_item", err)
		return catalog.Item{}, err
	}

	item := catalog.NewItem(id, title, author)
	eventData := catalog.ItemRegisteredEvent{ID: id, Title: title, Author: author}
	if err := r.record(ctx, id, aggregateItem, EventItemRegistered, eventData); err != nil {
		r.reject(ctx, span, "register_item", err)
		return catalog.Item{}, err
	}
	r.items[id] = item

	r.logger.LogAttrs(ctx, slog.LevelDebug, "item registered", slog.String("item_id", id))
	return *item, nil
}

// RegisterMember adds a member to the roster. A maxItems of zero applies the default cap.
func (r *registry) RegisterMember(ctx context.Context, id, name string, maxItems int) (membership.Member, error) {
	ctx, span := r.tracer.Start(ctx, "circulation.register_member",
		trace.WithAttributes(attribute.String("member.id", id)),
	)
	defer span.End()

	if maxItems == 0 {
		maxItems = r.defaultMaxItems
	}
	if id == "" || maxItems < 0 {
		err := fmt.Errorf("%w: member id %q, max items %d", ErrInvalidArgument, id, maxItems)
		r.reject(ctx, span, "register_member", err)
		return membership.Member{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[id]; exists {
		err := fmt.Errorf("%w: member %s", ErrDuplicateID, id)
		r.reject(ctx, span, "register_member", err)
		return membership.Member{}, err
	}

	member := membership.NewMember(id, name, maxItems)
	eventData := membership.MemberRegisteredEvent{ID: id, Name: name, MaxItems: maxItems}
	if err := r.record(ctx, id, aggregateMember, EventMemberRegistered, eventData); err != nil {
		r.reject(ctx, span, "register_member", err)
		return membership.Member{}, err
	}
	r.members[id] = member

	r.logger.LogAttrs(ctx, slog.LevelDebug, "member registered",
		slog.String("member_id", id),
		slog.Int("max_items", maxItems),
	)
	return member.Clone(), nil
}

// FindItem returns a copy of the item; absence is not an error.
func (r *registry) FindItem(ctx context.Context, id string) (catalog.Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return catalog.Item{}, false
	}
	return *item, true
}

// FindMember returns a copy of the member; absence is not an error.
func (r *registry) FindMember(ctx context.Context, id string) (membership.Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	member, ok := r.members[id]
	if !ok {
		return membership.Member{}, false
	}
	return member.Clone(), true
}

// ListItems returns copies of all items ordered by id.
func (r *registry) ListItems(ctx context.Context) []catalog.Item {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]catalog.Item, 0, len(r.items))
	for _, item := range r.items {
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// ListMembers returns copies of all members ordered by id.
func (r *registry) ListMembers(ctx context.Context) []membership.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]membership.Member, 0, len(r.members))
	for _, member := range r.members {
		members = append(members, member.Clone())
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members
}

// Borrow hands itemID to memberID and notifies the member.
func (r *registry) Borrow(ctx context.Context, memberID, itemID string) error {
	ctx, span := r.tracer.Start(ctx, "circulation.borrow",
		trace.WithAttributes(
			attribute.String("member.id", memberID),
			attribute.String("item.id", itemID),
		),
	)
	defer span.End()

	title, err := r.borrow(ctx, memberID, itemID)
	if err != nil {
		r.reject(ctx, span, "borrow", err)
		return err
	}

	r.borrows.Add(ctx, 1)
	r.logger.LogAttrs(ctx, slog.LevelInfo, "item borrowed",
		slog.String("member_id", memberID),
		slog.String("item_id", itemID),
	)
	r.notifier.Notify(ctx, memberID, notify.BorrowedMessage(title))
	return nil
}

func (r *registry) borrow(ctx context.Context, memberID, itemID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	member, item, err := r.resolve(memberID, itemID)
	if err != nil {
		return "", err
	}
	if !item.Available {
		return "", fmt.Errorf("%w: item %s", ErrItemUnavailable, itemID)
	}
	if !member.CanBorrow() {
		return "", fmt.Errorf("%w: member %s holds %d of %d", ErrBorrowLimitExceeded, memberID, member.HeldCount(), member.MaxItems)
	}

	eventData := ItemBorrowedEvent{ItemID: itemID, MemberID: memberID}
	if err := r.record(ctx, itemID, aggregateItem, EventItemBorrowed, eventData); err != nil {
		return "", err
	}

	item.MarkBorrowed()
	member.AddHeldItem(itemID)
	return item.Title, nil
}

// Return takes itemID back from memberID and notifies the member.
func (r *registry) Return(ctx context.Context, memberID, itemID string) error {
	ctx, span := r.tracer.Start(ctx, "circulation.return",
		trace.WithAttributes(
			attribute.String("member.id", memberID),
			attribute.String("item.id", itemID),
		),
	)
	defer span.End()

	title, err := r.giveBack(ctx, memberID, itemID)
	if err != nil {
		r.reject(ctx, span, "return", err)
		return err
	}

	r.returns.Add(ctx, 1)
	r.logger.LogAttrs(ctx, slog.LevelInfo, "item returned",
		slog.String("member_id", memberID),
		slog.String("item_id", itemID),
	)
	r.notifier.Notify(ctx, memberID, notify.ReturnedMessage(title))
	return nil
}

func (r *registry) giveBack(ctx context.Context, memberID, itemID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	member, item, err := r.resolve(memberID, itemID)
	if err != nil {
		return "", err
	}
	if !member.HasItem(itemID) {
		return "", fmt.Errorf("%w: member %s, item %s", ErrNotBorrowedByMember, memberID, itemID)
	}

	eventData := ItemReturnedEvent{ItemID: itemID, MemberID: memberID}
	if err := r.record(ctx, itemID, aggregateItem, EventItemReturned, eventData); err != nil {
		return "", err
	}

	item.MarkReturned()
	member.RemoveHeldItem(itemID)
	return item.Title, nil
}

// AvailableCount counts items nobody holds.
func (r *registry) AvailableCount(ctx context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, item := range r.items {
		if item.Available {
			count++
		}
	}
	return count
}

// History returns the journaled events of an item, oldest first.
func (r *registry) History(ctx context.Context, itemID string) ([]journal.Event, error) {
	r.mu.RLock()
	_, ok := r.items[itemID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, itemID)
	}
	return r.journal.Load(ctx, itemID, aggregateItem, 0, 0)
}

// Events returns up to batchSize journaled events of every aggregate with a
// sequence greater than fromSequence, in append order.
func (r *registry) Events(ctx context.Context, fromSequence int64, batchSize int) []journal.Event {
	return r.journal.Stream(ctx, fromSequence, batchSize)
}

// CheckInvariants verifies that every unavailable item has exactly one holder,
// every held item is unavailable, and no member exceeds their cap.
func (r *registry) CheckInvariants(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var violations []error
	holders := make(map[string]string, len(r.items))

	for _, member := range r.members {
		if member.HeldCount() > member.MaxItems {
			violations = append(violations, fmt.Errorf("%w: member %s holds %d of %d",
				ErrInvariantViolated, member.ID, member.HeldCount(), member.MaxItems))
		}
		for _, itemID := range member.HeldItems() {
			if other, held := holders[itemID]; held {
				violations = append(violations, fmt.Errorf("%w: item %s held by %s and %s",
					ErrInvariantViolated, itemID, other, member.ID))
				continue
			}
			holders[itemID] = member.ID

			item, ok := r.items[itemID]
			switch {
			case !ok:
				violations = append(violations, fmt.Errorf("%w: member %s holds unknown item %s",
					ErrInvariantViolated, member.ID, itemID))
			case item.Available:
				violations = append(violations, fmt.Errorf("%w: item %s is available but held by %s",
					ErrInvariantViolated, itemID, member.ID))
			}
		}
	}

	for id, item := range r.items {
		if _, held := holders[id]; !item.Available && !held {
			violations = append(violations, fmt.Errorf("%w: item %s is unavailable but has no holder",
				ErrInvariantViolated, id))
		}
	}

	return errors.Join(violations...)
}

// resolve looks up both sides of a loan. Callers hold mu.
func (r *registry) resolve(memberID, itemID string) (*membership.Member, *catalog.Item, error) {
	member, ok := r.members[memberID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: member %s", ErrNotFound, memberID)
	}
	item, ok := r.items[itemID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: item %s", ErrNotFound, itemID)
	}
	return member, item, nil
}

// record appends one event to the journal. Callers hold mu, so the expected
// version read here cannot go stale before the append.
func (r *registry) record(ctx context.Context, aggregateID, aggregateType, eventType string, data any) error {
	event, err := journal.NewEvent(eventType, data)
	if err != nil {
		return err
	}
	version := r.journal.CurrentVersion(aggregateID, aggregateType)
	if err := r.journal.Append(ctx, aggregateID, aggregateType, version, []journal.Event{event}); err != nil {
		return fmt.Errorf("append %s event: %w", eventType, err)
	}
	return nil
}

func (r *registry) reject(ctx context.Context, span trace.Span, op string, err error) {
	reason := rejectionReason(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	span.SetAttributes(attribute.String("rejection.reason", reason))

	r.rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("reason", reason),
	))
	r.logger.LogAttrs(ctx, slog.LevelDebug, "operation rejected",
		slog.String("operation", op),
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)
}
