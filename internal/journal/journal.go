// internal/journal/journal.go

// Package journal keeps an in-memory, append-only history of registry events.
// It is process-local and lost on restart.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrInvalidVersion      = errors.New("invalid version number")
)

// Event represents a domain event with its position in the journal.
type Event struct {
	ID            uuid.UUID       `json:"id"`
	Sequence      int64           `json:"sequence"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	EventData     json.RawMessage `json:"event_data"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewEvent builds an unsaved event carrying data as JSON.
func NewEvent(eventType string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return Event{EventType: eventType, EventData: raw}, nil
}

type aggregateKey struct {
	typ string
	id  string
}

// Journal stores events ordered globally by sequence and per aggregate by version.
type Journal struct {
	mu          sync.RWMutex
	events      []Event
	byAggregate map[aggregateKey][]int
	tracer      trace.Tracer
	now         func() time.Time
}

// Option configures a Journal.
type Option func(*Journal)

// WithTracerProvider sets where journal spans are reported.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(j *Journal) {
		if tp != nil {
			j.tracer = tp.Tracer("lendingregistry/journal")
		}
	}
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) {
		if now != nil {
			j.now = now
		}
	}
}

// New creates an empty journal.
func New(opts ...Option) *Journal {
	j := &Journal{
		byAggregate: make(map[aggregateKey][]int),
		tracer:      otel.Tracer("lendingregistry/journal"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Append atomically adds events to an aggregate with optimistic concurrency control.
// expectedVersion must equal the aggregate's current version.
func (j *Journal) Append(ctx context.Context, aggregateID, aggregateType string, expectedVersion int, events []Event) error {
	_, span := j.tracer.Start(ctx, "journal.append",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.String("aggregate.type", aggregateType),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	if expectedVersion < 0 {
		return ErrInvalidVersion
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	key := aggregateKey{typ: aggregateType, id: aggregateID}
	currentVersion := len(j.byAggregate[key])
	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return ErrConcurrencyConflict
	}

	createdAt := j.now().UTC()
	for i, event := range events {
		event = event.clone()
		event.ID = uuid.New()
		event.Sequence = int64(len(j.events) + 1)
		event.AggregateID = aggregateID
		event.AggregateType = aggregateType
		event.Version = expectedVersion + i + 1
		event.CreatedAt = createdAt

		j.byAggregate[key] = append(j.byAggregate[key], len(j.events))
		j.events = append(j.events, event)

		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.Int64("event.sequence", event.Sequence),
			attribute.Int("event.version", event.Version),
			attribute.String("event.type", event.EventType),
		))
	}

	return nil
}

// Load returns an aggregate's events with fromVersion <= version <= toVersion.
// A toVersion of zero means no upper bound.
func (j *Journal) Load(ctx context.Context, aggregateID, aggregateType string, fromVersion, toVersion int) ([]Event, error) {
	_, span := j.tracer.Start(ctx, "journal.load",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.Int("from.version", fromVersion),
			attribute.Int("to.version", toVersion),
		),
	)
	defer span.End()

	if fromVersion < 0 || toVersion < 0 {
		return nil, ErrInvalidVersion
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	var events []Event
	for _, idx := range j.byAggregate[aggregateKey{typ: aggregateType, id: aggregateID}] {
		event := j.events[idx]
		if event.Version < fromVersion {
			continue
		}
		if toVersion > 0 && event.Version > toVersion {
			break
		}
		events = append(events, event.clone())
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

// clone copies the payload bytes so callers cannot rewrite stored history.
func (e Event) clone() Event {
	e.EventData = append(json.RawMessage(nil), e.EventData...)
	return e
}

// CurrentVersion returns the latest version of an aggregate, zero if it has no events.
func (j *Journal) CurrentVersion(aggregateID, aggregateType string) int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.byAggregate[aggregateKey{typ: aggregateType, id: aggregateID}])
}

// Stream returns up to batchSize events with a sequence greater than fromSequence.
func (j *Journal) Stream(ctx context.Context, fromSequence int64, batchSize int) []Event {
	_, span := j.tracer.Start(ctx, "journal.stream",
		trace.WithAttributes(
			attribute.Int64("from.sequence", fromSequence),
			attribute.Int("batch.size", batchSize),
		),
	)
	defer span.End()

	j.mu.RLock()
	defer j.mu.RUnlock()

	if fromSequence < 0 {
		fromSequence = 0
	}
	if fromSequence >= int64(len(j.events)) || batchSize <= 0 {
		return nil
	}
	end := min(int(fromSequence)+batchSize, len(j.events))
	events := make([]Event, 0, end-int(fromSequence))
	for _, event := range j.events[fromSequence:end] {
		events = append(events, event.clone())
	}

	span.SetAttributes(attribute.Int("events.streamed", len(events)))
	return events
}
