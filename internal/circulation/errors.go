// internal/circulation/errors.go
package circulation

import "errors"

// Rejections are returned wrapped with the offending ids; match them with errors.Is.
var (
	// ErrNotFound is returned when a referenced item or member id is not registered.
	ErrNotFound = errors.New("not found")

	// ErrItemUnavailable is returned when borrowing an item someone already holds.
	ErrItemUnavailable = errors.New("item unavailable")

	// ErrBorrowLimitExceeded is returned when the member already holds MaxItems items.
	ErrBorrowLimitExceeded = errors.New("borrow limit exceeded")

	// ErrNotBorrowedByMember is returned when returning an item the member does not hold.
	ErrNotBorrowedByMember = errors.New("item not borrowed by member")

	// ErrDuplicateID is returned when registering an id that already exists.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrInvalidArgument is returned for empty ids or a negative borrowing cap.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvariantViolated is reported by CheckInvariants.
	ErrInvariantViolated = errors.New("invariant violated")
)

// rejectionReason names a rejection for metrics and spans.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrItemUnavailable):
		return "item_unavailable"
	case errors.Is(err, ErrBorrowLimitExceeded):
		return "borrow_limit_exceeded"
	case errors.Is(err, ErrNotBorrowedByMember):
		return "not_borrowed_by_member"
	case errors.Is(err, ErrDuplicateID):
		return "duplicate_id"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "internal"
	}
}
