package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewItemIsAvailable(t *testing.T) {
	item := NewItem("B001", "Clean Code", "Robert Martin")

	assert.Equal(t, "B001", item.ID)
	assert.Equal(t, "Clean Code", item.Title)
	assert.Equal(t, "Robert Martin", item.Author)
	assert.True(t, item.Available)
}

func TestMarkBorrowedAndReturned(t *testing.T) {
	item := NewItem("B001", "Clean Code", "Robert Martin")

	item.MarkBorrowed()
	assert.False(t, item.Available)

	// Unconditional: a second call keeps the item unavailable.
	item.MarkBorrowed()
	assert.False(t, item.Available)

	item.MarkReturned()
	assert.True(t, item.Available)
}
