package types

import "time"

// BookEventType names a change in the book catalog.
type BookEventType string

const (
	BookCreated BookEventType = "book.created"
	BookUpdated BookEventType = "book.updated"
	BookDeleted BookEventType = "book.deleted"
)

// BookEvent is published to the message broker after a successful write.
type BookEvent struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Type is the kind of change.
	Type BookEventType `json:"type"`

	// BookID is the identifier of the affected book.
	BookID string `json:"book_id"`

	// UserID is the identifier of the caller who performed the change.
	UserID string `json:"user_id"`

	// Title is the title of the book after the change, or before it for
	// deletions.
	Title string `json:"title"`

	// At is the time the change was committed.
	At time.Time `json:"at"`
}
