package lending

import (
	"time"

	"github.com/google/uuid"
)

// CopyStatus is the availability state of a physical copy.
type CopyStatus string

const (
	// CopyStatusFree means the copy sits on the shelf and can be reserved.
	CopyStatusFree CopyStatus = "free"

	// CopyStatusLoaned means the copy is held by a borrower; exactly one
	// active loan references it.
	CopyStatusLoaned CopyStatus = "loaned"
)

// Copy represents one physical instance of a catalog item.
//
// The lending cycle is strictly free -> loaned -> free. A retired copy is
// soft-removed from circulation: it can no longer be reserved but stays
// referenced by its historical loans.
type Copy struct {
	ID            uuid.UUID
	BookID        uuid.UUID
	ShelfLocation string
	Status        CopyStatus
	Retired       bool
	CreatedAt     time.Time
}

// BuildCopy creates a new free copy for the given catalog item.
func BuildCopy(bookID uuid.UUID, shelfLocation string, createdAt time.Time) Copy {
	return Copy{
		ID:            uuid.New(),
		BookID:        bookID,
		ShelfLocation: shelfLocation,
		Status:        CopyStatusFree,
		CreatedAt:     createdAt.UTC(),
	}
}
