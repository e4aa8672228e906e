package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/parkpass/parkpass-backend/pkg/db/models"
	"github.com/parkpass/parkpass-backend/pkg/enums"
)

// AppendEntryInput captures the immutable data a ledger entry requires.
type AppendEntryInput struct {
	UserID uuid.UUID             `json:"user_id" validate:"required"`
	Amount int64                 `json:"amount"`
	Reason string                `json:"reason" validate:"required,min=1,max=256"`
	Type   enums.CreditEntryType `json:"type"`
}

// EntryDTO is the transport shape for a ledger entry.
type EntryDTO struct {
	ID        uuid.UUID             `json:"id"`
	UserID    uuid.UUID             `json:"user_id"`
	Amount    int64                 `json:"amount"`
	Reason    string                `json:"reason"`
	Type      enums.CreditEntryType `json:"type"`
	CreatedAt time.Time             `json:"created_at"`
}

// ListEntriesInput selects one page of a user's history. A blank Cursor
// starts from the newest entry; Limit is clamped to the service's page sizes.
type ListEntriesInput struct {
	Limit  int    `json:"limit"`
	Cursor string `json:"cursor"`
}

// EntryPage is one page of entries plus the cursor for the next one. An empty
// NextCursor means the listing is exhausted.
type EntryPage struct {
	Entries    []EntryDTO `json:"entries"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// RecomputeResult reports a balance rebuild from the entry history.
type RecomputeResult struct {
	Balance  int64 `json:"balance"`
	Previous int64 `json:"previous"`
	Drift    int64 `json:"drift"`
}

func entryFromModel(entry models.CreditEntry) EntryDTO {
	return EntryDTO{
		ID:        entry.ID,
		UserID:    entry.UserID,
		Amount:    entry.Amount,
		Reason:    entry.Reason,
		Type:      entry.Type,
		CreatedAt: entry.CreatedAt,
	}
}
