package ledger

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parkpass/parkpass-backend/pkg/db/models"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// historyCursor pins a position in a user's entry history. Listing walks
// newest to oldest, so the cursor records the last entry served and the next
// page resumes strictly past it. The id breaks ties between entries written
// in the same instant.
type historyCursor struct {
	CreatedAt time.Time `json:"t"`
	EntryID   uuid.UUID `json:"e"`
}

func encodeHistoryCursor(entry models.CreditEntry) string {
	payload, _ := json.Marshal(historyCursor{
		CreatedAt: entry.CreatedAt.UTC(),
		EntryID:   entry.ID,
	})
	return base64.RawURLEncoding.EncodeToString(payload)
}

// decodeHistoryCursor returns nil for a blank cursor (first page) and an
// error for anything that did not come out of encodeHistoryCursor.
func decodeHistoryCursor(raw string) (*historyCursor, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	payload, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding cursor: %w", err)
	}
	var cursor historyCursor
	if err := json.Unmarshal(payload, &cursor); err != nil {
		return nil, fmt.Errorf("unmarshaling cursor: %w", err)
	}
	if cursor.EntryID == uuid.Nil || cursor.CreatedAt.IsZero() {
		return nil, fmt.Errorf("cursor is incomplete")
	}
	return &cursor, nil
}

func normalizePageSize(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
