package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/parkpass/parkpass-backend/pkg/db/models"
)

func TestHistoryCursorRoundTrip(t *testing.T) {
	entry := models.CreditEntry{
		ID:        uuid.New(),
		CreatedAt: time.Date(2025, 3, 1, 12, 30, 45, 123456789, time.UTC),
	}

	raw := encodeHistoryCursor(entry)
	if raw == "" {
		t.Fatal("expected non-empty cursor")
	}

	cursor, err := decodeHistoryCursor(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cursor.EntryID != entry.ID {
		t.Fatalf("expected entry id %s, got %s", entry.ID, cursor.EntryID)
	}
	if !cursor.CreatedAt.Equal(entry.CreatedAt) {
		t.Fatalf("expected timestamp %s, got %s", entry.CreatedAt, cursor.CreatedAt)
	}
}

func TestDecodeHistoryCursorBlankMeansFirstPage(t *testing.T) {
	for _, raw := range []string{"", "   "} {
		cursor, err := decodeHistoryCursor(raw)
		if err != nil {
			t.Fatalf("blank cursor: %v", err)
		}
		if cursor != nil {
			t.Fatalf("expected nil cursor for %q, got %+v", raw, cursor)
		}
	}
}

func TestDecodeHistoryCursorRejectsGarbage(t *testing.T) {
	cases := map[string]string{
		"not base64":      "%%%",
		"not json":        "bm90LWpzb24",
		"missing entry":   "eyJ0IjoiMjAyNS0wMy0wMVQxMjowMDowMFoifQ",
		"unparsable time": "eyJ0IjoiIiwiZSI6IiJ9",
	}
	for name, raw := range cases {
		if _, err := decodeHistoryCursor(raw); err == nil {
			t.Fatalf("expected error for %s cursor %q", name, raw)
		}
	}
}

func TestNormalizePageSize(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, defaultPageSize},
		{-5, defaultPageSize},
		{10, 10},
		{maxPageSize, maxPageSize},
		{maxPageSize + 1, maxPageSize},
	}
	for _, tc := range cases {
		if got := normalizePageSize(tc.in); got != tc.want {
			t.Fatalf("normalizePageSize(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
