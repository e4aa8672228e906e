package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/parkpass/parkpass-backend/pkg/enums"
)

// CreditEntry records an immutable signed credit movement for a user. Entries
// are never edited or deleted; reversals are new offsetting entries.
type CreditEntry struct {
	ID        uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Amount    int64                 `gorm:"column:amount;not null"`
	Reason    string                `gorm:"type:text;not null"`
	Type      enums.CreditEntryType `gorm:"column:type;type:text;not null"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
}
