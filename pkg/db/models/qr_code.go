package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/parkpass/parkpass-backend/pkg/enums"
)

// QRCode is an issued code identified by a gapless serial. Serial numbers are
// never reused except after a full administrative wipe.
type QRCode struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SerialNo    int64          `gorm:"column:serial_no;not null;uniqueIndex"`
	Serial      string         `gorm:"type:text;not null;uniqueIndex"`
	Status      enums.QRStatus `gorm:"column:status;type:text;not null;default:'unused'"`
	OwnerID     *uuid.UUID     `gorm:"column:owner_id;type:uuid"`
	ActivatedAt *time.Time     `gorm:"column:activated_at"`
	RevokedAt   *time.Time     `gorm:"column:revoked_at"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
