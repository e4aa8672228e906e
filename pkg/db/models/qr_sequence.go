package models

import "time"

// QRSequenceID is the primary key of the single allocator row.
const QRSequenceID = 1

// QRSequence is the authoritative serial counter. All allocations increment
// LastSerial inside a transaction holding this row's lock; a full wipe resets
// it to zero.
type QRSequence struct {
	ID         int64     `gorm:"primaryKey"`
	LastSerial int64     `gorm:"column:last_serial;not null;default:0"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
