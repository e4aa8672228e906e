package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/parkpass/parkpass-backend/pkg/enums"
)

// User represents the canonical identity entity. Identities are verified by an
// external authentication layer; this core only consumes them.
type User struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email         string         `gorm:"type:text;not null;uniqueIndex"`
	DisplayName   string         `gorm:"column:display_name;not null"`
	BaseRole      enums.BaseRole `gorm:"column:base_role;type:text;not null;default:'standard'"`
	AccessRoleID  *uuid.UUID     `gorm:"column:access_role_id;type:uuid;index"`
	CreditBalance int64          `gorm:"column:credit_balance;not null;default:0"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// IsOrphan reports whether the user claims elevation without a concrete role
// binding. Orphans are denied everything until reconciliation links them.
func (u User) IsOrphan() bool {
	return u.BaseRole == enums.BaseRoleElevated && u.AccessRoleID == nil
}
