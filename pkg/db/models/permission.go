package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/parkpass/parkpass-backend/pkg/db/types"
)

// Permission grants a set of actions on one resource. Each permission belongs
// to exactly one access role; (role, resource) pairs are unique.
type Permission struct {
	ID           uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AccessRoleID uuid.UUID          `gorm:"column:access_role_id;type:uuid;not null;uniqueIndex:uq_permissions_role_resource"`
	Resource     string             `gorm:"type:text;not null;uniqueIndex:uq_permissions_role_resource"`
	Actions      dbtypes.StringSet  `gorm:"type:text[];not null"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
