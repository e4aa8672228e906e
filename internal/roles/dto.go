package roles

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/parkpass/parkpass-backend/pkg/db/types"
)

// RoleDTO is the transport shape for an access role and its permissions.
type RoleDTO struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	IsSystem    bool            `json:"is_system"`
	Permissions []PermissionDTO `json:"permissions"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// PermissionDTO describes the actions a role may take on one resource.
type PermissionDTO struct {
	Resource string   `json:"resource"`
	Actions  []string `json:"actions"`
}

// CreateRoleInput holds the data required to create a role.
type CreateRoleInput struct {
	Name        string `json:"name" validate:"required,min=2,max=64"`
	Description string `json:"description" validate:"max=256"`
	IsSystem    bool   `json:"-"`
}

// GrantPermissionInput attaches actions on a resource to an existing role.
// Granting twice for the same resource replaces the action set.
type GrantPermissionInput struct {
	RoleID   uuid.UUID `json:"role_id" validate:"required"`
	Resource string    `json:"resource" validate:"required,min=1,max=128"`
	Actions  []string  `json:"actions" validate:"required,min=1,dive,required"`
}

func normalizedActions(actions []string) dbtypes.StringSet {
	return dbtypes.StringSet(actions).Normalized()
}
