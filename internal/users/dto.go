package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/parkpass/parkpass-backend/pkg/db/models"
	"github.com/parkpass/parkpass-backend/pkg/enums"
)

// UserDTO is the transport shape for user records.
type UserDTO struct {
	ID            uuid.UUID      `json:"id"`
	Email         string         `json:"email"`
	DisplayName   string         `json:"display_name"`
	BaseRole      enums.BaseRole `json:"base_role"`
	AccessRoleID  *uuid.UUID     `json:"access_role_id,omitempty"`
	CreditBalance int64          `json:"credit_balance"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string `json:"email" validate:"required,email"`
	DisplayName  string `json:"display_name" validate:"required,min=1,max=128"`
	BaseRole     enums.BaseRole
	AccessRoleID *uuid.UUID
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:            u.ID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		BaseRole:      u.BaseRole,
		AccessRoleID:  u.AccessRoleID,
		CreditBalance: u.CreditBalance,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	baseRole := c.BaseRole
	if baseRole == "" {
		baseRole = enums.BaseRoleStandard
	}

	return &models.User{
		ID:           uuid.New(),
		Email:        c.Email,
		DisplayName:  c.DisplayName,
		BaseRole:     baseRole,
		AccessRoleID: c.AccessRoleID,
	}
}
