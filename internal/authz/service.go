package authz

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/parkpass/parkpass-backend/pkg/db"
	"github.com/parkpass/parkpass-backend/pkg/db/models"
	pkgerrors "github.com/parkpass/parkpass-backend/pkg/errors"
	"github.com/parkpass/parkpass-backend/pkg/metrics"
)

// Decision is the outcome of an authorization check. Denials always carry a
// reason for operators; callers must not leak it to end users.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

const (
	reasonGranted       = "granted"
	reasonNoBinding     = "no role binding"
	reasonOrphaned      = "orphaned elevation"
	reasonNoPermission  = "no permission for resource"
	reasonActionMissing = "action not granted"
)

// UserFinder loads user records for authorization checks.
type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// PermissionFinder resolves the permission bound to (role, resource).
type PermissionFinder interface {
	FindPermission(ctx context.Context, roleID uuid.UUID, resource string) (*models.Permission, error)
}

// Service answers allow/deny questions. Everything is denied unless an access
// role explicitly grants the action on the resource.
type Service interface {
	Authorize(ctx context.Context, userID uuid.UUID, resource, action string) (Decision, error)
}

type service struct {
	users       UserFinder
	permissions PermissionFinder
	core        *metrics.CoreMetrics
}

// NewService wires the authorization service.
func NewService(users UserFinder, permissions PermissionFinder, core *metrics.CoreMetrics) (Service, error) {
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user finder required")
	}
	if permissions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "permission finder required")
	}
	return &service{users: users, permissions: permissions, core: core}, nil
}

func (s *service) Authorize(ctx context.Context, userID uuid.UUID, resource, action string) (Decision, error) {
	resource = strings.TrimSpace(resource)
	action = strings.TrimSpace(action)
	if userID == uuid.Nil {
		return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if resource == "" {
		return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, "resource is required")
	}
	if action == "" {
		return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, "action is required")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return Decision{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "user not found")
		}
		return Decision{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}

	if user.AccessRoleID == nil {
		if user.IsOrphan() {
			return s.deny(reasonOrphaned), nil
		}
		return s.deny(reasonNoBinding), nil
	}

	permission, err := s.permissions.FindPermission(ctx, *user.AccessRoleID, resource)
	if err != nil {
		if db.IsNotFound(err) {
			return s.deny(reasonNoPermission), nil
		}
		return Decision{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading permission")
	}

	if !permission.Actions.Contains(action) {
		return s.deny(reasonActionMissing), nil
	}

	s.core.IncAuthzDecision("allow")
	return Decision{Allowed: true, Reason: reasonGranted}, nil
}

func (s *service) deny(reason string) Decision {
	s.core.IncAuthzDecision("deny")
	return Decision{Allowed: false, Reason: reason}
}
