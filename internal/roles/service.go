package roles

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/parkpass/parkpass-backend/internal/users"
	"github.com/parkpass/parkpass-backend/pkg/db"
	"github.com/parkpass/parkpass-backend/pkg/db/models"
	pkgerrors "github.com/parkpass/parkpass-backend/pkg/errors"
	"github.com/parkpass/parkpass-backend/pkg/logger"
	"github.com/parkpass/parkpass-backend/pkg/validate"
)

// System roles shipped with every deployment. They cannot be deleted through
// the service and never participate in reconciliation matching.
const (
	SystemRolePlatformAdmin = "platform-admin"
	SystemRoleOperator      = "operator"
)

// Service defines role and permission management operations.
type Service interface {
	CreateRole(ctx context.Context, input CreateRoleInput) (*models.AccessRole, error)
	EnsureRole(ctx context.Context, input CreateRoleInput) (*models.AccessRole, error)
	GrantPermission(ctx context.Context, input GrantPermissionInput) (*models.Permission, error)
	DeleteRole(ctx context.Context, roleID uuid.UUID) (int64, error)
	GetRole(ctx context.Context, roleID uuid.UUID) (*RoleDTO, error)
	SeedSystemRoles(ctx context.Context) error
}

type service struct {
	client *db.Client
	repo   *Repository
	users  *users.Repository
	logg   *logger.Logger
}

// NewService wires the roles service.
func NewService(client *db.Client, repo *Repository, usersRepo *users.Repository, logg *logger.Logger) (Service, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "db client required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "roles repository required")
	}
	if usersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repository required")
	}
	return &service{client: client, repo: repo, users: usersRepo, logg: logg}, nil
}

func (s *service) CreateRole(ctx context.Context, input CreateRoleInput) (*models.AccessRole, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	role := &models.AccessRole{
		ID:          uuid.New(),
		Name:        validate.SanitizeString(input.Name, 64),
		Description: validate.SanitizeString(input.Description, 256),
		IsSystem:    input.IsSystem,
	}
	if err := s.repo.Create(ctx, role); err != nil {
		if db.IsUniqueViolation(err, "uq_access_roles_name") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "role name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating role")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithRoleID(ctx, role.ID.String()), "access role created")
	}
	return role, nil
}

// EnsureRole returns the existing role with the given name or creates it.
func (s *service) EnsureRole(ctx context.Context, input CreateRoleInput) (*models.AccessRole, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByName(ctx, validate.SanitizeString(input.Name, 64))
	if err == nil {
		return existing, nil
	}
	if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up role")
	}

	role, err := s.CreateRole(ctx, input)
	if err != nil && pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		// Lost the race to a concurrent create; the winner's row is what we want.
		return s.repo.FindByName(ctx, validate.SanitizeString(input.Name, 64))
	}
	return role, err
}

func (s *service) GrantPermission(ctx context.Context, input GrantPermissionInput) (*models.Permission, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	actions := normalizedActions(input.Actions)
	if len(actions) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one action is required")
	}

	if _, err := s.repo.FindByID(ctx, input.RoleID); err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "role not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up role")
	}

	permission := &models.Permission{
		ID:           uuid.New(),
		AccessRoleID: input.RoleID,
		Resource:     validate.SanitizeString(input.Resource, 128),
		Actions:      actions,
	}
	if err := s.repo.UpsertPermission(ctx, permission); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "granting permission")
	}
	return permission, nil
}

// DeleteRole removes a role, its permissions, and every user binding in one
// transaction. Users that referenced the role degrade to orphans. Returns the
// number of detached users.
func (s *service) DeleteRole(ctx context.Context, roleID uuid.UUID) (int64, error) {
	role, err := s.repo.FindByID(ctx, roleID)
	if err != nil {
		if db.IsNotFound(err) {
			return 0, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "role not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up role")
	}
	if role.IsSystem {
		return 0, pkgerrors.New(pkgerrors.CodeForbidden, "system roles cannot be deleted")
	}

	var detached int64
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRoles := s.repo.WithTx(tx)
		txUsers := s.users.WithTx(tx)

		detached, err = txUsers.ClearRoleRefs(ctx, roleID)
		if err != nil {
			return err
		}
		if err := txRoles.DeletePermissionsByRole(ctx, roleID); err != nil {
			return err
		}
		return txRoles.Delete(ctx, roleID)
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting role")
	}

	if s.logg != nil {
		ctx = s.logg.WithRoleID(ctx, roleID.String())
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"detached_users": detached}), "access role deleted")
	}
	return detached, nil
}

func (s *service) GetRole(ctx context.Context, roleID uuid.UUID) (*RoleDTO, error) {
	role, err := s.repo.FindByID(ctx, roleID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "role not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up role")
	}

	permissions, err := s.repo.ListPermissions(ctx, roleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing permissions")
	}

	dto := &RoleDTO{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		IsSystem:    role.IsSystem,
		Permissions: make([]PermissionDTO, 0, len(permissions)),
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
	for _, permission := range permissions {
		dto.Permissions = append(dto.Permissions, PermissionDTO{
			Resource: permission.Resource,
			Actions:  permission.Actions,
		})
	}
	return dto, nil
}

// SeedSystemRoles provisions the built-in roles and their grants. Safe to run
// repeatedly.
func (s *service) SeedSystemRoles(ctx context.Context) error {
	seeds := []struct {
		input  CreateRoleInput
		grants map[string][]string
	}{
		{
			input: CreateRoleInput{
				Name:        SystemRolePlatformAdmin,
				Description: "Full control over roles, credits, and QR inventory",
				IsSystem:    true,
			},
			grants: map[string][]string{
				"roles":   {"read", "write", "delete"},
				"users":   {"read", "write"},
				"ledger":  {"read", "write"},
				"qrcodes": {"read", "write", "revoke", "wipe"},
			},
		},
		{
			input: CreateRoleInput{
				Name:        SystemRoleOperator,
				Description: "Day-to-day QR operations and ledger review",
				IsSystem:    true,
			},
			grants: map[string][]string{
				"ledger":  {"read"},
				"qrcodes": {"read", "activate", "revoke"},
			},
		},
	}

	for _, seed := range seeds {
		role, err := s.EnsureRole(ctx, seed.input)
		if err != nil {
			return err
		}
		for resource, actions := range seed.grants {
			if _, err := s.GrantPermission(ctx, GrantPermissionInput{
				RoleID:   role.ID,
				Resource: resource,
				Actions:  actions,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}
