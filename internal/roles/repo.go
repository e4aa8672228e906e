package roles

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/parkpass/parkpass-backend/pkg/db/models"
)

// Repository exposes access role and permission persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repo bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create persists a new role.
func (r *Repository) Create(ctx context.Context, role *models.AccessRole) error {
	return r.db.WithContext(ctx).Create(role).Error
}

// FindByID loads a role by UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.AccessRole, error) {
	var role models.AccessRole
	if err := r.db.WithContext(ctx).First(&role, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// FindByName loads a role by its unique name.
func (r *Repository) FindByName(ctx context.Context, name string) (*models.AccessRole, error) {
	var role models.AccessRole
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// List returns all roles ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.AccessRole, error) {
	var roles []models.AccessRole
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// ListNonSystem returns roles eligible for reconciliation matching.
func (r *Repository) ListNonSystem(ctx context.Context) ([]models.AccessRole, error) {
	var roles []models.AccessRole
	if err := r.db.WithContext(ctx).
		Where("is_system = ?", false).
		Order("name ASC").
		Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// Delete removes the role row. Permissions are removed separately so the
// service controls ordering inside the transaction.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.AccessRole{}, "id = ?", id).Error
}

// UpsertPermission inserts or replaces the action set for (role, resource).
func (r *Repository) UpsertPermission(ctx context.Context, permission *models.Permission) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "access_role_id"}, {Name: "resource"}},
			DoUpdates: clause.AssignmentColumns([]string{"actions", "updated_at"}),
		}).
		Create(permission).Error
}

// FindPermission loads the permission for (role, resource).
func (r *Repository) FindPermission(ctx context.Context, roleID uuid.UUID, resource string) (*models.Permission, error) {
	var permission models.Permission
	if err := r.db.WithContext(ctx).
		Where("access_role_id = ? AND resource = ?", roleID, resource).
		First(&permission).Error; err != nil {
		return nil, err
	}
	return &permission, nil
}

// ListPermissions returns the role's permissions ordered by resource.
func (r *Repository) ListPermissions(ctx context.Context, roleID uuid.UUID) ([]models.Permission, error) {
	var permissions []models.Permission
	if err := r.db.WithContext(ctx).
		Where("access_role_id = ?", roleID).
		Order("resource ASC").
		Find(&permissions).Error; err != nil {
		return nil, err
	}
	return permissions, nil
}

// DeletePermissionsByRole removes every permission bound to the role.
func (r *Repository) DeletePermissionsByRole(ctx context.Context, roleID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.Permission{}, "access_role_id = ?", roleID).Error
}
