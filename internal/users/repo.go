package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/parkpass/parkpass-backend/pkg/db"
	"github.com/parkpass/parkpass-backend/pkg/db/models"
	"github.com/parkpass/parkpass-backend/pkg/enums"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
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

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// LockByID loads a user while holding their row lock. Callers must run inside
// a transaction; the ledger depends on this for its balance updates.
func (r *Repository) LockByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := db.ForUpdate(r.db.WithContext(ctx)).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListOrphans returns elevated users that carry no access role binding.
func (r *Repository) ListOrphans(ctx context.Context, limit int) ([]models.User, error) {
	var orphans []models.User
	q := r.db.WithContext(ctx).
		Where("base_role = ? AND access_role_id IS NULL", enums.BaseRoleElevated).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&orphans).Error; err != nil {
		return nil, err
	}
	return orphans, nil
}

// BindRole attaches the access role to the user.
func (r *Repository) BindRole(ctx context.Context, userID, roleID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("access_role_id", roleID).Error
}

// ClearRoleRefs detaches every user bound to the given role. Used when a role
// is deleted so affected users degrade to orphans instead of dangling refs.
func (r *Repository) ClearRoleRefs(ctx context.Context, roleID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("access_role_id = ?", roleID).
		UpdateColumn("access_role_id", nil)
	return result.RowsAffected, result.Error
}

// UpdateBalance overwrites the cached credit balance column.
func (r *Repository) UpdateBalance(ctx context.Context, userID uuid.UUID, balance int64) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("credit_balance", balance).Error
}
