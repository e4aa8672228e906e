package qrcodes

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/parkpass/parkpass-backend/pkg/db"
	"github.com/parkpass/parkpass-backend/pkg/db/models"
	"github.com/parkpass/parkpass-backend/pkg/enums"
)

// Repository manages QR code rows and the serial counter.
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

// EnsureSequence inserts the allocator row if it does not exist yet.
func (r *Repository) EnsureSequence(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.QRSequence{ID: models.QRSequenceID, LastSerial: 0}).Error
}

// NextSerial increments the counter while holding the allocator row lock and
// returns the new value. Must run inside a transaction; the lock is what makes
// serials gapless under concurrency.
func (r *Repository) NextSerial(ctx context.Context) (int64, error) {
	var seq models.QRSequence
	if err := db.ForUpdate(r.db.WithContext(ctx)).
		First(&seq, "id = ?", models.QRSequenceID).Error; err != nil {
		return 0, err
	}

	next := seq.LastSerial + 1
	if err := r.db.WithContext(ctx).
		Model(&models.QRSequence{}).
		Where("id = ?", models.QRSequenceID).
		UpdateColumn("last_serial", next).Error; err != nil {
		return 0, err
	}
	return next, nil
}

// SyncSequence fast-forwards the counter to the highest issued serial. Used
// when the counter has fallen behind the inventory.
func (r *Repository) SyncSequence(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Model(&models.QRSequence{}).
		Where("id = ?", models.QRSequenceID).
		UpdateColumn("last_serial", gorm.Expr("(SELECT COALESCE(MAX(serial_no), 0) FROM qr_codes)")).Error
}

// ResetSequence zeroes the counter. Only the wipe path may call this.
func (r *Repository) ResetSequence(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Model(&models.QRSequence{}).
		Where("id = ?", models.QRSequenceID).
		UpdateColumn("last_serial", 0).Error
}

// CreateCode persists a freshly allocated code.
func (r *Repository) CreateCode(ctx context.Context, code *models.QRCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

// FindBySerial loads a code by its rendered serial.
func (r *Repository) FindBySerial(ctx context.Context, serial string) (*models.QRCode, error) {
	var code models.QRCode
	if err := r.db.WithContext(ctx).Where("serial = ?", serial).First(&code).Error; err != nil {
		return nil, err
	}
	return &code, nil
}

// LockBySerial loads a code while holding its row lock for a status change.
func (r *Repository) LockBySerial(ctx context.Context, serial string) (*models.QRCode, error) {
	var code models.QRCode
	if err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("serial = ?", serial).First(&code).Error; err != nil {
		return nil, err
	}
	return &code, nil
}

// UpdateCode saves the mutated status fields.
func (r *Repository) UpdateCode(ctx context.Context, code *models.QRCode) error {
	return r.db.WithContext(ctx).
		Model(&models.QRCode{}).
		Where("id = ?", code.ID).
		Updates(map[string]any{
			"status":       code.Status,
			"owner_id":     code.OwnerID,
			"activated_at": code.ActivatedAt,
			"revoked_at":   code.RevokedAt,
		}).Error
}

// CountByStatus tallies the inventory per lifecycle state.
func (r *Repository) CountByStatus(ctx context.Context, status enums.QRStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.QRCode{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

// DeleteAll removes every code row and reports how many were dropped.
func (r *Repository) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.QRCode{})
	return result.RowsAffected, result.Error
}
