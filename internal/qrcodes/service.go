package qrcodes

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/parkpass/parkpass-backend/pkg/config"
	"github.com/parkpass/parkpass-backend/pkg/db"
	"github.com/parkpass/parkpass-backend/pkg/db/models"
	"github.com/parkpass/parkpass-backend/pkg/enums"
	pkgerrors "github.com/parkpass/parkpass-backend/pkg/errors"
	"github.com/parkpass/parkpass-backend/pkg/logger"
	"github.com/parkpass/parkpass-backend/pkg/metrics"
)

// Service defines QR inventory operations.
type Service interface {
	Allocate(ctx context.Context) (*models.QRCode, error)
	AllocateBatch(ctx context.Context, count int) ([]*models.QRCode, error)
	Activate(ctx context.Context, serial string, ownerID uuid.UUID) (*models.QRCode, error)
	Revoke(ctx context.Context, serial string) (*models.QRCode, error)
	WipeAll(ctx context.Context) (int64, error)
}

type service struct {
	client *db.Client
	repo   *Repository
	core   *metrics.CoreMetrics
	logg   *logger.Logger
	cfg    config.QRConfig
}

// NewService wires the QR code service.
func NewService(client *db.Client, repo *Repository, core *metrics.CoreMetrics, logg *logger.Logger, cfg config.QRConfig) (Service, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "db client required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "qr repository required")
	}
	return &service{client: client, repo: repo, core: core, logg: logg, cfg: cfg}, nil
}

// RenderSerial formats a serial number with the configured prefix and zero
// padding. Numbers wider than the pad grow naturally instead of truncating.
func RenderSerial(cfg config.QRConfig, n int64) string {
	return fmt.Sprintf("%s%0*d", cfg.SerialPrefix, cfg.SerialWidth, n)
}

// ParseSerial recovers the serial number from its rendered form. Only strings
// that render back byte for byte are accepted, so padding and prefix must
// match exactly.
func ParseSerial(cfg config.QRConfig, serial string) (int64, error) {
	rest, ok := strings.CutPrefix(serial, cfg.SerialPrefix)
	if ok {
		n, err := strconv.ParseInt(rest, 10, 64)
		if err == nil && n > 0 && RenderSerial(cfg, n) == serial {
			return n, nil
		}
	}
	return 0, pkgerrors.New(pkgerrors.CodeValidation, "malformed serial").
		WithDetails(map[string]any{"serial": serial})
}

// Allocate hands out the next serial. The sequence row lock makes allocations
// gapless; a duplicate rendered serial is retried once before surfacing as a
// CONFLICT for the caller to retry.
func (s *service) Allocate(ctx context.Context) (*models.QRCode, error) {
	code, err := s.allocateOnce(ctx)
	if err != nil && pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		// The counter fell behind the inventory (restored backup, manual
		// insert). Fast-forward it and try again before giving up.
		if syncErr := s.repo.SyncSequence(ctx); syncErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, syncErr, "resyncing serial counter")
		}
		code, err = s.allocateOnce(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.core.IncSerialIssued()
	if s.logg != nil {
		s.logg.Info(s.logg.WithSerial(ctx, code.Serial), "qr serial allocated")
	}
	return code, nil
}

func (s *service) allocateOnce(ctx context.Context) (*models.QRCode, error) {
	var code *models.QRCode
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		serialNo, err := txRepo.NextSerial(ctx)
		if err != nil {
			return err
		}

		code = &models.QRCode{
			ID:       uuid.New(),
			SerialNo: serialNo,
			Serial:   RenderSerial(s.cfg, serialNo),
			Status:   enums.QRStatusUnused,
		}
		return txRepo.CreateCode(ctx, code)
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "serial already issued")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "allocating serial")
	}
	return code, nil
}

// AllocateBatch allocates count codes one transaction each, stopping at the
// first failure.
func (s *service) AllocateBatch(ctx context.Context, count int) ([]*models.QRCode, error) {
	if count <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "count must be positive")
	}

	codes := make([]*models.QRCode, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return codes, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "allocation interrupted")
		}
		code, err := s.Allocate(ctx)
		if err != nil {
			return codes, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// Activate moves an unused code into service and binds its owner.
func (s *service) Activate(ctx context.Context, serial string, ownerID uuid.UUID) (*models.QRCode, error) {
	if serial == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "serial is required")
	}
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}

	var code *models.QRCode
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		found, err := txRepo.LockBySerial(ctx, serial)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "qr code not found")
			}
			return err
		}
		if found.Status != enums.QRStatusUnused {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "qr code is not activatable").
				WithDetails(map[string]any{"status": string(found.Status)})
		}

		now := time.Now().UTC()
		found.Status = enums.QRStatusActive
		found.OwnerID = &ownerID
		found.ActivatedAt = &now
		if err := txRepo.UpdateCode(ctx, found); err != nil {
			return err
		}
		code = found
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activating qr code")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithSerial(ctx, serial), "qr code activated")
	}
	return code, nil
}

// Revoke retires an active code. Revocation is terminal.
func (s *service) Revoke(ctx context.Context, serial string) (*models.QRCode, error) {
	if serial == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "serial is required")
	}

	var code *models.QRCode
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		found, err := txRepo.LockBySerial(ctx, serial)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "qr code not found")
			}
			return err
		}
		if found.Status != enums.QRStatusActive {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "only active codes can be revoked").
				WithDetails(map[string]any{"status": string(found.Status)})
		}

		now := time.Now().UTC()
		found.Status = enums.QRStatusRevoked
		found.RevokedAt = &now
		if err := txRepo.UpdateCode(ctx, found); err != nil {
			return err
		}
		code = found
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoking qr code")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithSerial(ctx, serial), "qr code revoked")
	}
	return code, nil
}

// WipeAll destroys the entire inventory and resets the counter so the next
// allocation starts over at serial one. This is the only path that ever reuses
// serial numbers.
func (s *service) WipeAll(ctx context.Context) (int64, error) {
	var wiped int64
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		// Hold the allocator lock so no allocation interleaves with the wipe.
		if _, err := txRepo.NextSerial(ctx); err != nil {
			return err
		}

		count, err := txRepo.DeleteAll(ctx)
		if err != nil {
			return err
		}
		wiped = count
		return txRepo.ResetSequence(ctx)
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "wiping qr inventory")
	}

	if s.logg != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"wiped": wiped}), "qr inventory wiped")
	}
	return wiped, nil
}
