package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/parkpass/parkpass-backend/internal/users"
	"github.com/parkpass/parkpass-backend/pkg/config"
	"github.com/parkpass/parkpass-backend/pkg/db"
	"github.com/parkpass/parkpass-backend/pkg/db/models"
	pkgerrors "github.com/parkpass/parkpass-backend/pkg/errors"
	"github.com/parkpass/parkpass-backend/pkg/logger"
	"github.com/parkpass/parkpass-backend/pkg/metrics"
	"github.com/parkpass/parkpass-backend/pkg/redis"
	"github.com/parkpass/parkpass-backend/pkg/validate"
)

// BalanceCache is the Redis surface the ledger uses for its read-through
// balance snapshots.
type BalanceCache interface {
	CacheBalance(ctx context.Context, userID string, balance int64, ttl time.Duration) error
	CachedBalance(ctx context.Context, userID string) (int64, error)
	InvalidateBalance(ctx context.Context, userID string) error
}

// Service defines operations over the append-only credit ledger.
type Service interface {
	Append(ctx context.Context, input AppendEntryInput) (*models.CreditEntry, error)
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	RecomputeBalance(ctx context.Context, userID uuid.UUID) (RecomputeResult, error)
	ListEntries(ctx context.Context, userID uuid.UUID, query ListEntriesInput) (*EntryPage, error)
}

type service struct {
	client *db.Client
	repo   *Repository
	users  *users.Repository
	cache  BalanceCache
	core   *metrics.CoreMetrics
	logg   *logger.Logger
	cfg    config.LedgerConfig
}

// NewService wires a ledger service. The cache is optional; without it every
// balance read goes to the store.
func NewService(client *db.Client, repo *Repository, usersRepo *users.Repository, cache BalanceCache, core *metrics.CoreMetrics, logg *logger.Logger, cfg config.LedgerConfig) (Service, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "db client required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository required")
	}
	if usersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repository required")
	}
	return &service{
		client: client,
		repo:   repo,
		users:  usersRepo,
		cache:  cache,
		core:   core,
		logg:   logg,
		cfg:    cfg,
	}, nil
}

// Append writes one signed entry and moves the cached balance in the same
// transaction. The user row lock serializes concurrent appends so the cached
// column never drifts from the entry history.
func (s *service) Append(ctx context.Context, input AppendEntryInput) (*models.CreditEntry, error) {
	if input.Amount == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "amount must be non-zero")
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid entry type").
			WithDetails(map[string]any{"type": string(input.Type)})
	}

	entry := &models.CreditEntry{
		ID:     uuid.New(),
		UserID: input.UserID,
		Amount: input.Amount,
		Reason: input.Reason,
		Type:   input.Type,
	}

	var newBalance int64
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txUsers := s.users.WithTx(tx)
		user, err := txUsers.LockByID(ctx, input.UserID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "user not found")
			}
			return err
		}

		newBalance = user.CreditBalance + input.Amount
		if newBalance < 0 && !s.cfg.AllowNegative {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "insufficient balance").
				WithDetails(map[string]any{"balance": user.CreditBalance, "amount": input.Amount})
		}

		if err := s.repo.WithTx(tx).CreateEntry(ctx, entry); err != nil {
			return err
		}
		return txUsers.UpdateBalance(ctx, input.UserID, newBalance)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "appending ledger entry")
	}

	// Post-commit cache writes from concurrent appenders are not ordered, so
	// the snapshot is dropped instead of rewritten. The next read warms it.
	s.invalidateCache(ctx, input.UserID)
	s.core.IncLedgerEntry(string(input.Type))
	return entry, nil
}

// Balance returns the user's balance, preferring the cache snapshot.
func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	if s.cache != nil {
		if balance, err := s.cache.CachedBalance(ctx, userID.String()); err == nil {
			return balance, nil
		} else if !errors.Is(err, redis.ErrCacheMiss) && s.logg != nil {
			s.logg.Warn(s.logg.WithUserID(ctx, userID.String()), "balance cache read failed")
		}
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return 0, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "user not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading balance")
	}

	s.refreshCache(ctx, userID, user.CreditBalance)
	return user.CreditBalance, nil
}

// RecomputeBalance rebuilds the cached balance from the entry history. The
// history always wins; drift is reported, not tolerated.
func (s *service) RecomputeBalance(ctx context.Context, userID uuid.UUID) (RecomputeResult, error) {
	if userID == uuid.Nil {
		return RecomputeResult{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	var result RecomputeResult
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txUsers := s.users.WithTx(tx)
		user, err := txUsers.LockByID(ctx, userID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "user not found")
			}
			return err
		}

		sum, err := s.repo.WithTx(tx).SumByUser(ctx, userID)
		if err != nil {
			return err
		}

		result = RecomputeResult{
			Balance:  sum,
			Previous: user.CreditBalance,
			Drift:    user.CreditBalance - sum,
		}
		if result.Drift == 0 {
			return nil
		}
		return txUsers.UpdateBalance(ctx, userID, sum)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return RecomputeResult{}, err
		}
		return RecomputeResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recomputing balance")
	}

	if result.Drift != 0 && s.logg != nil {
		fields := map[string]any{"drift": result.Drift, "balance": result.Balance}
		s.logg.Warn(s.logg.WithFields(s.logg.WithUserID(ctx, userID.String()), fields), "balance drift corrected")
	}
	s.invalidateCache(ctx, userID)
	return result, nil
}

// ListEntries returns one page of the user's history, newest first. The page
// size is clamped and one extra row is fetched to decide whether a next
// cursor exists.
func (s *service) ListEntries(ctx context.Context, userID uuid.UUID, query ListEntriesInput) (*EntryPage, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	cursor, err := decodeHistoryCursor(query.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	size := normalizePageSize(query.Limit)
	entries, err := s.repo.ListByUser(ctx, userID, cursor, size+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing entries")
	}

	page := &EntryPage{Entries: make([]EntryDTO, 0, len(entries))}
	if len(entries) > size {
		page.NextCursor = encodeHistoryCursor(entries[size-1])
		entries = entries[:size]
	}
	for _, entry := range entries {
		page.Entries = append(page.Entries, entryFromModel(entry))
	}
	return page, nil
}

func (s *service) refreshCache(ctx context.Context, userID uuid.UUID, balance int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.CacheBalance(ctx, userID.String(), balance, s.cfg.BalanceCacheTTL); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithUserID(ctx, userID.String()), "balance cache write failed")
	}
}

func (s *service) invalidateCache(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateBalance(ctx, userID.String()); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithUserID(ctx, userID.String()), "balance cache invalidation failed")
	}
}
