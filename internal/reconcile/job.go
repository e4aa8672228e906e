package reconcile

import (
	"context"
	"strings"

	"go.uber.org/multierr"

	"github.com/parkpass/parkpass-backend/internal/roles"
	"github.com/parkpass/parkpass-backend/internal/users"
	"github.com/parkpass/parkpass-backend/pkg/config"
	"github.com/parkpass/parkpass-backend/pkg/db/models"
	pkgerrors "github.com/parkpass/parkpass-backend/pkg/errors"
	"github.com/parkpass/parkpass-backend/pkg/logger"
	"github.com/parkpass/parkpass-backend/pkg/metrics"
)

// JobName identifies the orphan reconciliation job in the batch registry.
const JobName = "reconcile-orphans"

// Result summarizes one reconciliation pass.
type Result struct {
	Linked        int `json:"linked"`
	StillOrphaned int `json:"still_orphaned"`
}

// Job links orphaned elevated users to access roles by display name. Each
// link commits independently so an abort mid-batch leaves no partial state.
type Job struct {
	users   *users.Repository
	roles   *roles.Repository
	rolesvc roles.Service
	core    *metrics.CoreMetrics
	logg    *logger.Logger
	cfg     config.ReconcileConfig
}

// NewJob wires the reconciliation job.
func NewJob(usersRepo *users.Repository, rolesRepo *roles.Repository, rolesvc roles.Service, core *metrics.CoreMetrics, logg *logger.Logger, cfg config.ReconcileConfig) (*Job, error) {
	if usersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repository required")
	}
	if rolesRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "roles repository required")
	}
	if rolesvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "roles service required")
	}
	return &Job{
		users:   usersRepo,
		roles:   rolesRepo,
		rolesvc: rolesvc,
		core:    core,
		logg:    logg,
		cfg:     cfg,
	}, nil
}

// Name implements batch.Job.
func (j *Job) Name() string { return JobName }

// Run implements batch.Job.
func (j *Job) Run(ctx context.Context) error {
	result, err := j.Reconcile(ctx)
	if j.logg != nil {
		fields := map[string]any{"linked": result.Linked, "still_orphaned": result.StillOrphaned}
		j.logg.Info(j.logg.WithFields(ctx, fields), "orphan reconciliation finished")
	}
	return err
}

// Reconcile links as many orphans as it can and reports the tally. Individual
// failures are collected; one bad user does not stop the batch.
func (j *Job) Reconcile(ctx context.Context) (Result, error) {
	var result Result

	candidates, err := j.roles.ListNonSystem(ctx)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing candidate roles")
	}

	orphans, err := j.users.ListOrphans(ctx, j.cfg.BatchLimit)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orphans")
	}

	var errs error
	var fallback *models.AccessRole
	for _, orphan := range orphans {
		// Interruptible between users; every processed user is already
		// committed.
		if err := ctx.Err(); err != nil {
			return result, multierr.Append(errs, err)
		}

		role := matchRole(orphan.DisplayName, candidates)
		if role == nil {
			if j.cfg.FallbackRole == "" {
				result.StillOrphaned++
				continue
			}
			if fallback == nil {
				fallback, err = j.ensureFallback(ctx)
				if err != nil {
					errs = multierr.Append(errs, err)
					result.StillOrphaned++
					continue
				}
			}
			role = fallback
		}

		if err := j.users.BindRole(ctx, orphan.ID, role.ID); err != nil {
			errs = multierr.Append(errs, err)
			result.StillOrphaned++
			continue
		}

		result.Linked++
		j.core.IncOrphanLinked()
		if j.logg != nil {
			ctx := j.logg.WithUserID(ctx, orphan.ID.String())
			j.logg.Info(j.logg.WithRoleID(ctx, role.ID.String()), "orphan linked to role")
		}
	}

	return result, errs
}

// ensureFallback lazily provisions the zero-permission fallback role.
func (j *Job) ensureFallback(ctx context.Context) (*models.AccessRole, error) {
	return j.rolesvc.EnsureRole(ctx, roles.CreateRoleInput{
		Name:        j.cfg.FallbackRole,
		Description: "Least-privilege landing role for unmatched orphans",
	})
}

// matchRole finds the first non-system role whose name shares a
// case-insensitive substring with the user's display name, considering only
// the text before any parenthetical suffix.
func matchRole(displayName string, candidates []models.AccessRole) *models.AccessRole {
	name := displayName
	if idx := strings.IndexByte(name, '('); idx >= 0 {
		name = name[:idx]
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}

	for i := range candidates {
		roleName := strings.ToLower(strings.TrimSpace(candidates[i].Name))
		if roleName == "" {
			continue
		}
		if strings.Contains(roleName, name) || strings.Contains(name, roleName) {
			return &candidates[i]
		}
	}
	return nil
}
