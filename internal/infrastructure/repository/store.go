// Package repository is the persistent entity layer. Every mutating method
// takes the calling principal; role questions go to the casbin policy and
// per-ICU membership is checked against the assignment tables.
package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/icubam/icubam/internal/domain/access"
	"github.com/icubam/icubam/internal/domain/user"
	"github.com/icubam/icubam/internal/infrastructure/persistence/models"
	"github.com/icubam/icubam/internal/shared/authorization"
	shareddb "github.com/icubam/icubam/internal/shared/db"
	apperrors "github.com/icubam/icubam/internal/shared/errors"
	"github.com/icubam/icubam/internal/shared/logger"
)

// RolePolicy answers whether a role may perform an action on a resource.
type RolePolicy interface {
	Can(role authorization.UserRole, resource, action string) (bool, error)
}

type Store struct {
	db     *gorm.DB
	tm     *shareddb.TransactionManager
	policy RolePolicy
	now    func() time.Time
	logger logger.Interface
}

func NewStore(db *gorm.DB, policy RolePolicy, log logger.Interface) *Store {
	return &Store{
		db:     db,
		tm:     shareddb.NewTransactionManager(db),
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.With("component", "store"),
	}
}

// WithClock replaces the clock used to stamp created_at and updated_at.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = func() time.Time { return now().UTC() }
	return s
}

// Now returns the store clock reading in UTC.
func (s *Store) Now() time.Time {
	return s.now()
}

// RunInTransaction scopes fn to a single transaction shared by nested store calls.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.tm.RunInTransaction(ctx, fn)
}

// AutoMigrate creates or updates every table from the GORM models.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(models.All()...)
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.tm.GetTx(ctx)
}

// SystemPrincipal is the admin identity used by CLI commands and start-up jobs.
func SystemPrincipal() *user.User {
	return &user.User{Name: "system", Role: authorization.RoleAdmin, IsActive: true}
}

// authorize checks the role-level policy for caller.
func (s *Store) authorize(caller *user.User, resource, action string) error {
	if caller == nil || !caller.IsActive {
		return access.ErrAuthorization
	}
	allowed, err := s.policy.Can(caller.Role, resource, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.logger.Debugw("role denied",
			"user_id", caller.ID,
			"role", caller.Role,
			"resource", resource,
			"action", action)
		return access.ErrAuthorization
	}
	return nil
}

// ManagesICU is true iff caller is admin or listed in icu_managers for icuID.
func (s *Store) ManagesICU(ctx context.Context, caller *user.User, icuID int64) (bool, error) {
	return s.inAssignment(ctx, caller, icuID, models.ICUManagerModel{}.TableName())
}

// CanEditBedCount is true iff caller is admin or listed in icu_operators for icuID.
func (s *Store) CanEditBedCount(ctx context.Context, caller *user.User, icuID int64) (bool, error) {
	return s.inAssignment(ctx, caller, icuID, models.ICUOperatorModel{}.TableName())
}

func (s *Store) inAssignment(ctx context.Context, caller *user.User, icuID int64, table string) (bool, error) {
	if caller == nil {
		return false, nil
	}
	if caller.IsAdmin() {
		return true, nil
	}
	var count int64
	err := s.conn(ctx).Table(table).
		Where("user_id = ? AND icu_id = ?", caller.ID, icuID).
		Count(&count).Error
	if err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

func (s *Store) requireManages(ctx context.Context, caller *user.User, icuID int64) error {
	ok, err := s.ManagesICU(ctx, caller, icuID)
	if err != nil {
		return err
	}
	if !ok {
		return access.ErrAuthorization
	}
	return nil
}

// translateError maps driver failures onto the store taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsDuplicateError(err) {
		return fmt.Errorf("%w: %v", access.ErrConflict, err)
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", access.ErrTransient, err)
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
