package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/icubam/icubam/internal/domain/access"
	"github.com/icubam/icubam/internal/domain/icu"
	"github.com/icubam/icubam/internal/domain/user"
	"github.com/icubam/icubam/internal/infrastructure/persistence/mappers"
	"github.com/icubam/icubam/internal/infrastructure/persistence/models"
	"github.com/icubam/icubam/internal/shared/authorization"
	shareddb "github.com/icubam/icubam/internal/shared/db"
)

// Assignment is one (user, ICU) pair from icu_operators.
type Assignment struct {
	User *user.User
	ICU  *icu.ICU
}

// AddUser creates a user with the given operator and manager memberships. Admin only.
func (s *Store) AddUser(ctx context.Context, caller *user.User, u *user.User) (int64, error) {
	if err := s.authorize(caller, authorization.ResourceUser, authorization.ActionCreate); err != nil {
		return 0, err
	}
	if strings.TrimSpace(u.Name) == "" {
		return 0, user.ErrNameRequired
	}

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		now := s.now()
		u.CreatedAt, u.UpdatedAt = now, now
		if !u.Role.IsValid() {
			u.Role = authorization.RoleOperator
		}
		m := mappers.UserToModel(u)
		if err := s.conn(ctx).Create(m).Error; err != nil {
			return translateError(err)
		}
		u.ID = m.ID
		for _, icuID := range u.ICUIDs {
			if err := s.link(ctx, &models.ICUOperatorModel{UserID: u.ID, ICUID: icuID}); err != nil {
				return err
			}
		}
		for _, icuID := range u.ManagedICUIDs {
			if err := s.link(ctx, &models.ICUManagerModel{UserID: u.ID, ICUID: icuID}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Infow("user added", "user_id", u.ID, "role", u.Role, "by", caller.ID)
	return u.ID, nil
}

// AddUserToICU creates a user and assigns it as an operator of icuID. The
// caller must manage icuID.
func (s *Store) AddUserToICU(ctx context.Context, caller *user.User, icuID int64, u *user.User) (int64, error) {
	if err := s.authorize(caller, authorization.ResourceUser, authorization.ActionManage); err != nil {
		return 0, err
	}
	if err := s.requireManages(ctx, caller, icuID); err != nil {
		return 0, err
	}
	if strings.TrimSpace(u.Name) == "" {
		return 0, user.ErrNameRequired
	}
	if u.Role.IsAdmin() && !caller.IsAdmin() {
		return 0, access.ErrAuthorization
	}

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		now := s.now()
		u.CreatedAt, u.UpdatedAt = now, now
		if !u.Role.IsValid() {
			u.Role = authorization.RoleOperator
		}
		m := mappers.UserToModel(u)
		if err := s.conn(ctx).Create(m).Error; err != nil {
			return translateError(err)
		}
		u.ID = m.ID
		u.ICUIDs = []int64{icuID}
		return s.link(ctx, &models.ICUOperatorModel{UserID: u.ID, ICUID: icuID})
	})
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

// AssignUserToICU makes userID an operator of icuID.
func (s *Store) AssignUserToICU(ctx context.Context, caller *user.User, userID, icuID int64) error {
	if err := s.authorize(caller, authorization.ResourceUser, authorization.ActionManage); err != nil {
		return err
	}
	if err := s.requireManages(ctx, caller, icuID); err != nil {
		return err
	}
	return s.link(ctx, &models.ICUOperatorModel{UserID: userID, ICUID: icuID})
}

// AssignManagerToICU makes userID a manager of icuID.
func (s *Store) AssignManagerToICU(ctx context.Context, caller *user.User, userID, icuID int64) error {
	if err := s.authorize(caller, authorization.ResourceUser, authorization.ActionManage); err != nil {
		return err
	}
	if err := s.requireManages(ctx, caller, icuID); err != nil {
		return err
	}
	return s.link(ctx, &models.ICUManagerModel{UserID: userID, ICUID: icuID})
}

// AssignUserToICUByName resolves the ICU by its unique name, then assigns.
func (s *Store) AssignUserToICUByName(ctx context.Context, caller *user.User, userID int64, icuName string) error {
	i, err := s.GetICUByName(ctx, icuName)
	if err != nil {
		return err
	}
	return s.AssignUserToICU(ctx, caller, userID, i.ID)
}

func (s *Store) RemoveUserFromICU(ctx context.Context, caller *user.User, userID, icuID int64) error {
	if err := s.authorize(caller, authorization.ResourceUser, authorization.ActionManage); err != nil {
		return err
	}
	if err := s.requireManages(ctx, caller, icuID); err != nil {
		return err
	}
	return translateError(s.conn(ctx).
		Where("user_id = ? AND icu_id = ?", userID, icuID).
		Delete(&models.ICUOperatorModel{}).Error)
}

// UpdateUser applies patch. Only an admin, or a manager of one of the user's
// ICUs, may modify the user. A missing user is a silent no-op.
func (s *Store) UpdateUser(ctx context.Context, caller *user.User, id int64, patch user.Patch) error {
	if err := s.authorize(caller, authorization.ResourceUser, authorization.ActionManage); err != nil {
		return err
	}
	if patch.Role != nil && patch.Role.IsAdmin() && !caller.IsAdmin() {
		return access.ErrAuthorization
	}

	return s.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.GetUser(ctx, id)
		if errors.Is(err, user.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !caller.IsAdmin() {
			allowed, err := s.managesAnyOf(ctx, caller, current.ICUIDs)
			if err != nil {
				return err
			}
			if !allowed {
				return access.ErrAuthorization
			}
		}

		patch.Apply(current)
		current.UpdatedAt = s.now()
		m := mappers.UserToModel(current)
		return translateError(s.conn(ctx).Model(&models.UserModel{ID: id}).
			Select("name", "phone", "email", "telegram_chat_id", "description", "role", "locale", "is_active", "consent", "updated_at").
			Updates(m).Error)
	})
}

// SetConsent records the user's own answer; it needs no principal.
func (s *Store) SetConsent(ctx context.Context, userID int64, granted bool) error {
	consent := user.ConsentDeclined
	if granted {
		consent = user.ConsentGranted
	}
	return s.setUserColumn(ctx, userID, "consent", string(consent))
}

// SetTelegramChatID binds a chat to the user after a successful /start.
func (s *Store) SetTelegramChatID(ctx context.Context, userID int64, chatID string) error {
	return s.setUserColumn(ctx, userID, "telegram_chat_id", chatID)
}

func (s *Store) setUserColumn(ctx context.Context, userID int64, column string, value interface{}) error {
	res := s.conn(ctx).Model(&models.UserModel{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{column: value, "updated_at": s.now()})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return user.ErrNotFound
	}
	return nil
}

// GetUser returns the user with its memberships.
func (s *Store) GetUser(ctx context.Context, id int64) (*user.User, error) {
	var m models.UserModel
	if err := s.conn(ctx).First(&m, id).Error; err != nil {
		if isNotFound(err) {
			return nil, user.ErrNotFound
		}
		return nil, translateError(err)
	}
	return s.withMemberships(ctx, &m)
}

func (s *Store) GetUserByTelegramChatID(ctx context.Context, chatID string) (*user.User, error) {
	var m models.UserModel
	if err := s.conn(ctx).Where("telegram_chat_id = ?", chatID).First(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, user.ErrNotFound
		}
		return nil, translateError(err)
	}
	return s.withMemberships(ctx, &m)
}

// ListUsers returns every user, or only the operators of icuIDs when non-nil.
func (s *Store) ListUsers(ctx context.Context, icuIDs []int64) ([]*user.User, error) {
	q := s.conn(ctx).Model(&models.UserModel{})
	if icuIDs != nil {
		q = q.Where("id IN (?)", s.conn(ctx).Model(&models.ICUOperatorModel{}).
			Select("user_id").
			Scopes(shareddb.InIDs("icu_id", icuIDs)))
	}
	var rows []*models.UserModel
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}

	out := make([]*user.User, 0, len(rows))
	for _, m := range rows {
		u, err := s.withMemberships(ctx, m)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// ActiveAssignments lists every operator assignment whose user and ICU are
// active and whose user has not declined consent.
func (s *Store) ActiveAssignments(ctx context.Context) ([]Assignment, error) {
	var links []models.ICUOperatorModel
	err := s.conn(ctx).Model(&models.ICUOperatorModel{}).
		Joins("JOIN users ON users.id = icu_operators.user_id").
		Joins("JOIN icus ON icus.id = icu_operators.icu_id").
		Where("users.is_active = ? AND icus.is_active = ?", true, true).
		Where("(users.consent IS NULL OR users.consent <> ?)", string(user.ConsentDeclined)).
		Order("icu_operators.user_id, icu_operators.icu_id").
		Find(&links).Error
	if err != nil {
		return nil, translateError(err)
	}

	users := map[int64]*user.User{}
	icus := map[int64]*icu.ICU{}
	out := make([]Assignment, 0, len(links))
	for _, l := range links {
		u, ok := users[l.UserID]
		if !ok {
			if u, err = s.GetUser(ctx, l.UserID); err != nil {
				return nil, err
			}
			users[l.UserID] = u
		}
		i, ok := icus[l.ICUID]
		if !ok {
			if i, err = s.GetICU(ctx, l.ICUID); err != nil {
				return nil, err
			}
			icus[l.ICUID] = i
		}
		out = append(out, Assignment{User: u, ICU: i})
	}
	return out, nil
}

func (s *Store) withMemberships(ctx context.Context, m *models.UserModel) (*user.User, error) {
	icuIDs, err := s.assignedICUIDs(ctx, models.ICUOperatorModel{}.TableName(), m.ID)
	if err != nil {
		return nil, err
	}
	managed, err := s.assignedICUIDs(ctx, models.ICUManagerModel{}.TableName(), m.ID)
	if err != nil {
		return nil, err
	}
	return mappers.UserToDomain(m, icuIDs, managed), nil
}

func (s *Store) managesAnyOf(ctx context.Context, caller *user.User, icuIDs []int64) (bool, error) {
	if len(icuIDs) == 0 {
		return false, nil
	}
	var count int64
	err := s.conn(ctx).Model(&models.ICUManagerModel{}).
		Where("user_id = ? AND icu_id IN ?", caller.ID, icuIDs).
		Count(&count).Error
	return count > 0, translateError(err)
}

func (s *Store) link(ctx context.Context, row interface{}) error {
	return translateError(s.conn(ctx).Create(row).Error)
}
