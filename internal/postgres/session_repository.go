package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrEthical07/havenAuth/session"
	"gorm.io/gorm"
)

const findSessionWithUserSQL = `SELECT s.id, s.token_hash, s.user_id, s.expires_at, s.user_agent,
	s.ip_address, s.impersonated_by, s.created_at, s.updated_at,
	u.id AS u_id, u.email AS u_email, u.username AS u_username, u.name AS u_name,
	u.avatar AS u_avatar, u.roles AS u_roles, u.active_shop_id AS u_active_shop_id
FROM sessions s
LEFT JOIN users u ON u.id = s.user_id
WHERE s.token_hash = ?
LIMIT 1`

// SessionRepository implements session.Store.
type SessionRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func sessionUnavailable(err error) error {
	return fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
}

func (r *SessionRepository) Insert(ctx context.Context, sess *session.Session) error {
	rec := sessionModel{
		ID:             sess.ID,
		TokenHash:      sess.TokenHash,
		UserID:         sess.UserID,
		ExpiresAt:      sess.ExpiresAt,
		UserAgent:      sess.UserAgent,
		IPAddress:      nullableString(sess.IPAddress),
		ImpersonatedBy: nullableString(sess.ImpersonatedBy),
		CreatedAt:      sess.CreatedAt,
		UpdatedAt:      sess.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return session.ErrDuplicateToken
		}
		return sessionUnavailable(err)
	}
	return nil
}

// FindWithUser loads the session and its owner in one statement.
func (r *SessionRepository) FindWithUser(ctx context.Context, tokenHash string) (*session.Session, *session.User, error) {
	var row sessionUserRow
	res := r.db.WithContext(ctx).Raw(findSessionWithUserSQL, tokenHash).Scan(&row)
	if res.Error != nil {
		return nil, nil, sessionUnavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil, session.ErrNotFound
	}

	sess := toDomainSession(row.sessionModel)
	if row.UserRowID == nil {
		return sess, nil, nil
	}
	roles, err := decodeRoles(row.UserRoles)
	if err != nil {
		return nil, nil, sessionUnavailable(err)
	}
	user := &session.User{
		ID:           *row.UserRowID,
		Email:        derefString(row.UserEmail),
		Username:     derefString(row.UserUsername),
		Name:         derefString(row.UserName),
		Avatar:       derefString(row.UserAvatar),
		Roles:        roles,
		ActiveShopID: derefString(row.UserActiveShopID),
	}
	return sess, user, nil
}

func (r *SessionRepository) UpdateExpiry(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("token_hash = ?", tokenHash).
		Updates(map[string]any{
			"expires_at": expiresAt,
			"updated_at": r.now(),
		})
	if res.Error != nil {
		return sessionUnavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (r *SessionRepository) DeleteByToken(ctx context.Context, tokenHash string) error {
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Delete(&sessionModel{}).Error; err != nil {
		return sessionUnavailable(err)
	}
	return nil
}

func (r *SessionRepository) DeleteByUser(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&sessionModel{}).Error; err != nil {
		return sessionUnavailable(err)
	}
	return nil
}

func toDomainSession(m sessionModel) *session.Session {
	return &session.Session{
		ID:             m.ID,
		TokenHash:      m.TokenHash,
		UserID:         m.UserID,
		ExpiresAt:      m.ExpiresAt,
		UserAgent:      m.UserAgent,
		IPAddress:      derefString(m.IPAddress),
		ImpersonatedBy: derefString(m.ImpersonatedBy),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func decodeRoles(raw *string) ([]string, error) {
	if raw == nil || *raw == "" {
		return []string{}, nil
	}
	var roles []string
	if err := json.Unmarshal([]byte(*raw), &roles); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	if roles == nil {
		roles = []string{}
	}
	return roles, nil
}
