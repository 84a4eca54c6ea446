package postgres

import (
	"context"
	"errors"

	"github.com/MrEthical07/havenAuth/session"
	"gorm.io/gorm"
)

// ErrNoPassword is returned by PasswordHash for users that only sign in
// with passkeys or one-time codes.
var ErrNoPassword = errors.New("user has no password")

// UserRepository implements session.UserLookup and resolves password
// credentials by email.
type UserRepository struct {
	db *gorm.DB
}

func (r *UserRepository) UserByID(ctx context.Context, userID string) (*session.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where("id = ?", userID).Take(&rec).Error; err != nil {
		if isNotFound(err) {
			return nil, session.ErrUserNotFound
		}
		return nil, sessionUnavailable(err)
	}
	roles, err := decodeRoles(&rec.Roles)
	if err != nil {
		return nil, sessionUnavailable(err)
	}
	return &session.User{
		ID:           rec.ID,
		Email:        rec.Email,
		Username:     rec.Username,
		Name:         rec.Name,
		Avatar:       rec.Avatar,
		Roles:        roles,
		ActiveShopID: derefString(rec.ActiveShopID),
	}, nil
}

// PasswordHash returns the user id and encoded password hash for email.
func (r *UserRepository) PasswordHash(ctx context.Context, email string) (string, string, error) {
	var rec userModel
	err := r.db.WithContext(ctx).
		Select("id", "password_hash").
		Where("email = ?", email).
		Take(&rec).Error
	if err != nil {
		if isNotFound(err) {
			return "", "", session.ErrUserNotFound
		}
		return "", "", sessionUnavailable(err)
	}
	if rec.PasswordHash == nil || *rec.PasswordHash == "" {
		return rec.ID, "", ErrNoPassword
	}
	return rec.ID, *rec.PasswordHash, nil
}
