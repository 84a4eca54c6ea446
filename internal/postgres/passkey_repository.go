package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/havenAuth/passkey"
	"gorm.io/gorm"
)

// PasskeyRepository implements passkey.CredentialStore.
type PasskeyRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func passkeyUnavailable(err error) error {
	return fmt.Errorf("%w: %v", passkey.ErrStoreUnavailable, err)
}

func (r *PasskeyRepository) CreateCredential(ctx context.Context, c *passkey.Credential) error {
	rec := passkeyModel{
		ID:           c.ID,
		CredentialID: c.CredentialID,
		UserID:       c.UserID,
		Name:         c.DisplayName(),
		PublicKey:    c.PublicKey,
		Counter:      int64(c.Counter),
		DeviceType:   c.DeviceType,
		Algorithm:    c.Algorithm,
		Transports:   c.Transports,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return passkey.ErrDuplicateCredential
		}
		return passkeyUnavailable(err)
	}
	return nil
}

func (r *PasskeyRepository) CredentialByID(ctx context.Context, credentialID string) (*passkey.Credential, error) {
	var rec passkeyModel
	if err := r.db.WithContext(ctx).Where("credential_id = ?", credentialID).Take(&rec).Error; err != nil {
		if isNotFound(err) {
			return nil, passkey.ErrCredentialNotFound
		}
		return nil, passkeyUnavailable(err)
	}
	return toDomainCredential(rec), nil
}

func (r *PasskeyRepository) CredentialsForUser(ctx context.Context, userID string) ([]passkey.Credential, error) {
	var rows []passkeyModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, passkeyUnavailable(err)
	}
	out := make([]passkey.Credential, 0, len(rows))
	for _, row := range rows {
		out = append(out, *toDomainCredential(row))
	}
	return out, nil
}

// UpdateCounter only moves the counter forward; a stale or replayed value
// leaves the row untouched and reports false.
func (r *PasskeyRepository) UpdateCounter(ctx context.Context, credentialID string, counter uint32) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&passkeyModel{}).
		Where("credential_id = ? AND counter < ?", credentialID, int64(counter)).
		Updates(map[string]any{
			"counter":    int64(counter),
			"updated_at": r.now(),
		})
	if res.Error != nil {
		return false, passkeyUnavailable(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *PasskeyRepository) DeleteCredential(ctx context.Context, userID, credentialID string) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND credential_id = ?", userID, credentialID).
		Delete(&passkeyModel{})
	if res.Error != nil {
		return passkeyUnavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return passkey.ErrCredentialNotFound
	}
	return nil
}

func toDomainCredential(m passkeyModel) *passkey.Credential {
	return &passkey.Credential{
		ID:           m.ID,
		CredentialID: m.CredentialID,
		Name:         m.Name,
		PublicKey:    m.PublicKey,
		UserID:       m.UserID,
		Counter:      uint32(m.Counter),
		DeviceType:   m.DeviceType,
		Algorithm:    m.Algorithm,
		Transports:   m.Transports,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
