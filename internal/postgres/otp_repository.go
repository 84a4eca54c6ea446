package postgres

import (
	"context"
	"fmt"

	"github.com/MrEthical07/havenAuth/otp"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OTPRepository implements otp.Store. The (user_id, type) unique key keeps
// one live code per pair.
type OTPRepository struct {
	db *gorm.DB
}

func otpUnavailable(err error) error {
	return fmt.Errorf("%w: %v", otp.ErrStoreUnavailable, err)
}

func (r *OTPRepository) FindByUserType(ctx context.Context, userID string, t otp.Type) (*otp.Record, error) {
	var rec otpModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, string(t)).
		Take(&rec).Error
	if err != nil {
		if isNotFound(err) {
			return nil, otp.ErrNotFound
		}
		return nil, otpUnavailable(err)
	}
	return toDomainOTP(rec), nil
}

func (r *OTPRepository) FindByCode(ctx context.Context, userID, code string, t otp.Type) (*otp.Record, error) {
	var rec otpModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND code = ?", userID, string(t), code).
		Take(&rec).Error
	if err != nil {
		if isNotFound(err) {
			return nil, otp.ErrNotFound
		}
		return nil, otpUnavailable(err)
	}
	return toDomainOTP(rec), nil
}

// Save inserts rec or overwrites the existing (user, type) row in place.
func (r *OTPRepository) Save(ctx context.Context, rec *otp.Record) error {
	m := otpModel{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Code:      rec.Code,
		Type:      string(rec.Type),
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{"code", "expires_at", "updated_at"}),
	}).Create(&m).Error
	if err != nil {
		return otpUnavailable(err)
	}
	return nil
}

// Consume deletes the row only while it still carries rec.Code.
func (r *OTPRepository) Consume(ctx context.Context, rec *otp.Record) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND code = ?", rec.UserID, string(rec.Type), rec.Code).
		Delete(&otpModel{})
	if res.Error != nil {
		return false, otpUnavailable(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func toDomainOTP(m otpModel) *otp.Record {
	return &otp.Record{
		ID:        m.ID,
		UserID:    m.UserID,
		Code:      m.Code,
		Type:      otp.Type(m.Type),
		ExpiresAt: m.ExpiresAt,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
