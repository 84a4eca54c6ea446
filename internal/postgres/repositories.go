package postgres

import (
	"time"

	"github.com/MrEthical07/havenAuth/otp"
	"github.com/MrEthical07/havenAuth/passkey"
	"github.com/MrEthical07/havenAuth/permission"
	"github.com/MrEthical07/havenAuth/session"
	"gorm.io/gorm"
)

// Repositories groups every store backed by one connection pool.
type Repositories struct {
	Users       *UserRepository
	Sessions    *SessionRepository
	Permissions *PermissionRepository
	OTPs        *OTPRepository
	Passkeys    *PasskeyRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return newRepositories(db, time.Now)
}

func newRepositories(db *gorm.DB, now func() time.Time) Repositories {
	return Repositories{
		Users:       &UserRepository{db: db},
		Sessions:    &SessionRepository{db: db, now: now},
		Permissions: &PermissionRepository{db: db, now: now},
		OTPs:        &OTPRepository{db: db},
		Passkeys:    &PasskeyRepository{db: db, now: now},
	}
}

var (
	_ session.Store           = (*SessionRepository)(nil)
	_ session.UserLookup      = (*UserRepository)(nil)
	_ permission.Source       = (*PermissionRepository)(nil)
	_ permission.RoleStore    = (*PermissionRepository)(nil)
	_ otp.Store               = (*OTPRepository)(nil)
	_ passkey.CredentialStore = (*PasskeyRepository)(nil)
)
