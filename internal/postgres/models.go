package postgres

import "time"

type userModel struct {
	ID           string    `gorm:"column:id;primaryKey"`
	Email        string    `gorm:"column:email"`
	Username     string    `gorm:"column:username"`
	Name         string    `gorm:"column:name"`
	Avatar       string    `gorm:"column:avatar"`
	Roles        string    `gorm:"column:roles;type:jsonb"`
	ActiveShopID *string   `gorm:"column:active_shop_id"`
	PasswordHash *string   `gorm:"column:password_hash"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

type sessionModel struct {
	ID             string    `gorm:"column:id;primaryKey"`
	TokenHash      string    `gorm:"column:token_hash"`
	UserID         string    `gorm:"column:user_id"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
	UserAgent      string    `gorm:"column:user_agent"`
	IPAddress      *string   `gorm:"column:ip_address"`
	ImpersonatedBy *string   `gorm:"column:impersonated_by"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (sessionModel) TableName() string { return "sessions" }

// sessionUserRow is one row of the session/user join. User columns are
// pointers because the join is LEFT and the user may be gone.
type sessionUserRow struct {
	sessionModel
	UserRowID        *string `gorm:"column:u_id"`
	UserEmail        *string `gorm:"column:u_email"`
	UserUsername     *string `gorm:"column:u_username"`
	UserName         *string `gorm:"column:u_name"`
	UserAvatar       *string `gorm:"column:u_avatar"`
	UserRoles        *string `gorm:"column:u_roles"`
	UserActiveShopID *string `gorm:"column:u_active_shop_id"`
}

type businessModel struct {
	ID      string `gorm:"column:id;primaryKey"`
	OwnerID string `gorm:"column:owner_id"`
}

func (businessModel) TableName() string { return "businesses" }

type shopModel struct {
	ID         string `gorm:"column:id;primaryKey"`
	PublicID   string `gorm:"column:public_id"`
	BusinessID string `gorm:"column:business_id"`
}

func (shopModel) TableName() string { return "shops" }

type roleModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	BusinessID string    `gorm:"column:business_id"`
	Name       string    `gorm:"column:name"`
	Resources  string    `gorm:"column:resources;type:jsonb"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (roleModel) TableName() string { return "permission_roles" }

type assignmentModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	UserID     string    `gorm:"column:user_id"`
	BusinessID string    `gorm:"column:business_id"`
	RoleID     string    `gorm:"column:role_id"`
	Overrides  *string   `gorm:"column:overrides;type:jsonb"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (assignmentModel) TableName() string { return "permission_assignments" }

// assignmentRoleRow is one row of the assignment/role join.
type assignmentRoleRow struct {
	assignmentModel
	RoleRowID      *string    `gorm:"column:r_id"`
	RoleBusinessID *string    `gorm:"column:r_business_id"`
	RoleName       *string    `gorm:"column:r_name"`
	RoleResources  *string    `gorm:"column:r_resources"`
	RoleCreatedAt  *time.Time `gorm:"column:r_created_at"`
	RoleUpdatedAt  *time.Time `gorm:"column:r_updated_at"`
}

type userPermissionModel struct {
	UserID      string    `gorm:"column:user_id;primaryKey"`
	Permissions string    `gorm:"column:permissions;type:jsonb"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (userPermissionModel) TableName() string { return "user_permissions" }

type otpModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	UserID    string    `gorm:"column:user_id"`
	Code      string    `gorm:"column:code"`
	Type      string    `gorm:"column:type"`
	ExpiresAt time.Time `gorm:"column:expires_at"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (otpModel) TableName() string { return "otps" }

type passkeyModel struct {
	ID           string    `gorm:"column:id;primaryKey"`
	CredentialID string    `gorm:"column:credential_id"`
	UserID       string    `gorm:"column:user_id"`
	Name         string    `gorm:"column:name"`
	PublicKey    string    `gorm:"column:public_key"`
	Counter      int64     `gorm:"column:counter"`
	DeviceType   string    `gorm:"column:device_type"`
	Algorithm    int       `gorm:"column:algorithm"`
	Transports   string    `gorm:"column:transports"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (passkeyModel) TableName() string { return "passkeys" }
