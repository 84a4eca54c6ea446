package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrEthical07/havenAuth/permission"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const assignmentsWithRoleSQL = `SELECT a.id, a.user_id, a.business_id, a.role_id, a.overrides,
	a.created_at, a.updated_at,
	r.id AS r_id, r.business_id AS r_business_id, r.name AS r_name,
	r.resources AS r_resources, r.created_at AS r_created_at, r.updated_at AS r_updated_at
FROM permission_assignments a
LEFT JOIN permission_roles r ON r.id = a.role_id
WHERE a.user_id = ?
ORDER BY a.created_at, a.id`

// PermissionRepository implements permission.Source and permission.RoleStore.
type PermissionRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func (r *PermissionRepository) OwnedBusinesses(ctx context.Context, userID string) ([]permission.Business, error) {
	var rows []businessModel
	if err := r.db.WithContext(ctx).Where("owner_id = ?", userID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load owned businesses: %w", err)
	}
	out := make([]permission.Business, 0, len(rows))
	for _, row := range rows {
		out = append(out, permission.Business{ID: row.ID, OwnerID: row.OwnerID})
	}
	return out, nil
}

// Assignments loads the user's assignments joined with their roles. An
// assignment whose role row is gone comes back with a nil Role.
func (r *PermissionRepository) Assignments(ctx context.Context, userID string) ([]permission.Assignment, error) {
	var rows []assignmentRoleRow
	if err := r.db.WithContext(ctx).Raw(assignmentsWithRoleSQL, userID).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	out := make([]permission.Assignment, 0, len(rows))
	for _, row := range rows {
		asg, err := toDomainAssignment(row.assignmentModel)
		if err != nil {
			return nil, err
		}
		if row.RoleRowID != nil {
			role, err := toDomainRole(roleModel{
				ID:         *row.RoleRowID,
				BusinessID: derefString(row.RoleBusinessID),
				Name:       derefString(row.RoleName),
				Resources:  derefString(row.RoleResources),
				CreatedAt:  derefTime(row.RoleCreatedAt),
				UpdatedAt:  derefTime(row.RoleUpdatedAt),
			})
			if err != nil {
				return nil, err
			}
			asg.Role = role
		}
		out = append(out, *asg)
	}
	return out, nil
}

func (r *PermissionRepository) ShopsForBusinesses(ctx context.Context, businessIDs []string) ([]permission.Shop, error) {
	if len(businessIDs) == 0 {
		return nil, nil
	}
	var rows []shopModel
	if err := r.db.WithContext(ctx).Where("business_id IN ?", businessIDs).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load shops: %w", err)
	}
	out := make([]permission.Shop, 0, len(rows))
	for _, row := range rows {
		out = append(out, permission.Shop{ID: row.ID, PublicID: row.PublicID, BusinessID: row.BusinessID})
	}
	return out, nil
}

// UpsertSnapshot replaces the stored snapshot of userID.
func (r *PermissionRepository) UpsertSnapshot(ctx context.Context, userID string, snap permission.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	rec := userPermissionModel{
		UserID:      userID,
		Permissions: string(raw),
		UpdatedAt:   r.now(),
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"permissions", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (r *PermissionRepository) CreateRole(ctx context.Context, role *permission.Role) error {
	rec, err := fromDomainRole(role)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

func (r *PermissionRepository) Role(ctx context.Context, roleID string) (*permission.Role, error) {
	var rec roleModel
	if err := r.db.WithContext(ctx).Where("id = ?", roleID).Take(&rec).Error; err != nil {
		if isNotFound(err) {
			return nil, permission.ErrNotFound
		}
		return nil, fmt.Errorf("load role: %w", err)
	}
	return toDomainRole(rec)
}

func (r *PermissionRepository) SaveRole(ctx context.Context, role *permission.Role) error {
	rec, err := fromDomainRole(role)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&roleModel{}).
		Where("id = ?", rec.ID).
		Updates(map[string]any{
			"name":       rec.Name,
			"resources":  rec.Resources,
			"updated_at": rec.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("save role: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return permission.ErrNotFound
	}
	return nil
}

func (r *PermissionRepository) RolesForBusiness(ctx context.Context, businessID string) ([]permission.Role, error) {
	var rows []roleModel
	if err := r.db.WithContext(ctx).Where("business_id = ?", businessID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	out := make([]permission.Role, 0, len(rows))
	for _, row := range rows {
		role, err := toDomainRole(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *role)
	}
	return out, nil
}

func (r *PermissionRepository) CreateAssignment(ctx context.Context, a *permission.Assignment) error {
	rec, err := fromDomainAssignment(a)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user already assigned in business: %w", err)
		}
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

func (r *PermissionRepository) AssignmentFor(ctx context.Context, businessID, userID string) (*permission.Assignment, error) {
	var rec assignmentModel
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND user_id = ?", businessID, userID).
		Take(&rec).Error
	if err != nil {
		if isNotFound(err) {
			return nil, permission.ErrNotFound
		}
		return nil, fmt.Errorf("load assignment: %w", err)
	}
	return toDomainAssignment(rec)
}

func (r *PermissionRepository) SaveAssignment(ctx context.Context, a *permission.Assignment) error {
	rec, err := fromDomainAssignment(a)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&assignmentModel{}).
		Where("id = ?", rec.ID).
		Updates(map[string]any{
			"role_id":    rec.RoleID,
			"overrides":  rec.Overrides,
			"updated_at": rec.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("save assignment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return permission.ErrNotFound
	}
	return nil
}

func (r *PermissionRepository) DeleteAssignment(ctx context.Context, assignmentID string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", assignmentID).Delete(&assignmentModel{}).Error; err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

func (r *PermissionRepository) AssignmentsForBusiness(ctx context.Context, businessID string) ([]permission.Assignment, error) {
	var rows []assignmentModel
	if err := r.db.WithContext(ctx).Where("business_id = ?", businessID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	out := make([]permission.Assignment, 0, len(rows))
	for _, row := range rows {
		asg, err := toDomainAssignment(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *asg)
	}
	return out, nil
}

func toDomainRole(m roleModel) (*permission.Role, error) {
	role := &permission.Role{
		ID:         m.ID,
		Name:       m.Name,
		BusinessID: m.BusinessID,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.Resources != "" {
		if err := json.Unmarshal([]byte(m.Resources), &role.Resources); err != nil {
			return nil, fmt.Errorf("decode role %s resources: %w", m.ID, err)
		}
	}
	return role, nil
}

func fromDomainRole(role *permission.Role) (roleModel, error) {
	resources := role.Resources
	if resources == nil {
		resources = permission.Resources{}
	}
	raw, err := json.Marshal(resources)
	if err != nil {
		return roleModel{}, fmt.Errorf("encode role resources: %w", err)
	}
	return roleModel{
		ID:         role.ID,
		BusinessID: role.BusinessID,
		Name:       role.Name,
		Resources:  string(raw),
		CreatedAt:  role.CreatedAt,
		UpdatedAt:  role.UpdatedAt,
	}, nil
}

func toDomainAssignment(m assignmentModel) (*permission.Assignment, error) {
	asg := &permission.Assignment{
		ID:         m.ID,
		UserID:     m.UserID,
		BusinessID: m.BusinessID,
		RoleID:     m.RoleID,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.Overrides != nil && *m.Overrides != "" && *m.Overrides != "null" {
		var o permission.Overrides
		if err := json.Unmarshal([]byte(*m.Overrides), &o); err != nil {
			return nil, fmt.Errorf("decode assignment %s overrides: %w", m.ID, err)
		}
		asg.Overrides = &o
	}
	return asg, nil
}

func fromDomainAssignment(a *permission.Assignment) (assignmentModel, error) {
	rec := assignmentModel{
		ID:         a.ID,
		UserID:     a.UserID,
		BusinessID: a.BusinessID,
		RoleID:     a.RoleID,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	if a.Overrides != nil {
		raw, err := json.Marshal(a.Overrides)
		if err != nil {
			return assignmentModel{}, fmt.Errorf("encode overrides: %w", err)
		}
		s := string(raw)
		rec.Overrides = &s
	}
	return rec, nil
}

func derefTime(v *time.Time) time.Time {
	if v == nil {
		return time.Time{}
	}
	return *v
}
