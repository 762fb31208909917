package repository

import (
	"context"

	"backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PermissionRepository persists the three authorization relations: manager
// assignments, explicit visibility grants and per-user delete flags. The
// permission service keeps its own in-memory snapshot; this layer is the
// durable side of each mutation.
type PermissionRepository interface {
	LoadAssignments(ctx context.Context) ([]model.ManagerAssignment, error)
	LoadGrants(ctx context.Context) ([]model.VisibilityGrant, error)
	LoadDeletePermissions(ctx context.Context) ([]model.DeletePermission, error)

	SaveAssignment(ctx context.Context, assignment *model.ManagerAssignment) error
	DeleteAssignment(ctx context.Context, comercialID string) error
	SaveGrant(ctx context.Context, grant *model.VisibilityGrant) error
	DeleteGrant(ctx context.Context, viewerID, ownerID string) error
	SaveDeletePermission(ctx context.Context, perm *model.DeletePermission) error

	// PurgeUser removes every relation row mentioning the given user id, in
	// any position: as manager, as subordinate, as viewer, as owner and as
	// delete-permission key.
	PurgeUser(ctx context.Context, userID string) error
}

type permissionRepository struct {
	db *gorm.DB
}

// NewPermissionRepository returns a new instance of PermissionRepository
func NewPermissionRepository(db *gorm.DB) PermissionRepository {
	return &permissionRepository{db: db}
}

func (r *permissionRepository) LoadAssignments(ctx context.Context) ([]model.ManagerAssignment, error) {
	var assignments []model.ManagerAssignment
	if err := GetDB(ctx, r.db).Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *permissionRepository) LoadGrants(ctx context.Context) ([]model.VisibilityGrant, error) {
	var grants []model.VisibilityGrant
	if err := GetDB(ctx, r.db).Find(&grants).Error; err != nil {
		return nil, err
	}
	return grants, nil
}

func (r *permissionRepository) LoadDeletePermissions(ctx context.Context) ([]model.DeletePermission, error) {
	var perms []model.DeletePermission
	if err := GetDB(ctx, r.db).Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

// SaveAssignment upserts on comercial_id: assigning a new manager replaces
// the previous one instead of adding a second row.
func (r *permissionRepository) SaveAssignment(ctx context.Context, assignment *model.ManagerAssignment) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "comercial_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"manager_id", "assigned_by", "updated_at"}),
	}).Create(assignment).Error
}

func (r *permissionRepository) DeleteAssignment(ctx context.Context, comercialID string) error {
	return GetDB(ctx, r.db).Where("comercial_id = ?", comercialID).Delete(&model.ManagerAssignment{}).Error
}

// SaveGrant upserts on the (viewer, owner) pair for set semantics.
func (r *permissionRepository) SaveGrant(ctx context.Context, grant *model.VisibilityGrant) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "viewer_id"}, {Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"granted_by"}),
	}).Create(grant).Error
}

func (r *permissionRepository) DeleteGrant(ctx context.Context, viewerID, ownerID string) error {
	return GetDB(ctx, r.db).Where("viewer_id = ? AND owner_id = ?", viewerID, ownerID).Delete(&model.VisibilityGrant{}).Error
}

func (r *permissionRepository) SaveDeletePermission(ctx context.Context, perm *model.DeletePermission) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"can_delete", "updated_by", "updated_at"}),
	}).Create(perm).Error
}

func (r *permissionRepository) PurgeUser(ctx context.Context, userID string) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("comercial_id = ? OR manager_id = ?", userID, userID).Delete(&model.ManagerAssignment{}).Error; err != nil {
		return err
	}
	if err := db.Where("viewer_id = ? OR owner_id = ?", userID, userID).Delete(&model.VisibilityGrant{}).Error; err != nil {
		return err
	}
	return db.Where("user_id = ?", userID).Delete(&model.DeletePermission{}).Error
}
