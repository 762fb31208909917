package model

import (
	"time"

	"github.com/google/uuid"
)

// ManagerAssignment maps a comercial to their single manager. The relation
// has depth exactly one: a manager's own manager gains nothing through it.
type ManagerAssignment struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ComercialID string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"comercial_id"`
	ManagerID   string    `gorm:"type:varchar(64);not null;index" json:"manager_id"`
	AssignedBy  string    `gorm:"type:varchar(64);not null" json:"assigned_by"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// VisibilityGrant is a directional viewer→owner pair: the viewer may see the
// owner's contacts. Many-to-many, no hierarchy semantics implied.
type VisibilityGrant struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ViewerID  string    `gorm:"type:varchar(64);not null;index;uniqueIndex:idx_grant_pair" json:"viewer_id"`
	OwnerID   string    `gorm:"type:varchar(64);not null;index;uniqueIndex:idx_grant_pair" json:"owner_id"`
	GrantedBy string    `gorm:"type:varchar(64);not null" json:"granted_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// DeletePermission is the per-user delete capability flag. Only meaningful
// for comerciales; admins may always delete.
type DeletePermission struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"user_id"`
	CanDelete bool      `gorm:"default:false" json:"can_delete"`
	UpdatedBy string    `gorm:"type:varchar(64)" json:"updated_by"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
