package model

import (
	"time"

	"github.com/google/uuid"
)

// ComercialIDImport marks contacts loaded from a spreadsheet that carried
// their own comercial name; such rows are not owned by any real user.
const ComercialIDImport = "excel_import"

// Contact is a managed outreach record. ComercialID is the owner key the
// visibility resolver matches against; it is a string rather than a uuid
// because imported rows use the synthetic excel_import identifier.
type Contact struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Nombre          string    `gorm:"type:varchar(255);not null" json:"nombre"`
	Universidad     string    `gorm:"type:varchar(255);not null;index" json:"universidad"`
	Titulacion      string    `gorm:"type:varchar(255);not null;index" json:"titulacion"`
	Curso           *int      `json:"curso"`
	Telefono        string    `gorm:"type:varchar(20);index" json:"telefono,omitempty"`
	Instagram       string    `gorm:"type:varchar(100)" json:"instagram,omitempty"`
	BirthYear       *int      `json:"ano_nacimiento,omitempty"`
	ComercialID     string    `gorm:"type:varchar(64);not null;index" json:"comercial_id"`
	ComercialNombre string    `gorm:"type:varchar(255)" json:"comercial_nombre"`
	FechaAlta       time.Time `gorm:"autoCreateTime" json:"fecha_alta"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
