package repository

import (
	"context"

	"backend/internal/model"

	"gorm.io/gorm"
)

// ContactFilter narrows contact listings before the visibility resolver is
// applied. Empty fields mean "no restriction".
type ContactFilter struct {
	Search      string // matched against nombre (substring, case-insensitive) and telefono
	Universidad string
	Titulacion  string
	Curso       *int
}

// ContactRepository defines the interface for data access of Contact entities
type ContactRepository interface {
	Create(ctx context.Context, contact *model.Contact) error
	CreateBatch(ctx context.Context, contacts []model.Contact) error
	GetByID(ctx context.Context, id string) (*model.Contact, error)
	ListFiltered(ctx context.Context, filter ContactFilter) ([]model.Contact, error)
	Update(ctx context.Context, contact *model.Contact) error
	Delete(ctx context.Context, id string) error
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	DeleteAll(ctx context.Context) error
}

type contactRepository struct {
	db *gorm.DB
}

// NewContactRepository returns a new instance of ContactRepository
func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) Create(ctx context.Context, contact *model.Contact) error {
	return GetDB(ctx, r.db).Create(contact).Error
}

func (r *contactRepository) CreateBatch(ctx context.Context, contacts []model.Contact) error {
	if len(contacts) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).CreateInBatches(contacts, 100).Error
}

func (r *contactRepository) GetByID(ctx context.Context, id string) (*model.Contact, error) {
	var contact model.Contact
	if err := GetDB(ctx, r.db).First(&contact, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &contact, nil
}

// ListFiltered fetches all rows matching the attribute filters; pagination
// happens after the caller's visible subset is resolved, never in the query.
func (r *contactRepository) ListFiltered(ctx context.Context, filter ContactFilter) ([]model.Contact, error) {
	q := GetDB(ctx, r.db).Model(&model.Contact{})

	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("nombre ILIKE ? OR telefono LIKE ?", like, like)
	}
	if filter.Universidad != "" {
		q = q.Where("universidad = ?", filter.Universidad)
	}
	if filter.Titulacion != "" {
		q = q.Where("titulacion = ?", filter.Titulacion)
	}
	if filter.Curso != nil {
		q = q.Where("curso = ?", *filter.Curso)
	}

	var contacts []model.Contact
	if err := q.Order("fecha_alta desc").Find(&contacts).Error; err != nil {
		return nil, err
	}
	return contacts, nil
}

func (r *contactRepository) Update(ctx context.Context, contact *model.Contact) error {
	return GetDB(ctx, r.db).Save(contact).Error
}

func (r *contactRepository) Delete(ctx context.Context, id string) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Contact{}).Error
}

func (r *contactRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := GetDB(ctx, r.db).Where("id IN ?", ids).Delete(&model.Contact{})
	return res.RowsAffected, res.Error
}

func (r *contactRepository) DeleteAll(ctx context.Context) error {
	return GetDB(ctx, r.db).Where("1 = 1").Delete(&model.Contact{}).Error
}
