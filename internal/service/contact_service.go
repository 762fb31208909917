package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/websocket"
	"backend/pkg/pagination"
)

// ErrAccessDenied is returned when the visibility resolver rejects a
// contact mutation for the acting user.
var ErrAccessDenied = errors.New("access denied for this contact")

var ErrContactNotFound = errors.New("contact not found")

// --- DTOs ---

type CreateContactRequest struct {
	Nombre      string `json:"nombre" binding:"required"`
	Universidad string `json:"universidad" binding:"required"`
	Titulacion  string `json:"titulacion" binding:"required"`
	Curso       *int   `json:"curso"`
	Telefono    string `json:"telefono"`
	Instagram   string `json:"instagram"`
	BirthYear   *int   `json:"ano_nacimiento"`
	// Comercial carries a free-form comercial name for spreadsheet rows;
	// when set the contact gets the synthetic import owner id.
	Comercial string `json:"comercial"`
}

type UpdateContactRequest struct {
	Nombre      *string `json:"nombre"`
	Universidad *string `json:"universidad"`
	Titulacion  *string `json:"titulacion"`
	Curso       *int    `json:"curso"`
	Telefono    *string `json:"telefono"`
	Instagram   *string `json:"instagram"`
	BirthYear   *int    `json:"ano_nacimiento"`
}

type DuplicateCheckResult struct {
	Telefono  bool `json:"telefono"`
	Instagram bool `json:"instagram"`
}

// --- Interface ---

// ContactService applies the visibility resolver to every read and guards
// every mutation through the same CanAccess entry point.
type ContactService interface {
	CreateContact(ctx context.Context, viewer *model.User, req CreateContactRequest) (*model.Contact, error)
	GetContact(ctx context.Context, viewer *model.User, id string) (*model.Contact, error)
	ListContacts(ctx context.Context, viewer *model.User, filter repository.ContactFilter, page, limit int) ([]model.Contact, int64, error)
	ExportContacts(ctx context.Context, viewer *model.User) ([]model.Contact, error)
	UpdateContact(ctx context.Context, viewer *model.User, id string, req UpdateContactRequest) (*model.Contact, error)
	DeleteContact(ctx context.Context, viewer *model.User, id string) error
	DeleteContacts(ctx context.Context, viewer *model.User, ids []string) (int64, error)
	ClearAllContacts(ctx context.Context, viewer *model.User) error
	CheckDuplicates(ctx context.Context, telefono, instagram, excludeID string) (*DuplicateCheckResult, error)
}

type contactService struct {
	repo        repository.ContactRepository
	permissions PermissionService
	hub         *websocket.Hub
}

// NewContactService returns a new instance of ContactService
func NewContactService(repo repository.ContactRepository, permissions PermissionService, hub *websocket.Hub) ContactService {
	return &contactService{repo: repo, permissions: permissions, hub: hub}
}

// --- Validation helpers ---

var telefonoRegex = regexp.MustCompile(`^[+]?[0-9\s\-()]{9,15}$`)

func validateContactFields(telefono string, curso, birthYear *int) error {
	if telefono != "" && !telefonoRegex.MatchString(telefono) {
		return errors.New("telefono must be 9-15 digits")
	}
	if curso != nil && (*curso < 1 || *curso > 6) {
		return errors.New("curso must be between 1 and 6")
	}
	if birthYear != nil {
		current := time.Now().Year()
		if *birthYear < 1900 || *birthYear > current {
			return fmt.Errorf("ano_nacimiento must be between 1900 and %d", current)
		}
	}
	return nil
}

// normalizeInstagram strips the optional @ prefix so handles compare equal
// regardless of how they were typed.
func normalizeInstagram(handle string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}

func (s *contactService) notify(event string) {
	if s.hub != nil {
		s.hub.BroadcastEvent(event, nil)
	}
}

// --- CRUD ---

func (s *contactService) CreateContact(ctx context.Context, viewer *model.User, req CreateContactRequest) (*model.Contact, error) {
	if err := validateContactFields(req.Telefono, req.Curso, req.BirthYear); err != nil {
		return nil, err
	}

	contact := &model.Contact{
		Nombre:      req.Nombre,
		Universidad: req.Universidad,
		Titulacion:  req.Titulacion,
		Curso:       req.Curso,
		Telefono:    strings.TrimSpace(req.Telefono),
		Instagram:   normalizeInstagram(req.Instagram),
		BirthYear:   req.BirthYear,
	}

	// Rows carrying their own comercial name (spreadsheet imports) keep it
	// under the synthetic owner id; everything else belongs to the creator.
	if req.Comercial != "" {
		contact.ComercialID = model.ComercialIDImport
		contact.ComercialNombre = req.Comercial
	} else {
		contact.ComercialID = viewer.ID.String()
		contact.ComercialNombre = viewer.Nombre
	}

	if err := s.repo.Create(ctx, contact); err != nil {
		return nil, err
	}

	s.notify(websocket.EventContactsChanged)
	return contact, nil
}

func (s *contactService) GetContact(ctx context.Context, viewer *model.User, id string) (*model.Contact, error) {
	contact, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrContactNotFound
	}
	if !s.permissions.CanAccess(viewer, ActionView, contact.ComercialID) {
		return nil, ErrAccessDenied
	}
	return contact, nil
}

// ListContacts fetches the attribute-filtered rows and then applies the
// resolver as a client-side filter over the full set; the visible subset is
// paginated afterwards so page counts reflect what the caller may see.
func (s *contactService) ListContacts(ctx context.Context, viewer *model.User, filter repository.ContactFilter, page, limit int) ([]model.Contact, int64, error) {
	contacts, err := s.repo.ListFiltered(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	visible := make([]model.Contact, 0, len(contacts))
	for _, c := range contacts {
		if s.permissions.CanAccess(viewer, ActionView, c.ComercialID) {
			visible = append(visible, c)
		}
	}

	total := int64(len(visible))
	start, end := pagination.Window(page, limit, len(visible))
	return visible[start:end], total, nil
}

func (s *contactService) ExportContacts(ctx context.Context, viewer *model.User) ([]model.Contact, error) {
	contacts, err := s.repo.ListFiltered(ctx, repository.ContactFilter{})
	if err != nil {
		return nil, err
	}
	visible := make([]model.Contact, 0, len(contacts))
	for _, c := range contacts {
		if s.permissions.CanAccess(viewer, ActionView, c.ComercialID) {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

func (s *contactService) UpdateContact(ctx context.Context, viewer *model.User, id string, req UpdateContactRequest) (*model.Contact, error) {
	contact, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrContactNotFound
	}
	if !s.permissions.CanAccess(viewer, ActionEdit, contact.ComercialID) {
		return nil, ErrAccessDenied
	}

	if req.Nombre != nil {
		contact.Nombre = *req.Nombre
	}
	if req.Universidad != nil {
		contact.Universidad = *req.Universidad
	}
	if req.Titulacion != nil {
		contact.Titulacion = *req.Titulacion
	}
	if req.Curso != nil {
		contact.Curso = req.Curso
	}
	if req.Telefono != nil {
		contact.Telefono = strings.TrimSpace(*req.Telefono)
	}
	if req.Instagram != nil {
		contact.Instagram = normalizeInstagram(*req.Instagram)
	}
	if req.BirthYear != nil {
		contact.BirthYear = req.BirthYear
	}

	if err := validateContactFields(contact.Telefono, contact.Curso, contact.BirthYear); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, contact); err != nil {
		return nil, err
	}

	s.notify(websocket.EventContactsChanged)
	return contact, nil
}

// canDelete combines the delete flag with visibility: a comercial holding
// the flag may delete any contact they can otherwise see, none otherwise.
func (s *contactService) canDelete(viewer *model.User, ownerID string) bool {
	return s.permissions.CanAccess(viewer, ActionDelete, ownerID) &&
		s.permissions.CanAccess(viewer, ActionView, ownerID)
}

func (s *contactService) DeleteContact(ctx context.Context, viewer *model.User, id string) error {
	contact, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return ErrContactNotFound
	}
	if !s.canDelete(viewer, contact.ComercialID) {
		return ErrAccessDenied
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.notify(websocket.EventContactsChanged)
	return nil
}

func (s *contactService) DeleteContacts(ctx context.Context, viewer *model.User, ids []string) (int64, error) {
	allowed := make([]string, 0, len(ids))
	for _, id := range ids {
		contact, err := s.repo.GetByID(ctx, id)
		if err != nil {
			continue // already gone
		}
		if !s.canDelete(viewer, contact.ComercialID) {
			return 0, ErrAccessDenied
		}
		allowed = append(allowed, id)
	}

	deleted, err := s.repo.DeleteByIDs(ctx, allowed)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.notify(websocket.EventContactsChanged)
	}
	return deleted, nil
}

func (s *contactService) ClearAllContacts(ctx context.Context, viewer *model.User) error {
	if viewer == nil || !viewer.IsAdmin() {
		return ErrAccessDenied
	}
	if err := s.repo.DeleteAll(ctx); err != nil {
		return err
	}
	s.notify(websocket.EventContactsChanged)
	return nil
}

// CheckDuplicates matches the original form behavior: telefono compares
// exactly, instagram compares with the @ prefix stripped from both sides.
func (s *contactService) CheckDuplicates(ctx context.Context, telefono, instagram, excludeID string) (*DuplicateCheckResult, error) {
	contacts, err := s.repo.ListFiltered(ctx, repository.ContactFilter{})
	if err != nil {
		return nil, err
	}

	res := &DuplicateCheckResult{}
	telefono = strings.TrimSpace(telefono)
	instagram = normalizeInstagram(instagram)

	for _, c := range contacts {
		if c.ID.String() == excludeID {
			continue
		}
		if telefono != "" && c.Telefono == telefono {
			res.Telefono = true
		}
		if instagram != "" && c.Instagram != "" && normalizeInstagram(c.Instagram) == instagram {
			res.Instagram = true
		}
	}
	return res, nil
}
