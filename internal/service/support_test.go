package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// In-memory repository fakes shared by the service tests. They implement the
// repository interfaces over plain maps so the services under test run
// without a database.

var errNotFound = errors.New("record not found")

// --- users ---

type fakeUserRepo struct {
	users  map[string]*model.User
	tokens map[string]*model.RefreshToken
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	r := &fakeUserRepo{
		users:  make(map[string]*model.User),
		tokens: make(map[string]*model.RefreshToken),
	}
	for _, u := range users {
		r.users[u.ID.String()] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	r.users[user.ID.String()] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, errNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, errNotFound
}

func (r *fakeUserRepo) EmailExists(_ context.Context, email string) (bool, error) {
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) List(_ context.Context) ([]model.User, error) {
	res := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		res = append(res, *u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	if _, ok := r.users[user.ID.String()]; !ok {
		return errNotFound
	}
	r.users[user.ID.String()] = user
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id string) error {
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) SaveRefreshToken(_ context.Context, token *model.RefreshToken) error {
	r.tokens[token.Token] = token
	return nil
}

func (r *fakeUserRepo) GetRefreshToken(_ context.Context, token string) (*model.RefreshToken, error) {
	t, ok := r.tokens[token]
	if !ok {
		return nil, errNotFound
	}
	return t, nil
}

func (r *fakeUserRepo) DeleteRefreshToken(_ context.Context, token string) error {
	delete(r.tokens, token)
	return nil
}

func (r *fakeUserRepo) DeleteRefreshTokensForUser(_ context.Context, userID uuid.UUID) error {
	for token, t := range r.tokens {
		if t.UserID == userID {
			delete(r.tokens, token)
		}
	}
	return nil
}

// --- contacts ---

type fakeContactRepo struct {
	contacts map[string]*model.Contact
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{contacts: make(map[string]*model.Contact)}
}

func (r *fakeContactRepo) Create(_ context.Context, contact *model.Contact) error {
	if contact.ID == uuid.Nil {
		contact.ID = uuid.New()
	}
	if contact.FechaAlta.IsZero() {
		contact.FechaAlta = time.Now()
	}
	r.contacts[contact.ID.String()] = contact
	return nil
}

func (r *fakeContactRepo) CreateBatch(ctx context.Context, contacts []model.Contact) error {
	for i := range contacts {
		c := contacts[i]
		if err := r.Create(ctx, &c); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeContactRepo) GetByID(_ context.Context, id string) (*model.Contact, error) {
	c, ok := r.contacts[id]
	if !ok {
		return nil, errNotFound
	}
	return c, nil
}

func (r *fakeContactRepo) ListFiltered(_ context.Context, filter repository.ContactFilter) ([]model.Contact, error) {
	res := make([]model.Contact, 0, len(r.contacts))
	for _, c := range r.contacts {
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(c.Nombre), needle) && !strings.Contains(c.Telefono, filter.Search) {
				continue
			}
		}
		if filter.Universidad != "" && c.Universidad != filter.Universidad {
			continue
		}
		if filter.Titulacion != "" && c.Titulacion != filter.Titulacion {
			continue
		}
		if filter.Curso != nil && (c.Curso == nil || *c.Curso != *filter.Curso) {
			continue
		}
		res = append(res, *c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].FechaAlta.After(res[j].FechaAlta) })
	return res, nil
}

func (r *fakeContactRepo) Update(_ context.Context, contact *model.Contact) error {
	if _, ok := r.contacts[contact.ID.String()]; !ok {
		return errNotFound
	}
	r.contacts[contact.ID.String()] = contact
	return nil
}

func (r *fakeContactRepo) Delete(_ context.Context, id string) error {
	delete(r.contacts, id)
	return nil
}

func (r *fakeContactRepo) DeleteByIDs(_ context.Context, ids []string) (int64, error) {
	var deleted int64
	for _, id := range ids {
		if _, ok := r.contacts[id]; ok {
			delete(r.contacts, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *fakeContactRepo) DeleteAll(_ context.Context) error {
	r.contacts = make(map[string]*model.Contact)
	return nil
}

// --- permissions ---

// fakePermissionRepo keeps the relations in slices and can be switched into
// a failing mode to exercise the persistence-warning path.
type fakePermissionRepo struct {
	assignments []model.ManagerAssignment
	grants      []model.VisibilityGrant
	deletePerms []model.DeletePermission
	failWrites  bool
}

func (r *fakePermissionRepo) LoadAssignments(_ context.Context) ([]model.ManagerAssignment, error) {
	return r.assignments, nil
}

func (r *fakePermissionRepo) LoadGrants(_ context.Context) ([]model.VisibilityGrant, error) {
	return r.grants, nil
}

func (r *fakePermissionRepo) LoadDeletePermissions(_ context.Context) ([]model.DeletePermission, error) {
	return r.deletePerms, nil
}

func (r *fakePermissionRepo) SaveAssignment(_ context.Context, assignment *model.ManagerAssignment) error {
	if r.failWrites {
		return errors.New("write failed")
	}
	for i := range r.assignments {
		if r.assignments[i].ComercialID == assignment.ComercialID {
			r.assignments[i] = *assignment
			return nil
		}
	}
	r.assignments = append(r.assignments, *assignment)
	return nil
}

func (r *fakePermissionRepo) DeleteAssignment(_ context.Context, comercialID string) error {
	if r.failWrites {
		return errors.New("write failed")
	}
	kept := r.assignments[:0]
	for _, a := range r.assignments {
		if a.ComercialID != comercialID {
			kept = append(kept, a)
		}
	}
	r.assignments = kept
	return nil
}

func (r *fakePermissionRepo) SaveGrant(_ context.Context, grant *model.VisibilityGrant) error {
	if r.failWrites {
		return errors.New("write failed")
	}
	r.grants = append(r.grants, *grant)
	return nil
}

func (r *fakePermissionRepo) DeleteGrant(_ context.Context, viewerID, ownerID string) error {
	if r.failWrites {
		return errors.New("write failed")
	}
	kept := r.grants[:0]
	for _, g := range r.grants {
		if g.ViewerID != viewerID || g.OwnerID != ownerID {
			kept = append(kept, g)
		}
	}
	r.grants = kept
	return nil
}

func (r *fakePermissionRepo) SaveDeletePermission(_ context.Context, perm *model.DeletePermission) error {
	if r.failWrites {
		return errors.New("write failed")
	}
	for i := range r.deletePerms {
		if r.deletePerms[i].UserID == perm.UserID {
			r.deletePerms[i] = *perm
			return nil
		}
	}
	r.deletePerms = append(r.deletePerms, *perm)
	return nil
}

func (r *fakePermissionRepo) PurgeUser(_ context.Context, userID string) error {
	if r.failWrites {
		return errors.New("write failed")
	}
	assignments := r.assignments[:0]
	for _, a := range r.assignments {
		if a.ComercialID != userID && a.ManagerID != userID {
			assignments = append(assignments, a)
		}
	}
	r.assignments = assignments

	grants := r.grants[:0]
	for _, g := range r.grants {
		if g.ViewerID != userID && g.OwnerID != userID {
			grants = append(grants, g)
		}
	}
	r.grants = grants

	perms := r.deletePerms[:0]
	for _, p := range r.deletePerms {
		if p.UserID != userID {
			perms = append(perms, p)
		}
	}
	r.deletePerms = perms
	return nil
}

// --- audit ---

type fakeAuditRepo struct {
	entries []model.AuditLog
}

func (r *fakeAuditRepo) Create(_ context.Context, entry *model.AuditLog) error {
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, page, limit int) ([]model.AuditLog, int64, error) {
	total := int64(len(r.entries))
	start := (page - 1) * limit
	if start >= len(r.entries) {
		return []model.AuditLog{}, total, nil
	}
	end := start + limit
	if end > len(r.entries) {
		end = len(r.entries)
	}
	return r.entries[start:end], total, nil
}

// --- transactions ---

// fakeTxManager runs the callback directly; the fakes have no transactions.
type fakeTxManager struct{}

func (fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// --- fixtures ---

func newTestUser(nombre, role string, activo bool) *model.User {
	return &model.User{
		ID:        uuid.New(),
		Nombre:    nombre,
		Email:     strings.ToLower(strings.ReplaceAll(nombre, " ", ".")) + "@contactos.com",
		Role:      role,
		Activo:    activo,
		CreatedAt: time.Now(),
	}
}

func hashPassword(password string) string {
	hashed, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(hashed)
}
