package service

import (
	"context"
	"testing"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contactFixture struct {
	contacts    ContactService
	permissions PermissionService
	repo        *fakeContactRepo
	admin       *model.User
}

func newContactFixture(t *testing.T, users ...*model.User) *contactFixture {
	t.Helper()
	admin := newTestUser("Admin", model.RoleAdmin, true)
	perms, err := NewPermissionService(context.Background(), newFakeUserRepo(append(users, admin)...), &fakePermissionRepo{}, &fakeAuditRepo{})
	require.NoError(t, err)

	repo := newFakeContactRepo()
	return &contactFixture{
		contacts:    NewContactService(repo, perms, nil),
		permissions: perms,
		repo:        repo,
		admin:       admin,
	}
}

func (f *contactFixture) addContact(t *testing.T, owner *model.User, nombre string) *model.Contact {
	t.Helper()
	c := &model.Contact{
		Nombre:          nombre,
		Universidad:     "UCM",
		Titulacion:      "ADE",
		ComercialID:     owner.ID.String(),
		ComercialNombre: owner.Nombre,
	}
	require.NoError(t, f.repo.Create(context.Background(), c))
	return c
}

func TestListContactsAppliesVisibility(t *testing.T) {
	marcos := newTestUser("Marcos Bejerano", model.RoleComercial, true)
	adrian := newTestUser("Adrian Vazquez", model.RoleComercial, true)
	f := newContactFixture(t, marcos, adrian)
	ctx := context.Background()

	f.addContact(t, marcos, "Laura")
	f.addContact(t, adrian, "Pedro")
	imported := &model.Contact{Nombre: "Eva", Universidad: "UCM", Titulacion: "ADE", ComercialID: model.ComercialIDImport, ComercialNombre: "Rafa Cruz"}
	require.NoError(t, f.repo.Create(ctx, imported))

	// Admin sees everything, including imported rows.
	all, total, err := f.contacts.ListContacts(ctx, f.admin, repository.ContactFilter{}, 1, 20)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.EqualValues(t, 3, total)

	// A comercial only sees their own.
	own, total, err := f.contacts.ListContacts(ctx, marcos, repository.ContactFilter{}, 1, 20)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "Laura", own[0].Nombre)
	assert.EqualValues(t, 1, total)

	// A grant widens the visible subset.
	require.NoError(t, f.permissions.GrantVisibility(ctx, f.admin, adrian.ID.String(), marcos.ID.String()))
	widened, total, err := f.contacts.ListContacts(ctx, marcos, repository.ContactFilter{}, 1, 20)
	require.NoError(t, err)
	assert.Len(t, widened, 2)
	assert.EqualValues(t, 2, total)
}

func TestListContactsPaginatesVisibleSubset(t *testing.T) {
	marcos := newTestUser("Marcos Bejerano", model.RoleComercial, true)
	adrian := newTestUser("Adrian Vazquez", model.RoleComercial, true)
	f := newContactFixture(t, marcos, adrian)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f.addContact(t, marcos, "Propio")
		f.addContact(t, adrian, "Ajeno")
	}

	page1, total, err := f.contacts.ListContacts(ctx, marcos, repository.ContactFilter{}, 1, 3)
	require.NoError(t, err)
	// Totals count the visible subset, not the raw rows.
	assert.EqualValues(t, 5, total)
	assert.Len(t, page1, 3)

	page2, _, err := f.contacts.ListContacts(ctx, marcos, repository.ContactFilter{}, 2, 3)
	require.NoError(t, err)
	assert.Len(t, page2, 2)

	empty, _, err := f.contacts.ListContacts(ctx, marcos, repository.ContactFilter{}, 3, 3)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetContactDeniedOutsideVisibleSubset(t *testing.T) {
	marcos := newTestUser("Marcos Bejerano", model.RoleComercial, true)
	adrian := newTestUser("Adrian Vazquez", model.RoleComercial, true)
	f := newContactFixture(t, marcos, adrian)
	ctx := context.Background()

	theirs := f.addContact(t, adrian, "Pedro")

	_, err := f.contacts.GetContact(ctx, marcos, theirs.ID.String())
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = f.contacts.GetContact(ctx, marcos, "1b1e9f64-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrContactNotFound)
}

func TestUpdateContactRequiresOwnership(t *testing.T) {
	marcos := newTestUser("Marcos Bejerano", model.RoleComercial, true)
	adrian := newTestUser("Adrian Vazquez", model.RoleComercial, true)
	f := newContactFixture(t, marcos, adrian)
	ctx := context.Background()

	theirs := f.addContact(t, adrian, "Pedro")
	nuevo := "Pedro Actualizado"

	// Even with a grant, visibility does not allow editing.
	require.NoError(t, f.permissions.GrantVisibility(ctx, f.admin, adrian.ID.String(), marcos.ID.String()))
	_, err := f.contacts.UpdateContact(ctx, marcos, theirs.ID.String(), UpdateContactRequest{Nombre: &nuevo})
	assert.ErrorIs(t, err, ErrAccessDenied)

	updated, err := f.contacts.UpdateContact(ctx, adrian, theirs.ID.String(), UpdateContactRequest{Nombre: &nuevo})
	require.NoError(t, err)
	assert.Equal(t, nuevo, updated.Nombre)
}

func TestDeleteContactNeedsFlagAndVisibility(t *testing.T) {
	marcos := newTestUser("Marcos Bejerano", model.RoleComercial, true)
	adrian := newTestUser("Adrian Vazquez", model.RoleComercial, true)
	f := newContactFixture(t, marcos, adrian)
	ctx := context.Background()

	own := f.addContact(t, marcos, "Laura")
	theirs := f.addContact(t, adrian, "Pedro")

	// Without the flag a comercial cannot delete even their own contact.
	assert.ErrorIs(t, f.contacts.DeleteContact(ctx, marcos, own.ID.String()), ErrAccessDenied)

	require.NoError(t, f.permissions.SetDeletePermission(ctx, f.admin, marcos.ID.String(), true))
	require.NoError(t, f.contacts.DeleteContact(ctx, marcos, own.ID.String()))

	// The flag alone is not enough for contacts outside the visible subset.
	assert.ErrorIs(t, f.contacts.DeleteContact(ctx, marcos, theirs.ID.String()), ErrAccessDenied)

	require.NoError(t, f.permissions.GrantVisibility(ctx, f.admin, adrian.ID.String(), marcos.ID.String()))
	require.NoError(t, f.contacts.DeleteContact(ctx, marcos, theirs.ID.String()))
}

func TestDeleteContactsRejectsWholeBatchOnOneDenial(t *testing.T) {
	marcos := newTestUser("Marcos Bejerano", model.RoleComercial, true)
	adrian := newTestUser("Adrian Vazquez", model.RoleComercial, true)
	f := newContactFixture(t, marcos, adrian)
	ctx := context.Background()

	own := f.addContact(t, marcos, "Laura")
	theirs := f.addContact(t, adrian, "Pedro")
	require.NoError(t, f.permissions.SetDeletePermission(ctx, f.admin, marcos.ID.String(), true))

	_, err := f.contacts.DeleteContacts(ctx, marcos, []string{own.ID.String(), theirs.ID.String()})
	assert.ErrorIs(t, err, ErrAccessDenied)
	// Nothing was deleted.
	_, err = f.repo.GetByID(ctx, own.ID.String())
	assert.NoError(t, err)

	// Ids that no longer exist are skipped, not errors.
	deleted, err := f.contacts.DeleteContacts(ctx, marcos, []string{own.ID.String(), "4a1e9f64-0000-0000-0000-000000000000"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}

func TestClearAllContactsIsAdminOnly(t *testing.T) {
	marcos := newTestUser("Marcos Bejerano", model.RoleComercial, true)
	f := newContactFixture(t, marcos)
	ctx := context.Background()

	f.addContact(t, marcos, "Laura")

	assert.ErrorIs(t, f.contacts.ClearAllContacts(ctx, marcos), ErrAccessDenied)
	require.NoError(t, f.contacts.ClearAllContacts(ctx, f.admin))

	remaining, _, err := f.contacts.ListContacts(ctx, f.admin, repository.ContactFilter{}, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestCreateContactValidatesFields(t *testing.T) {
	marcos := newTestUser("Marcos Bejerano", model.RoleComercial, true)
	f := newContactFixture(t, marcos)
	ctx := context.Background()

	badCurso := 7
	_, err := f.contacts.CreateContact(ctx, marcos, CreateContactRequest{Nombre: "X", Universidad: "UCM", Titulacion: "ADE", Curso: &badCurso})
	assert.Error(t, err)

	badYear := 1850
	_, err = f.contacts.CreateContact(ctx, marcos, CreateContactRequest{Nombre: "X", Universidad: "UCM", Titulacion: "ADE", BirthYear: &badYear})
	assert.Error(t, err)

	_, err = f.contacts.CreateContact(ctx, marcos, CreateContactRequest{Nombre: "X", Universidad: "UCM", Titulacion: "ADE", Telefono: "12ab"})
	assert.Error(t, err)
}

func TestCreateContactOwnership(t *testing.T) {
	marcos := newTestUser("Marcos Bejerano", model.RoleComercial, true)
	f := newContactFixture(t, marcos)
	ctx := context.Background()

	created, err := f.contacts.CreateContact(ctx, marcos, CreateContactRequest{Nombre: "Laura", Universidad: "UCM", Titulacion: "ADE", Instagram: "@laura.g"})
	require.NoError(t, err)
	assert.Equal(t, marcos.ID.String(), created.ComercialID)
	assert.Equal(t, marcos.Nombre, created.ComercialNombre)
	// The @ prefix is stripped on storage.
	assert.Equal(t, "laura.g", created.Instagram)

	// Rows carrying their own comercial name use the synthetic import owner.
	imported, err := f.contacts.CreateContact(ctx, marcos, CreateContactRequest{Nombre: "Eva", Universidad: "UCM", Titulacion: "ADE", Comercial: "Rafa Cruz"})
	require.NoError(t, err)
	assert.Equal(t, model.ComercialIDImport, imported.ComercialID)
	assert.Equal(t, "Rafa Cruz", imported.ComercialNombre)
}

func TestCheckDuplicates(t *testing.T) {
	marcos := newTestUser("Marcos Bejerano", model.RoleComercial, true)
	f := newContactFixture(t, marcos)
	ctx := context.Background()

	existing := f.addContact(t, marcos, "Laura")
	existing.Telefono = "600111222"
	existing.Instagram = "laura.g"
	require.NoError(t, f.repo.Update(ctx, existing))

	// Telefono compares exactly, instagram with the @ prefix stripped.
	res, err := f.contacts.CheckDuplicates(ctx, "600111222", "@laura.g", "")
	require.NoError(t, err)
	assert.True(t, res.Telefono)
	assert.True(t, res.Instagram)

	res, err = f.contacts.CheckDuplicates(ctx, "600 111 222", "otra", "")
	require.NoError(t, err)
	assert.False(t, res.Telefono)
	assert.False(t, res.Instagram)

	// The contact being edited never matches itself.
	res, err = f.contacts.CheckDuplicates(ctx, "600111222", "laura.g", existing.ID.String())
	require.NoError(t, err)
	assert.False(t, res.Telefono)
	assert.False(t, res.Instagram)
}
