package service

import (
	"context"
	"testing"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

var defaultMapping = map[string]string{
	"Nombre":      FieldNombre,
	"Universidad": FieldUniversidad,
	"Titulacion":  FieldTitulacion,
	"Curso":       FieldCurso,
	"Telefono":    FieldTelefono,
	"Instagram":   FieldInstagram,
	"Comercial":   FieldComercial,
}

var workbookHeader = []interface{}{"Nombre", "Universidad", "Titulacion", "Curso", "Telefono", "Instagram", "Comercial"}

func newImportFixture() (ImportService, *fakeContactRepo) {
	repo := newFakeContactRepo()
	return NewImportService(repo, fakeTxManager{}, nil), repo
}

func TestPreviewReturnsColumnsAndFirstRows(t *testing.T) {
	svc, _ := newImportFixture()

	rows := [][]interface{}{workbookHeader}
	for i := 0; i < 8; i++ {
		rows = append(rows, []interface{}{"Laura", "UCM", "ADE", 2, "600111222", "laura.g", ""})
	}
	data := buildWorkbook(t, rows)

	preview, err := svc.Preview(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Nombre", "Universidad", "Titulacion", "Curso", "Telefono", "Instagram", "Comercial"}, preview.Columns)
	assert.Len(t, preview.Rows, 5)
	assert.Equal(t, "Laura", preview.Rows[0]["Nombre"])
}

func TestPreviewRejectsNonWorkbookData(t *testing.T) {
	svc, _ := newImportFixture()

	_, err := svc.Preview([]byte("not a workbook"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx")
}

func TestImportCreatesContactsWithOwnership(t *testing.T) {
	svc, repo := newImportFixture()
	marcos := newTestUser("Marcos Bejerano", model.RoleComercial, true)
	ctx := context.Background()

	data := buildWorkbook(t, [][]interface{}{
		workbookHeader,
		{"Laura", "UCM", "ADE", 2, "600111222", "@laura.g", ""},
		{"Pedro", "UAM", "Derecho", "", "", "", "Rafa Cruz"},
	})

	result, err := svc.Import(ctx, marcos, data, defaultMapping)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Zero(t, result.Skipped)
	assert.Empty(t, result.Errors)

	contacts, err := repo.ListFiltered(ctx, repository.ContactFilter{})
	require.NoError(t, err)
	require.Len(t, contacts, 2)

	byName := make(map[string]model.Contact, len(contacts))
	for _, c := range contacts {
		byName[c.Nombre] = c
	}

	// Plain rows belong to the importing user; the @ prefix is stripped.
	laura := byName["Laura"]
	assert.Equal(t, marcos.ID.String(), laura.ComercialID)
	assert.Equal(t, "laura.g", laura.Instagram)
	require.NotNil(t, laura.Curso)
	assert.Equal(t, 2, *laura.Curso)

	// Rows carrying a comercial name get the synthetic import owner.
	pedro := byName["Pedro"]
	assert.Equal(t, model.ComercialIDImport, pedro.ComercialID)
	assert.Equal(t, "Rafa Cruz", pedro.ComercialNombre)
}

func TestImportSkipsInvalidRows(t *testing.T) {
	svc, _ := newImportFixture()
	marcos := newTestUser("Marcos Bejerano", model.RoleComercial, true)

	data := buildWorkbook(t, [][]interface{}{
		workbookHeader,
		{"", "UCM", "ADE", "", "", "", ""},               // missing nombre
		{"Pedro", "UAM", "Derecho", "siete", "", "", ""}, // curso not a number
		{"Eva", "UCM", "ADE", 9, "", "", ""},             // curso out of range
		{"Ana", "UCM", "ADE", 3, "", "", ""},             // valid
	})

	result, err := svc.Import(context.Background(), marcos, data, defaultMapping)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 3, result.Skipped)
	require.Len(t, result.Errors, 3)
	// Row numbers are 1-based spreadsheet rows, after the header.
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Equal(t, 3, result.Errors[1].Row)
	assert.Equal(t, 4, result.Errors[2].Row)
}

func TestImportSkipsDuplicates(t *testing.T) {
	svc, repo := newImportFixture()
	marcos := newTestUser("Marcos Bejerano", model.RoleComercial, true)
	ctx := context.Background()

	// An already-stored contact whose telefono must not be re-imported.
	require.NoError(t, repo.Create(ctx, &model.Contact{
		Nombre: "Laura", Universidad: "UCM", Titulacion: "ADE",
		Telefono: "600111222", Instagram: "laura.g",
		ComercialID: marcos.ID.String(),
	}))

	data := buildWorkbook(t, [][]interface{}{
		workbookHeader,
		{"Otra Laura", "UCM", "ADE", "", "600111222", "", ""},    // duplicate against existing
		{"Pedro", "UAM", "Derecho", "", "611222333", "", ""},     // valid
		{"Pedro Bis", "UAM", "Derecho", "", "611222333", "", ""}, // duplicate within the batch
		{"Eva", "UCM", "ADE", "", "", "@laura.g", ""},            // duplicate instagram, @ stripped
	})

	result, err := svc.Import(ctx, marcos, data, defaultMapping)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 3, result.Skipped)

	contacts, err := repo.ListFiltered(ctx, repository.ContactFilter{})
	require.NoError(t, err)
	assert.Len(t, contacts, 2)
}

func TestImportValidatesMapping(t *testing.T) {
	svc, _ := newImportFixture()
	marcos := newTestUser("Marcos Bejerano", model.RoleComercial, true)
	ctx := context.Background()

	data := buildWorkbook(t, [][]interface{}{
		workbookHeader,
		{"Laura", "UCM", "ADE", "", "", "", ""},
	})

	_, err := svc.Import(ctx, marcos, data, map[string]string{"Nombre": "apellido"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown contact field")

	_, err = svc.Import(ctx, marcos, data, map[string]string{"Columna Fantasma": FieldNombre})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not present")
}
