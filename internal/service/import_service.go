package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/websocket"

	"github.com/xuri/excelize/v2"
)

// Contact fields a spreadsheet column may be mapped onto.
const (
	FieldNombre      = "nombre"
	FieldUniversidad = "universidad"
	FieldTitulacion  = "titulacion"
	FieldCurso       = "curso"
	FieldTelefono    = "telefono"
	FieldInstagram   = "instagram"
	FieldBirthYear   = "ano_nacimiento"
	FieldComercial   = "comercial"
)

var importableFields = map[string]bool{
	FieldNombre:      true,
	FieldUniversidad: true,
	FieldTitulacion:  true,
	FieldCurso:       true,
	FieldTelefono:    true,
	FieldInstagram:   true,
	FieldBirthYear:   true,
	FieldComercial:   true,
}

// --- DTOs ---

type WorkbookPreview struct {
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"rows"` // first rows for the mapping UI
}

type RowError struct {
	Row     int    `json:"row"` // 1-based spreadsheet row
	Message string `json:"message"`
}

type ImportResult struct {
	Imported int        `json:"imported"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors"`
}

// ImportService turns an uploaded xlsx workbook into contacts: first sheet
// only, header row mapped onto contact fields by the caller, each data row
// validated and checked for duplicates before the batch insert.
type ImportService interface {
	Preview(data []byte) (*WorkbookPreview, error)
	Import(ctx context.Context, viewer *model.User, data []byte, mapping map[string]string) (*ImportResult, error)
}

type importService struct {
	contactRepo repository.ContactRepository
	txManager   repository.TransactionManager
	hub         *websocket.Hub
}

// NewImportService returns a new instance of ImportService
func NewImportService(contactRepo repository.ContactRepository, txManager repository.TransactionManager, hub *websocket.Hub) ImportService {
	return &importService{contactRepo: contactRepo, txManager: txManager, hub: hub}
}

const previewRows = 5

// readSheet returns the header columns and all data rows of the first sheet.
func readSheet(data []byte) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, errors.New("could not read the workbook: only .xlsx files are supported")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errors.New("the workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, errors.New("the first sheet is empty")
	}

	header := make([]string, 0, len(rows[0]))
	for _, col := range rows[0] {
		header = append(header, strings.TrimSpace(col))
	}
	return header, rows[1:], nil
}

func (s *importService) Preview(data []byte) (*WorkbookPreview, error) {
	header, rows, err := readSheet(data)
	if err != nil {
		return nil, err
	}

	preview := &WorkbookPreview{Columns: header}
	for i, row := range rows {
		if i >= previewRows {
			break
		}
		entry := make(map[string]string, len(header))
		for j, col := range header {
			if j < len(row) {
				entry[col] = row[j]
			}
		}
		preview.Rows = append(preview.Rows, entry)
	}
	return preview, nil
}

func (s *importService) Import(ctx context.Context, viewer *model.User, data []byte, mapping map[string]string) (*ImportResult, error) {
	header, rows, err := readSheet(data)
	if err != nil {
		return nil, err
	}

	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[col] = i
	}
	for excelCol, field := range mapping {
		if !importableFields[field] {
			return nil, fmt.Errorf("unknown contact field %q in column mapping", field)
		}
		if _, ok := colIndex[excelCol]; !ok {
			return nil, fmt.Errorf("column %q not present in the workbook", excelCol)
		}
	}

	existing, err := s.contactRepo.ListFiltered(ctx, repository.ContactFilter{})
	if err != nil {
		return nil, err
	}
	knownTelefonos := make(map[string]bool, len(existing))
	knownInstagrams := make(map[string]bool, len(existing))
	for _, c := range existing {
		if c.Telefono != "" {
			knownTelefonos[c.Telefono] = true
		}
		if c.Instagram != "" {
			knownInstagrams[normalizeInstagram(c.Instagram)] = true
		}
	}

	result := &ImportResult{}
	valid := make([]model.Contact, 0, len(rows))

	for i, row := range rows {
		rowNum := i + 2 // 1-based, after the header row

		cell := func(field string) string {
			for excelCol, mapped := range mapping {
				if mapped == field {
					if idx := colIndex[excelCol]; idx < len(row) {
						return strings.TrimSpace(row[idx])
					}
				}
			}
			return ""
		}

		contact := model.Contact{
			Nombre:      cell(FieldNombre),
			Universidad: cell(FieldUniversidad),
			Titulacion:  cell(FieldTitulacion),
			Telefono:    cell(FieldTelefono),
			Instagram:   normalizeInstagram(cell(FieldInstagram)),
		}

		if contact.Nombre == "" || contact.Universidad == "" || contact.Titulacion == "" {
			result.Skipped++
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: "nombre, universidad and titulacion are required"})
			continue
		}

		if raw := cell(FieldCurso); raw != "" {
			curso, err := strconv.Atoi(raw)
			if err != nil {
				result.Skipped++
				result.Errors = append(result.Errors, RowError{Row: rowNum, Message: "curso is not a number"})
				continue
			}
			contact.Curso = &curso
		}
		if raw := cell(FieldBirthYear); raw != "" {
			year, err := strconv.Atoi(raw)
			if err != nil {
				result.Skipped++
				result.Errors = append(result.Errors, RowError{Row: rowNum, Message: "ano_nacimiento is not a number"})
				continue
			}
			contact.BirthYear = &year
		}

		if err := validateContactFields(contact.Telefono, contact.Curso, contact.BirthYear); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: err.Error()})
			continue
		}

		// Duplicates against existing contacts and within the batch itself
		if contact.Telefono != "" && knownTelefonos[contact.Telefono] {
			result.Skipped++
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: "duplicate telefono"})
			continue
		}
		if contact.Instagram != "" && knownInstagrams[contact.Instagram] {
			result.Skipped++
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: "duplicate instagram"})
			continue
		}
		if contact.Telefono != "" {
			knownTelefonos[contact.Telefono] = true
		}
		if contact.Instagram != "" {
			knownInstagrams[contact.Instagram] = true
		}

		// Rows with their own comercial name keep it under the synthetic
		// import id; the rest belong to the importing user.
		if comercial := cell(FieldComercial); comercial != "" {
			contact.ComercialID = model.ComercialIDImport
			contact.ComercialNombre = comercial
		} else {
			contact.ComercialID = viewer.ID.String()
			contact.ComercialNombre = viewer.Nombre
		}
		contact.FechaAlta = time.Now()

		valid = append(valid, contact)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		return s.contactRepo.CreateBatch(txCtx, valid)
	})
	if err != nil {
		return nil, err
	}

	result.Imported = len(valid)
	if result.Imported > 0 && s.hub != nil {
		s.hub.BroadcastEvent(websocket.EventContactsChanged, map[string]int{"imported": result.Imported})
	}
	return result, nil
}
