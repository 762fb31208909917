package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ContactHandler struct {
	contactService service.ContactService
	importService  service.ImportService
	userService    service.UserService
	auditService   service.AuditService
}

// NewContactHandler sets up the routing dependencies for Contact endpoints
func NewContactHandler(contactService service.ContactService, importService service.ImportService, userService service.UserService, auditService service.AuditService) *ContactHandler {
	return &ContactHandler{contactService: contactService, importService: importService, userService: userService, auditService: auditService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *ContactHandler) RegisterRoutes(router *gin.RouterGroup) {
	anyRole := middleware.RequireRole(model.RoleAdmin, model.RoleComercial)

	contacts := router.Group("/api/contacts", anyRole)
	{
		contacts.GET("", h.ListContacts)
		contacts.POST("", h.CreateContact)
		contacts.GET("/export", h.ExportContacts)
		contacts.POST("/check-duplicates", h.CheckDuplicates)
		contacts.POST("/bulk-delete", h.BulkDeleteContacts)
		contacts.DELETE("/all", middleware.RequireRole(model.RoleAdmin), h.ClearAllContacts)
		contacts.POST("/import/preview", h.PreviewImport)
		contacts.POST("/import", h.ImportContacts)
		contacts.GET("/:id", h.GetContact)
		contacts.PUT("/:id", h.UpdateContact)
		contacts.DELETE("/:id", h.DeleteContact)
	}
}

func contactError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrContactNotFound):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
	case errors.Is(err, service.ErrAccessDenied):
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, err.Error()))
	default:
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
	}
}

// ListContacts returns the caller's visible contacts with filters applied
// @Summary      List contacts
// @Description  Lists contacts visible to the caller, filtered and paginated
// @Tags         contacts
// @Security     BearerAuth
// @Produce      json
// @Param        page         query     int     false  "Page number (default: 1)"
// @Param        limit        query     int     false  "Items per page (default: 20)"
// @Param        search       query     string  false  "Search by nombre or telefono"
// @Param        universidad  query     string  false  "Filter by universidad"
// @Param        titulacion   query     string  false  "Filter by titulacion"
// @Param        curso        query     int     false  "Filter by curso"
// @Success      200          {object}  response.Response{data=[]model.Contact}
// @Router       /api/contacts [get]
func (h *ContactHandler) ListContacts(c *gin.Context) {
	viewer, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	filter := repository.ContactFilter{
		Search:      c.Query("search"),
		Universidad: c.Query("universidad"),
		Titulacion:  c.Query("titulacion"),
	}
	if raw := c.Query("curso"); raw != "" {
		if curso, err := strconv.Atoi(raw); err == nil {
			filter.Curso = &curso
		}
	}

	params := pagination.Parse(c)
	contacts, total, err := h.contactService.ListContacts(c.Request.Context(), viewer, filter, params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.SuccessPaginated(http.StatusOK, contacts, response.Meta{
		Page:  params.Page,
		Limit: params.Limit,
		Total: total,
	}))
}

// CreateContact handles POST /api/contacts
// @Summary      Create contact
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateContactRequest  true  "Contact payload"
// @Success      201      {object}  response.Response{data=model.Contact}
// @Failure      400      {object}  response.Response
// @Router       /api/contacts [post]
func (h *ContactHandler) CreateContact(c *gin.Context) {
	viewer, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	var req service.CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	contact, err := h.contactService.CreateContact(c.Request.Context(), viewer, req)
	if err != nil {
		contactError(c, err)
		return
	}

	h.auditService.Record(c.Request.Context(), &viewer.ID, model.ActionCreateContact, contact.ID.String(), contact.Nombre, nil)
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, contact))
}

// GetContact returns one contact if the caller may see it
// @Summary      Get contact by id
// @Tags         contacts
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Contact ID"
// @Success      200  {object}  response.Response{data=model.Contact}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/contacts/{id} [get]
func (h *ContactHandler) GetContact(c *gin.Context) {
	viewer, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	contact, err := h.contactService.GetContact(c.Request.Context(), viewer, c.Param("id"))
	if err != nil {
		contactError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, contact))
}

// UpdateContact handles PUT /api/contacts/:id
// @Summary      Update contact
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                        true  "Contact ID"
// @Param        payload  body      service.UpdateContactRequest  true  "Fields to update"
// @Success      200      {object}  response.Response{data=model.Contact}
// @Failure      403      {object}  response.Response
// @Router       /api/contacts/{id} [put]
func (h *ContactHandler) UpdateContact(c *gin.Context) {
	viewer, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	var req service.UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	contact, err := h.contactService.UpdateContact(c.Request.Context(), viewer, c.Param("id"), req)
	if err != nil {
		contactError(c, err)
		return
	}

	h.auditService.Record(c.Request.Context(), &viewer.ID, model.ActionUpdateContact, contact.ID.String(), contact.Nombre, nil)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, contact))
}

// DeleteContact handles DELETE /api/contacts/:id
// @Summary      Delete contact
// @Tags         contacts
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Contact ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Router       /api/contacts/{id} [delete]
func (h *ContactHandler) DeleteContact(c *gin.Context) {
	viewer, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	if err := h.contactService.DeleteContact(c.Request.Context(), viewer, c.Param("id")); err != nil {
		contactError(c, err)
		return
	}

	h.auditService.Record(c.Request.Context(), &viewer.ID, model.ActionDeleteContact, c.Param("id"), "", nil)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "contact deleted"}))
}

// BulkDeleteContacts handles POST /api/contacts/bulk-delete
// @Summary      Delete multiple contacts
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      object{ids=[]string}  true  "Contact IDs"
// @Success      200      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/contacts/bulk-delete [post]
func (h *ContactHandler) BulkDeleteContacts(c *gin.Context) {
	viewer, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	var req struct {
		IDs []string `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	deleted, err := h.contactService.DeleteContacts(c.Request.Context(), viewer, req.IDs)
	if err != nil {
		contactError(c, err)
		return
	}

	h.auditService.Record(c.Request.Context(), &viewer.ID, model.ActionBulkDeleteContacts, "", "", gin.H{"deleted": deleted})
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": deleted}))
}

// ClearAllContacts handles DELETE /api/contacts/all (admin only)
// @Summary      Delete every contact
// @Tags         contacts
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/contacts/all [delete]
func (h *ContactHandler) ClearAllContacts(c *gin.Context) {
	viewer, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	if err := h.contactService.ClearAllContacts(c.Request.Context(), viewer); err != nil {
		contactError(c, err)
		return
	}

	h.auditService.Record(c.Request.Context(), &viewer.ID, model.ActionBulkDeleteContacts, "", "", gin.H{"all": true})
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "all contacts deleted"}))
}

// ExportContacts returns the caller's full visible subset as a JSON backup
// @Summary      Export contacts
// @Tags         contacts
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]model.Contact}
// @Router       /api/contacts/export [get]
func (h *ContactHandler) ExportContacts(c *gin.Context) {
	viewer, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	contacts, err := h.contactService.ExportContacts(c.Request.Context(), viewer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="contacts_backup.json"`)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, contacts))
}

// CheckDuplicates handles POST /api/contacts/check-duplicates
// @Summary      Check duplicate telefono/instagram
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      object{telefono=string,instagram=string,exclude_id=string}  true  "Values to check"
// @Success      200      {object}  response.Response{data=service.DuplicateCheckResult}
// @Router       /api/contacts/check-duplicates [post]
func (h *ContactHandler) CheckDuplicates(c *gin.Context) {
	var req struct {
		Telefono  string `json:"telefono"`
		Instagram string `json:"instagram"`
		ExcludeID string `json:"exclude_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	res, err := h.contactService.CheckDuplicates(c.Request.Context(), req.Telefono, req.Instagram, req.ExcludeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// readUpload extracts the uploaded workbook bytes from the multipart form.
func readUpload(c *gin.Context) ([]byte, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Missing file upload"))
		return nil, false
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Could not open upload"))
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Could not read upload"))
		return nil, false
	}
	return data, true
}

// PreviewImport handles POST /api/contacts/import/preview
// @Summary      Preview a workbook before importing
// @Description  Returns the sheet's columns and first rows for the mapping UI
// @Tags         contacts
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file  true  "xlsx workbook"
// @Success      200   {object}  response.Response{data=service.WorkbookPreview}
// @Failure      400   {object}  response.Response
// @Router       /api/contacts/import/preview [post]
func (h *ContactHandler) PreviewImport(c *gin.Context) {
	data, ok := readUpload(c)
	if !ok {
		return
	}

	preview, err := h.importService.Preview(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, preview))
}

// ImportContacts handles POST /api/contacts/import
// @Summary      Import contacts from a workbook
// @Description  Validates each row against the provided column mapping and inserts the valid ones
// @Tags         contacts
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file     formData  file    true  "xlsx workbook"
// @Param        mapping  formData  string  true  "JSON object mapping sheet columns to contact fields"
// @Success      200      {object}  response.Response{data=service.ImportResult}
// @Failure      400      {object}  response.Response
// @Router       /api/contacts/import [post]
func (h *ContactHandler) ImportContacts(c *gin.Context) {
	viewer, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	data, ok := readUpload(c)
	if !ok {
		return
	}

	var mapping map[string]string
	if err := json.Unmarshal([]byte(c.PostForm("mapping")), &mapping); err != nil || len(mapping) == 0 {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid or missing column mapping"))
		return
	}

	result, err := h.importService.Import(c.Request.Context(), viewer, data, mapping)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	h.auditService.Record(c.Request.Context(), &viewer.ID, model.ActionImportContacts, "", "", gin.H{"imported": result.Imported, "skipped": result.Skipped})
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
