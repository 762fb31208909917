package handler

import (
	"errors"
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/internal/websocket"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type PermissionHandler struct {
	permissionService service.PermissionService
	userService       service.UserService
	hub               *websocket.Hub
}

// NewPermissionHandler sets up the routing dependencies for permission endpoints
func NewPermissionHandler(permissionService service.PermissionService, userService service.UserService, hub *websocket.Hub) *PermissionHandler {
	return &PermissionHandler{permissionService: permissionService, userService: userService, hub: hub}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup.
// The whole surface is admin-only: the relations are enumerable in full for
// administrative display and mutable only by admins.
func (h *PermissionHandler) RegisterRoutes(router *gin.RouterGroup) {
	perms := router.Group("/api/permissions", middleware.RequireRole(model.RoleAdmin))
	{
		perms.GET("/grants", h.ListGrants)
		perms.POST("/grants", h.GrantVisibility)
		perms.DELETE("/grants", h.RevokeVisibility)

		perms.GET("/managers", h.ListManagerAssignments)
		perms.PUT("/managers", h.AssignManager)
		perms.DELETE("/managers/:comercialId", h.RemoveManager)

		perms.GET("/delete-permissions", h.ListDeletePermissions)
		perms.PUT("/delete-permissions", h.SetDeletePermission)
	}
}

// permissionResult maps the mutator error kinds onto HTTP statuses. A
// persistence warning still counts as success: the in-memory change stands
// and the caller is told durable state lags behind.
func (h *PermissionHandler) permissionResult(c *gin.Context, err error, data interface{}) {
	switch {
	case err == nil:
		h.hub.BroadcastEvent(websocket.EventPermissionsChanged, nil)
		c.JSON(http.StatusOK, response.Success(http.StatusOK, data))
	case errors.Is(err, service.ErrPersistence):
		h.hub.BroadcastEvent(websocket.EventPermissionsChanged, nil)
		c.JSON(http.StatusOK, response.Warning(http.StatusOK, data, err.Error()))
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, err.Error()))
	case errors.Is(err, service.ErrUnknownUser):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
	case errors.Is(err, service.ErrSelfGrant), errors.Is(err, service.ErrInvalidAssignment):
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
	}
}

// ListGrants returns every explicit viewer→owner grant
// @Summary      List visibility grants
// @Tags         permissions
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.GrantResponse}
// @Router       /api/permissions/grants [get]
func (h *PermissionHandler) ListGrants(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.permissionService.ListGrants()))
}

// GrantVisibility handles POST /api/permissions/grants
// @Summary      Grant visibility
// @Description  Lets viewer_id see contacts owned by owner_id
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      object{owner_id=string,viewer_id=string}  true  "Grant pair"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Router       /api/permissions/grants [post]
func (h *PermissionHandler) GrantVisibility(c *gin.Context) {
	actor, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	var req struct {
		OwnerID  string `json:"owner_id" binding:"required"`
		ViewerID string `json:"viewer_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	err := h.permissionService.GrantVisibility(c.Request.Context(), actor, req.OwnerID, req.ViewerID)
	h.permissionResult(c, err, gin.H{"owner_id": req.OwnerID, "viewer_id": req.ViewerID})
}

// RevokeVisibility handles DELETE /api/permissions/grants
// @Summary      Revoke visibility
// @Tags         permissions
// @Produce      json
// @Security     BearerAuth
// @Param        owner_id   query     string  true  "Owner user id"
// @Param        viewer_id  query     string  true  "Viewer user id"
// @Success      200        {object}  response.Response
// @Router       /api/permissions/grants [delete]
func (h *PermissionHandler) RevokeVisibility(c *gin.Context) {
	actor, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	ownerID := c.Query("owner_id")
	viewerID := c.Query("viewer_id")
	if ownerID == "" || viewerID == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "owner_id and viewer_id are required"))
		return
	}

	err := h.permissionService.RevokeVisibility(c.Request.Context(), actor, ownerID, viewerID)
	h.permissionResult(c, err, gin.H{"owner_id": ownerID, "viewer_id": viewerID})
}

// ListManagerAssignments returns the manager hierarchy
// @Summary      List manager assignments
// @Tags         permissions
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.AssignmentResponse}
// @Router       /api/permissions/managers [get]
func (h *PermissionHandler) ListManagerAssignments(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.permissionService.ListManagerAssignments()))
}

// AssignManager handles PUT /api/permissions/managers
// @Summary      Assign a manager to a comercial
// @Description  Replaces any previous assignment; a comercial has at most one manager
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      object{comercial_id=string,manager_id=string}  true  "Assignment"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/permissions/managers [put]
func (h *PermissionHandler) AssignManager(c *gin.Context) {
	actor, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	var req struct {
		ComercialID string `json:"comercial_id" binding:"required"`
		ManagerID   string `json:"manager_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	err := h.permissionService.AssignManager(c.Request.Context(), actor, req.ComercialID, req.ManagerID)
	h.permissionResult(c, err, gin.H{"comercial_id": req.ComercialID, "manager_id": req.ManagerID})
}

// RemoveManager handles DELETE /api/permissions/managers/:comercialId
// @Summary      Remove a comercial's manager
// @Tags         permissions
// @Produce      json
// @Security     BearerAuth
// @Param        comercialId  path      string  true  "Comercial user id"
// @Success      200          {object}  response.Response
// @Router       /api/permissions/managers/{comercialId} [delete]
func (h *PermissionHandler) RemoveManager(c *gin.Context) {
	actor, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	comercialID := c.Param("comercialId")
	err := h.permissionService.RemoveManager(c.Request.Context(), actor, comercialID)
	h.permissionResult(c, err, gin.H{"comercial_id": comercialID})
}

// ListDeletePermissions returns the per-user delete flags
// @Summary      List delete permissions
// @Tags         permissions
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=map[string]bool}
// @Router       /api/permissions/delete-permissions [get]
func (h *PermissionHandler) ListDeletePermissions(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.permissionService.ListDeletePermissions()))
}

// SetDeletePermission handles PUT /api/permissions/delete-permissions
// @Summary      Toggle a user's delete permission
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      object{user_id=string,can_delete=bool}  true  "Flag"
// @Success      200      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/permissions/delete-permissions [put]
func (h *PermissionHandler) SetDeletePermission(c *gin.Context) {
	actor, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	var req struct {
		UserID    string `json:"user_id" binding:"required"`
		CanDelete *bool  `json:"can_delete" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	err := h.permissionService.SetDeletePermission(c.Request.Context(), actor, req.UserID, *req.CanDelete)
	h.permissionResult(c, err, gin.H{"user_id": req.UserID, "can_delete": *req.CanDelete})
}
