package handler

import (
	"net/http"
	"strconv"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
	userService       service.UserService
}

// NewStatisticsHandler sets up the routing dependencies for statistics endpoints
func NewStatisticsHandler(statisticsService service.StatisticsService, userService service.UserService) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService, userService: userService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/statistics", middleware.RequireRole(model.RoleAdmin, model.RoleComercial), h.GetStatistics)
}

// GetStatistics returns aggregated counts over the caller's visible contacts
// @Summary      Contact statistics
// @Description  Per-university and per-titulacion counts over the caller's visible subset
// @Tags         statistics
// @Security     BearerAuth
// @Produce      json
// @Param        universidad  query     string  false  "Filter by universidad"
// @Param        curso        query     int     false  "Filter by curso"
// @Success      200          {object}  response.Response{data=service.StatisticsResponse}
// @Router       /api/statistics [get]
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	viewer, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	var curso *int
	if raw := c.Query("curso"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			curso = &parsed
		}
	}

	stats, err := h.statisticsService.GetStatistics(c.Request.Context(), viewer, c.Query("universidad"), curso)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
