package handler

import (
	"net/http"

	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// currentUser resolves the authenticated user model from the userID the auth
// middleware stored in the context. Aborts with the proper status on failure.
func currentUser(c *gin.Context, users service.UserService) (*model.User, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return nil, false
	}

	idStr, ok := userID.(string)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid User ID format"))
		return nil, false
	}

	user, err := users.GetUserModel(c.Request.Context(), idStr)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User no longer exists"))
		return nil, false
	}
	return user, true
}
