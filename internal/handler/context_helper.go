package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/generyand/umdc-cec-system-sub001/internal/middleware"
	"github.com/generyand/umdc-cec-system-sub001/internal/models"
	appErrors "github.com/generyand/umdc-cec-system-sub001/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorID returns the authenticated user id or an unauthorized error.
func actorID(c *gin.Context) (string, error) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		return "", appErrors.ErrUnauthorized
	}
	return claims.UserID, nil
}
