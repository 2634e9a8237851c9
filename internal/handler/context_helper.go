package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lessonsync-api/internal/middleware"
	"github.com/noah-isme/lessonsync-api/internal/models"
	appErrors "github.com/noah-isme/lessonsync-api/pkg/errors"
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

func actorFromContext(c *gin.Context) (models.Actor, error) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		return models.Actor{}, appErrors.ErrUnauthorized
	}
	return claims.Actor(), nil
}

// dateValue parses a required date, accepting YYYY-MM-DD and DD-MM-YYYY.
func dateValue(raw, name string) (models.Date, error) {
	if raw == "" {
		return models.Date{}, appErrors.Clone(appErrors.ErrValidation, name+" is required")
	}
	date, err := models.ParseDate(raw)
	if err != nil {
		return models.Date{}, appErrors.Clone(appErrors.ErrValidation, "invalid "+name)
	}
	return date, nil
}

// optionalDate returns the zero date when raw is empty.
func optionalDate(raw, name string) (models.Date, error) {
	if raw == "" {
		return models.Date{}, nil
	}
	return dateValue(raw, name)
}

func intQuery(c *gin.Context, name string, fallback, max int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 || value > max {
		return 0, appErrors.Clone(appErrors.ErrValidation, name+" must be between 1 and "+strconv.Itoa(max))
	}
	return value, nil
}
