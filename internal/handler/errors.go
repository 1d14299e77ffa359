package handler

import (
	"errors"
	"net/http"

	"societyledger/internal/apperror"
	"societyledger/internal/auth"
	"societyledger/internal/logger"
	"societyledger/internal/middleware"
	"societyledger/internal/model"
	"societyledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Role sets shared by the route tables
var (
	submitRoles = append([]model.UserRole{model.RoleAdmin}, model.OfficerRoles...)
	reviewRoles = append([]model.UserRole{model.RoleAdmin, model.RoleAgent}, model.OfficerRoles...)
	remarkRoles = append([]model.UserRole{model.RoleAgent}, model.OfficerRoles...)
)

// respondError writes err in the standard envelope with the status of its kind
func respondError(c *gin.Context, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		logger.FromGin(c).Error("unhandled error", zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError,
			response.ErrorWithCode(http.StatusInternalServerError, string(apperror.KindInternal), "internal server error", nil))
		return
	}

	status := appErr.Kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", zap.String("kind", string(appErr.Kind)), zap.Error(err))
		_ = c.Error(err)
	}

	var details interface{}
	if len(appErr.Details) > 0 {
		details = appErr.Details
	}
	c.JSON(status, response.ErrorWithCode(status, string(appErr.Kind), appErr.Message, details))
}

func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		respondError(c, middleware.BindingError(err))
		return false
	}
	return true
}

func currentPrincipal(c *gin.Context) (auth.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		respondError(c, apperror.Unauthorized("authentication required"))
	}
	return p, ok
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, apperror.Validation("invalid id", apperror.FieldError{Field: name, Message: "must be a valid id"}))
		return uuid.Nil, false
	}
	return id, true
}

// optionalQueryID parses an optional uuid query parameter
func optionalQueryID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(c, apperror.Validation("invalid query", apperror.FieldError{Field: name, Message: "must be a valid id"}))
		return nil, false
	}
	return &id, true
}
