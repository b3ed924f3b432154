package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/permitkit/permitflow/internal/apierrors"
	"github.com/permitkit/permitflow/internal/middleware"
	"github.com/permitkit/permitflow/internal/models"
	"github.com/permitkit/permitflow/internal/repository"
	"github.com/permitkit/permitflow/internal/services/applications"
)

// APIResponse is the standard success envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func sendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

func sendCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

func sendError(c *gin.Context, status int, message string) {
	c.JSON(status, APIResponse{Success: false, Message: message})
}

// paramID parses the :id route parameter. On failure it responds with
// core:invalid_id and returns false.
func paramID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		apierrors.Error(c, apierrors.CodeInvalidID)
		return 0, false
	}
	return id, true
}

// requestUser returns the authenticated user set by the auth middleware. On
// failure it responds with core:unauthorized and returns false.
func requestUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apierrors.Error(c, apierrors.CodeUnauthorized)
		return nil, false
	}
	return user, true
}

// respondRepoError translates repository errors into API error responses.
func respondRepoError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		apierrors.Error(c, apierrors.CodeNotFound)
	case errors.Is(err, repository.ErrParkInUse):
		apierrors.Error(c, apierrors.CodeParkInUse)
	default:
		apierrors.Error(c, apierrors.CodeInternalError)
	}
}

// respondApplicationError translates lifecycle service errors into API error
// responses.
func respondApplicationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		apierrors.Error(c, apierrors.CodeNotFound)
	case errors.Is(err, applications.ErrForbidden):
		apierrors.Error(c, apierrors.CodeForbidden)
	case errors.Is(err, applications.ErrNotPending):
		apierrors.Error(c, apierrors.CodeNotPending)
	case errors.Is(err, applications.ErrPaidPending):
		apierrors.Error(c, apierrors.CodePaidPending)
	case errors.Is(err, applications.ErrEmptyReason):
		apierrors.ErrorWithMessage(c, apierrors.CodeValidationFailed, "Disapproval reason is required")
	case errors.Is(err, applications.ErrInvalidMethod):
		apierrors.Error(c, apierrors.CodeInvalidMethod)
	case errors.Is(err, applications.ErrMissingContact):
		apierrors.Error(c, apierrors.CodeMissingContact)
	default:
		apierrors.Error(c, apierrors.CodeInternalError)
	}
}
