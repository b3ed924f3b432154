package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/permitkit/permitflow/internal/apierrors"
	"github.com/permitkit/permitflow/internal/repository"
)

const authCookieName = "permitflow_token"

// handleLogin verifies credentials and issues a JWT, both in the response
// body and as a cookie.
func (router *APIRouter) handleLogin(c *gin.Context) {
	var req struct {
		Login    string `json:"login" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ErrorWithMessage(c, apierrors.CodeInvalidRequest, "Login and password are required")
		return
	}

	user, err := router.users.GetByLogin(c.Request.Context(), req.Login)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierrors.ErrorWithMessage(c, apierrors.CodeUnauthorized, "Invalid credentials")
			return
		}
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	if user.ValidID != 1 {
		apierrors.ErrorWithMessage(c, apierrors.CodeUnauthorized, "Invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		apierrors.ErrorWithMessage(c, apierrors.CodeUnauthorized, "Invalid credentials")
		return
	}

	token, err := router.jwt.Generate(user)
	if err != nil {
		router.logger.Printf("failed to generate token for %s: %v", user.Login, err)
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}

	c.SetCookie(authCookieName, token, 8*60*60, "/", "", false, true)
	sendSuccess(c, gin.H{
		"token": token,
		"user":  user,
	})
}

// handleLogout clears the auth cookie. The JWT itself stays valid until
// expiry; logout is a client-side affair.
func (router *APIRouter) handleLogout(c *gin.Context) {
	c.SetCookie(authCookieName, "", -1, "/", "", false, true)
	sendSuccess(c, gin.H{"logged_out": true})
}

// handleMe returns the authenticated user with their park assignments.
func (router *APIRouter) handleMe(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		return
	}
	parkIDs, err := router.users.AssignedParkIDs(c.Request.Context(), user.ID)
	if err != nil {
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	user.ParkIDs = parkIDs
	sendSuccess(c, gin.H{"user": user, "display_name": user.FullName()})
}
