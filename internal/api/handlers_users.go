package api

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/permitkit/permitflow/internal/apierrors"
	"github.com/permitkit/permitflow/internal/models"
)

func (router *APIRouter) handleListUsers(c *gin.Context) {
	users, err := router.users.List(c.Request.Context())
	if err != nil {
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	sendSuccess(c, gin.H{"users": users, "total": len(users)})
}

func (router *APIRouter) handleGetUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	user, err := router.users.GetByID(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	parkIDs, err := router.users.AssignedParkIDs(c.Request.Context(), id)
	if err != nil {
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	user.ParkIDs = parkIDs
	sendSuccess(c, gin.H{"user": user})
}

func (router *APIRouter) handleCreateUser(c *gin.Context) {
	var req struct {
		Login     string `json:"login" binding:"required"`
		Password  string `json:"password" binding:"required,min=8"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email" binding:"required,email"`
		Role      string `json:"role" binding:"required"`
		ParkIDs   []int  `json:"park_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ErrorWithMessage(c, apierrors.CodeInvalidRequest, "Login, password (8+ chars), email and role are required")
		return
	}
	if !models.ValidRole(req.Role) {
		apierrors.ErrorWithMessage(c, apierrors.CodeValidationFailed, "Role must be admin, manager or staff")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}

	user := &models.User{
		Login:        req.Login,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Role:         req.Role,
		ValidID:      1,
	}
	if err := router.users.Create(c.Request.Context(), user); err != nil {
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	if len(req.ParkIDs) > 0 {
		if err := router.users.SetParkAssignments(c.Request.Context(), user.ID, req.ParkIDs); err != nil {
			apierrors.Error(c, apierrors.CodeInternalError)
			return
		}
		user.ParkIDs = req.ParkIDs
	}
	sendCreated(c, gin.H{"user": user})
}

func (router *APIRouter) handleUpdateUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	user, err := router.users.GetByID(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}

	var req struct {
		Password  *string `json:"password"`
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
		Email     *string `json:"email"`
		Role      *string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.Error(c, apierrors.CodeInvalidRequest)
		return
	}
	if req.Role != nil {
		if !models.ValidRole(*req.Role) {
			apierrors.ErrorWithMessage(c, apierrors.CodeValidationFailed, "Role must be admin, manager or staff")
			return
		}
		user.Role = *req.Role
	}
	if req.Password != nil {
		if len(*req.Password) < 8 {
			apierrors.ErrorWithMessage(c, apierrors.CodeValidationFailed, "Password must be at least 8 characters")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			apierrors.Error(c, apierrors.CodeInternalError)
			return
		}
		user.PasswordHash = string(hash)
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Email != nil {
		user.Email = *req.Email
	}

	if err := router.users.Update(c.Request.Context(), user); err != nil {
		respondRepoError(c, err)
		return
	}
	sendSuccess(c, gin.H{"user": user})
}

// handleDeleteUser deactivates rather than deletes, so note stamps and audit
// history keep resolving to a name.
func (router *APIRouter) handleDeleteUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := router.users.Deactivate(c.Request.Context(), id); err != nil {
		respondRepoError(c, err)
		return
	}
	sendSuccess(c, gin.H{"deactivated": id})
}

// handleSetUserParks replaces the user's park assignment set.
func (router *APIRouter) handleSetUserParks(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if _, err := router.users.GetByID(c.Request.Context(), id); err != nil {
		respondRepoError(c, err)
		return
	}

	var req struct {
		ParkIDs []int `json:"park_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.Error(c, apierrors.CodeInvalidRequest)
		return
	}
	if err := router.users.SetParkAssignments(c.Request.Context(), id, req.ParkIDs); err != nil {
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	sendSuccess(c, gin.H{"user_id": id, "park_ids": req.ParkIDs})
}
