package api

import (
	"github.com/gin-gonic/gin"

	"github.com/permitkit/permitflow/internal/apierrors"
	"github.com/permitkit/permitflow/internal/models"
	"github.com/permitkit/permitflow/internal/sequence"
)

// handleListPermits lists permits, park-scoped for staff. ?templates=true
// narrows to template rows.
func (router *APIRouter) handleListPermits(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		return
	}
	templatesOnly := c.Query("templates") == "true"

	permits, err := router.permits.List(c.Request.Context(), templatesOnly)
	if err != nil {
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	permits, ok = filterByPark(c, router, user, permits, func(p *models.Permit) int { return p.ParkID })
	if !ok {
		return
	}
	sendSuccess(c, gin.H{"permits": permits, "total": len(permits)})
}

func (router *APIRouter) handleGetPermit(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	permit, err := router.permits.GetByID(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	if !router.mayAccessPark(c, user, permit.ParkID) {
		return
	}
	sendSuccess(c, gin.H{"permit": permit})
}

// mayAccessPark enforces park scoping on single-record reads. It responds
// with core:forbidden and returns false when the user is outside the park.
func (router *APIRouter) mayAccessPark(c *gin.Context, user *models.User, parkID int) bool {
	allowed, err := router.access.HasAccess(c.Request.Context(), user, parkID)
	if err != nil {
		apierrors.Error(c, apierrors.CodeInternalError)
		return false
	}
	if !allowed {
		apierrors.Error(c, apierrors.CodeForbidden)
		return false
	}
	return true
}

type permitRequest struct {
	ParkID            int     `json:"park_id" binding:"required"`
	Name              string  `json:"name" binding:"required"`
	ApplicationFee    *string `json:"application_fee"`
	PermitFee         *string `json:"permit_fee"`
	RefundableDeposit *string `json:"refundable_deposit"`
	ParticipantCap    *int    `json:"participant_cap"`
	InsuranceRequired bool    `json:"insurance_required"`
	IsTemplate        bool    `json:"is_template"`
}

// handleCreatePermit creates a permit or template row. The sequential number
// is assigned here (SUP- for permits, TEMPLATE- for templates, year-scoped).
func (router *APIRouter) handleCreatePermit(c *gin.Context) {
	var req permitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ErrorWithMessage(c, apierrors.CodeInvalidRequest, "Park and name are required")
		return
	}

	if _, err := router.parks.GetByID(c.Request.Context(), req.ParkID); err != nil {
		respondRepoError(c, err)
		return
	}

	permit := &models.Permit{
		ParkID:            req.ParkID,
		Name:              req.Name,
		ApplicationFee:    req.ApplicationFee,
		PermitFee:         req.PermitFee,
		RefundableDeposit: req.RefundableDeposit,
		ParticipantCap:    req.ParticipantCap,
		InsuranceRequired: req.InsuranceRequired,
		IsTemplate:        req.IsTemplate,
		ValidID:           1,
	}

	number, err := router.permitSeq.Next(c.Request.Context(), sequence.YearPrefix(permit.NumberPrefix(), router.now()))
	if err != nil {
		router.logger.Printf("failed to assign permit number: %v", err)
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	permit.PermitNumber = number

	if err := router.permits.Create(c.Request.Context(), permit); err != nil {
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	sendCreated(c, gin.H{"permit": permit})
}

func (router *APIRouter) handleUpdatePermit(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	permit, err := router.permits.GetByID(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}

	var req struct {
		Name              *string `json:"name"`
		ApplicationFee    *string `json:"application_fee"`
		PermitFee         *string `json:"permit_fee"`
		RefundableDeposit *string `json:"refundable_deposit"`
		ParticipantCap    *int    `json:"participant_cap"`
		InsuranceRequired *bool   `json:"insurance_required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.Error(c, apierrors.CodeInvalidRequest)
		return
	}
	if req.Name != nil {
		permit.Name = *req.Name
	}
	if req.ApplicationFee != nil {
		permit.ApplicationFee = req.ApplicationFee
	}
	if req.PermitFee != nil {
		permit.PermitFee = req.PermitFee
	}
	if req.RefundableDeposit != nil {
		permit.RefundableDeposit = req.RefundableDeposit
	}
	if req.ParticipantCap != nil {
		permit.ParticipantCap = req.ParticipantCap
	}
	if req.InsuranceRequired != nil {
		permit.InsuranceRequired = *req.InsuranceRequired
	}

	if err := router.permits.Update(c.Request.Context(), permit); err != nil {
		respondRepoError(c, err)
		return
	}
	sendSuccess(c, gin.H{"permit": permit})
}

func (router *APIRouter) handleDeletePermit(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := router.permits.Delete(c.Request.Context(), id); err != nil {
		respondRepoError(c, err)
		return
	}
	sendSuccess(c, gin.H{"deleted": id})
}
