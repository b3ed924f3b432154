package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/permitkit/permitflow/internal/apierrors"
	"github.com/permitkit/permitflow/internal/models"
	"github.com/permitkit/permitflow/internal/repository"
	"github.com/permitkit/permitflow/internal/sequence"
)

// handleListApplications lists applications visible to the user. Admins and
// managers see every park; staff only their assigned parks.
func (router *APIRouter) handleListApplications(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		return
	}
	apps, err := router.apps.List(c.Request.Context())
	if err != nil {
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	apps, ok = filterByPark(c, router, user, apps, func(a *models.Application) int { return a.ParkID })
	if !ok {
		return
	}
	sendSuccess(c, gin.H{"applications": apps, "total": len(apps)})
}

func (router *APIRouter) handleListApplicationsByStatus(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		return
	}
	status := c.Param("status")
	if !models.ValidApplicationStatus(status) {
		apierrors.Error(c, apierrors.CodeInvalidStatus)
		return
	}

	apps, err := router.apps.ListByStatus(c.Request.Context(), status)
	if err != nil {
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	apps, ok = filterByPark(c, router, user, apps, func(a *models.Application) int { return a.ParkID })
	if !ok {
		return
	}
	sendSuccess(c, gin.H{"applications": apps, "total": len(apps)})
}

func (router *APIRouter) handleGetApplication(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	app, err := router.apps.GetByID(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	if !router.mayAccessPark(c, user, app.ParkID) {
		return
	}
	sendSuccess(c, gin.H{"application": app})
}

// handleUpdateApplication appends a note and/or edits the mutable fields.
// Notes are append-only: the note text is stamped and joined onto the
// existing notes, never replacing them.
func (router *APIRouter) handleUpdateApplication(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req struct {
		Note         *string `json:"note"`
		Location     *string `json:"location"`
		Participants *int    `json:"participants"`
		IsPaid       *bool   `json:"is_paid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.Error(c, apierrors.CodeInvalidRequest)
		return
	}

	app, err := router.apps.GetByID(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	if !router.mayAccessPark(c, user, app.ParkID) {
		return
	}

	if req.Location != nil || req.Participants != nil || req.IsPaid != nil {
		if req.Location != nil {
			app.Location = req.Location
		}
		if req.Participants != nil {
			app.Participants = req.Participants
		}
		if req.IsPaid != nil {
			app.IsPaid = *req.IsPaid
		}
		if err := router.apps.Update(c.Request.Context(), app); err != nil {
			respondRepoError(c, err)
			return
		}
	}

	if req.Note != nil && *req.Note != "" {
		app, err = router.appSvc.AppendNote(c.Request.Context(), user, id, *req.Note)
		if err != nil {
			respondApplicationError(c, err)
			return
		}
	}

	sendSuccess(c, gin.H{"application": app})
}

// handleCreateApplication is the unauthenticated intake endpoint applicants
// submit through. Bad references (park, permit) come back as validation
// errors, not 404s, since the caller is outside the system. A permit
// reference pre-populates the fee schedule and enforces the participant cap.
func (router *APIRouter) handleCreateApplication(c *gin.Context) {
	var req struct {
		ParkID        int     `json:"park_id" binding:"required"`
		PermitID      *int    `json:"permit_id"`
		Location      *string `json:"location"`
		ApplicantName string  `json:"applicant_name" binding:"required"`
		Organization  *string `json:"organization"`
		Email         *string `json:"email"`
		Phone         *string `json:"phone"`
		EventTitle    string  `json:"event_title" binding:"required"`
		EventDate     *string `json:"event_date"`
		Participants  *int    `json:"participants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ErrorWithMessage(c, apierrors.CodeInvalidRequest, "Park, applicant name and event title are required")
		return
	}

	if _, err := router.parks.GetByID(c.Request.Context(), req.ParkID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierrors.ErrorWithMessage(c, apierrors.CodeValidationFailed, "Unknown park")
		} else {
			apierrors.Error(c, apierrors.CodeInternalError)
		}
		return
	}

	app := &models.Application{
		ParkID:        req.ParkID,
		PermitID:      req.PermitID,
		Location:      req.Location,
		ApplicantName: req.ApplicantName,
		Organization:  req.Organization,
		Email:         req.Email,
		Phone:         req.Phone,
		EventTitle:    req.EventTitle,
		Participants:  req.Participants,
		Status:        models.ApplicationPending,
	}

	if req.PermitID != nil {
		permit, err := router.permits.GetByID(c.Request.Context(), *req.PermitID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				apierrors.ErrorWithMessage(c, apierrors.CodeValidationFailed, "Unknown permit")
			} else {
				apierrors.Error(c, apierrors.CodeInternalError)
			}
			return
		}
		if permit.ParkID != req.ParkID {
			apierrors.ErrorWithMessage(c, apierrors.CodeValidationFailed, "Permit does not belong to the selected park")
			return
		}
		if permit.ParticipantCap != nil && req.Participants != nil && *req.Participants > *permit.ParticipantCap {
			apierrors.ErrorWithMessage(c, apierrors.CodeValidationFailed, "Participant count exceeds the permit cap")
			return
		}
		app.ApplicationFee = permit.ApplicationFee
		app.PermitFee = permit.PermitFee
	}

	if req.EventDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.EventDate)
		if err != nil {
			apierrors.ErrorWithMessage(c, apierrors.CodeValidationFailed, "Event date must be YYYY-MM-DD")
			return
		}
		app.EventDate = &parsed
	}

	number, err := router.appSeq.Next(c.Request.Context(), sequence.YearPrefix(models.ApplicationNumberPrefix, router.now()))
	if err != nil {
		router.logger.Printf("failed to assign application number: %v", err)
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	app.ApplicationNumber = number

	if err := router.apps.Create(c.Request.Context(), app); err != nil {
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	sendCreated(c, gin.H{"application": app})
}

func (router *APIRouter) handleApproveApplication(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}

	app, invoice, err := router.appSvc.Approve(c.Request.Context(), user, id)
	if err != nil {
		respondApplicationError(c, err)
		return
	}
	data := gin.H{"application": app}
	if invoice != nil {
		data["invoice"] = invoice
	}
	sendSuccess(c, data)
}

func (router *APIRouter) handleDisapproveApplication(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
		Method string `json:"method" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ErrorWithMessage(c, apierrors.CodeInvalidRequest, "Reason and method are required")
		return
	}

	app, err := router.appSvc.Disapprove(c.Request.Context(), user, id, req.Reason, req.Method)
	if err != nil {
		respondApplicationError(c, err)
		return
	}
	sendSuccess(c, gin.H{"application": app})
}

func (router *APIRouter) handleDeleteApplication(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := router.appSvc.Delete(c.Request.Context(), user, id); err != nil {
		respondApplicationError(c, err)
		return
	}
	sendSuccess(c, gin.H{"deleted": id})
}
