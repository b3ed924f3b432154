package api

import (
	"github.com/gin-gonic/gin"

	"github.com/permitkit/permitflow/internal/apierrors"
	"github.com/permitkit/permitflow/internal/markup"
	"github.com/permitkit/permitflow/internal/models"
)

// handleListParks lists the parks the user may see. Admins and managers get
// the full catalogue; staff only their assigned parks.
func (router *APIRouter) handleListParks(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		return
	}
	parks, err := router.parks.List(c.Request.Context())
	if err != nil {
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	parks, ok = filterByPark(c, router, user, parks, func(p *models.Park) int { return p.ID })
	if !ok {
		return
	}

	type parkView struct {
		*models.Park
		Locations []string `json:"locations"`
	}
	views := make([]parkView, 0, len(parks))
	for _, p := range parks {
		views = append(views, parkView{Park: p, Locations: p.LocationList()})
	}
	sendSuccess(c, gin.H{"parks": views, "total": len(views)})
}

func (router *APIRouter) handleGetPark(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	park, err := router.parks.GetByID(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	if !router.mayAccessPark(c, user, park.ID) {
		return
	}
	sendSuccess(c, gin.H{"park": park, "locations": park.LocationList()})
}

// handleParkWaiver renders the park's waiver markdown as sanitized HTML.
func (router *APIRouter) handleParkWaiver(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	park, err := router.parks.GetByID(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	if !router.mayAccessPark(c, user, park.ID) {
		return
	}
	html, err := markup.Render(park.Waiver)
	if err != nil {
		router.logger.Printf("failed to render waiver for park %d: %v", id, err)
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	sendSuccess(c, gin.H{"park_id": park.ID, "waiver_html": html})
}

func (router *APIRouter) handleCreatePark(c *gin.Context) {
	var req struct {
		Name      string   `json:"name" binding:"required"`
		Locations []string `json:"locations"`
		Waiver    string   `json:"waiver"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ErrorWithMessage(c, apierrors.CodeInvalidRequest, "Park name is required")
		return
	}

	park := &models.Park{Name: req.Name, Waiver: req.Waiver, ValidID: 1}
	park.SetLocationList(req.Locations)
	if err := router.parks.Create(c.Request.Context(), park); err != nil {
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	sendCreated(c, gin.H{"park": park})
}

func (router *APIRouter) handleUpdatePark(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	park, err := router.parks.GetByID(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}

	var req struct {
		Name      *string   `json:"name"`
		Locations *[]string `json:"locations"`
		Waiver    *string   `json:"waiver"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.Error(c, apierrors.CodeInvalidRequest)
		return
	}
	if req.Name != nil {
		park.Name = *req.Name
	}
	if req.Locations != nil {
		park.SetLocationList(*req.Locations)
	}
	if req.Waiver != nil {
		park.Waiver = *req.Waiver
	}

	if err := router.parks.Update(c.Request.Context(), park); err != nil {
		respondRepoError(c, err)
		return
	}
	sendSuccess(c, gin.H{"park": park})
}

// handleDeletePark refuses deletion while permits still reference the park.
func (router *APIRouter) handleDeletePark(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := router.parks.Delete(c.Request.Context(), id); err != nil {
		respondRepoError(c, err)
		return
	}
	sendSuccess(c, gin.H{"deleted": id})
}
