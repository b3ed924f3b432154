// Package api wires the HTTP surface: route registration, request binding and
// the translation between service errors and API error codes. Business rules
// live in the services and repository packages, not here.
package api

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/permitkit/permitflow/internal/access"
	"github.com/permitkit/permitflow/internal/apierrors"
	"github.com/permitkit/permitflow/internal/auth"
	"github.com/permitkit/permitflow/internal/middleware"
	"github.com/permitkit/permitflow/internal/models"
	"github.com/permitkit/permitflow/internal/repository"
	"github.com/permitkit/permitflow/internal/sequence"
	"github.com/permitkit/permitflow/internal/services/applications"
)

// APIRouter holds the dependencies handler methods reach for.
type APIRouter struct {
	users    repository.UserRepository
	parks    repository.ParkRepository
	permits  repository.PermitRepository
	apps     repository.ApplicationRepository
	invoices repository.InvoiceRepository

	appSvc     *applications.Service
	access     *access.Service
	jwt        *auth.JWTManager
	permitSeq  sequence.Generator
	invoiceSeq sequence.Generator
	appSeq     sequence.Generator

	logger *log.Logger
	now    func() time.Time
}

// Deps bundles the collaborators an APIRouter needs.
type Deps struct {
	Users    repository.UserRepository
	Parks    repository.ParkRepository
	Permits  repository.PermitRepository
	Apps     repository.ApplicationRepository
	Invoices repository.InvoiceRepository

	AppService *applications.Service
	Access     *access.Service
	JWT        *auth.JWTManager
	PermitSeq  sequence.Generator
	InvoiceSeq sequence.Generator
	AppSeq     sequence.Generator
}

// NewAPIRouter creates the handler set.
func NewAPIRouter(deps Deps) *APIRouter {
	return &APIRouter{
		users:      deps.Users,
		parks:      deps.Parks,
		permits:    deps.Permits,
		apps:       deps.Apps,
		invoices:   deps.Invoices,
		appSvc:     deps.AppService,
		access:     deps.Access,
		jwt:        deps.JWT,
		permitSeq:  deps.PermitSeq,
		invoiceSeq: deps.InvoiceSeq,
		appSeq:     deps.AppSeq,
		logger:     log.New(log.Writer(), "[API] ", log.LstdFlags),
		now:        time.Now,
	}
}

// RegisterRoutes attaches all routes to the engine. authMW must be the JWT
// auth middleware; everything under /api except login, the public payment
// webhook and the health/metrics endpoints requires it.
func (router *APIRouter) RegisterRoutes(r *gin.Engine, authMW gin.HandlerFunc) {
	r.GET("/healthz", router.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	api.POST("/auth/login", router.handleLogin)
	api.POST("/public/applications", router.handleCreateApplication)
	api.PATCH("/public/invoices/:invoiceNumber/payment", router.handlePaymentWebhook)

	authed := api.Group("", authMW)
	{
		authed.POST("/auth/logout", router.handleLogout)
		authed.GET("/auth/me", router.handleMe)

		authed.GET("/parks", router.handleListParks)
		authed.GET("/parks/:id", router.handleGetPark)
		authed.GET("/parks/:id/waiver", router.handleParkWaiver)

		authed.GET("/permits", router.handleListPermits)
		authed.GET("/permits/:id", router.handleGetPermit)

		authed.GET("/applications", router.handleListApplications)
		authed.GET("/applications/status/:status", router.handleListApplicationsByStatus)
		authed.GET("/applications/:id", router.handleGetApplication)
		authed.PATCH("/applications/:id", router.handleUpdateApplication)
		authed.PATCH("/applications/:id/approve", router.handleApproveApplication)
		authed.PATCH("/applications/:id/disapprove", router.handleDisapproveApplication)
		authed.DELETE("/applications/:id", router.handleDeleteApplication)

		authed.GET("/invoices", router.handleListInvoices)
		authed.GET("/invoices/export", router.handleExportInvoices)
		authed.GET("/invoices/:id", router.handleGetInvoice)
		authed.POST("/invoices", router.handleCreateInvoice)
		authed.PATCH("/invoices/:id", router.handleUpdateInvoice)
		authed.DELETE("/invoices/:id", router.handleDeleteInvoice)
		authed.GET("/dashboard/invoices", router.handleInvoiceDashboard)
	}

	admin := api.Group("", authMW, middleware.RequireAdmin())
	{
		admin.POST("/parks", router.handleCreatePark)
		admin.PATCH("/parks/:id", router.handleUpdatePark)
		admin.DELETE("/parks/:id", router.handleDeletePark)

		admin.POST("/permits", router.handleCreatePermit)
		admin.PATCH("/permits/:id", router.handleUpdatePermit)
		admin.DELETE("/permits/:id", router.handleDeletePermit)

		admin.GET("/users", router.handleListUsers)
		admin.POST("/users", router.handleCreateUser)
		admin.GET("/users/:id", router.handleGetUser)
		admin.PATCH("/users/:id", router.handleUpdateUser)
		admin.DELETE("/users/:id", router.handleDeleteUser)
		admin.PUT("/users/:id/parks", router.handleSetUserParks)
	}
}

// AllowlistPaths are the routes the admission queue lets through before the
// server reports ready.
func AllowlistPaths() []string {
	return []string{"/healthz", "/metrics", "/api/auth/login", "/api/auth/logout", "/api/auth/me"}
}

func (router *APIRouter) handleHealth(c *gin.Context) {
	sendSuccess(c, gin.H{
		"status":    "healthy",
		"service":   "permitflow",
		"timestamp": router.now().UTC(),
	})
}

// filterByPark narrows records to the parks the user may see. Admins and
// managers read everything; staff get exactly their assigned parks, which for
// a user with no assignments is nothing.
func filterByPark[T any](c *gin.Context, router *APIRouter, user *models.User, records []T, parkIDOf func(T) int) ([]T, bool) {
	if access.CanReadAll(user) {
		return records, true
	}
	filtered, err := access.Filter(c.Request.Context(), router.access, user, records, parkIDOf)
	if err != nil {
		apierrors.Error(c, apierrors.CodeInternalError)
		return nil, false
	}
	return filtered, true
}
