package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/permitkit/permitflow/internal/access"
	"github.com/permitkit/permitflow/internal/auth"
	"github.com/permitkit/permitflow/internal/middleware"
	"github.com/permitkit/permitflow/internal/models"
	"github.com/permitkit/permitflow/internal/notifications"
	"github.com/permitkit/permitflow/internal/repository"
	"github.com/permitkit/permitflow/internal/services/applications"
)

// ----------------------------------------------------------------------------
// In-memory repositories
// ----------------------------------------------------------------------------

type memUsers struct {
	byID        map[int]*models.User
	assignments map[int][]int
	nextID      int
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[int]*models.User{}, assignments: map[int][]int{}, nextID: 1}
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	u.ID = m.nextID
	m.nextID++
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id int) (*models.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByLogin(_ context.Context, login string) (*models.User, error) {
	for _, u := range m.byID {
		if u.Login == login {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) List(_ context.Context) ([]*models.User, error) {
	var out []*models.User
	for _, u := range m.byID {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memUsers) Update(_ context.Context, u *models.User) error {
	if _, ok := m.byID[u.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) Deactivate(_ context.Context, id int) error {
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.ValidID = 2
	return nil
}

func (m *memUsers) AssignedParkIDs(_ context.Context, userID int) ([]int, error) {
	return m.assignments[userID], nil
}

func (m *memUsers) SetParkAssignments(_ context.Context, userID int, parkIDs []int) error {
	m.assignments[userID] = parkIDs
	return nil
}

type memParks struct {
	byID   map[int]*models.Park
	inUse  map[int]bool // park id -> owns permits
	nextID int
}

func newMemParks() *memParks {
	return &memParks{byID: map[int]*models.Park{}, inUse: map[int]bool{}, nextID: 1}
}

func (m *memParks) Create(_ context.Context, p *models.Park) error {
	p.ID = m.nextID
	m.nextID++
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *memParks) GetByID(_ context.Context, id int) (*models.Park, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memParks) List(_ context.Context) ([]*models.Park, error) {
	var out []*models.Park
	for _, p := range m.byID {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memParks) Update(_ context.Context, p *models.Park) error {
	if _, ok := m.byID[p.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *memParks) Delete(_ context.Context, id int) error {
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	if m.inUse[id] {
		return repository.ErrParkInUse
	}
	delete(m.byID, id)
	return nil
}

type memPermits struct {
	byID   map[int]*models.Permit
	nextID int
}

func newMemPermits() *memPermits {
	return &memPermits{byID: map[int]*models.Permit{}, nextID: 1}
}

func (m *memPermits) Create(_ context.Context, p *models.Permit) error {
	p.ID = m.nextID
	m.nextID++
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *memPermits) GetByID(_ context.Context, id int) (*models.Permit, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPermits) List(_ context.Context, templatesOnly bool) ([]*models.Permit, error) {
	var out []*models.Permit
	for _, p := range m.byID {
		if templatesOnly && !p.IsTemplate {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memPermits) Update(_ context.Context, p *models.Permit) error {
	if _, ok := m.byID[p.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *memPermits) Delete(_ context.Context, id int) error {
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type memApps struct {
	byID   map[int]*models.Application
	nextID int
}

func newMemApps() *memApps {
	return &memApps{byID: map[int]*models.Application{}, nextID: 1}
}

func (m *memApps) Create(_ context.Context, a *models.Application) error {
	a.ID = m.nextID
	m.nextID++
	cp := *a
	m.byID[a.ID] = &cp
	return nil
}

func (m *memApps) GetByID(_ context.Context, id int) (*models.Application, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memApps) List(_ context.Context) ([]*models.Application, error) {
	var out []*models.Application
	for _, a := range m.byID {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memApps) ListByStatus(_ context.Context, status string) ([]*models.Application, error) {
	var out []*models.Application
	for _, a := range m.byID {
		if a.Status == status {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memApps) UpdateStatus(_ context.Context, id int, status string) error {
	a, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Status = status
	return nil
}

func (m *memApps) UpdateNotes(_ context.Context, id int, notes string) error {
	a, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Notes = notes
	return nil
}

func (m *memApps) Update(_ context.Context, a *models.Application) error {
	if _, ok := m.byID[a.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *a
	m.byID[a.ID] = &cp
	return nil
}

func (m *memApps) Delete(_ context.Context, id int) error {
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memApps) FindStale(_ context.Context, cutoff time.Time) ([]*models.Application, error) {
	var out []*models.Application
	for _, a := range m.byID {
		if a.Status == models.ApplicationPending && !a.IsPaid && a.CreatedAt.Before(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memInvoices struct {
	byID   map[int]*models.Invoice
	apps   *memApps
	nextID int
}

func newMemInvoices(apps *memApps) *memInvoices {
	return &memInvoices{byID: map[int]*models.Invoice{}, apps: apps, nextID: 1}
}

func (m *memInvoices) Create(_ context.Context, inv *models.Invoice) error {
	inv.ID = m.nextID
	m.nextID++
	cp := *inv
	m.byID[inv.ID] = &cp
	return nil
}

func (m *memInvoices) GetByID(_ context.Context, id int) (*models.Invoice, error) {
	inv, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *memInvoices) GetByNumber(_ context.Context, number string) (*models.Invoice, error) {
	for _, inv := range m.byID {
		if inv.InvoiceNumber == number {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memInvoices) List(_ context.Context) ([]*models.Invoice, error) {
	var out []*models.Invoice
	for _, inv := range m.byID {
		cp := *inv
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memInvoices) ListWithPark(ctx context.Context) ([]*repository.InvoiceWithPark, error) {
	var out []*repository.InvoiceWithPark
	for _, inv := range m.byID {
		parkID := 0
		if inv.ApplicationID != nil {
			if app, err := m.apps.GetByID(ctx, *inv.ApplicationID); err == nil {
				parkID = app.ParkID
			}
		}
		cp := *inv
		out = append(out, &repository.InvoiceWithPark{Invoice: cp, ParkID: parkID})
	}
	return out, nil
}

func (m *memInvoices) UpdateStatus(_ context.Context, id int, status string, paymentDate *time.Time, transactionID *string) error {
	inv, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	inv.Status = status
	if status == models.InvoicePaid {
		inv.PaymentDate = paymentDate
		inv.TransactionID = transactionID
	}
	return nil
}

func (m *memInvoices) Delete(_ context.Context, id int) error {
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memInvoices) ListApprovedWithInvoices(ctx context.Context) ([]*repository.ApprovedWithInvoice, error) {
	var out []*repository.ApprovedWithInvoice
	for _, inv := range m.byID {
		if inv.ApplicationID == nil {
			continue
		}
		app, err := m.apps.GetByID(ctx, *inv.ApplicationID)
		if err != nil || app.Status != models.ApplicationApproved {
			continue
		}
		out = append(out, &repository.ApprovedWithInvoice{Application: *app, Invoice: *inv})
	}
	return out, nil
}

type memSequence struct {
	n int
}

func (m *memSequence) Next(_ context.Context, prefix string) (string, error) {
	m.n++
	return fmt.Sprintf("%s%04d", prefix, m.n), nil
}

// ----------------------------------------------------------------------------
// Fixture
// ----------------------------------------------------------------------------

type testEnv struct {
	router   *gin.Engine
	users    *memUsers
	parks    *memParks
	permits  *memPermits
	apps     *memApps
	invoices *memInvoices
	jwt      *auth.JWTManager

	admin     *models.User
	manager   *models.User
	staff     *models.User // assigned to park 1 only
	staffNone *models.User // no assignments
}

const testPassword = "open-sesame-42"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := newMemUsers()
	parks := newMemParks()
	permits := newMemPermits()
	apps := newMemApps()
	invoices := newMemInvoices(apps)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	mkUser := func(login, role string) *models.User {
		u := &models.User{
			Login:        login,
			PasswordHash: string(hash),
			FirstName:    "Test",
			LastName:     login,
			Email:        login + "@example.com",
			Role:         role,
			ValidID:      1,
		}
		require.NoError(t, users.Create(context.Background(), u))
		return u
	}

	env := &testEnv{
		users:    users,
		parks:    parks,
		permits:  permits,
		apps:     apps,
		invoices: invoices,
		jwt:      auth.NewJWTManager("test-secret", time.Hour),
	}
	env.admin = mkUser("admin", models.RoleAdmin)
	env.manager = mkUser("manager", models.RoleManager)
	env.staff = mkUser("staff", models.RoleStaff)
	env.staffNone = mkUser("newhire", models.RoleStaff)

	riverside := &models.Park{Name: "Riverside", ValidID: 1}
	lakeview := &models.Park{Name: "Lakeview", ValidID: 1}
	require.NoError(t, parks.Create(context.Background(), riverside))
	require.NoError(t, parks.Create(context.Background(), lakeview))
	users.assignments[env.staff.ID] = []int{riverside.ID}

	accessSvc := access.NewService(users)
	appSvc := applications.NewService(
		apps, invoices, accessSvc, &memSequence{},
		notifications.NewDispatcher(nil, nil),
	)

	api := NewAPIRouter(Deps{
		Users:      users,
		Parks:      parks,
		Permits:    permits,
		Apps:       apps,
		Invoices:   invoices,
		AppService: appSvc,
		Access:     accessSvc,
		JWT:        env.jwt,
		PermitSeq:  &memSequence{},
		InvoiceSeq: &memSequence{},
		AppSeq:     &memSequence{},
	})

	env.router = gin.New()
	api.RegisterRoutes(env.router, middleware.AuthMiddleware(env.jwt, users))
	return env
}

// seedApprovedWithInvoices places one approved application with a pending
// invoice in each park. Returns the park-1 and park-2 invoice numbers.
func (env *testEnv) seedApprovedWithInvoices(t *testing.T) (string, string) {
	t.Helper()
	ctx := context.Background()

	mk := func(parkID int, number string) string {
		app := &models.Application{
			ApplicationNumber: fmt.Sprintf("APP-2025-%04d", parkID),
			ParkID:            parkID,
			ApplicantName:     "Jordan Doe",
			EventTitle:        "5K Fun Run",
			Status:            models.ApplicationApproved,
			CreatedAt:         time.Now().Add(-48 * time.Hour),
		}
		require.NoError(t, env.apps.Create(ctx, app))

		inv := &models.Invoice{
			InvoiceNumber: number,
			ApplicationID: &app.ID,
			Amount:        3500,
			Status:        models.InvoicePending,
			IssueDate:     time.Now(),
			DueDate:       time.Now().AddDate(0, 0, 30),
		}
		require.NoError(t, env.invoices.Create(ctx, inv))
		return inv.InvoiceNumber
	}
	return mk(1, "INV-2025-0001"), mk(2, "INV-2025-0002")
}

func (env *testEnv) do(t *testing.T, user *models.User, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, err := env.jwt.Generate(user)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func dataField(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	body := decodeBody(t, w)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "missing data field: %s", w.Body.String())
	return data
}
