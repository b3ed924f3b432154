package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func admissionRouter(q *AdmissionQueue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(q.Middleware())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/parks", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestAdmissionAllowlistBypassesQueue(t *testing.T) {
	q := NewAdmissionQueue(WithCapacity(1), WithAllowlist("/healthz"))
	r := admissionRouter(q)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdmissionPassThroughWhenReady(t *testing.T) {
	q := NewAdmissionQueue(WithCapacity(1))
	q.Ready()
	r := admissionRouter(q)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/parks", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdmissionRejectsWhenFull(t *testing.T) {
	// Long drain interval and timeout keep the queued requests parked for
	// the duration of the test.
	q := NewAdmissionQueue(
		WithCapacity(2),
		WithItemTimeout(5*time.Second),
		WithDrainInterval(time.Hour),
	)
	r := admissionRouter(q)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/parks", nil))
		}()
	}

	// Wait for both requests to be parked.
	require.Eventually(t, func() bool { return q.Depth() == 2 }, time.Second, 5*time.Millisecond)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/parks", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	q.Ready()
	wg.Wait()
}

func TestAdmissionDrainsQueuedRequests(t *testing.T) {
	q := NewAdmissionQueue(
		WithCapacity(4),
		WithItemTimeout(5*time.Second),
		WithDrainInterval(5*time.Millisecond),
	)
	r := admissionRouter(q)

	done := make(chan int, 3)
	for i := 0; i < 3; i++ {
		go func() {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/parks", nil))
			done <- w.Code
		}()
	}

	for i := 0; i < 3; i++ {
		select {
		case code := <-done:
			assert.Equal(t, http.StatusOK, code)
		case <-time.After(2 * time.Second):
			t.Fatal("queued request was never drained")
		}
	}
}

func TestAdmissionTimesOutParkedRequests(t *testing.T) {
	q := NewAdmissionQueue(
		WithCapacity(4),
		WithItemTimeout(20*time.Millisecond),
		WithDrainInterval(time.Hour),
	)
	r := admissionRouter(q)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/parks", nil))

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, 0, q.Depth(), "timed-out item must be removed from the queue")
}

func TestAdmissionReadyIsOneWay(t *testing.T) {
	q := NewAdmissionQueue(WithCapacity(1))
	assert.False(t, q.IsReady())
	q.Ready()
	q.Ready() // second call is a no-op
	assert.True(t, q.IsReady())
}
