package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymBuddyFunctions/internal/blob"
	"gymBuddyFunctions/internal/config"
	"gymBuddyFunctions/internal/store/memory"
	"gymBuddyFunctions/internal/types/post"
	"gymBuddyFunctions/middleware"
)

func testApp(t *testing.T) (*App, *memory.Store, http.Handler) {
	t.Helper()
	cfg := &config.Config{
		StoreBackend:     config.BackendMemory,
		EventsSecret:     "s3cret",
		SweepPageSize:    10,
		SweepConcurrency: 2,
		MetricsUser:      "prom",
		MetricsPass:      "pw",
	}
	st := memory.New()
	a := Assemble(cfg, st, blob.NewMemoryStore())
	h, err := a.Handler(middleware.NewRateLimiter(100, 100))
	require.NoError(t, err)
	return a, st, h
}

func serve(h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestEventIngressEndToEnd(t *testing.T) {
	_, st, h := testApp(t)
	st.PutPost(&post.Post{ID: "p1"})
	auth := map[string]string{"Authorization": "Bearer s3cret"}
	body := `{"id":"e1","type":"comment.created","params":{"postId":"p1","commentId":"c1"}}`

	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodPost, "/events", body, nil).Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/events", body, auth).Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/events", body, auth).Code)

	p, err := st.Post("p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.CommentsCount)

	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodPost, "/events", `{"id":"e2","type":"comment.created"}`, auth).Code)
}

func TestSweepTriggerAndHealth(t *testing.T) {
	_, _, h := testApp(t)

	rec := serve(h, http.MethodPost, "/tasks/sweep-record-claims", "", map[string]string{"X-Events-Secret": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"scanned":0`)

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/metrics", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/nope", "", nil).Code)
}
