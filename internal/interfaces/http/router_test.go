package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/topk-planner/internal/application/planning"
	"github.com/turtacn/topk-planner/internal/config"
	"github.com/turtacn/topk-planner/internal/domain/catalog"
	"github.com/turtacn/topk-planner/internal/infrastructure/solver/bnb"
	"github.com/turtacn/topk-planner/internal/interfaces/http/handlers"
	"github.com/turtacn/topk-planner/internal/interfaces/http/middleware"
	"github.com/turtacn/topk-planner/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordedRequest struct {
	method, path string
	status       int
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen []recordedRequest
}

func (f *fakeRecorder) ObserveHTTP(method, path string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, recordedRequest{method, path, status})
}

func newService(t *testing.T) planning.Service {
	t.Helper()
	g, err := planning.NewTopKPlanGenerator(bnb.New(bnb.Options{}, nil), planning.GeneratorOptions{TieBreak: true}, nil)
	require.NoError(t, err)
	svc, err := planning.NewService(planning.ServiceConfig{
		Generator:      g,
		Catalogs:       catalog.NewSeededMemoryRepository(),
		DefaultTopK:    2,
		MaxTopK:        10,
		DefaultTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return svc
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestNewRouter_Routes(t *testing.T) {
	svc := newService(t)
	rec := &fakeRecorder{}
	log := testutil.NewMockLogger()
	r := NewRouter(RouterConfig{
		RecommendationHandler: handlers.NewRecommendationHandler(svc, log),
		CatalogHandler:        handlers.NewCatalogHandler(svc),
		HealthHandler:         handlers.NewHealthHandler("test"),
		HTTPRecorder:          rec,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("planner_up 1\n"))
		}),
		Logger: log,
	})

	tests := []struct {
		method, path, body string
		status             int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/readyz", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/api/v1/profiles", "", http.StatusOK},
		{http.MethodGet, "/api/v1/catalogs", "", http.StatusOK},
		{http.MethodGet, "/api/v1/catalogs/gym", "", http.StatusOK},
		{http.MethodPost, "/api/v1/recommendations", `{"top_k": 1}`, http.StatusOK},
		{http.MethodPost, "/api/v1/recommendations/batch", `{"requests": [{"top_k": 1}]}`, http.StatusOK},
		{http.MethodGet, "/api/v1/unknown", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := serve(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
		})
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.seen, len(tests))
	assert.Equal(t, recordedRequest{http.MethodGet, "/api/v1/catalogs/:id", http.StatusOK}, rec.seen[5])
	assert.Equal(t, "unmatched", rec.seen[len(rec.seen)-1].path)
	assert.True(t, log.HasMessage("info", "request completed"))
}

func TestNewRouter_OptionalParts(t *testing.T) {
	r := NewRouter(RouterConfig{HealthHandler: handlers.NewHealthHandler("test")})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodPost, "/api/v1/recommendations", `{}`).Code)
}

func TestNewRouter_RateLimit(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})
	r := NewRouter(RouterConfig{
		HealthHandler: handlers.NewHealthHandler("test"),
		RateLimiter:   rl,
	})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthz", "").Code)
	w := serve(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	rl.SetLimits(0, 0)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthz", "").Code)
}

func TestServer_StartStop(t *testing.T) {
	srv := NewServer(config.ServerConfig{Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second},
		NewRouter(RouterConfig{HealthHandler: handlers.NewHealthHandler("test")}), nil)
	assert.Equal(t, ":0", srv.Addr())

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
