package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/topk-planner/internal/application/planning"
	"github.com/turtacn/topk-planner/internal/domain/catalog"
	"github.com/turtacn/topk-planner/internal/domain/preference"
	"github.com/turtacn/topk-planner/internal/domain/recommendation"
	"github.com/turtacn/topk-planner/internal/infrastructure/solver/bnb"
	"github.com/turtacn/topk-planner/internal/interfaces/http/middleware"
	"github.com/turtacn/topk-planner/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	g, err := planning.NewTopKPlanGenerator(bnb.New(bnb.Options{}, nil), planning.GeneratorOptions{TieBreak: true}, nil)
	require.NoError(t, err)
	svc, err := planning.NewService(planning.ServiceConfig{
		Generator:        g,
		Catalogs:         catalog.NewSeededMemoryRepository(),
		Profiles:         preference.DefaultRegistry(),
		DefaultTopK:      2,
		MaxTopK:          10,
		DefaultTimeout:   5 * time.Second,
		BatchConcurrency: 2,
	})
	require.NoError(t, err)

	rh := NewRecommendationHandler(svc, nil)
	ch := NewCatalogHandler(svc)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.POST("/recommendations", rh.Recommend)
	r.POST("/recommendations/batch", rh.RecommendBatch)
	r.GET("/profiles", rh.ListProfiles)
	r.GET("/catalogs", ch.List)
	r.GET("/catalogs/:id", ch.Get)
	r.PUT("/catalogs/:id", ch.Put)
	return r
}

func do(r http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRecommend_SampleScenario(t *testing.T) {
	r := newTestEngine(t)
	w := do(r, http.MethodPost, "/recommendations", `{}`, middleware.HeaderRequestID, "req-42")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp planning.RecommendResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "req-42", resp.RequestID)
	assert.Equal(t, catalog.SampleCatalogID, resp.CatalogID)
	require.Len(t, resp.Plans, 2)
	assert.Equal(t, 1, resp.Plans[0].Rank)
	assert.Equal(t, recommendation.Selection{"HIIT", "Pilates", "Zumba"}, resp.Plans[0].Items)
	assert.Equal(t, 25.0, resp.Plans[0].ObjectiveValue)
	assert.Equal(t, recommendation.TerminationCompleted, resp.Termination)
}

func TestRecommend_TextFormat(t *testing.T) {
	r := newTestEngine(t)

	w := do(r, http.MethodPost, "/recommendations?format=text", `{"top_k": 1}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "--- PLAN 1 (Best) ---")

	w = do(r, http.MethodPost, "/recommendations", `{"top_k": 1}`, "Accept", "text/plain")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "--- PLAN 1 (Best) ---")
}

func TestRecommend_Errors(t *testing.T) {
	r := newTestEngine(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   errors.ErrorCode
	}{
		{"malformed json", `{"top_k":`, http.StatusBadRequest, errors.ErrCodeInvalidConfig},
		{"zero top_k", `{"top_k": 0}`, http.StatusBadRequest, errors.ErrCodeInvalidConfig},
		{"unknown override", `{"preferences": {"Rowing": 4}}`, http.StatusBadRequest, errors.ErrCodeInvalidConfig},
		{"empty inline catalog", `{"items": []}`, http.StatusBadRequest, errors.ErrCodeInvalidConfig},
		{"unknown catalog", `{"catalog_id": "pool"}`, http.StatusNotFound, errors.ErrCodeCatalogNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/recommendations", tt.body, middleware.HeaderRequestID, "req-err")
			require.Equal(t, tt.status, w.Code, w.Body.String())
			body := decodeError(t, w)
			assert.Equal(t, tt.code.String(), body.Code)
			assert.Equal(t, "req-err", body.RequestID)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestRecommendBatch(t *testing.T) {
	r := newTestEngine(t)

	w := do(r, http.MethodPost, "/recommendations/batch",
		`{"requests": [{"top_k": 1}, {"catalog_id": "pool"}, {"profile": "cardio_lover", "top_k": 1}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, 2, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	require.Len(t, out.Results, 3)
	for i, res := range out.Results {
		assert.Equal(t, i, res.Index)
	}
	require.NotNil(t, out.Results[0].Response)
	assert.Len(t, out.Results[0].Response.Plans, 1)
	require.NotNil(t, out.Results[1].Error)
	assert.Equal(t, errors.ErrCodeCatalogNotFound.String(), out.Results[1].Error.Code)
	assert.Nil(t, out.Results[1].Response)
	assert.Equal(t, "cardio_lover", out.Results[2].Response.Profile)
}

func TestRecommendBatch_Bounds(t *testing.T) {
	r := newTestEngine(t)

	w := do(r, http.MethodPost, "/recommendations/batch", `{"requests": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	reqs := make([]map[string]int, maxBatchSize+1)
	for i := range reqs {
		reqs[i] = map[string]int{"top_k": 1}
	}
	raw, err := json.Marshal(map[string]interface{}{"requests": reqs})
	require.NoError(t, err)
	w = do(r, http.MethodPost, "/recommendations/batch", string(raw))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "max=100", decodeError(t, w).Detail)
}

func TestListProfiles(t *testing.T) {
	r := newTestEngine(t)
	w := do(r, http.MethodGet, "/profiles", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Profiles []preference.Profile `json:"profiles"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	names := make([]string, len(body.Profiles))
	for i, p := range body.Profiles {
		names[i] = p.Name
	}
	assert.Contains(t, names, "cardio_lover")
	assert.Contains(t, names, preference.DefaultProfile)
}

func TestCatalogEndpoints(t *testing.T) {
	r := newTestEngine(t)

	w := do(r, http.MethodGet, "/catalogs/gym", "")
	require.Equal(t, http.StatusOK, w.Code)
	var view planning.CatalogView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, catalog.SampleGymItems(), view.Items)

	w = do(r, http.MethodGet, "/catalogs/pool", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.ErrCodeCatalogNotFound.String(), decodeError(t, w).Code)

	put := `{"name": "Evening", "items": [
		{"id": "Boxing", "price": 25, "duration": 60, "timeslot": "evening", "category": "strength", "base_score": 10},
		{"id": "Zumba", "price": 12, "duration": 45, "timeslot": "evening", "category": "cardio", "base_score": 5}]}`
	w = do(r, http.MethodPut, "/catalogs/evening", put)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var summary catalog.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, "evening", summary.ID)
	assert.Equal(t, 2, summary.ItemCount)

	w = do(r, http.MethodGet, "/catalogs", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Catalogs []catalog.Summary `json:"catalogs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	ids := make([]string, len(list.Catalogs))
	for i, s := range list.Catalogs {
		ids[i] = s.ID
	}
	assert.ElementsMatch(t, []string{"gym", "evening"}, ids)

	w = do(r, http.MethodPost, "/recommendations", `{"catalog_id": "evening", "top_k": 1}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestCatalogPut_Rejects(t *testing.T) {
	r := newTestEngine(t)

	w := do(r, http.MethodPut, "/catalogs/evening", `{"id": "morning", "items": [
		{"id": "Yoga", "price": 15, "duration": 60, "timeslot": "morning", "category": "mind_body", "base_score": 8}]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.ErrCodeInvalidConfig.String(), decodeError(t, w).Code)

	w = do(r, http.MethodPut, "/catalogs/evening", `{"items": [{"id": "Yoga", "price": 15}]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.ErrCodeInvalidConfig.String(), decodeError(t, w).Code)

	w = do(r, http.MethodPut, "/catalogs/evening", `{"items": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorBody_MasksInternalErrors(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	status, body := errorBody(c, errors.New(errors.ErrCodeDatabaseError, "pq: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, errors.ErrCodeInternal.String(), body.Code)
	assert.NotContains(t, body.Message, "pq")

	status, body = errorBody(c, stderrors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, errors.ErrCodeInternal.String(), body.Code)

	status, body = errorBody(c, errors.New(errors.ErrCodeSolveTimedOut, "solver timed out").WithDetail("round=2"))
	assert.Equal(t, http.StatusGatewayTimeout, status)
	assert.Equal(t, errors.ErrCodeSolveTimedOut.String(), body.Code)
	assert.Equal(t, "round=2", body.Detail)
}

func TestHealth(t *testing.T) {
	healthy := NewChecker("catalogs", func(context.Context) error { return nil })
	failing := NewChecker("redis", func(context.Context) error { return stderrors.New("dial tcp: refused") })

	tests := []struct {
		name     string
		checkers []HealthChecker
		status   int
		state    string
	}{
		{"no checkers", nil, http.StatusOK, "ready"},
		{"all healthy", []HealthChecker{healthy}, http.StatusOK, "ready"},
		{"one failing", []HealthChecker{healthy, failing}, http.StatusServiceUnavailable, "not_ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("v1.2.3", tt.checkers...)
			r := gin.New()
			r.GET("/healthz", h.Liveness)
			r.GET("/readyz", h.Readiness)

			w := do(r, http.MethodGet, "/healthz", "")
			require.Equal(t, http.StatusOK, w.Code)
			var live LivenessResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &live))
			assert.Equal(t, "v1.2.3", live.Version)

			w = do(r, http.MethodGet, "/readyz", "")
			require.Equal(t, tt.status, w.Code)
			var ready ReadinessResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ready))
			assert.Equal(t, tt.state, ready.Status)
			assert.Len(t, ready.Components, len(tt.checkers))
			if tt.state == "not_ready" {
				assert.Equal(t, "unhealthy", ready.Components["redis"].Status)
				assert.Contains(t, ready.Components["redis"].Error, "refused")
			}
		})
	}
}
