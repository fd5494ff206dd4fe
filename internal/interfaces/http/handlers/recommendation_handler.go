package handlers

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/topk-planner/internal/application/planning"
	"github.com/turtacn/topk-planner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/topk-planner/internal/interfaces/http/middleware"
	"github.com/turtacn/topk-planner/pkg/errors"
)

// maxBatchSize bounds POST /recommendations/batch.
const maxBatchSize = 100

// RecommendationHandler serves the recommendation and profile endpoints.
type RecommendationHandler struct {
	svc    planning.Service
	logger logging.Logger
}

// NewRecommendationHandler creates a RecommendationHandler.
func NewRecommendationHandler(svc planning.Service, logger logging.Logger) *RecommendationHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RecommendationHandler{svc: svc, logger: logger.Named("recommendation_handler")}
}

// Recommend handles POST /api/v1/recommendations.  With ?format=text the
// plans are returned as the plain-text report.
func (h *RecommendationHandler) Recommend(c *gin.Context) {
	var req planning.RecommendRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.RequestID == "" {
		req.RequestID = middleware.GetRequestID(c)
	}

	resp, err := h.svc.Recommend(c.Request.Context(), &req)
	if err != nil {
		writeAppError(c, err)
		return
	}

	if wantsText(c) {
		var buf bytes.Buffer
		if err := resp.Render(&buf); err != nil {
			writeAppError(c, errors.Wrap(err, errors.ErrCodeInternal, "failed to render plans"))
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
		return
	}
	c.JSON(http.StatusOK, resp)
}

// BatchRequest is the body of POST /api/v1/recommendations/batch.
type BatchRequest struct {
	Requests []*planning.RecommendRequest `json:"requests"`
}

// BatchResult is one entry of a BatchResponse.  Exactly one of Response and
// Error is set.
type BatchResult struct {
	Index    int                         `json:"index"`
	Response *planning.RecommendResponse `json:"response,omitempty"`
	Error    *ErrorResponse              `json:"error,omitempty"`
}

// BatchResponse lists results in request order.
type BatchResponse struct {
	Results   []BatchResult `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}

// RecommendBatch handles POST /api/v1/recommendations/batch.  The status is
// 200 even when individual requests fail.
func (h *RecommendationHandler) RecommendBatch(c *gin.Context) {
	var body BatchRequest
	if !bindJSON(c, &body) {
		return
	}
	switch {
	case len(body.Requests) == 0:
		writeAppError(c, errors.InvalidConfig("batch must contain at least one request"))
		return
	case len(body.Requests) > maxBatchSize:
		writeAppError(c, errors.InvalidConfig("batch too large").WithDetail("max=" + strconv.Itoa(maxBatchSize)))
		return
	}

	items := h.svc.RecommendBatch(c.Request.Context(), body.Requests)
	out := BatchResponse{Results: make([]BatchResult, len(items))}
	for i, it := range items {
		out.Results[i] = BatchResult{Index: it.Index, Response: it.Response}
		if it.Err != nil {
			_, eb := errorBody(c, it.Err)
			out.Results[i].Error = &eb
			out.Failed++
			continue
		}
		out.Succeeded++
	}
	h.logger.Debug("batch served",
		logging.Int("requests", len(items)),
		logging.Int("failed", out.Failed),
		logging.String("request_id", middleware.GetRequestID(c)))
	c.JSON(http.StatusOK, out)
}

// ListProfiles handles GET /api/v1/profiles.
func (h *RecommendationHandler) ListProfiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"profiles": h.svc.ListProfiles(c.Request.Context())})
}
