package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/topk-planner/internal/application/planning"
	"github.com/turtacn/topk-planner/pkg/errors"
)

// CatalogHandler serves the catalog endpoints.
type CatalogHandler struct {
	svc planning.Service
}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler(svc planning.Service) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// List handles GET /api/v1/catalogs.
func (h *CatalogHandler) List(c *gin.Context) {
	list, err := h.svc.ListCatalogs(c.Request.Context())
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"catalogs": list})
}

// Get handles GET /api/v1/catalogs/:id.
func (h *CatalogHandler) Get(c *gin.Context) {
	view, err := h.svc.GetCatalog(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Put handles PUT /api/v1/catalogs/:id.  The path id wins; a differing id
// in the body is rejected.
func (h *CatalogHandler) Put(c *gin.Context) {
	var req planning.SaveCatalogRequest
	if !bindJSON(c, &req) {
		return
	}
	id := c.Param("id")
	if req.ID != "" && req.ID != id {
		writeAppError(c, errors.InvalidConfig("catalog id in body does not match path").WithDetail("path=" + id + " body=" + req.ID))
		return
	}
	req.ID = id

	summary, err := h.svc.SaveCatalog(c.Request.Context(), &req)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
