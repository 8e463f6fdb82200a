package rules

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/solsentry/solsentry/internal/analysis"
)

// Handler provides HTTP endpoints for rule management. The store is the
// source of truth for declarative specs; every mutation writes through to
// the engine so evaluation picks it up immediately.
type Handler struct {
	engine *Engine
	store  Store
}

// NewHandler creates a rule management handler.
func NewHandler(engine *Engine, store Store) *Handler {
	return &Handler{engine: engine, store: store}
}

// RegisterRoutes sets up rule CRUD routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/rules", h.ListRules)
	r.POST("/rules", h.CreateRule)
	r.PATCH("/rules/:name", h.UpdateRule)
	r.DELETE("/rules/:name", h.DeleteRule)
	r.GET("/rules/export", h.ExportRules)
	r.POST("/rules/import", h.ImportRules)
}

// ListRules handles GET /rules
func (h *Handler) ListRules(c *gin.Context) {
	specs, err := h.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Failed to list rules",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": specs, "count": len(specs)})
}

// CreateRule handles POST /rules. Creation is an upsert, matching engine
// semantics.
func (h *Handler) CreateRule(c *gin.Context) {
	var spec Spec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	rule, err := spec.Compile()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_rule",
			"message": err.Error(),
		})
		return
	}

	if err := h.store.Upsert(c.Request.Context(), &spec); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "save_failed",
			"message": "Failed to persist rule",
		})
		return
	}
	h.engine.Add(rule)

	c.JSON(http.StatusCreated, gin.H{"rule": spec})
}

// patchRequest is a partial rule update; absent fields are left unchanged.
type patchRequest struct {
	Description  *string            `json:"description"`
	Severity     *analysis.Severity `json:"severity"`
	Condition    *ConditionSpec     `json:"condition"`
	Message      *string            `json:"message"`
	Blocking     *bool              `json:"blocking"`
	ApplicableTo *[]string          `json:"applicableTo"`
	Metadata     *map[string]any    `json:"metadata"`
}

// UpdateRule handles PATCH /rules/:name
func (h *Handler) UpdateRule(c *gin.Context) {
	name := c.Param("name")

	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	spec, ok := h.findSpec(c, name)
	if !ok {
		return
	}

	if req.Description != nil {
		spec.Description = *req.Description
	}
	if req.Severity != nil {
		spec.Severity = *req.Severity
	}
	if req.Condition != nil {
		spec.Condition = *req.Condition
	}
	if req.Message != nil {
		spec.Message = *req.Message
	}
	if req.Blocking != nil {
		spec.Blocking = *req.Blocking
	}
	if req.ApplicableTo != nil {
		spec.ApplicableTo = *req.ApplicableTo
	}
	if req.Metadata != nil {
		spec.Metadata = *req.Metadata
	}

	rule, err := spec.Compile()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_rule",
			"message": err.Error(),
		})
		return
	}

	if err := h.store.Upsert(c.Request.Context(), spec); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "save_failed",
			"message": "Failed to persist rule",
		})
		return
	}
	h.engine.Add(rule)

	c.JSON(http.StatusOK, gin.H{"rule": spec})
}

// DeleteRule handles DELETE /rules/:name
func (h *Handler) DeleteRule(c *gin.Context) {
	name := c.Param("name")

	if !h.engine.Remove(name) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "No rule with that name",
		})
		return
	}
	if err := h.store.Delete(c.Request.Context(), name); err != nil && err != ErrRuleNotFound {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "delete_failed",
			"message": "Rule removed from engine but not from storage",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": name})
}

// ExportRules handles GET /rules/export
func (h *Handler) ExportRules(c *gin.Context) {
	specs, err := h.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "export_failed",
			"message": "Failed to export rules",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": specs})
}

// importRequest carries a full replacement rule set.
type importRequest struct {
	Rules []*Spec `json:"rules" binding:"required"`
}

// ImportRules handles POST /rules/import, atomically replacing the set.
func (h *Handler) ImportRules(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	compiled := make([]Rule, 0, len(req.Rules))
	for _, spec := range req.Rules {
		rule, err := spec.Compile()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_rule",
				"message": err.Error(),
			})
			return
		}
		compiled = append(compiled, rule)
	}

	if err := h.store.Replace(c.Request.Context(), req.Rules); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "save_failed",
			"message": "Failed to persist rule set",
		})
		return
	}
	h.engine.Import(compiled)

	c.JSON(http.StatusOK, gin.H{"imported": len(compiled)})
}

func (h *Handler) findSpec(c *gin.Context, name string) (*Spec, bool) {
	specs, err := h.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "lookup_failed",
			"message": "Failed to load rules",
		})
		return nil, false
	}
	for _, spec := range specs {
		if spec.Name == name {
			return spec, true
		}
	}
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "not_found",
		"message": "No rule with that name",
	})
	return nil, false
}
