package risk

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/solsentry/solsentry/internal/analysis"
)

// Handler provides the analyze endpoint and assessment history reads.
type Handler struct {
	analyzer *Analyzer
	store    Store
}

// NewHandler creates a risk assessment handler.
func NewHandler(analyzer *Analyzer, store Store) *Handler {
	return &Handler{analyzer: analyzer, store: store}
}

// RegisterRoutes sets up assessment routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/analyze", h.Analyze)
	r.GET("/assessments/:wallet", h.ListAssessments)
}

// AnalyzeRequest is the analyze endpoint's body: the subject wallet plus the
// simulator-produced analysis context, passed through verbatim.
type AnalyzeRequest struct {
	Wallet    string            `json:"wallet" binding:"required"`
	Signature string            `json:"signature"`
	SecretRef string            `json:"secretRef"`
	Context   *analysis.Context `json:"context" binding:"required"`
	Metadata  map[string]any    `json:"metadata"`
}

// Analyze handles POST /analyze
func (h *Handler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request must include wallet and context",
		})
		return
	}

	assessment := h.analyzer.Analyze(c.Request.Context(), &Request{
		Wallet:    req.Wallet,
		Signature: req.Signature,
		SecretRef: req.SecretRef,
		Context:   req.Context,
		Metadata:  req.Metadata,
	})

	c.JSON(http.StatusOK, gin.H{"assessment": assessment})
}

// ListAssessments handles GET /assessments/:wallet
func (h *Handler) ListAssessments(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "no_audit_trail",
			"message": "Assessment history is not enabled",
		})
		return
	}

	wallet := c.Param("wallet")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit > 100 {
		limit = 100
	}

	assessments, err := h.store.ListByWallet(c.Request.Context(), wallet, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Failed to list assessments",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"wallet":      wallet,
		"assessments": assessments,
		"count":       len(assessments),
	})
}
