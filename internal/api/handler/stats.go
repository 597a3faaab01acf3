package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marcusw/jobtrack/internal/logger"
	"github.com/marcusw/jobtrack/internal/repository"
)

// StatsHandler serves aggregate views over postings, the taxonomy, and the
// run ledger.
type StatsHandler struct {
	postings *repository.PostingRepository
	roles    *repository.RoleRepository
	runs     *repository.RunRepository
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(
	postings *repository.PostingRepository,
	roles *repository.RoleRepository,
	runs *repository.RunRepository,
) *StatsHandler {
	return &StatsHandler{postings: postings, roles: roles, runs: runs}
}

// Stats handles GET /api/v1/stats: global active/inactive counts plus
// per-company and per-role breakdowns.
func (h *StatsHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	active, err := h.postings.CountByActive(ctx, true)
	if err != nil {
		log.WithError(err).Error("Failed to count active postings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}
	inactive, err := h.postings.CountByActive(ctx, false)
	if err != nil {
		log.WithError(err).Error("Failed to count inactive postings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}
	companies, err := h.postings.CountActiveByCompany(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to count postings by company")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}
	roleCounts, err := h.roles.CountPostings(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to count postings by role")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}
	recent, err := h.runs.ListRecent(ctx, 5)
	if err != nil {
		log.WithError(err).Error("Failed to list recent runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"active_jobs":   active,
		"inactive_jobs": inactive,
		"total_jobs":    active + inactive,
		"by_company":    companies,
		"by_role":       roleCounts,
		"recent_runs":   recent,
	})
}

// Roles handles GET /api/v1/roles: the canonical taxonomy, largest first.
func (h *StatsHandler) Roles(c *gin.Context) {
	ctx := c.Request.Context()

	counts, err := h.roles.CountPostings(ctx)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to list roles")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list roles"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"roles": counts,
		"total": len(counts),
	})
}

// Runs handles GET /api/v1/runs: recent run ledger entries, newest first.
func (h *StatsHandler) Runs(c *gin.Context) {
	ctx := c.Request.Context()

	limit := parseBoundedInt(c.Query("limit"), 50, 200)
	records, err := h.runs.ListRecent(ctx, limit)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to list runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  records,
		"total": len(records),
	})
}
