package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/marcusw/jobtrack/internal/logger"
	"github.com/marcusw/jobtrack/internal/repository"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// JobHandler serves read-only posting queries.
type JobHandler struct {
	postings *repository.PostingRepository
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(postings *repository.PostingRepository) *JobHandler {
	return &JobHandler{postings: postings}
}

// List handles GET /api/v1/jobs.
//
// Query parameters:
//   - company: filter by company name
//   - role: filter by canonical role name
//   - active: "false" to include expired postings (default true)
//   - days: only postings dated within the last N days
//   - limit, offset: pagination (limit capped at 100)
func (h *JobHandler) List(c *gin.Context) {
	log := logger.FromContext(c.Request.Context())

	filter := repository.ListFilter{
		Company:    c.Query("company"),
		Role:       c.Query("role"),
		ActiveOnly: c.DefaultQuery("active", "true") != "false",
	}

	if days := c.Query("days"); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a non-negative integer"})
			return
		}
		filter.PostedDays = n
	}

	filter.Limit = parseBoundedInt(c.Query("limit"), defaultPageSize, maxPageSize)
	filter.Offset = parseBoundedInt(c.Query("offset"), 0, 1<<30)

	postings, total, err := h.postings.List(c.Request.Context(), filter)
	if err != nil {
		log.WithError(err).Error("Failed to list postings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list postings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":   postings,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// Get handles GET /api/v1/jobs/:id.
func (h *JobHandler) Get(c *gin.Context) {
	log := logger.FromContext(c.Request.Context())

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	posting, err := h.postings.GetByID(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		log.WithError(err).WithField("id", id).Error("Failed to load posting")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load posting"})
		return
	}

	c.JSON(http.StatusOK, posting)
}

// parseBoundedInt parses a non-negative integer query value, falling back to
// def on absence or garbage and clamping to max.
func parseBoundedInt(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
