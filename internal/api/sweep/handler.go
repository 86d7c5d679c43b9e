// Package sweep provides a REST API handler to trigger the overdue sweep
// manually.
package sweep

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carrotwars/carrotwars/pkg/logger"
)

// SweepRunner runs the overdue sweep.
type SweepRunner interface {
	RunOverdueSweep(ctx context.Context)
}

// Handler handles sweep API requests.
type Handler struct {
	runner SweepRunner
	log    *logger.Logger
}

// NewHandler creates a new sweep handler.
func NewHandler(runner SweepRunner, log *logger.Logger) *Handler {
	return &Handler{
		runner: runner,
		log:    log,
	}
}

// Run triggers the overdue sweep immediately. The run guard still applies,
// so a sweep that already ran today is a no-op.
// POST /api/v1/sweep/run.
func (h *Handler) Run(c *gin.Context) {
	h.log.Info().Msg("Overdue sweep triggered via API")
	h.runner.RunOverdueSweep(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"status":       "completed",
		"triggered_at": time.Now().UTC(),
	})
}
