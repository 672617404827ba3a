package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/mediagrab-go/internal/app"
)

const maxStateWait = 2 * time.Minute

// QueryHandler drives search and resolve on the coordinator
type QueryHandler struct {
	coordinator *app.Coordinator
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(coordinator *app.Coordinator) *QueryHandler {
	return &QueryHandler{coordinator: coordinator}
}

// QueryRequest is a search term or a media URL
type QueryRequest struct {
	Query string `json:"query"`
}

// StateResponse is the coordinator snapshot plus whether it is settled
type StateResponse struct {
	app.Snapshot
	Settled bool `json:"settled"`
}

func newStateResponse(s app.Snapshot) StateResponse {
	return StateResponse{Snapshot: s, Settled: s.Settled()}
}

// SubmitQuery handles POST /api/v1/query
func (h *QueryHandler) SubmitQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.coordinator.SubmitQuery(req.Query); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, newStateResponse(h.coordinator.Snapshot()))
}

// SelectResult handles POST /api/v1/results/:index/select
func (h *QueryHandler) SelectResult(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
		return
	}

	if err := h.coordinator.SelectResult(index); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, newStateResponse(h.coordinator.Snapshot()))
}

// GetState handles GET /api/v1/state. With ?wait=<duration> it blocks until
// the lookup in flight settles or the wait runs out.
func (h *QueryHandler) GetState(c *gin.Context) {
	waitStr := c.Query("wait")
	if waitStr == "" {
		c.JSON(http.StatusOK, newStateResponse(h.coordinator.Snapshot()))
		return
	}

	wait, err := time.ParseDuration(waitStr)
	if err != nil || wait < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wait duration, use e.g. 30s"})
		return
	}
	if wait > maxStateWait {
		wait = maxStateWait
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
	defer cancel()

	// a timeout still answers with the current, unsettled state
	snap, _ := h.coordinator.AwaitSettled(ctx)
	c.JSON(http.StatusOK, newStateResponse(snap))
}
