package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/confirmaparty/confirma/internal/app/worker"
	"github.com/confirmaparty/confirma/internal/services"
	"github.com/confirmaparty/confirma/pkg/response"
)

// QueueHandler exposes the delivery queue's query surface and the external
// processing trigger.
type QueueHandler struct {
	queue  *services.QueueService
	worker *worker.Worker
}

// NewQueueHandler constructs a QueueHandler.
func NewQueueHandler(queue *services.QueueService, w *worker.Worker) (*QueueHandler, error) {
	if queue == nil {
		return nil, errors.New("queue handler: queue service is required")
	}
	if w == nil {
		return nil, errors.New("queue handler: worker is required")
	}
	return &QueueHandler{queue: queue, worker: w}, nil
}

// Stats returns queue row counts for a party grouped by kind and status.
func (h *QueueHandler) Stats(c *gin.Context) {
	stats, err := h.queue.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// Upcoming lists the next scheduled deliveries for a party.
func (h *QueueHandler) Upcoming(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	upcoming, err := h.queue.Upcoming(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, upcoming)
}

// Process runs one worker pass on demand. External cron services hit this
// endpoint; the shared-secret check happens in middleware. A pass already in
// flight yields 409 rather than a second concurrent batch.
func (h *QueueHandler) Process(c *gin.Context) {
	result, err := h.worker.RunOnce(c.Request.Context())
	if err != nil {
		if errors.Is(err, worker.ErrBusy) {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error":   gin.H{"code": "queue.busy", "message": "a dispatch pass is already running"},
			})
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}
