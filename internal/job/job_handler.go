package job

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/jobtracker/common"
	"github.com/joshu-sajeev/jobtracker/internal/dto"
	"github.com/joshu-sajeev/jobtracker/middleware"
)

type JobHandler struct {
	service JobServiceInterface
}

func NewJobHandler(s JobServiceInterface) *JobHandler {
	return &JobHandler{service: s}
}

var _ JobHandlerInterface = (*JobHandler)(nil)

// RegisterRoutes mounts the job API under /api.
func RegisterRoutes(r gin.IRouter, h JobHandlerInterface) {
	api := r.Group("/api")
	api.POST("/jobs", h.Submit)
	api.GET("/jobs", h.List)
	api.GET("/jobs/:id", h.Get)
	api.GET("/transactions/:jobId", h.Transactions)
	api.GET("/queue/stats", h.Stats)
}

// Submit creates and enqueues a new job. The request has no body.
func (h *JobHandler) Submit(c *gin.Context) {
	job, err := h.service.SubmitJob(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.SubmitJobResponseDTO{Success: true, Job: *job})
}

// Get returns a single job by its numeric ID.
func (h *JobHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	job, err := h.service.GetJob(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// List returns a page of jobs, newest first.
func (h *JobHandler) List(c *gin.Context) {
	var q dto.ListJobsQuery
	if !middleware.BindQuery(c, &q) {
		return
	}

	resp, err := h.service.ListJobs(c.Request.Context(), q.Page, q.Limit)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Transactions returns every attempt outcome of a job, newest first.
func (h *JobHandler) Transactions(c *gin.Context) {
	id, ok := parseID(c, "jobId")
	if !ok {
		return
	}

	txs, err := h.service.ListTransactions(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, txs)
}

// Stats reports the queue depth.
func (h *JobHandler) Stats(c *gin.Context) {
	stats, err := h.service.QueueStats(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "queue": stats})
}

func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 0)
	if err != nil || id < 1 {
		c.Error(common.Errf(http.StatusBadRequest, "invalid %s", param))
		return 0, false
	}
	return uint(id), true
}
