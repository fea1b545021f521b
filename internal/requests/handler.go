package requests

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts submission, listing, and step review for
// authenticated users.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	renewals := rg.Group("/renewal-requests")
	{
		renewals.POST("", h.SubmitRenewal)
		renewals.GET("", h.ListRenewals)
		renewals.PUT("/:id/review", h.UpdateRenewalStep)
	}
	newProjects := rg.Group("/new-project-requests")
	{
		newProjects.POST("", h.SubmitNewProject)
		newProjects.GET("", h.ListNewProjects)
		newProjects.PUT("/:id/review", h.UpdateNewProjectStep)
	}
	secureDirs := rg.Group("/secure-directory-requests")
	{
		secureDirs.POST("", h.SubmitSecureDir)
		secureDirs.GET("", h.ListSecureDirs)
		secureDirs.PUT("/:id/review", h.UpdateSecureDirStep)
	}
}

// RegisterAdminRoutes mounts the life-cycle transitions. The group is
// expected to carry administrator middleware.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	renewals := rg.Group("/renewal-requests")
	{
		renewals.POST("/:id/approve", h.ApproveRenewal)
		renewals.POST("/:id/deny", h.DenyRenewal)
		renewals.POST("/:id/process", h.ProcessRenewal)
	}
	newProjects := rg.Group("/new-project-requests")
	{
		newProjects.POST("/:id/approve", h.ApproveNewProject)
		newProjects.POST("/:id/deny", h.DenyNewProject)
		newProjects.POST("/:id/process", h.ProcessNewProject)
	}
	secureDirs := rg.Group("/secure-directory-requests")
	{
		secureDirs.POST("/:id/approve", h.ApproveSecureDir)
		secureDirs.POST("/:id/deny", h.DenySecureDir)
		secureDirs.POST("/:id/process", h.ProcessSecureDir)
	}
}

// respondError distinguishes "you cannot perform this action right now"
// from opaque failures. Precondition messages name the current status;
// anything else is logged and reported generically so internals never
// leak to non-admin users.
func (h *Handler) respondError(c *gin.Context, err error) {
	if IsPrecondition(err) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	h.logger.Error("Request operation failed",
		zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "something went wrong; contact an administrator",
	})
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return uuid.Nil, false
	}
	return id, true
}

type transitionPayload struct {
	NumServiceUnits decimal.Decimal `json:"num_service_units"`
}

type stepPayload struct {
	Step          string `json:"step" binding:"required"`
	Status        string `json:"status"`
	Justification string `json:"justification"`
}

type submitRenewalPayload struct {
	RequesterID        uuid.UUID  `json:"requester_id" binding:"required"`
	PIID               uuid.UUID  `json:"pi_id" binding:"required"`
	AllowanceID        uuid.UUID  `json:"allowance_id" binding:"required"`
	AllocationPeriodID uuid.UUID  `json:"allocation_period_id" binding:"required"`
	PreProjectID       *uuid.UUID `json:"pre_project_id"`
	PostProjectID      *uuid.UUID `json:"post_project_id"`
	NewProjectName     string     `json:"new_project_name"`
	NewProjectTitle    string     `json:"new_project_title"`
	Pool               bool       `json:"pool"`
}

func (h *Handler) SubmitRenewal(c *gin.Context) {
	var payload submitRenewalPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := h.service.SubmitRenewal(c.Request.Context(), SubmitRenewalInput{
		RequesterID:        payload.RequesterID,
		PIID:               payload.PIID,
		AllowanceID:        payload.AllowanceID,
		AllocationPeriodID: payload.AllocationPeriodID,
		PreProjectID:       payload.PreProjectID,
		PostProjectID:      payload.PostProjectID,
		NewProjectName:     payload.NewProjectName,
		NewProjectTitle:    payload.NewProjectTitle,
		Pool:               payload.Pool,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (h *Handler) ListRenewals(c *gin.Context) {
	reqs, err := h.service.ListRenewals(c.Request.Context(), statusFilter(c)...)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

func (h *Handler) UpdateRenewalStep(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload stepPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := h.service.UpdateRenewalStep(c.Request.Context(), id, StepUpdate{
		Step:          payload.Step,
		Status:        payload.Status,
		Justification: payload.Justification,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) ApproveRenewal(c *gin.Context) {
	h.transition(c, func(id uuid.UUID, p transitionPayload) (*Outcome, error) {
		return h.service.ApproveRenewal(c.Request.Context(), id, p.NumServiceUnits)
	})
}

func (h *Handler) DenyRenewal(c *gin.Context) {
	h.transition(c, func(id uuid.UUID, _ transitionPayload) (*Outcome, error) {
		return h.service.DenyRenewal(c.Request.Context(), id)
	})
}

func (h *Handler) ProcessRenewal(c *gin.Context) {
	h.transition(c, func(id uuid.UUID, p transitionPayload) (*Outcome, error) {
		return h.service.ProcessRenewal(c.Request.Context(), id, p.NumServiceUnits)
	})
}

type submitNewProjectPayload struct {
	RequesterID        uuid.UUID `json:"requester_id" binding:"required"`
	PIID               uuid.UUID `json:"pi_id" binding:"required"`
	AllowanceID        uuid.UUID `json:"allowance_id" binding:"required"`
	AllocationPeriodID uuid.UUID `json:"allocation_period_id" binding:"required"`
	Name               string    `json:"name" binding:"required"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Pool               bool      `json:"pool"`
}

func (h *Handler) SubmitNewProject(c *gin.Context) {
	var payload submitNewProjectPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := h.service.SubmitNewProject(c.Request.Context(), SubmitNewProjectInput{
		RequesterID:        payload.RequesterID,
		PIID:               payload.PIID,
		AllowanceID:        payload.AllowanceID,
		AllocationPeriodID: payload.AllocationPeriodID,
		Name:               payload.Name,
		Title:              payload.Title,
		Description:        payload.Description,
		Pool:               payload.Pool,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (h *Handler) ListNewProjects(c *gin.Context) {
	reqs, err := h.service.ListNewProjects(c.Request.Context(), statusFilter(c)...)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

func (h *Handler) UpdateNewProjectStep(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload stepPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := h.service.UpdateNewProjectStep(c.Request.Context(), id, StepUpdate{
		Step:          payload.Step,
		Status:        payload.Status,
		Justification: payload.Justification,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) ApproveNewProject(c *gin.Context) {
	h.transition(c, func(id uuid.UUID, p transitionPayload) (*Outcome, error) {
		return h.service.ApproveNewProject(c.Request.Context(), id, p.NumServiceUnits)
	})
}

func (h *Handler) DenyNewProject(c *gin.Context) {
	h.transition(c, func(id uuid.UUID, _ transitionPayload) (*Outcome, error) {
		return h.service.DenyNewProject(c.Request.Context(), id)
	})
}

func (h *Handler) ProcessNewProject(c *gin.Context) {
	h.transition(c, func(id uuid.UUID, p transitionPayload) (*Outcome, error) {
		return h.service.ProcessNewProject(c.Request.Context(), id, p.NumServiceUnits)
	})
}

type submitSecureDirPayload struct {
	RequesterID     uuid.UUID `json:"requester_id" binding:"required"`
	ProjectID       uuid.UUID `json:"project_id" binding:"required"`
	DirectoryName   string    `json:"directory_name" binding:"required"`
	Department      string    `json:"department"`
	DataDescription string    `json:"data_description"`
}

func (h *Handler) SubmitSecureDir(c *gin.Context) {
	var payload submitSecureDirPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := h.service.SubmitSecureDir(c.Request.Context(), SubmitSecureDirInput{
		RequesterID:     payload.RequesterID,
		ProjectID:       payload.ProjectID,
		DirectoryName:   payload.DirectoryName,
		Department:      payload.Department,
		DataDescription: payload.DataDescription,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (h *Handler) ListSecureDirs(c *gin.Context) {
	reqs, err := h.service.ListSecureDirs(c.Request.Context(), statusFilter(c)...)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

func (h *Handler) UpdateSecureDirStep(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload stepPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := h.service.UpdateSecureDirStep(c.Request.Context(), id, StepUpdate{
		Step:          payload.Step,
		Status:        payload.Status,
		Justification: payload.Justification,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) ApproveSecureDir(c *gin.Context) {
	h.transition(c, func(id uuid.UUID, _ transitionPayload) (*Outcome, error) {
		return h.service.ApproveSecureDir(c.Request.Context(), id)
	})
}

func (h *Handler) DenySecureDir(c *gin.Context) {
	h.transition(c, func(id uuid.UUID, _ transitionPayload) (*Outcome, error) {
		return h.service.DenySecureDir(c.Request.Context(), id)
	})
}

func (h *Handler) ProcessSecureDir(c *gin.Context) {
	h.transition(c, func(id uuid.UUID, _ transitionPayload) (*Outcome, error) {
		return h.service.ProcessSecureDir(c.Request.Context(), id)
	})
}

func (h *Handler) transition(c *gin.Context, run func(uuid.UUID, transitionPayload) (*Outcome, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload transitionPayload
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	outcome, err := run(id, payload)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success_messages":  outcome.SuccessMessages,
		"warning_messages":  outcome.WarningMessages,
		"notification_sent": outcome.Notification.Sent,
	})
}

func statusFilter(c *gin.Context) []RequestStatus {
	var statuses []RequestStatus
	for _, s := range c.QueryArray("status") {
		statuses = append(statuses, RequestStatus(s))
	}
	return statuses
}
