package reports

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"rc-portal/allocation-portal-backend/internal/requests"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	exports := rg.Group("/exports")
	{
		exports.GET("/renewal-requests", h.ExportRenewals)
		exports.GET("/new-project-requests", h.ExportNewProjects)
		exports.GET("/secure-directory-requests", h.ExportSecureDirs)
	}
}

func (h *Handler) ExportRenewals(c *gin.Context) {
	h.export(c, "renewal_requests", h.service.ExportRenewals)
}

func (h *Handler) ExportNewProjects(c *gin.Context) {
	h.export(c, "new_project_requests", h.service.ExportNewProjects)
}

func (h *Handler) ExportSecureDirs(c *gin.Context) {
	h.export(c, "secure_directory_requests", h.service.ExportSecureDirs)
}

func (h *Handler) export(c *gin.Context, name string,
	run func(ctx context.Context, w io.Writer, format Format, statuses ...requests.RequestStatus) error) {
	format := Format(c.DefaultQuery("format", string(FormatCSV)))
	var statuses []requests.RequestStatus
	for _, s := range c.QueryArray("status") {
		statuses = append(statuses, requests.RequestStatus(s))
	}

	switch format {
	case FormatCSV:
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition",
			fmt.Sprintf("attachment; filename=%s.csv", name))
	case FormatXLSX:
		c.Header("Content-Type",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition",
			fmt.Sprintf("attachment; filename=%s.xlsx", name))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported export format"})
		return
	}

	if err := run(c.Request.Context(), c.Writer, format, statuses...); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
	}
}
