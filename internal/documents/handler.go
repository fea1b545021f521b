package documents

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	memoranda := rg.Group("/memoranda")
	{
		memoranda.POST("/:kind/:id", h.Upload)
		memoranda.GET("/:kind/:id", h.Download)
		memoranda.GET("/:kind/:id/versions", h.ListVersions)
		memoranda.GET("/:kind/:id/url", h.PresignedURL)
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.logger.Error("Memorandum operation failed",
		zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "something went wrong; contact an administrator",
	})
}

func requestRef(c *gin.Context) (RequestKind, uuid.UUID, bool) {
	kind := RequestKind(c.Param("kind"))
	if kind != KindNewProject && kind != KindSecureDirectory {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("unknown request kind %q", c.Param("kind"))})
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return "", uuid.Nil, false
	}
	return kind, id, true
}

func (h *Handler) Upload(c *gin.Context) {
	kind, id, ok := requestRef(c)
	if !ok {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a file upload is required"})
		return
	}
	uploadedBy, err := uuid.Parse(c.PostForm("uploaded_by"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "uploaded_by must be a user id"})
		return
	}
	content, err := file.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer content.Close()

	m, err := h.service.Upload(c.Request.Context(), UploadInput{
		Kind:          kind,
		RequestID:     id,
		FileName:      file.Filename,
		ContentType:   file.Header.Get("Content-Type"),
		FileSize:      file.Size,
		Content:       content,
		ChangeSummary: c.PostForm("change_summary"),
		UploadedBy:    uploadedBy,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) Download(c *gin.Context) {
	kind, id, ok := requestRef(c)
	if !ok {
		return
	}
	if v := c.Query("version"); v != "" {
		version, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "version must be an integer"})
			return
		}
		h.downloadVersion(c, kind, id, version)
		return
	}
	m, body, err := h.service.Download(c.Request.Context(), kind, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer body.Close()
	c.Header("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", m.FileName))
	c.DataFromReader(http.StatusOK, m.FileSize, m.ContentType, body, nil)
}

func (h *Handler) downloadVersion(c *gin.Context, kind RequestKind, id uuid.UUID, version int) {
	v, body, err := h.service.DownloadVersion(c.Request.Context(), kind, id, version)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer body.Close()
	c.Header("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q",
			fmt.Sprintf("memorandum_v%d.pdf", v.VersionNumber)))
	c.DataFromReader(http.StatusOK, -1, "application/octet-stream", body, nil)
}

func (h *Handler) ListVersions(c *gin.Context) {
	kind, id, ok := requestRef(c)
	if !ok {
		return
	}
	versions, err := h.service.ListVersions(c.Request.Context(), kind, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

func (h *Handler) PresignedURL(c *gin.Context) {
	kind, id, ok := requestRef(c)
	if !ok {
		return
	}
	url, err := h.service.PresignedURL(c.Request.Context(), kind, id, 15*time.Minute)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
