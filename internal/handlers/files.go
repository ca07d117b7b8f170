package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/OlsenSM91/Open-Server-Shares/internal/core"
	"github.com/OlsenSM91/Open-Server-Shares/internal/metrics"
	"github.com/OlsenSM91/Open-Server-Shares/internal/middleware"
	"github.com/OlsenSM91/Open-Server-Shares/internal/models"
	"github.com/OlsenSM91/Open-Server-Shares/internal/services"
	"github.com/OlsenSM91/Open-Server-Shares/internal/smb"
)

// FilesHandler serves the open-handle listing and the release action.
// Every listing is a fresh snapshot; nothing is cached across requests
// because handle ids are only valid at the instant they were reported.
type FilesHandler struct {
	registry core.HandleRegistry
	audit    *services.AuditService
	metrics  metrics.Recorder
}

func NewFilesHandler(
	registry core.HandleRegistry,
	audit *services.AuditService,
	m metrics.Recorder,
) *FilesHandler {
	return &FilesHandler{
		registry: registry,
		audit:    audit,
		metrics:  m,
	}
}

// ListFiles renders the current open handles. A malformed enumerator
// response degrades to an empty listing with a notice; it never kills
// the request.
func (h *FilesHandler) ListFiles(c *gin.Context) {
	handles, err := h.registry.List(c.Request.Context())
	notice := ""
	if err != nil {
		log.Printf("[Files] Listing failed: %v", err)
		h.metrics.RecordHandleListing(metrics.ResultError, 0)
		h.audit.Log(services.AuditLogEntry{
			EventType:     models.EventHandleListingFailed,
			Severity:      models.SeverityError,
			ActorUsername: middleware.CurrentUsername(c),
			ActorIP:       c.ClientIP(),
			Success:       false,
			ErrorMessage:  err.Error(),
		})
		handles = nil
		notice = "The open-file listing is currently unavailable. Refresh to try again."
		if errors.Is(err, smb.ErrMalformedOutput) {
			notice = "The open-file listing could not be read. Refresh to try again."
		}
	} else {
		h.metrics.RecordHandleListing(metrics.ResultSuccess, len(handles))
	}

	c.HTML(http.StatusOK, "files.html", gin.H{
		"CSRFToken": middleware.GetCSRFToken(c),
		"Username":  middleware.CurrentUsername(c),
		"Handles":   handles,
		"Notice":    notice,
	})
}

// Release force-closes one handle and returns to the listing. Failure
// renders an explicit error naming the handle: the file may well have
// been closed by someone else in the meantime, and the operator decides
// whether to retry after refreshing.
func (h *FilesHandler) Release(c *gin.Context) {
	fileID := c.PostForm("file_id")
	username := middleware.CurrentUsername(c)

	err := h.registry.Close(c.Request.Context(), fileID)
	if err != nil {
		log.Printf("[Files] Release failed user=%s handle=%s: %v", username, fileID, err)
		h.metrics.RecordHandleRelease(metrics.ResultFailure)
		h.audit.Log(services.AuditLogEntry{
			EventType:     models.EventHandleReleaseFailed,
			Severity:      models.SeverityError,
			ActorUsername: username,
			ActorIP:       c.ClientIP(),
			HandleID:      fileID,
			Success:       false,
			ErrorMessage:  err.Error(),
		})
		// The raw tool output stays in the log; the page only names
		// the handle.
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Error": "Release Failed",
			"Message": fmt.Sprintf(
				"Failed to release file handle %s. It may already be closed; refresh the listing and try again.",
				fileID),
		})
		return
	}

	log.Printf("[Files] Released handle=%s by user=%s", fileID, username)
	h.metrics.RecordHandleRelease(metrics.ResultSuccess)
	h.audit.Log(services.AuditLogEntry{
		EventType:     models.EventHandleReleased,
		Severity:      models.SeverityInfo,
		ActorUsername: username,
		ActorIP:       c.ClientIP(),
		HandleID:      fileID,
		Success:       true,
	})
	c.Redirect(http.StatusFound, "/files")
}
