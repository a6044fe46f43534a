package http

import (
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/habitflow/sync-engine/internal/core/domain"
	"github.com/habitflow/sync-engine/internal/core/services"
)

type SyncHandler struct {
	auth   domain.AuthProvider
	sync   *services.SnapshotSyncService
	export *services.ExportService

	mu           sync.Mutex
	inFlight     bool
	lastResult   *domain.MergeResult
	lastSyncedAt *time.Time
	lastError    string
}

func NewSyncHandler(auth domain.AuthProvider, syncSvc *services.SnapshotSyncService, exportSvc *services.ExportService) *SyncHandler {
	return &SyncHandler{
		auth:   auth,
		sync:   syncSvc,
		export: exportSvc,
	}
}

func (h *SyncHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/sync/status", h.Status)
	router.POST("/sync", h.SyncNow)
	router.GET("/export", h.Export)
	router.POST("/import", h.Import)
}

func (h *SyncHandler) Status(c *gin.Context) {
	user, err := h.auth.GetUser(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	resp := gin.H{
		"signedIn": user != nil,
		"syncing":  h.inFlight,
	}
	if user != nil {
		resp["userId"] = user.ID
	}
	if h.lastSyncedAt != nil {
		resp["lastSyncedAt"] = h.lastSyncedAt
	}
	if h.lastResult != nil {
		resp["lastResult"] = h.lastResult
	}
	if h.lastError != "" {
		resp["lastError"] = h.lastError
	}

	c.JSON(http.StatusOK, resp)
}

// SyncNow returns 409 while another manual sync is in flight.
func (h *SyncHandler) SyncNow(c *gin.Context) {
	user, err := h.auth.GetUser(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}

	h.mu.Lock()
	if h.inFlight {
		h.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "sync already in progress"})
		return
	}
	h.inFlight = true
	h.mu.Unlock()

	result, err := h.sync.Sync(c.Request.Context())
	now := time.Now().UTC()

	h.mu.Lock()
	h.inFlight = false
	if err != nil {
		h.lastError = err.Error()
	} else {
		h.lastError = ""
		h.lastResult = result
		h.lastSyncedAt = &now
	}
	h.mu.Unlock()

	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":   result,
		"syncedAt": now,
	})
}

func (h *SyncHandler) Export(c *gin.Context) {
	snap, err := h.export.BuildSnapshot(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="habitflow-export.json"`)
	c.JSON(http.StatusOK, snap)
}

func (h *SyncHandler) Import(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, services.MaxImportSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	snap, err := h.export.Import(c.Request.Context(), raw)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"habits":      len(snap.Data.Habits),
		"completions": len(snap.Data.Completions),
	})
}

func handleError(c *gin.Context, err error) {
	var verr *domain.ValidationError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "invalid snapshot",
			"issues": verr.Issues,
		})

	case errors.Is(err, domain.ErrHabitNotFound) || errors.Is(err, domain.ErrCompletionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})

	default:
		log.Printf("[ERROR] Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)

		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
