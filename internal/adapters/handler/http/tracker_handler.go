package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/habitflow/sync-engine/internal/core/domain"
	"github.com/habitflow/sync-engine/internal/core/services"
)

type TrackerHandler struct {
	svc *services.TrackerService
}

func NewTrackerHandler(svc *services.TrackerService) *TrackerHandler {
	return &TrackerHandler{svc: svc}
}

type habitRequest struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	Icon         string `json:"icon"`
	Color        string `json:"color"`
	Frequency    string `json:"frequency" binding:"required"`
	TargetDays   []int  `json:"targetDays"`
	TargetCount  int    `json:"targetCount"`
	ReminderTime string `json:"reminderTime"`
	Category     string `json:"category"`
}

func (r habitRequest) toInput() domain.HabitInput {
	return domain.HabitInput{
		Name:         r.Name,
		Description:  r.Description,
		Icon:         r.Icon,
		Color:        r.Color,
		Frequency:    r.Frequency,
		TargetDays:   r.TargetDays,
		TargetCount:  r.TargetCount,
		ReminderTime: r.ReminderTime,
		Category:     r.Category,
	}
}

type toggleRequest struct {
	HabitID string `json:"habitId" binding:"required"`
	Date    string `json:"date" binding:"required"`
	Note    string `json:"note"`
}

type noteRequest struct {
	HabitID string `json:"habitId" binding:"required"`
	Date    string `json:"date" binding:"required"`
	Note    string `json:"note"`
}

type positionRequest struct {
	SortOrder int `json:"sortOrder"`
}

type settingsRequest struct {
	Theme              *string `json:"theme"`
	WeekStartsOn       *int    `json:"weekStartsOn"`
	ShowStreaks        *bool   `json:"showStreaks"`
	ShowCompletionRate *bool   `json:"showCompletionRate"`
	DefaultView        *string `json:"defaultView"`
	SyncEnabled        *bool   `json:"syncEnabled"`
}

func (h *TrackerHandler) RegisterRoutes(router *gin.RouterGroup) {
	habits := router.Group("/habits")
	{
		habits.GET("", h.ListHabits)
		habits.POST("", h.CreateHabit)
		habits.PUT("/:id", h.UpdateHabit)
		habits.DELETE("/:id", h.DeleteHabit)
		habits.POST("/:id/archive", h.ArchiveHabit)
		habits.POST("/:id/restore", h.RestoreHabit)
		habits.PUT("/:id/position", h.ReorderHabit)
	}

	completions := router.Group("/completions")
	{
		completions.POST("/toggle", h.ToggleCompletion)
		completions.PUT("/note", h.SetCompletionNote)
	}

	router.GET("/settings", h.GetSettings)
	router.PUT("/settings", h.UpdateSettings)
}

func (h *TrackerHandler) ListHabits(c *gin.Context) {
	habits, err := h.svc.ListHabits(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	if habits == nil {
		habits = []*domain.Habit{}
	}
	c.JSON(http.StatusOK, habits)
}

func (h *TrackerHandler) CreateHabit(c *gin.Context) {
	var req habitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	habit, err := h.svc.CreateHabit(c.Request.Context(), req.toInput())
	if err != nil {
		handleDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, habit)
}

func (h *TrackerHandler) UpdateHabit(c *gin.Context) {
	var req habitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	habit, err := h.svc.UpdateHabit(c.Request.Context(), c.Param("id"), req.toInput())
	if err != nil {
		handleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, habit)
}

func (h *TrackerHandler) DeleteHabit(c *gin.Context) {
	if err := h.svc.DeleteHabit(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TrackerHandler) ArchiveHabit(c *gin.Context) {
	if err := h.svc.ArchiveHabit(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TrackerHandler) RestoreHabit(c *gin.Context) {
	if err := h.svc.RestoreHabit(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TrackerHandler) ReorderHabit(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	if err := h.svc.ReorderHabit(c.Request.Context(), c.Param("id"), req.SortOrder); err != nil {
		handleDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TrackerHandler) ToggleCompletion(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	completed, completion, err := h.svc.ToggleCompletion(c.Request.Context(), req.HabitID, req.Date, req.Note)
	if err != nil {
		handleDomainError(c, err)
		return
	}

	resp := gin.H{"completed": completed}
	if completion != nil {
		resp["completion"] = completion
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TrackerHandler) SetCompletionNote(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	if err := h.svc.SetCompletionNote(c.Request.Context(), req.HabitID, req.Date, req.Note); err != nil {
		handleDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TrackerHandler) GetSettings(c *gin.Context) {
	settings, err := h.svc.GetSettings(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *TrackerHandler) UpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	settings, err := h.svc.UpdateSettings(c.Request.Context(), services.SettingsInput{
		Theme:              req.Theme,
		WeekStartsOn:       req.WeekStartsOn,
		ShowStreaks:        req.ShowStreaks,
		ShowCompletionRate: req.ShowCompletionRate,
		DefaultView:        req.DefaultView,
		SyncEnabled:        req.SyncEnabled,
	})
	if err != nil {
		handleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

var validationSentinels = []error{
	domain.ErrHabitNameEmpty, domain.ErrHabitNameTooLong, domain.ErrHabitDescTooLong,
	domain.ErrInvalidColor,
	domain.ErrInvalidFrequency, domain.ErrInvalidWeekdays, domain.ErrMissingWeekdays,
	domain.ErrInvalidTarget, domain.ErrInvalidReminder, domain.ErrCategoryTooLong,
	domain.ErrHabitArchived, domain.ErrInvalidDate, domain.ErrNoteTooLong,
	domain.ErrMissingHabitID, domain.ErrInvalidTheme, domain.ErrInvalidWeekStart,
	domain.ErrInvalidView,
}

func handleDomainError(c *gin.Context, err error) {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	handleError(c, err)
}
