package handlers

import (
	"net/http"
	"strconv"

	"github.com/wb-go/wbf/ginext"

	"github.com/notofine/backend/internal/models"
)

// ProcessReminders is the manual trigger for one dispatch cycle. It
// always answers 200 with the aggregate summary; per-channel failures
// are visible in the counts and the audit log only.
func (h *Handler) ProcessReminders(c *ginext.Context) {
	summary, err := h.engine.ProcessDue(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ginext.H{"processed": summary.Processed, "channels": summary.Channels})
}

type sendNotificationRequest struct {
	Channel string `json:"channel"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// SendNotification delivers a one-off message to the authenticated user
// over the chosen channel, bypassing the reminder schedule.
func (h *Handler) SendNotification(c *ginext.Context) {
	var req sendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ginext.H{"error": "error on binding json"})
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, ginext.H{"error": "message is required"})
		return
	}
	channel, err := models.ParseChannel(req.Channel)
	if err != nil {
		c.JSON(http.StatusBadRequest, ginext.H{"error": err.Error()})
		return
	}

	n := &models.Notification{
		UserID:  currentUser(c),
		Channel: channel,
		Subject: req.Subject,
		Message: req.Message,
	}
	sent, err := h.notifier.Deliver(c.Request.Context(), n)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ginext.H{"sent": sent, "notification": n})
}

func (h *Handler) ListNotifications(c *ginext.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	history, err := h.notifier.History(c.Request.Context(), currentUser(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ginext.H{"notifications": history})
}
