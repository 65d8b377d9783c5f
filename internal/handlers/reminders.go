package handlers

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"github.com/notofine/backend/internal/models"
)

type createReminderRequest struct {
	TicketID      int64    `json:"ticket_id"`
	FrequencyDays int      `json:"frequency_days"`
	Channels      []string `json:"channels"`
}

func (h *Handler) CreateReminder(c *ginext.Context) {
	var req createReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ginext.H{"error": "error on binding json"})
		return
	}
	chans, ok := parseChannels(c, req.Channels)
	if !ok {
		return
	}

	reminder, err := h.rems.Create(c.Request.Context(), currentUser(c), req.TicketID, req.FrequencyDays, chans)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ginext.H{"reminder": reminder})
}

func (h *Handler) GetReminder(c *ginext.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	reminder, err := h.rems.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ginext.H{"reminder": reminder})
}

func (h *Handler) ListReminders(c *ginext.Context) {
	reminders, err := h.rems.ListByUser(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ginext.H{"reminders": reminders})
}

type updateReminderRequest struct {
	FrequencyDays *int     `json:"frequency_days"`
	Active        *bool    `json:"active"`
	Channels      []string `json:"channels"`
}

func (h *Handler) UpdateReminder(c *ginext.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ginext.H{"error": "error on binding json"})
		return
	}

	upd := models.ReminderUpdate{
		FrequencyDays: req.FrequencyDays,
		Active:        req.Active,
	}
	if req.Channels != nil {
		chans, ok := parseChannels(c, req.Channels)
		if !ok {
			return
		}
		upd.Channels = chans
	}

	reminder, err := h.rems.Update(c.Request.Context(), currentUser(c), id, upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ginext.H{"reminder": reminder})
}

func (h *Handler) DeleteReminder(c *ginext.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.rems.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ginext.H{"result": "reminder deleted"})
}

// parseChannels validates the channel names; it writes the error
// response itself and reports ok=false on bad input.
func parseChannels(c *ginext.Context, names []string) ([]models.Channel, bool) {
	chans := make([]models.Channel, 0, len(names))
	for _, name := range names {
		ch, err := models.ParseChannel(name)
		if err != nil {
			c.JSON(http.StatusBadRequest, ginext.H{"error": err.Error()})
			return nil, false
		}
		chans = append(chans, ch)
	}
	return chans, true
}
