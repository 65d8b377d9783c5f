package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/notofine/backend/internal/models"
	"github.com/notofine/backend/internal/storage"
)

// CreateTicket accepts multipart form data so the citation photo can be
// uploaded together with the ticket fields.
func (h *Handler) CreateTicket(c *ginext.Context) {
	amount, err := strconv.ParseFloat(c.PostForm("amount_usd"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ginext.H{"error": "amount_usd must be a number"})
		return
	}

	ticket := &models.Ticket{
		UserID:       currentUser(c),
		TicketNumber: c.PostForm("ticket_number"),
		AmountUSD:    amount,
		Description:  c.PostForm("description"),
	}

	if file, err := c.FormFile("image"); err == nil {
		name := uuid.NewString() + filepath.Ext(file.Filename)
		dst := filepath.Join(h.uploadsDir, name)
		if err := c.SaveUploadedFile(file, dst); err != nil {
			zlog.Logger.Error().Err(err).Str("file", dst).Msg("save ticket image")
			c.JSON(http.StatusInternalServerError, ginext.H{"error": "failed to store image"})
			return
		}
		ticket.ImageURL = "/uploads/" + name
	}

	created, err := h.tickets.Create(c.Request.Context(), ticket)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ginext.H{"ticket": created})
}

func (h *Handler) GetTicket(c *ginext.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ticket, err := h.tickets.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ginext.H{"ticket": ticket})
}

func (h *Handler) ListTickets(c *ginext.Context) {
	tickets, err := h.tickets.ListByUser(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ginext.H{"tickets": tickets})
}

type ticketUpdateRequest struct {
	Description *string  `json:"description"`
	AmountUSD   *float64 `json:"amount_usd"`
}

func (h *Handler) UpdateTicket(c *ginext.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ticketUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ginext.H{"error": "error on binding json"})
		return
	}

	ticket, err := h.tickets.Update(c.Request.Context(), currentUser(c), id, storage.TicketUpdate{
		Description: req.Description,
		AmountUSD:   req.AmountUSD,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ginext.H{"ticket": ticket})
}

// ResolveTicket marks the citation paid; its reminder goes quiet from
// the next cycle.
func (h *Handler) ResolveTicket(c *ginext.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ticket, err := h.tickets.Resolve(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ginext.H{"ticket": ticket})
}

func (h *Handler) DeleteTicket(c *ginext.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	imageURL, err := h.tickets.Delete(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if imageURL != "" {
		path := filepath.Join(h.uploadsDir, filepath.Base(imageURL))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			zlog.Logger.Warn().Err(err).Str("file", path).Msg("remove ticket image")
		}
	}
	c.JSON(http.StatusOK, ginext.H{"result": "ticket deleted"})
}
