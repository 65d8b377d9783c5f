package handlers

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"github.com/notofine/backend/internal/models"
)

type createPlanRequest struct {
	Name         string  `json:"name"`
	PriceUSD     float64 `json:"price"`
	DurationDays int     `json:"duration_days"`
	Description  string  `json:"description"`
}

func (h *Handler) CreatePlan(c *ginext.Context) {
	var req createPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ginext.H{"error": "error on binding json"})
		return
	}

	plan, err := h.subs.CreatePlan(c.Request.Context(), &models.Plan{
		Name:         req.Name,
		PriceUSD:     req.PriceUSD,
		DurationDays: req.DurationDays,
		Description:  req.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ginext.H{"plan": plan})
}

func (h *Handler) ListPlans(c *ginext.Context) {
	plans, err := h.subs.ListPlans(c.Request.Context(), c.Query("all") != "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ginext.H{"plans": plans})
}

type updatePlanRequest struct {
	PriceUSD    *float64 `json:"price"`
	Description *string  `json:"description"`
	IsActive    *bool    `json:"is_active"`
}

func (h *Handler) UpdatePlan(c *ginext.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ginext.H{"error": "error on binding json"})
		return
	}

	plan, err := h.subs.UpdatePlan(c.Request.Context(), id, req.PriceUSD, req.Description, req.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ginext.H{"plan": plan})
}

type subscribeRequest struct {
	PlanID int64 `json:"plan_id"`
}

// Subscribe opens a pending payment and returns the checkout URL the
// client redirects the user to.
func (h *Handler) Subscribe(c *ginext.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PlanID <= 0 {
		c.JSON(http.StatusBadRequest, ginext.H{"error": "plan_id is required"})
		return
	}

	payment, err := h.subs.Subscribe(c.Request.Context(), currentUser(c), req.PlanID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ginext.H{"payment": payment, "checkout_url": payment.CheckoutURL})
}

func (h *Handler) ListSubscriptions(c *ginext.Context) {
	subs, err := h.subs.ListByUser(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ginext.H{"subscriptions": subs})
}

func (h *Handler) CancelSubscription(c *ginext.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.subs.Cancel(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ginext.H{"result": "subscription canceled"})
}

type paymentWebhookRequest struct {
	PaymentID int64  `json:"payment_id"`
	Status    string `json:"status"`
}

// PaymentWebhook is called by the checkout provider once the charge
// settles. Only a completed status activates the subscription.
func (h *Handler) PaymentWebhook(c *ginext.Context) {
	var req paymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PaymentID <= 0 {
		c.JSON(http.StatusBadRequest, ginext.H{"error": "payment_id is required"})
		return
	}
	if req.Status != "completed" {
		c.JSON(http.StatusOK, ginext.H{"result": "ignored", "status": req.Status})
		return
	}

	sub, err := h.subs.CompletePayment(c.Request.Context(), req.PaymentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ginext.H{"subscription": sub})
}
