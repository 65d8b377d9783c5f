package handlers

import (
	"net/http"
	"strings"

	"github.com/wb-go/wbf/ginext"
)

type registerRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

func (h *Handler) Register(c *ginext.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ginext.H{"error": "error on binding json"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.FullName, req.Email, req.Password, req.Phone)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.sessions.Issue(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ginext.H{"user": user, "token": token})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *ginext.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ginext.H{"error": "error on binding json"})
		return
	}

	user, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.sessions.Issue(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ginext.H{"user": user, "token": token})
}

func (h *Handler) Logout(c *ginext.Context) {
	header := c.GetHeader("Authorization")
	token, _ := strings.CutPrefix(header, "Bearer ")
	if token != "" {
		if err := h.sessions.Revoke(c.Request.Context(), token); err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, ginext.H{"result": "logged out"})
}

func (h *Handler) Me(c *ginext.Context) {
	user, err := h.users.Get(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ginext.H{"user": user})
}

type deviceRequest struct {
	Token    string `json:"device_token"`
	Platform string `json:"device_type"`
}

func (h *Handler) RegisterDevice(c *ginext.Context) {
	var req deviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ginext.H{"error": "error on binding json"})
		return
	}
	if req.Token == "" {
		c.JSON(http.StatusBadRequest, ginext.H{"error": "device_token is required"})
		return
	}

	tok, err := h.users.RegisterDevice(c.Request.Context(), currentUser(c), req.Token, req.Platform)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ginext.H{"device": tok})
}

func (h *Handler) RemoveDevice(c *ginext.Context) {
	var req deviceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		c.JSON(http.StatusBadRequest, ginext.H{"error": "device_token is required"})
		return
	}
	if err := h.users.RemoveDevice(c.Request.Context(), req.Token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ginext.H{"result": "device removed"})
}

func (h *Handler) ListDevices(c *ginext.Context) {
	devices, err := h.users.ListDevices(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ginext.H{"devices": devices})
}
