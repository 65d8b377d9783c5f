// Package handlers exposes the HTTP API over ginext. Each handler binds
// input, calls one service method, and translates sentinel errors into
// status codes.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"

	"github.com/notofine/backend/internal/auth"
	"github.com/notofine/backend/internal/service"
	"github.com/notofine/backend/internal/storage"
)

const userIDKey = "userID"

type Handler struct {
	users    *service.UserService
	tickets  *service.TicketService
	rems     *service.ReminderService
	notifier *service.NotificationService
	engine   *service.ReminderEngine
	subs     *service.SubscriptionService
	sessions *auth.Sessions

	db  *dbpg.DB
	rdb *redis.Client

	uploadsDir string
}

func NewHandler(
	users *service.UserService,
	tickets *service.TicketService,
	rems *service.ReminderService,
	notifier *service.NotificationService,
	engine *service.ReminderEngine,
	subs *service.SubscriptionService,
	sessions *auth.Sessions,
	db *dbpg.DB,
	rdb *redis.Client,
	uploadsDir string,
) *Handler {
	return &Handler{
		users:      users,
		tickets:    tickets,
		rems:       rems,
		notifier:   notifier,
		engine:     engine,
		subs:       subs,
		sessions:   sessions,
		db:         db,
		rdb:        rdb,
		uploadsDir: uploadsDir,
	}
}

// RequireAuth resolves the bearer token and stores the user id in the
// request context.
func (h *Handler) RequireAuth(c *ginext.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ginext.H{"error": "missing bearer token"})
		return
	}
	userID, err := h.sessions.Resolve(c.Request.Context(), token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ginext.H{"error": "invalid or expired token"})
		return
	}
	c.Set(userIDKey, userID)
	c.Next()
}

func currentUser(c *ginext.Context) int64 {
	return c.GetInt64(userIDKey)
}

func pathID(c *ginext.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ginext.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// respondError maps service and storage errors onto HTTP statuses.
func respondError(c *ginext.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, ginext.H{"error": "not found"})
	case errors.Is(err, storage.ErrReminderExists),
		errors.Is(err, storage.ErrEmailTaken),
		errors.Is(err, storage.ErrPlanExists),
		errors.Is(err, service.ErrAlreadySubscribed):
		c.JSON(http.StatusConflict, ginext.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, ginext.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ginext.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidFrequency),
		errors.Is(err, service.ErrNoChannels),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrPaymentNotPending):
		c.JSON(http.StatusBadRequest, ginext.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ginext.H{"error": "internal error"})
	}
}

// Health pings both backing stores; any failure answers 503 so load
// balancers pull the instance.
func (h *Handler) Health(c *ginext.Context) {
	ctx := c.Request.Context()

	if h.db != nil {
		if err := h.db.Master.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, ginext.H{"status": "degraded", "error": "database unreachable"})
			return
		}
	}
	if h.rdb != nil {
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, ginext.H{"status": "degraded", "error": "redis unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, ginext.H{"status": "ok"})
}
