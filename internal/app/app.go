// Package app assembles the router and the HTTP server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/notofine/backend/internal/config"
	"github.com/notofine/backend/internal/handlers"
)

type App struct {
	Router  *ginext.Engine
	Server  *http.Server
	Config  *config.Config
	Handler *handlers.Handler
}

func NewApp(cfg *config.Config, handler *handlers.Handler) *App {
	router := ginext.New("")

	router.Use(func(c *ginext.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	app := &App{
		Router:  router,
		Server:  server,
		Config:  cfg,
		Handler: handler,
	}
	app.setupRoutes()
	return app
}

func (a *App) setupRoutes() {
	h := a.Handler

	a.Router.GET("/health", h.Health)
	a.Router.POST("/auth/register", h.Register)
	a.Router.POST("/auth/login", h.Login)
	a.Router.POST("/payments/webhook", h.PaymentWebhook)
	a.Router.GET("/plans", h.ListPlans)
	a.Router.Static("/uploads", a.Config.Server.UploadsDir)

	auth := a.Router.Group("", h.RequireAuth)
	auth.POST("/auth/logout", h.Logout)
	auth.GET("/me", h.Me)

	auth.POST("/tickets", h.CreateTicket)
	auth.GET("/tickets", h.ListTickets)
	auth.GET("/tickets/:id", h.GetTicket)
	auth.PATCH("/tickets/:id", h.UpdateTicket)
	auth.POST("/tickets/:id/resolve", h.ResolveTicket)
	auth.DELETE("/tickets/:id", h.DeleteTicket)

	auth.POST("/reminders", h.CreateReminder)
	auth.GET("/reminders", h.ListReminders)
	auth.GET("/reminders/:id", h.GetReminder)
	auth.PATCH("/reminders/:id", h.UpdateReminder)
	auth.DELETE("/reminders/:id", h.DeleteReminder)
	auth.POST("/reminders/process", h.ProcessReminders)

	auth.POST("/notifications/send", h.SendNotification)
	auth.GET("/notifications", h.ListNotifications)

	auth.POST("/devices", h.RegisterDevice)
	auth.GET("/devices", h.ListDevices)
	auth.DELETE("/devices", h.RemoveDevice)

	auth.POST("/plans", h.CreatePlan)
	auth.PATCH("/plans/:id", h.UpdatePlan)
	auth.POST("/subscriptions", h.Subscribe)
	auth.GET("/subscriptions", h.ListSubscriptions)
	auth.DELETE("/subscriptions/:id", h.CancelSubscription)
}

func (a *App) MustStart() {
	if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zlog.Logger.Err(err).Msg("http server stopped")
	}
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.Server.Shutdown(ctx); err != nil {
		zlog.Logger.Err(err).Msg("server shutdown failed")
	} else {
		zlog.Logger.Debug().Msg("server stopped gracefully")
	}
}
