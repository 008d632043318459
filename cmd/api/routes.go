package main

import (
	"phone-agent/internal/auth"
	"phone-agent/internal/events"
	"phone-agent/internal/httpapi"
	"phone-agent/internal/progress"
	"phone-agent/internal/rbac"
	"phone-agent/internal/store"
	"phone-agent/internal/telephony"
	"phone-agent/internal/workflow"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	Auth    *auth.Manager
	Bus     *events.Bus
	Store   store.Store
	Dialer  telephony.Dialer
	Tracker *progress.Tracker
	Waiter  *telephony.PlaybackWaiter
	Flows   *workflow.Service
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhooks (public).
	// NOTE: These endpoints should be protected by Twilio signature validation in production.
	{
		wh := telephony.WebhookHandlers{
			Bus:     deps.Bus,
			Tracker: deps.Tracker,
			Waiter:  deps.Waiter,
		}
		r.POST(telephony.VoiceWebhookPath, wh.HandleVoice)
		r.POST(telephony.TranscriptWebhookPath, wh.HandleTranscript)
		r.POST(telephony.StatusWebhookPath, wh.HandleStatus)
	}

	h := httpapi.Handlers{
		Auth:      deps.Auth,
		Workflows: deps.Flows,
		Dialer:    deps.Dialer,
		Bus:       deps.Bus,
		Store:     deps.Store,
	}

	// AUTH routes (token issuance).
	// NOTE: This is a placeholder login route; real credential validation is not implemented.
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(deps.Auth))
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "role": role})
		})

		// CALLS routes
		calls := v1.Group("/calls")
		calls.Use(rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleSupervisor, rbac.RoleSuperAdmin))
		{
			calls.POST("", h.StartCall)
			calls.GET("/:call_id/outcome", h.GetCallOutcome)
			calls.GET("/:call_id/transcript", h.GetCallTranscript)
		}

		// WORKFLOW routes
		workflows := v1.Group("/workflows")
		workflows.Use(rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleSupervisor, rbac.RoleSuperAdmin))
		{
			workflows.POST("", h.StartWorkflow)
			workflows.POST("/batch", h.StartBatch)
			workflows.GET("", h.ListWorkflows)
			workflows.GET("/:business_id", h.GetWorkflow)
			workflows.DELETE("/:business_id", h.CancelWorkflow)
		}
	}
}
